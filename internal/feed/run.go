package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/marksmiths/datafeed/internal/data"
	"github.com/marksmiths/datafeed/internal/subscription"
	"github.com/marksmiths/datafeed/internal/timeslice"
)

// roundDown floors t to the nearest multiple of d since the Unix epoch.
func roundDown(t time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return t
	}
	return t.Truncate(d)
}

// drain pulls every item a subscription's source has ready whose EndTime is
// at or before frontier, per spec §4.8 step 3's inner loop. It returns the
// collected batch in production order and leaves sub.NeedsAdvance set for
// the next call: true once the source is exhausted up to frontier, false
// when an item was peeked but must be retained for a later frontier.
func drain(sub *subscription.Subscription, frontier time.Time) []data.BaseData {
	var batch []data.BaseData
	for {
		if sub.NeedsAdvance {
			if !sub.Advance() {
				break
			}
		}
		cur, ok := sub.Current()
		if !ok {
			sub.NeedsAdvance = true
			break
		}
		if cur.EndTime.After(frontier) {
			sub.NeedsAdvance = false
			break
		}
		batch = append(batch, cur)
		sub.NeedsAdvance = true
	}
	return batch
}

// Run blocks, driving subscriptions under the UTC frontier, until Exit is
// called or the upstream errors fatally. It implements spec §4.8's run()
// loop: advancing every subscription up to the frontier, firing universe
// selection, and publishing a heartbeat time slice at least once a second.
func (f *DataFeed) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	defer cancel()

	f.setActive(true)
	defer f.setActive(false)

	var nextEmit time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.exch.Done():
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("feed: exchange consumer stopped")
		default:
		}

		frontier := f.clk.Now()

		f.mu.RLock()
		sleepIncrement := f.sleepIncrement
		roundingIncrement := f.roundingIncrement
		subs := make([]*subscription.Subscription, 0, len(f.subs))
		for _, s := range f.subs {
			subs = append(subs, s)
		}
		f.mu.RUnlock()

		var collected []timeslice.SymbolData
		anyData := false

		for _, sub := range subs {
			batch := drain(sub, frontier)
			if len(batch) == 0 {
				continue
			}
			anyData = true
			collected = append(collected, timeslice.SymbolData{Symbol: sub.Config.Symbol, Items: batch})
			if sub.Config.Resolution.IsTick() {
				roundingIncrement = time.Millisecond
			}

			if sub.IsUniverseSelection {
				if err := f.bridge.Wait(ctx, f.waitCap); err != nil {
					return nil // cancellation or bridge-closed: treated as cancellation (spec §7.5)
				}
				if f.onUniverse != nil {
					rows := flattenUniverseRows(batch)
					f.onUniverse(sub.Universe, sub.Config, frontier, rows)
				}
			}
		}

		f.mu.Lock()
		if f.roundingIncrement != roundingIncrement {
			f.roundingIncrement = roundingIncrement
		}
		f.mu.Unlock()

		if anyData || !frontier.Before(nextEmit) {
			emitTime := roundDown(frontier, roundingIncrement)

			f.mu.Lock()
			changes := f.pendingChange
			f.pendingChange = timeslice.NoChanges
			f.mu.Unlock()

			slice := timeslice.Build(emitTime, time.UTC, collected, changes)
			if err := f.bridge.Add(ctx, slice); err != nil {
				return fmt.Errorf("feed: publish slice: %w", err)
			}
			f.metrics.SliceEmitted(len(collected))
			nextEmit = emitTime.Add(time.Second)
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}

		now := f.clk.Now()
		nextBoundary := roundDown(now.Add(sleepIncrement), sleepIncrement)
		sleepFor := nextBoundary.Sub(now)
		if sleepFor < time.Millisecond {
			sleepFor = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleepFor):
		}
	}
}

// flattenUniverseRows concatenates the coarse-fundamental rows of every
// universe-selection item in batch, in production order.
func flattenUniverseRows(batch []data.BaseData) []data.CoarseFundamentalRow {
	var rows []data.CoarseFundamentalRow
	for _, item := range batch {
		rows = append(rows, item.Universe.Rows...)
	}
	return rows
}
