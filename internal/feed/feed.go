// Package feed implements the frontier loop (C8): the engine that owns
// subscriptions, drives them under a UTC frontier, invokes universe
// selection, and emits consolidated time slices to the downstream bridge.
package feed

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/marksmiths/datafeed/internal/aggregator"
	"github.com/marksmiths/datafeed/internal/clock"
	"github.com/marksmiths/datafeed/internal/data"
	"github.com/marksmiths/datafeed/internal/exchange"
	"github.com/marksmiths/datafeed/internal/feedmetrics"
	"github.com/marksmiths/datafeed/internal/fillforward"
	"github.com/marksmiths/datafeed/internal/lazyseq"
	"github.com/marksmiths/datafeed/internal/subscription"
	"github.com/marksmiths/datafeed/internal/timeslice"
)

// UniverseSelectionFunc is the algorithm-supplied callback fired once per
// universe-selection batch. The feed invokes it; it does not define
// universe-selection policy (spec §1 Non-goals).
type UniverseSelectionFunc func(u *subscription.Universe, cfg subscription.Config, frontier time.Time, rows []data.CoarseFundamentalRow)

// Options configures a DataFeed at construction time.
type Options struct {
	Clock                   clock.Provider
	Upstream                DataQueueHandler
	Bridge                  Bridge
	MarketHours             fillforward.MarketHours
	CustomDataSourceFactory CustomDataSourceFactory
	OnUniverseSelection     UniverseSelectionFunc
	BridgeWaitCapacity      int
	Metrics                 feedmetrics.Recorder
}

// DataFeed is the frontier loop engine (C8): the IDataFeed public surface
// from spec §6.
type DataFeed struct {
	clk         clock.Provider
	upstream    DataQueueHandler
	bridge      Bridge
	marketHours fillforward.MarketHours
	customData  CustomDataSourceFactory
	onUniverse  UniverseSelectionFunc
	waitCap     int
	metrics     feedmetrics.Recorder

	exch *exchange.Exchange

	mu            sync.RWMutex
	subs          map[data.Symbol]*subscription.Subscription
	pendingChange timeslice.Changes

	cancel context.CancelFunc

	activeMu sync.RWMutex
	active   bool

	// roundingIncrement persists across run() iterations within one
	// lifetime (spec §9 Open Question (a)): it only resets to the
	// sleepIncrement default when the active resolution mix changes, not on
	// every iteration.
	roundingIncrement time.Duration
	sleepIncrement    time.Duration
}

// New constructs a DataFeed. BeginConsume is not called until Initialize.
func New(opts Options) *DataFeed {
	if opts.Clock == nil {
		opts.Clock = clock.NewRealProvider()
	}
	if opts.CustomDataSourceFactory == nil {
		opts.CustomDataSourceFactory = defaultCustomDataSourceFactory
	}
	if opts.MarketHours == nil {
		opts.MarketHours = fillforward.AlwaysOpen{}
	}
	if opts.BridgeWaitCapacity <= 0 {
		opts.BridgeWaitCapacity = 1
	}
	if opts.Metrics == nil {
		opts.Metrics = feedmetrics.NoopRecorder{}
	}
	exch := exchange.New(opts.Upstream)
	exch.SetRecorder(opts.Metrics)
	return &DataFeed{
		clk:               opts.Clock,
		upstream:          opts.Upstream,
		bridge:            opts.Bridge,
		marketHours:       opts.MarketHours,
		customData:        opts.CustomDataSourceFactory,
		onUniverse:        opts.OnUniverseSelection,
		waitCap:           opts.BridgeWaitCapacity,
		metrics:           opts.Metrics,
		exch:              exch,
		subs:              make(map[data.Symbol]*subscription.Subscription),
		sleepIncrement:    time.Second,
		roundingIncrement: time.Second,
	}
}

// Initialize wires the exchange and begins consuming the upstream queue.
// Subscriptions added afterward via AddSubscription register their own
// dispatcher handlers.
func (f *DataFeed) Initialize() {
	f.exch.BeginConsume()
}

// IsActive reports whether Run is currently executing.
func (f *DataFeed) IsActive() bool {
	f.activeMu.RLock()
	defer f.activeMu.RUnlock()
	return f.active
}

func (f *DataFeed) setActive(v bool) {
	f.activeMu.Lock()
	defer f.activeMu.Unlock()
	f.active = v
}

// Subscriptions returns an enumerable snapshot of currently registered
// subscriptions.
func (f *DataFeed) Subscriptions() []*subscription.Subscription {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*subscription.Subscription, 0, len(f.subs))
	for _, s := range f.subs {
		out = append(out, s)
	}
	return out
}

// AddSubscription constructs and registers a subscription for sec, from
// utcStart to utcEnd. Subscription-construction errors (including an
// upstream Subscribe failure) are returned synchronously and leave no
// partial state: the subscription is not registered (spec §7, and
// DESIGN.md's resolution of Open Question (b)).
func (f *DataFeed) AddSubscription(cfg subscription.Config, sec subscription.Security, utcStart, utcEnd time.Time, isUserDefined bool) (*subscription.Subscription, error) {
	sub := subscription.New(cfg, sec, utcStart, utcEnd, isUserDefined)

	if err := f.buildSource(sub, cfg, utcStart, utcEnd); err != nil {
		return nil, fmt.Errorf("feed: construct subscription for %s: %w", cfg.Symbol, err)
	}

	if f.upstream != nil {
		if err := f.upstream.Subscribe(cfg.SecurityType, []data.Symbol{cfg.Symbol}); err != nil {
			f.exch.RemoveHandler(cfg.Symbol)
			return nil, fmt.Errorf("feed: upstream subscribe for %s: %w", cfg.Symbol, err)
		}
	}

	sub.Advance()
	_, ok := sub.Current()
	sub.NeedsAdvance = !ok

	f.mu.Lock()
	f.subs[cfg.Symbol] = sub
	f.pendingChange = f.pendingChange.AddSecurity(sec)
	count := len(f.subs)
	f.mu.Unlock()

	f.metrics.SubscriptionsActive(count)
	f.recomputeSleepIncrement()
	return sub, nil
}

// AddUniverseSubscription registers a universe-selection subscription fed
// directly from the exchange for coarse-fundamental payloads.
func (f *DataFeed) AddUniverseSubscription(u *subscription.Universe, cfg subscription.Config, utcStart, utcEnd time.Time) (*subscription.Subscription, error) {
	sec := subscription.Security{Symbol: cfg.Symbol}
	sub := subscription.New(cfg, sec, utcStart, utcEnd, false)
	sub.SetUniverse(u)

	enq := lazyseq.NewEnqueueEnumerator[data.BaseData]()
	f.exch.SetHandler(cfg.Symbol, func(item data.BaseData) error {
		if item.Kind == data.KindCoarseFundamental {
			enq.Enqueue(item)
		}
		return nil
	})
	var src lazyseq.Enumerator[data.BaseData] = enq
	sub.SetSource(subscription.NewEndFilter(src, cfg.Symbol, utcEnd))

	if f.upstream != nil {
		if err := f.upstream.Subscribe(cfg.SecurityType, []data.Symbol{cfg.Symbol}); err != nil {
			f.exch.RemoveHandler(cfg.Symbol)
			return nil, fmt.Errorf("feed: upstream subscribe for universe %s: %w", cfg.Symbol, err)
		}
	}

	sub.Advance()
	_, ok := sub.Current()
	sub.NeedsAdvance = !ok

	f.mu.Lock()
	f.subs[cfg.Symbol] = sub
	count := len(f.subs)
	f.mu.Unlock()

	f.metrics.SubscriptionsActive(count)
	return sub, nil
}

// RemoveSubscription deregisters sec's subscription, removes its exchange
// handler, and notifies upstream.
func (f *DataFeed) RemoveSubscription(sec subscription.Security) {
	f.mu.Lock()
	sub, ok := f.subs[sec.Symbol]
	if ok {
		delete(f.subs, sec.Symbol)
		f.pendingChange = f.pendingChange.RemoveSecurity(sec)
	}
	count := len(f.subs)
	f.mu.Unlock()

	if !ok {
		return
	}

	f.exch.RemoveHandler(sec.Symbol)
	if f.upstream != nil {
		if err := f.upstream.Unsubscribe(sub.Config.SecurityType, []data.Symbol{sec.Symbol}); err != nil {
			log.Printf("feed: upstream unsubscribe for %s: %v", sec.Symbol, err)
		}
	}
	f.metrics.SubscriptionsActive(count)
	f.recomputeSleepIncrement()
}

// buildSource assembles the per-symbol pipeline: source selection by
// config, optional fill-forward, always an end filter, per spec §4.8.
func (f *DataFeed) buildSource(sub *subscription.Subscription, cfg subscription.Config, utcStart, utcEnd time.Time) error {
	var src lazyseq.Enumerator[data.BaseData]

	switch {
	case cfg.IsCustomData:
		src = f.customData(cfg, utcStart, utcEnd)

	case cfg.Resolution.IsTick():
		enq := lazyseq.NewEnqueueEnumerator[data.BaseData]()
		f.exch.SetHandler(cfg.Symbol, func(item data.BaseData) error {
			if item.Kind != data.KindTick {
				return nil
			}
			enq.Enqueue(item)
			sub.SetRealtimePrice(item.Tick.LastPrice)
			return nil
		})
		src = enq

	default:
		agg := aggregator.New(cfg.Symbol, cfg.Increment, cfg.TimeZone, f.clk)
		f.exch.SetHandler(cfg.Symbol, func(item data.BaseData) error {
			if item.Kind != data.KindTick {
				return nil
			}
			agg.Process(item.Tick)
			sub.SetRealtimePrice(item.Tick.LastPrice)
			return nil
		})
		src = agg
	}

	if cfg.FillDataForward {
		src = fillforward.New(fillforward.Config{
			Inner:               src,
			Clock:               f.clk,
			TimeZone:            cfg.TimeZone,
			Hours:               f.marketHours,
			ExtendedMarketHours: cfg.ExtendedMarketHours,
			Resolution:          cfg.Increment,
			SubscriptionEndUTC:  utcEnd,
		})
	}

	sub.SetSource(subscription.NewEndFilter(src, cfg.Symbol, utcEnd))
	return nil
}

func (f *DataFeed) recomputeSleepIncrement() {
	f.mu.RLock()
	anyTick := false
	for _, s := range f.subs {
		if s.Config.Resolution.IsTick() {
			anyTick = true
			break
		}
	}
	f.mu.RUnlock()

	next := time.Second
	if anyTick {
		next = time.Millisecond
	}

	f.mu.Lock()
	if f.sleepIncrement != next {
		f.sleepIncrement = next
		f.roundingIncrement = next
	}
	f.mu.Unlock()
}

// Exit cancels the running loop and the dispatcher. Idempotent.
func (f *DataFeed) Exit() {
	if f.cancel != nil {
		f.cancel()
	}
	f.exch.EndConsume()
}
