// Package aggregator implements the tick aggregator (C3): it consumes ticks
// and exposes a lazy sequence of one TradeBar per barSize window.
package aggregator

import (
	"sync"
	"time"

	"github.com/marksmiths/datafeed/internal/clock"
	"github.com/marksmiths/datafeed/internal/data"
)

// workingBar is the at-most-one in-flight bar the aggregator holds. Written
// only from Process (the dispatcher thread); read and cleared only from
// Advance (the frontier thread). A plain mutex-guarded struct is enough —
// there is never more than one writer and one reader (spec §9 design note).
type workingBar struct {
	startLocal time.Time
	bar        data.TradeBar
}

// TickAggregator assembles ticks for one symbol into fixed-duration OHLCV
// bars. Bar boundaries are computed from the injected clock.Provider, local
// to the configured time zone, so the whole pipeline is deterministically
// testable with a clock.ManualProvider.
type TickAggregator struct {
	symbol  data.Symbol
	barSize time.Duration
	tz      *time.Location
	clk     clock.Provider

	mu      sync.Mutex
	working *workingBar
	current data.BaseData
	hasCur  bool
}

// New creates a tick aggregator for one symbol and bar size.
func New(symbol data.Symbol, barSize time.Duration, tz *time.Location, clk clock.Provider) *TickAggregator {
	if tz == nil {
		tz = time.UTC
	}
	return &TickAggregator{symbol: symbol, barSize: barSize, tz: tz, clk: clk}
}

// roundDown floors t to the nearest multiple of d since the Unix epoch, in
// t's own location.
func roundDown(t time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return t
	}
	loc := t.Location()
	floored := t.Truncate(d)
	return floored.In(loc)
}

// Process folds one tick into the working bar, creating it if none exists.
// A quote-only tick (LastPrice == 0) contributes only quantity to volume: it
// never moves open/high/low/close, per spec §4.3.
func (a *TickAggregator) Process(tick data.Tick) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.working == nil {
		startLocal := roundDown(a.clk.Now().In(a.tz), a.barSize)
		a.working = &workingBar{
			startLocal: startLocal,
			bar: data.TradeBar{
				Open: tick.LastPrice, High: tick.LastPrice, Low: tick.LastPrice, Close: tick.LastPrice,
				Volume: tick.Quantity, Period: a.barSize,
			},
		}
		return
	}

	w := &a.working.bar
	w.Volume += tick.Quantity
	if tick.LastPrice != 0 {
		if w.Open == 0 {
			w.Open = tick.LastPrice
		}
		if tick.LastPrice > w.High {
			w.High = tick.LastPrice
		}
		if w.Low == 0 || tick.LastPrice < w.Low {
			w.Low = tick.LastPrice
		}
		w.Close = tick.LastPrice
	}
}

// Advance publishes the working bar as Current once its end time has
// elapsed per the clock; otherwise Current is left absent. Live sequences
// never terminate: Advance always returns true.
func (a *TickAggregator) Advance() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.working == nil {
		a.hasCur = false
		return true
	}

	endUTC := a.working.startLocal.Add(a.working.bar.Period).UTC()
	if !endUTC.After(a.clk.Now()) {
		a.current = data.NewTradeBar(a.symbol, a.working.startLocal, a.working.bar)
		a.hasCur = true
		a.working = nil
		return true
	}

	a.hasCur = false
	return true
}

// Current returns the last bar published by Advance, if any.
func (a *TickAggregator) Current() (data.BaseData, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, a.hasCur
}
