// Package fillforward implements the fill-forward enumerator (C4): it wraps
// any bar-producing lazy sequence and synthesizes a flat bar during quiet
// intervals, as long as the market is open.
package fillforward

import (
	"sync"
	"time"

	"github.com/marksmiths/datafeed/internal/clock"
	"github.com/marksmiths/datafeed/internal/data"
	"github.com/marksmiths/datafeed/internal/lazyseq"
)

// MarketHours is the exchange-hours collaborator the enumerator consults
// before emitting a synthetic bar. The concrete security/exchange-hours
// catalog is out of scope for this package; only the interface it must
// satisfy lives here.
type MarketHours interface {
	// IsOpen reports whether the exchange is open (regular hours, or
	// regular+extended when extended is true) at local instant t.
	IsOpen(t time.Time, extended bool) bool
}

// AlwaysOpen is a MarketHours that never gates synthesis. Useful for tests
// and for custom-data subscriptions that have no exchange calendar.
type AlwaysOpen struct{}

// IsOpen always returns true.
func (AlwaysOpen) IsOpen(time.Time, bool) bool { return true }

// Enumerator wraps an inner bar source and fills gaps during quiet
// intervals. It never terminates: Advance always returns true, matching the
// live-sequence contract the inner source already follows.
type Enumerator struct {
	inner      lazyseq.Enumerator[data.BaseData]
	clk        clock.Provider
	tz         *time.Location
	hours      MarketHours
	extended   bool
	resolution time.Duration
	subEnd     time.Time

	mu          sync.Mutex
	previous    *data.BaseData
	pendingNext *data.BaseData
	current     data.BaseData
	hasCur      bool
}

// Config bundles the fill-forward enumerator's fixed inputs.
type Config struct {
	Inner               lazyseq.Enumerator[data.BaseData]
	Clock               clock.Provider
	TimeZone            *time.Location
	Hours               MarketHours
	ExtendedMarketHours bool
	Resolution          time.Duration
	SubscriptionEndUTC  time.Time
}

// New builds a fill-forward enumerator from cfg.
func New(cfg Config) *Enumerator {
	tz := cfg.TimeZone
	if tz == nil {
		tz = time.UTC
	}
	hours := cfg.Hours
	if hours == nil {
		hours = AlwaysOpen{}
	}
	return &Enumerator{
		inner:      cfg.Inner,
		clk:        cfg.Clock,
		tz:         tz,
		hours:      hours,
		extended:   cfg.ExtendedMarketHours,
		resolution: cfg.Resolution,
		subEnd:     cfg.SubscriptionEndUTC,
	}
}

// clone produces a synthetic bar advancing previous by one resolution step:
// flat OHLC at previous's close, zero volume, time shifted forward so that
// its EndTime equals previous.EndTime + resolution.
func clone(previous data.BaseData, resolution time.Duration) data.BaseData {
	next := previous
	next.Time = previous.Time.Add(resolution)
	next.EndTime = previous.EndTime.Add(resolution)
	c := previous.Bar.Close
	next.Bar = data.TradeBar{Open: c, High: c, Low: c, Close: c, Volume: 0, Period: resolution}
	return next
}

// Advance never blocks and never terminates.
func (e *Enumerator) Advance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	var next *data.BaseData
	if e.pendingNext != nil {
		next = e.pendingNext
		e.pendingNext = nil
	} else {
		e.inner.Advance()
		if cur, ok := e.inner.Current(); ok {
			c := cur
			next = &c
		}
	}

	if e.previous == nil {
		if next == nil {
			e.hasCur = false
			return true
		}
		e.current = *next
		e.hasCur = true
		p := *next
		e.previous = &p
		return true
	}

	expected := e.previous.EndTime.Add(e.resolution)

	if next != nil {
		if !next.EndTime.After(expected) {
			e.current = *next
			e.hasCur = true
			p := *next
			e.previous = &p
			return true
		}
		// Gap: synthesize, retain next for the subsequent Advance call.
		e.pendingNext = next
		if expected.After(e.subEnd) {
			e.hasCur = false
			return true
		}
		if !e.hours.IsOpen(expected, e.extended) {
			e.hasCur = false
			return true
		}
		synthetic := clone(*e.previous, e.resolution)
		e.current = synthetic
		e.hasCur = true
		e.previous = &synthetic
		return true
	}

	// No inner data at all right now.
	if expected.After(e.subEnd) {
		e.hasCur = false
		return true
	}
	nowLocal := e.clk.Now().In(e.tz)
	if expected.After(nowLocal) {
		e.hasCur = false
		return true
	}
	if !e.hours.IsOpen(expected, e.extended) {
		e.hasCur = false
		return true
	}
	synthetic := clone(*e.previous, e.resolution)
	e.current = synthetic
	e.hasCur = true
	e.previous = &synthetic
	return true
}

// Current returns the item produced by the last Advance call, if any.
func (e *Enumerator) Current() (data.BaseData, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, e.hasCur
}
