package subscription

import (
	"time"

	"github.com/marksmiths/datafeed/internal/data"
	"github.com/marksmiths/datafeed/internal/lazyseq"
)

// EndFilter is the final stage of the per-symbol pipeline (C5): it drops any
// item whose EndTime is past the subscription's utcEnd, and defensively
// drops anything whose symbol doesn't match.
type EndFilter struct {
	inner  lazyseq.Enumerator[data.BaseData]
	symbol data.Symbol
	utcEnd time.Time

	current data.BaseData
	hasCur  bool
}

// NewEndFilter wraps inner with the subscription's end-time and symbol
// guard.
func NewEndFilter(inner lazyseq.Enumerator[data.BaseData], symbol data.Symbol, utcEnd time.Time) *EndFilter {
	return &EndFilter{inner: inner, symbol: symbol, utcEnd: utcEnd}
}

// Advance pulls one item from inner; an item that fails the symbol or
// end-time check is dropped and Current stays absent for this call. It
// always returns true, consistent with the live-sequence contract of every
// stage above it.
func (f *EndFilter) Advance() bool {
	f.inner.Advance()
	item, ok := f.inner.Current()
	if !ok {
		f.hasCur = false
		return true
	}
	if item.Symbol != f.symbol {
		f.hasCur = false
		return true
	}
	if item.EndTime.After(f.utcEnd) {
		f.hasCur = false
		return true
	}
	f.current = item
	f.hasCur = true
	return true
}

// Current returns the item produced by the last Advance call, if any.
func (f *EndFilter) Current() (data.BaseData, bool) {
	return f.current, f.hasCur
}
