package subscription

import (
	"testing"
	"time"

	"github.com/marksmiths/datafeed/internal/data"
)

type fakeSource struct {
	items []data.BaseData
	pos   int
	cur   data.BaseData
	hasC  bool
}

func (f *fakeSource) Advance() bool {
	if f.pos >= len(f.items) {
		f.hasC = false
		return true
	}
	f.cur = f.items[f.pos]
	f.hasC = true
	f.pos++
	return true
}

func (f *fakeSource) Current() (data.BaseData, bool) { return f.cur, f.hasC }

func TestEndFilterDropsItemsPastUtcEnd(t *testing.T) {
	sym := data.NewSymbol("AAPL", data.SecurityTypeEquity)
	end := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	inner := &fakeSource{items: []data.BaseData{
		data.NewTick(sym, end.Add(-time.Minute), data.Tick{LastPrice: 1}),
		data.NewTick(sym, end.Add(time.Minute), data.Tick{LastPrice: 2}),
	}}
	f := NewEndFilter(inner, sym, end)

	f.Advance()
	if _, ok := f.Current(); !ok {
		t.Fatalf("Current() ok = false for an item before utcEnd, want true")
	}

	f.Advance()
	if _, ok := f.Current(); ok {
		t.Fatalf("Current() ok = true for an item after utcEnd, want false")
	}
}

func TestEndFilterDropsMismatchedSymbol(t *testing.T) {
	sym := data.NewSymbol("AAPL", data.SecurityTypeEquity)
	other := data.NewSymbol("MSFT", data.SecurityTypeEquity)
	end := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	inner := &fakeSource{items: []data.BaseData{
		data.NewTick(other, end.Add(-time.Minute), data.Tick{LastPrice: 1}),
	}}
	f := NewEndFilter(inner, sym, end)

	f.Advance()
	if _, ok := f.Current(); ok {
		t.Fatalf("Current() ok = true for an item carrying a different symbol, want false")
	}
}

func TestEndFilterNeverTerminates(t *testing.T) {
	sym := data.NewSymbol("AAPL", data.SecurityTypeEquity)
	f := NewEndFilter(&fakeSource{}, sym, time.Now().UTC())

	for i := 0; i < 3; i++ {
		if !f.Advance() {
			t.Fatalf("Advance() = false on empty inner, want true (live sequence never terminates)")
		}
	}
}
