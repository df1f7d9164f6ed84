package timeslice

import (
	"testing"
	"time"

	"github.com/marksmiths/datafeed/internal/data"
)

func TestBuildFreezesACopyOfSymbolData(t *testing.T) {
	sym := data.NewSymbol("AAPL", data.SecurityTypeEquity)
	emitTime := time.Date(2026, 1, 2, 9, 31, 0, 0, time.UTC)
	items := []data.BaseData{data.NewTick(sym, emitTime, data.Tick{LastPrice: 199.55, Quantity: 10})}
	rows := []SymbolData{{Symbol: sym, Items: items}}

	slice := Build(emitTime, time.UTC, rows, NoChanges)

	// Mutating the input slice after Build must not affect the frozen slice.
	items[0] = data.BaseData{}
	got, ok := slice.Get(sym)
	if !ok {
		t.Fatalf("Get(%v) ok = false, want true", sym)
	}
	if got[0].Tick.LastPrice != 199.55 {
		t.Fatalf("Get(%v)[0].Tick.LastPrice = %v, want 199.55 (Build must copy, not alias)", sym, got[0].Tick.LastPrice)
	}
	if !slice.Time.Equal(emitTime) {
		t.Fatalf("Time = %v, want %v", slice.Time, emitTime)
	}
}

func TestSliceGetMissingSymbol(t *testing.T) {
	slice := Build(time.Now().UTC(), time.UTC, nil, NoChanges)
	if _, ok := slice.Get(data.NewSymbol("MSFT", data.SecurityTypeEquity)); ok {
		t.Fatalf("Get() ok = true for a symbol never collected, want false")
	}
}
