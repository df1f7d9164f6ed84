package aggregator

import (
	"testing"
	"time"

	"github.com/marksmiths/datafeed/internal/clock"
	"github.com/marksmiths/datafeed/internal/data"
)

func TestTickAggregatorBuildsOHLCVBar(t *testing.T) {
	// Scenario S1: three ticks inside one minute window produce a single bar
	// with open=first trade, close=last trade, correct high/low, summed volume.
	start := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	clk := clock.NewManualProvider(start)
	sym := data.NewSymbol("AAPL", data.SecurityTypeEquity)
	agg := New(sym, time.Minute, time.UTC, clk)

	agg.Process(data.Tick{BidPrice: 199.50, AskPrice: 199.60, LastPrice: 199.55, Quantity: 20})
	if !agg.Advance() {
		t.Fatalf("Advance() = false, want true (live sequence never terminates)")
	}
	if _, ok := agg.Current(); ok {
		t.Fatalf("Current() ok = true before window elapsed, want false")
	}

	clk.Advance(20 * time.Second)
	agg.Process(data.Tick{BidPrice: 199.80, AskPrice: 199.90, LastPrice: 199.85, Quantity: 15})
	clk.Advance(20 * time.Second)
	agg.Process(data.Tick{BidPrice: 199.30, AskPrice: 199.40, LastPrice: 199.35, Quantity: 20})

	agg.Advance()
	if _, ok := agg.Current(); ok {
		t.Fatalf("Current() ok = true before bar period elapsed, want false")
	}

	clk.Advance(20 * time.Second) // crosses the 1-minute boundary
	if !agg.Advance() {
		t.Fatalf("Advance() = false, want true")
	}
	got, ok := agg.Current()
	if !ok {
		t.Fatalf("Current() ok = false after bar period elapsed, want true")
	}
	if got.Kind != data.KindTradeBar {
		t.Fatalf("Kind = %v, want KindTradeBar", got.Kind)
	}
	bar := got.Bar
	if bar.Open != 199.55 {
		t.Errorf("Open = %v, want 199.55", bar.Open)
	}
	if bar.High != 199.85 {
		t.Errorf("High = %v, want 199.85", bar.High)
	}
	if bar.Low != 199.35 {
		t.Errorf("Low = %v, want 199.35", bar.Low)
	}
	if bar.Close != 199.35 {
		t.Errorf("Close = %v, want 199.35", bar.Close)
	}
	if bar.Volume != 55 {
		t.Errorf("Volume = %v, want 55", bar.Volume)
	}
	if !got.Time.Equal(start) {
		t.Errorf("Time = %v, want %v", got.Time, start)
	}
	if !got.EndTime.Equal(start.Add(time.Minute)) {
		t.Errorf("EndTime = %v, want %v", got.EndTime, start.Add(time.Minute))
	}

	// The working bar is cleared after publication.
	agg.Advance()
	if _, ok := agg.Current(); ok {
		t.Fatalf("Current() ok = true on the call after publication with no new ticks, want false")
	}
}

func TestTickAggregatorQuoteOnlyTickDoesNotMoveOHLC(t *testing.T) {
	start := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	clk := clock.NewManualProvider(start)
	sym := data.NewSymbol("AAPL", data.SecurityTypeEquity)
	agg := New(sym, time.Minute, time.UTC, clk)

	agg.Process(data.Tick{BidPrice: 199.50, AskPrice: 199.60, LastPrice: 199.55, Quantity: 10})
	agg.Process(data.Tick{BidPrice: 199.90, AskPrice: 200.00, LastPrice: 0, Quantity: 5})

	clk.Advance(time.Minute)
	agg.Advance()
	got, ok := agg.Current()
	if !ok {
		t.Fatalf("Current() ok = false, want true")
	}
	if got.Bar.Open != 199.55 || got.Bar.Close != 199.55 {
		t.Errorf("quote-only tick moved O/C: got open=%v close=%v, want both 199.55", got.Bar.Open, got.Bar.Close)
	}
	if got.Bar.Volume != 15 {
		t.Errorf("Volume = %v, want 15 (quote-only tick still contributes quantity)", got.Bar.Volume)
	}
}
