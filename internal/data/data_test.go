package data

import (
	"testing"
	"time"
)

func TestSymbolStringIncludesSecurityType(t *testing.T) {
	sym := NewSymbol("AAPL", SecurityTypeEquity)
	if got, want := sym.String(), "AAPL:Equity"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestSymbolEqualityIsValueBased(t *testing.T) {
	a := NewSymbol("AAPL", SecurityTypeEquity)
	b := NewSymbol("AAPL", SecurityTypeEquity)
	c := NewSymbol("AAPL", SecurityTypeForex)
	if a != b {
		t.Fatalf("two symbols built from identical inputs compared unequal")
	}
	if a == c {
		t.Fatalf("symbols with different security types compared equal")
	}
}

func TestResolutionPeriodAndIsTick(t *testing.T) {
	cases := []struct {
		res    Resolution
		isTick bool
		period time.Duration
	}{
		{ResolutionTick, true, 0},
		{ResolutionSecond, false, time.Second},
		{ResolutionMinute, false, time.Minute},
		{ResolutionHour, false, time.Hour},
		{ResolutionDaily, false, 24 * time.Hour},
	}
	for _, tc := range cases {
		if got := tc.res.IsTick(); got != tc.isTick {
			t.Errorf("%v.IsTick() = %v, want %v", tc.res, got, tc.isTick)
		}
		if got := tc.res.Period(); got != tc.period {
			t.Errorf("%v.Period() = %v, want %v", tc.res, got, tc.period)
		}
	}
}

func TestBaseDataPeriod(t *testing.T) {
	start := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	b := NewTradeBar(NewSymbol("AAPL", SecurityTypeEquity), start, TradeBar{Period: time.Minute})
	if got, want := b.Period(), time.Minute; got != want {
		t.Fatalf("Period() = %v, want %v", got, want)
	}
}

func TestTickIsTrade(t *testing.T) {
	quoteOnly := Tick{BidPrice: 1, AskPrice: 1.1}
	if quoteOnly.IsTrade() {
		t.Fatalf("IsTrade() = true for a quote-only tick (LastPrice == 0), want false")
	}
	traded := Tick{LastPrice: 100}
	if !traded.IsTrade() {
		t.Fatalf("IsTrade() = false for a tick with a nonzero LastPrice, want true")
	}
}
