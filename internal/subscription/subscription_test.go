package subscription

import (
	"testing"
	"time"

	"github.com/marksmiths/datafeed/internal/data"
	"github.com/marksmiths/datafeed/internal/lazyseq"
)

func TestNewAssignsDistinctIDs(t *testing.T) {
	sym := data.NewSymbol("AAPL", data.SecurityTypeEquity)
	cfg := Config{Symbol: sym, Resolution: data.ResolutionMinute}
	a := New(cfg, Security{Symbol: sym}, time.Time{}, time.Time{}, true)
	b := New(cfg, Security{Symbol: sym}, time.Time{}, time.Time{}, true)

	if a.ID == b.ID {
		t.Fatalf("two subscriptions got the same ID %v", a.ID)
	}
}

func TestTwoPhaseConstructionWiresHandlerBeforeSource(t *testing.T) {
	sym := data.NewSymbol("AAPL", data.SecurityTypeEquity)
	cfg := Config{Symbol: sym, Resolution: data.ResolutionTick}
	sub := New(cfg, Security{Symbol: sym}, time.Time{}, time.Time{}, false)

	enq := lazyseq.NewEnqueueEnumerator[data.BaseData]()
	handler := func(item data.BaseData) {
		enq.Enqueue(item)
	}
	sub.SetSource(enq)

	tick := data.NewTick(sym, time.Now().UTC(), data.Tick{LastPrice: 100})
	handler(tick)

	if !sub.Advance() {
		t.Fatalf("Advance() = false, want true")
	}
	got, ok := sub.Current()
	if !ok {
		t.Fatalf("Current() ok = false, want true")
	}
	if got.Tick.LastPrice != 100 {
		t.Fatalf("Current().Tick.LastPrice = %v, want 100", got.Tick.LastPrice)
	}
}

func TestSetUniverseMarksSubscription(t *testing.T) {
	sym := data.NewSymbol("AAPL", data.SecurityTypeEquity)
	sub := New(Config{Symbol: sym}, Security{Symbol: sym}, time.Time{}, time.Time{}, true)

	if sub.IsUniverseSelection {
		t.Fatalf("IsUniverseSelection = true before SetUniverse, want false")
	}
	u := &Universe{Name: "liquid-tech"}
	sub.SetUniverse(u)
	if !sub.IsUniverseSelection || sub.Universe != u {
		t.Fatalf("SetUniverse did not mark the subscription correctly")
	}
}

func TestRealtimePriceConcurrentReadWrite(t *testing.T) {
	sym := data.NewSymbol("AAPL", data.SecurityTypeEquity)
	sub := New(Config{Symbol: sym}, Security{Symbol: sym}, time.Time{}, time.Time{}, true)

	if _, ok := sub.RealtimePrice(); ok {
		t.Fatalf("RealtimePrice() ok = true before any SetRealtimePrice call, want false")
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			sub.SetRealtimePrice(float64(i))
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		sub.RealtimePrice()
	}
	<-done

	price, ok := sub.RealtimePrice()
	if !ok || price != 99 {
		t.Fatalf("RealtimePrice() = (%v, %v), want (99, true)", price, ok)
	}
}
