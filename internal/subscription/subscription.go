package subscription

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marksmiths/datafeed/internal/data"
	"github.com/marksmiths/datafeed/internal/lazyseq"
)

// Security is the minimal tradable-instrument handle the feed needs. The
// full security/exchange-hours catalog is an external collaborator (spec
// §1); this is only the sliver the subscription container has to carry.
type Security struct {
	Symbol data.Symbol
}

// Universe identifies a universe-selection subscription's owning universe.
// Universe-selection policy itself is authored by the algorithm, not here —
// the feed only invokes it (spec §1 Non-goals).
type Universe struct {
	Name string
}

// Subscription is the per-symbol pipeline container (C7). It has no
// non-trivial behavior of its own: it is mutated by the frontier loop
// (Advance/Current bookkeeping) and by the exchange's per-symbol dispatcher
// callback (RealtimePrice, and indirectly Source via Enqueue/Process).
type Subscription struct {
	ID uuid.UUID

	Config   Config
	Security Security
	Source   lazyseq.Enumerator[data.BaseData]

	UtcStart time.Time
	UtcEnd   time.Time

	IsUserDefined       bool
	IsUniverseSelection bool
	Universe            *Universe

	// NeedsAdvance is true when the pipeline must be pulled again before
	// Current is considered fresh. Owned exclusively by the frontier loop.
	NeedsAdvance bool

	mu            sync.Mutex
	current       data.BaseData
	hasCur        bool
	realtimePrice float64
	hasRealtime   bool
}

// New allocates a subscription shell. Per spec §9's two-phase construction
// note, callers build the shell first, install any dispatcher handler that
// closes over it, then call SetSource once the pipeline is wired — this
// avoids a construction-time cycle between the handler and the subscription
// it feeds.
func New(cfg Config, sec Security, utcStart, utcEnd time.Time, isUserDefined bool) *Subscription {
	return &Subscription{
		ID:            uuid.New(),
		Config:        cfg,
		Security:      sec,
		UtcStart:      utcStart,
		UtcEnd:        utcEnd,
		IsUserDefined: isUserDefined,
	}
}

// SetSource wires the fully-assembled pipeline (aggregator/enqueue ->
// optional fill-forward -> end filter) as this subscription's source.
func (s *Subscription) SetSource(src lazyseq.Enumerator[data.BaseData]) {
	s.Source = src
}

// SetUniverse marks this subscription as a universe-selection subscription
// owned by u.
func (s *Subscription) SetUniverse(u *Universe) {
	s.IsUniverseSelection = true
	s.Universe = u
}

// Advance pulls the next item from Source.
func (s *Subscription) Advance() bool {
	return s.Source.Advance()
}

// Current returns the last item produced by the subscription's source.
func (s *Subscription) Current() (data.BaseData, bool) {
	return s.Source.Current()
}

// SetRealtimePrice records the latest observed price, making it available
// without waiting for a bar close. Called from the exchange's per-symbol
// dispatcher callback, concurrently with the frontier loop reading it.
func (s *Subscription) SetRealtimePrice(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realtimePrice = price
	s.hasRealtime = true
}

// RealtimePrice returns the latest observed price and whether one has been
// set yet.
func (s *Subscription) RealtimePrice() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.realtimePrice, s.hasRealtime
}
