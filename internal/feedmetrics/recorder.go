// Package feedmetrics is optional observability for the feed. internal/feed
// depends only on the Recorder interface, never on Prometheus directly
// (spec §1 treats metrics as an external collaborator); Prometheus is a
// wiring-layer detail, installed by cmd/datafeed.
package feedmetrics

import "github.com/marksmiths/datafeed/internal/data"

// Recorder observes feed activity without participating in its control
// flow. A nil-safe no-op Recorder is the default so tests and callers that
// don't care about metrics never need a Prometheus dependency.
type Recorder interface {
	// SliceEmitted records a published time slice and how many symbols had
	// data in it.
	SliceEmitted(symbolCount int)
	// TickRouted records a single item delivered to a subscription's
	// handler.
	TickRouted(symbol data.Symbol, kind data.Kind)
	// HandlerError records a handler/poll error, whether the exchange then
	// treats it as recoverable or fatal.
	HandlerError(reason string)
	// SubscriptionsActive sets the current subscription-table size.
	SubscriptionsActive(n int)
}

// NoopRecorder discards everything. It is the feed's default Recorder.
type NoopRecorder struct{}

func (NoopRecorder) SliceEmitted(int)                  {}
func (NoopRecorder) TickRouted(data.Symbol, data.Kind) {}
func (NoopRecorder) HandlerError(string)               {}
func (NoopRecorder) SubscriptionsActive(int)           {}
