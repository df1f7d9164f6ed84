package feed

import (
	"context"

	"github.com/marksmiths/datafeed/internal/timeslice"
)

// Bridge is the downstream collaborator: a bounded, cancellable channel
// carrying published time slices to the downstream consumer (spec §6).
type Bridge interface {
	// Add publishes slice, blocking on backpressure until there is room or
	// ctx is cancelled.
	Add(ctx context.Context, slice timeslice.Slice) error
	// Wait blocks until the bridge has at least capacity free room, or ctx
	// is cancelled. Used before firing universe selection, to preserve
	// ordering against the downstream consumer.
	Wait(ctx context.Context, capacity int) error
}
