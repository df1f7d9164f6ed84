// Package lazyseq implements the live-sequence idiom the feed depends on
// throughout: Advance() -> bool never means "no more data", it means "not
// terminated yet". Current() holds the item, which may be absent. Callers
// poll; Advance never blocks.
package lazyseq

import "sync"

// Enumerator is the polled lazy-sequence contract every stage of the
// per-symbol pipeline (aggregator, fill-forward, end filter) implements.
type Enumerator[T any] interface {
	// Advance moves to the next item, if any. It returns false only once the
	// sequence has been permanently terminated; true otherwise, even when
	// Current() is empty afterwards.
	Advance() bool
	// Current returns the item produced by the last Advance call, and
	// whether one is present.
	Current() (T, bool)
}

// EnqueueEnumerator is a lazy sequence backed by a mutex-protected FIFO
// slice (spec §9 prefers this over an accidental concurrent queue). The
// queue is unbounded. Enqueue is safe to call concurrently with
// Advance/Stop from another goroutine.
type EnqueueEnumerator[T any] struct {
	mu      sync.Mutex
	queue   []T
	current T
	hasCur  bool
	stopped bool
	drained bool
}

// NewEnqueueEnumerator creates an empty, unstopped enumerator.
func NewEnqueueEnumerator[T any]() *EnqueueEnumerator[T] {
	return &EnqueueEnumerator[T]{}
}

// Enqueue appends x to the tail of the queue.
func (e *EnqueueEnumerator[T]) Enqueue(x T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, x)
}

// Stop marks the enumerator for termination. The next Advance that finds the
// queue empty will return false and the sequence becomes terminal: every
// subsequent Advance call also returns false.
func (e *EnqueueEnumerator[T]) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
}

// Advance never blocks. It sets Current to the next dequeued element, or to
// "absent" if the queue is empty. It returns false only after Stop has been
// called and the queue has been found empty.
func (e *EnqueueEnumerator[T]) Advance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.drained {
		var zero T
		e.current = zero
		e.hasCur = false
		return false
	}

	if len(e.queue) == 0 {
		var zero T
		e.current = zero
		e.hasCur = false
		if e.stopped {
			e.drained = true
			return false
		}
		return true
	}

	e.current = e.queue[0]
	e.queue = e.queue[1:]
	e.hasCur = true
	return true
}

// Current returns the last item produced by Advance, if any.
func (e *EnqueueEnumerator[T]) Current() (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, e.hasCur
}
