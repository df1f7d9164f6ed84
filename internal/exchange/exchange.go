// Package exchange implements the fan-out exchange (C6): a single consumer
// thread that polls the upstream queue and dispatches each item to its
// per-symbol handler.
package exchange

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/marksmiths/datafeed/internal/data"
	"github.com/marksmiths/datafeed/internal/feedmetrics"
)

// pollBackoff is how long the consumer sleeps after a poll that routed
// nothing, to avoid busy-spinning an empty upstream queue.
const pollBackoff = 5 * time.Millisecond

// DataQueueHandler is the upstream collaborator: a vendor/brokerage-specific
// adapter the exchange polls. The concrete adapter (AMQP, REST, …) lives
// outside this package; only the interface the core depends on does.
type DataQueueHandler interface {
	// GetNextTicks returns whatever items are currently available,
	// possibly empty, without blocking for long.
	GetNextTicks() ([]data.BaseData, error)
}

// Handler is a per-symbol callback. It must not block indefinitely: it is
// expected to push into a lock-free/mutex-guarded queue and return. A
// returned error is routed through the exchange's ErrorPredicate exactly
// like an upstream-poll error.
type Handler func(data.BaseData) error

// ErrorPredicate decides whether an error is fatal (true, consumer exits)
// or recoverable (false, consumer logs and continues). The default
// predicate always returns false.
type ErrorPredicate func(error) bool

func defaultErrorPredicate(error) bool { return false }

// Exchange is the single-consumer-thread dispatcher. Handler installation
// and removal may run concurrently with dispatch; dispatch invokes at most
// one handler per item, in polled order, on the consumer thread.
type Exchange struct {
	upstream DataQueueHandler

	mu       sync.RWMutex
	handlers map[data.Symbol]Handler
	onError  ErrorPredicate
	recorder feedmetrics.Recorder

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates an Exchange over the given upstream queue handler.
func New(upstream DataQueueHandler) *Exchange {
	return &Exchange{
		upstream: upstream,
		handlers: make(map[data.Symbol]Handler),
		onError:  defaultErrorPredicate,
		recorder: feedmetrics.NoopRecorder{},
		done:     make(chan struct{}),
	}
}

// SetRecorder installs the metrics recorder consulted on poll errors,
// handler errors, and successful dispatch. Passing nil restores the no-op
// default.
func (e *Exchange) SetRecorder(r feedmetrics.Recorder) {
	if r == nil {
		r = feedmetrics.NoopRecorder{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder = r
}

func (e *Exchange) metrics() feedmetrics.Recorder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.recorder
}

// SetHandler installs or replaces the handler for symbol.
func (e *Exchange) SetHandler(symbol data.Symbol, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[symbol] = h
}

// RemoveHandler removes the handler for symbol, if any, and reports whether
// one was present.
func (e *Exchange) RemoveHandler(symbol data.Symbol) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.handlers[symbol]; !ok {
		return false
	}
	delete(e.handlers, symbol)
	return true
}

// SetErrorHandler installs the fatal/recoverable predicate consulted after
// any poll or handler error.
func (e *Exchange) SetErrorHandler(pred ErrorPredicate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = pred
}

func (e *Exchange) errorPredicate() ErrorPredicate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.onError
}

func (e *Exchange) handlerFor(symbol data.Symbol) (Handler, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.handlers[symbol]
	return h, ok
}

// BeginConsume starts the consumer thread. Idempotent: subsequent calls are
// no-ops.
func (e *Exchange) BeginConsume() {
	e.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		go e.consume(ctx)
	})
}

// EndConsume requests termination. The consumer drains its current poll
// then exits. Idempotent.
func (e *Exchange) EndConsume() {
	if e.cancel != nil {
		e.cancel()
	}
}

// Done returns a channel closed once the consumer loop has exited.
func (e *Exchange) Done() <-chan struct{} { return e.done }

func (e *Exchange) consume(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		items, err := e.upstream.GetNextTicks()
		if err != nil {
			log.Printf("exchange: upstream poll error: %v", err)
			e.metrics().HandlerError("poll")
			if e.errorPredicate()(err) {
				return
			}
			time.Sleep(pollBackoff)
			continue
		}

		handled := false
		for _, item := range items {
			h, ok := e.handlerFor(item.Symbol)
			if !ok {
				continue
			}
			handled = true
			if err := e.dispatch(h, item); err != nil {
				log.Printf("exchange: handler error for %s: %v", item.Symbol, err)
				e.metrics().HandlerError("dispatch")
				if e.errorPredicate()(err) {
					return
				}
				continue
			}
			e.metrics().TickRouted(item.Symbol, item.Kind)
		}

		if !handled {
			time.Sleep(pollBackoff)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// dispatch calls h synchronously. It also recovers a panic into an error so
// a faulty handler cannot kill the consumer thread outright; a recovered
// panic flows through the same error-predicate policy as a returned error.
func (e *Exchange) dispatch(h Handler, item data.BaseData) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{r}
		}
	}()
	return h(item)
}

type panicError struct{ v any }

func (p panicError) Error() string { return "handler panic" }
