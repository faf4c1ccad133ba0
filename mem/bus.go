// Package mem provides an in-memory message bus wired through the
// tracing interceptor. It is the reference host for the dispatch and
// handler entry points and the harness the end-to-end tests run on.
package mem

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tracing "github.com/cwoskoski/axon-sentry-tracing-sub000"
	"golang.org/x/sync/errgroup"
)

// ErrNoHandler is returned when a command or query has no registered
// handler.
var ErrNoHandler = errors.New("mem: no handler registered")

// ErrBusClosed is returned when publishing to a bus that is shutting
// down.
var ErrBusClosed = errors.New("mem: bus closed")

// Bus routes commands and queries to a single handler each and fans
// events out to every subscriber. All handlers run wrapped by the
// tracing interceptor.
//
// Multiple goroutines may invoke methods on a Bus simultaneously.
type Bus struct {
	interceptor *tracing.Interceptor

	mu          sync.RWMutex
	handlers    map[string]tracing.Handler
	subscribers map[string][]tracing.Handler
	closed      bool

	// group bounds the number of concurrently running event handlers.
	group *errgroup.Group
}

// NewBus creates a Bus. concurrency is the maximum number of event
// handlers running at the same time.
func NewBus(interceptor *tracing.Interceptor, concurrency int) *Bus {
	if concurrency <= 0 {
		concurrency = 1
	}

	group := new(errgroup.Group)
	group.SetLimit(concurrency)

	return &Bus{
		interceptor: interceptor,
		handlers:    make(map[string]tracing.Handler),
		subscribers: make(map[string][]tracing.Handler),
		group:       group,
	}
}

// Handle registers the handler for a command or query name. The
// handler is wrapped by the tracing interceptor under handlerID.
func (b *Bus) Handle(name, handlerID string, h tracing.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = b.interceptor.WrapHandler(handlerID, h)
}

// Subscribe registers an additional event handler for an event name.
func (b *Bus) Subscribe(name, handlerID string, h tracing.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[name] = append(b.subscribers[name], b.interceptor.WrapHandler(handlerID, h))
}

// Dispatch sends one command or query and waits for its result. The
// dispatch span is completed with the handler's result or error.
func (b *Bus) Dispatch(ctx context.Context, m *tracing.Message) (interface{}, error) {
	d := b.interceptor.WrapDispatch(ctx, m)[0]

	b.mu.RLock()
	h, ok := b.handlers[m.Name]
	b.mu.RUnlock()

	if !ok {
		err := fmt.Errorf("%w for %q", ErrNoHandler, m.Name)
		d.Complete(nil, err)
		return nil, err
	}

	result, err := h.Handle(ctx, d.Message)
	d.Complete(result, err)
	return result, err
}

// Publish hands events to all subscribers without awaiting results.
// Each subscriber receives its own copy of the message so carriers are
// never shared across goroutines.
func (b *Bus) Publish(ctx context.Context, msgs ...*tracing.Message) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrBusClosed
	}

	for _, d := range b.interceptor.WrapDispatch(ctx, msgs...) {
		m := d.Message
		if m == nil {
			continue
		}

		b.mu.RLock()
		subscribers := b.subscribers[m.Name]
		b.mu.RUnlock()

		for _, h := range subscribers {
			handler := h
			delivered := m.Copy()
			b.group.Go(func() error {
				// Subscriber failures are the subscribers' own;
				// they never fail the publisher.
				handler.Handle(context.WithoutCancel(ctx), delivered)
				return nil
			})
		}
	}
	return nil
}

// Shutdown stops accepting events and waits for in-flight handlers to
// finish. If the provided context expires first, its error is
// returned.
func (b *Bus) Shutdown(ctx context.Context) error {
	if ctx == nil {
		panic("invalid context (nil)")
	}

	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.group.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
