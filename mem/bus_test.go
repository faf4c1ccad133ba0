package mem_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	tracing "github.com/cwoskoski/axon-sentry-tracing-sub000"
	"github.com/cwoskoski/axon-sentry-tracing-sub000/mem"
)

func newCore(t *testing.T) *tracing.Core {
	t.Helper()
	core, err := tracing.New(tracing.DefaultConfig())
	require.NoError(t, err)
	return core
}

func drain(t *testing.T, core *tracing.Core) []*tracing.Span {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, core.Shutdown(ctx))
	return core.Collector().Export()
}

func byName(spans []*tracing.Span, name string) *tracing.Span {
	for _, s := range spans {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// A command travels dispatcher -> handler -> published event ->
// subscriber, producing one connected trace of four spans.
func TestBus_EndToEndTrace(t *testing.T) {
	core := newCore(t)
	bus := mem.NewBus(core.Interceptor(), 4)

	projected := make(chan string, 1)

	bus.Subscribe("OrderCreated", "order-projector", tracing.HandlerFunc(
		func(ctx context.Context, m *tracing.Message) (interface{}, error) {
			projected <- m.ID
			return nil, nil
		}))

	bus.Handle("CreateOrder", "order-handler", tracing.HandlerFunc(
		func(ctx context.Context, m *tracing.Message) (interface{}, error) {
			event := tracing.NewMessage(tracing.KindEvent, "OrderCreated", nil)
			if err := bus.Publish(ctx, event); err != nil {
				return nil, err
			}
			return "order-1", nil
		}))

	result, err := bus.Dispatch(context.Background(), tracing.NewMessage(tracing.KindCommand, "CreateOrder", nil))
	require.NoError(t, err)
	assert.Equal(t, "order-1", result)

	select {
	case <-projected:
	case <-time.After(time.Second):
		t.Fatal("subscriber never ran")
	}
	require.NoError(t, bus.Shutdown(context.Background()))

	spans := drain(t, core)
	require.Len(t, spans, 4)

	dispatch := byName(spans, "Command: CreateOrder")
	handle := byName(spans, "Handle: CreateOrder")
	publish := byName(spans, "Event: OrderCreated")
	project := byName(spans, "Handle: OrderCreated")
	require.NotNil(t, dispatch)
	require.NotNil(t, handle)
	require.NotNil(t, publish)
	require.NotNil(t, project)

	// one trace, linked dispatch -> handle -> publish -> project
	for _, s := range spans {
		assert.Equal(t, dispatch.TraceID(), s.TraceID())
	}
	assert.False(t, dispatch.ParentSpanID().IsValid())
	assert.Equal(t, dispatch.SpanID(), handle.ParentSpanID())
	assert.Equal(t, handle.SpanID(), publish.ParentSpanID())
	assert.Equal(t, publish.SpanID(), project.ParentSpanID())

	assert.Equal(t, trace.SpanKindClient, dispatch.Kind())
	assert.Equal(t, trace.SpanKindServer, handle.Kind())
	assert.Equal(t, trace.SpanKindProducer, publish.Kind())
	assert.Equal(t, trace.SpanKindConsumer, project.Kind())

	for _, s := range spans {
		assert.Equal(t, tracing.StatusOK, s.Status(), "span %s", s.Name())
		assert.True(t, s.Ended())
	}
}

// A failing handler propagates its error to the dispatcher unchanged
// and both spans of the exchange end up marked as errors.
func TestBus_HandlerErrorPropagates(t *testing.T) {
	core := newCore(t)
	bus := mem.NewBus(core.Interceptor(), 1)

	boom := errors.New("bad state")
	bus.Handle("CreateOrder", "order-handler", tracing.HandlerFunc(
		func(ctx context.Context, m *tracing.Message) (interface{}, error) {
			return nil, boom
		}))

	_, err := bus.Dispatch(context.Background(), tracing.NewMessage(tracing.KindCommand, "CreateOrder", nil))
	require.ErrorIs(t, err, boom)

	spans := drain(t, core)
	dispatch := byName(spans, "Command: CreateOrder")
	handle := byName(spans, "Handle: CreateOrder")
	require.NotNil(t, dispatch)
	require.NotNil(t, handle)

	assert.Equal(t, tracing.StatusError, dispatch.Status())
	assert.Equal(t, tracing.StatusError, handle.Status())
	require.Len(t, handle.Exceptions(), 1)
	assert.Equal(t, "bad state", handle.Exceptions()[0].Message)
}

func TestBus_NoHandler(t *testing.T) {
	core := newCore(t)
	bus := mem.NewBus(core.Interceptor(), 1)

	_, err := bus.Dispatch(context.Background(), tracing.NewMessage(tracing.KindQuery, "GetOrder", nil))
	require.ErrorIs(t, err, mem.ErrNoHandler)

	spans := drain(t, core)
	dispatch := byName(spans, "Query: GetOrder")
	require.NotNil(t, dispatch, "the dispatch span must be closed even without a handler")
	assert.Equal(t, tracing.StatusError, dispatch.Status())
}

func TestBus_PublishAfterShutdown(t *testing.T) {
	core := newCore(t)
	bus := mem.NewBus(core.Interceptor(), 1)
	require.NoError(t, bus.Shutdown(context.Background()))

	err := bus.Publish(context.Background(), tracing.NewMessage(tracing.KindEvent, "OrderCreated", nil))
	require.ErrorIs(t, err, mem.ErrBusClosed)
}

// Concurrent subscribers each get their own message copy; carriers
// are never shared across goroutines.
func TestBus_FanOut(t *testing.T) {
	core := newCore(t)
	bus := mem.NewBus(core.Interceptor(), 8)

	const subscribers = 5
	got := make(chan *tracing.Message, subscribers)
	for i := 0; i < subscribers; i++ {
		bus.Subscribe("OrderCreated", "projector", tracing.HandlerFunc(
			func(ctx context.Context, m *tracing.Message) (interface{}, error) {
				got <- m
				return nil, nil
			}))
	}

	event := tracing.NewMessage(tracing.KindEvent, "OrderCreated", nil)
	require.NoError(t, bus.Publish(context.Background(), event))
	require.NoError(t, bus.Shutdown(context.Background()))

	seen := map[*tracing.Message]bool{}
	for i := 0; i < subscribers; i++ {
		select {
		case m := <-got:
			assert.False(t, seen[m], "message instance shared between subscribers")
			seen[m] = true
			assert.Equal(t, event.ID, m.ID)
			assert.NotEmpty(t, m.Metadata.Get(tracing.TraceparentKey))
		case <-time.After(time.Second):
			t.Fatal("missing fan-out delivery")
		}
	}

	spans := drain(t, core)
	// one producer span for the publish, one consumer span per subscriber
	assert.Len(t, spans, 1+subscribers)
}
