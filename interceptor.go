package tracing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/asecurityteam/rolling"
	"go.opentelemetry.io/otel/attribute"
)

// Interceptor is the orchestrator invoked at the dispatch and handling
// call sites of the message framework. It owns span creation, context
// propagation into and out of the message carrier, active-context
// scoping and guaranteed span closure.
//
// Interceptor is safe for concurrent use; concurrently traced messages
// share nothing beyond the read-only parent context.
type Interceptor struct {
	core *Core

	// handleWindow tracks recent handler latencies.
	handleWindow *rolling.TimePolicy
}

func newInterceptor(core *Core) *Interceptor {
	return &Interceptor{
		core:         core,
		handleWindow: rolling.NewTimePolicy(rolling.NewWindow(1000), 10*time.Millisecond),
	}
}

// A Dispatch is one outgoing message with its dispatch span attached.
// For request/response kinds the span stays open until Complete is
// called with the result or error; for fire-and-forget kinds the span
// was already closed right after carrier injection and Complete is a
// no-op.
type Dispatch struct {
	// Message is the outgoing message, its carrier enriched with the
	// dispatch span's trace context.
	Message *Message

	span        *Span
	interceptor *Interceptor
}

// TraceContext returns the context injected into the message, or the
// absent context when tracing was disabled for this message.
func (d *Dispatch) TraceContext() TraceContext {
	if d.span == nil {
		return TraceContext{}
	}
	return d.span.TraceContext()
}

// Complete closes a request/response dispatch span once a result or
// error became available. The result's type is recorded as a span
// attribute. Safe to call at most once; extra calls are no-ops.
func (d *Dispatch) Complete(result interface{}, err error) {
	if d.span == nil || d.span.Ended() {
		return
	}

	if err != nil {
		d.interceptor.core.correlator.RecordException(d.span, err)
	} else {
		if result != nil {
			d.span.SetAttribute(AttrResultType, attribute.StringValue(fmt.Sprintf("%T", result)))
		}
		d.span.SetStatus(StatusOK)
	}
	d.span.End()
}

// WrapDispatch traces a batch of outgoing messages. Every message gets
// its own independent dispatch span parented on the active context of
// ctx, and its carrier gains the new span's trace context. Messages of
// a disabled kind pass through unmodified.
//
// Event spans measure the hand-off to the bus and are closed here,
// immediately after injection. Command and query spans stay open until
// the returned Dispatch's Complete is invoked.
func (i *Interceptor) WrapDispatch(ctx context.Context, msgs ...*Message) []*Dispatch {
	parent := TraceFromContext(ctx)

	out := make([]*Dispatch, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, i.dispatchOne(parent, m))
	}
	return out
}

func (i *Interceptor) dispatchOne(parent TraceContext, m *Message) *Dispatch {
	if m == nil {
		return &Dispatch{}
	}
	if !i.core.config.kindEnabled(m.Kind) {
		return &Dispatch{Message: m}
	}

	span := i.core.factory.DispatchSpan(m, parent)

	if m.Metadata == nil {
		m.Metadata = Metadata{}
	}
	i.core.propagator.Inject(span.TraceContext().WithBaggage(parent.Baggage()), m.Metadata)

	d := &Dispatch{Message: m, span: span, interceptor: i}

	if m.Kind == KindEvent {
		// Fire-and-forget: the span measures successful hand-off to
		// the bus, not downstream processing.
		span.SetStatus(StatusOK)
		span.End()
	}
	return d
}

// WrapHandler decorates a message handler with tracing. The returned
// Handler extracts the parent context from the inbound carrier (absent
// means a new root trace, never an error), runs next inside a child
// handler span installed as the active context, and closes the span on
// every exit path. Errors and panics are recorded through the error
// correlator and then re-surfaced unchanged: tracing is transparent to
// the caller's error handling.
func (i *Interceptor) WrapHandler(handlerID string, next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, m *Message) (interface{}, error) {
		if m == nil || !i.core.config.kindEnabled(m.Kind) {
			return next.Handle(ctx, m)
		}

		parent := i.core.propagator.Extract(m.Metadata)
		span := i.core.factory.HandlerSpan(m, handlerID, parent)

		started := time.Now()
		defer func() {
			i.handleWindow.Append(float64(time.Since(started).Milliseconds()))

			if r := recover(); r != nil {
				i.core.correlator.RecordPanic(span, r)
				span.End()
				panic(r)
			}
		}()

		handleCtx := ContextWithTrace(ctx, span.TraceContext().WithBaggage(parent.Baggage()))
		result, err := next.Handle(handleCtx, m)

		switch {
		case err == nil:
			span.SetStatus(StatusOK)
		case isCancellation(err):
			span.SetStatus(StatusCancelled)
		default:
			i.core.correlator.RecordException(span, err)
		}
		span.End()

		return result, err
	})
}

// AverageHandleTime returns the rolling average latency of recently
// wrapped handler invocations.
func (i *Interceptor) AverageHandleTime() time.Duration {
	avg := i.handleWindow.Reduce(rolling.Avg)
	if math.IsNaN(avg) {
		return 0
	}
	return time.Duration(avg * float64(time.Millisecond))
}

// isCancellation reports whether the handler failed because its
// invocation was cancelled externally rather than because the business
// logic failed.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
