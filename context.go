package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TraceContext is an immutable value identifying a position in a
// trace: a 128-bit trace id, a 64-bit span id, the head-based sampling
// flag and optional baggage. The zero value is the absent context; a
// present context always has non-zero ids. Use IsValid to tell the two
// apart, never compare against a zeroed struct.
type TraceContext struct {
	traceID trace.TraceID
	spanID  trace.SpanID
	sampled bool
	baggage map[string]string
}

// NewTraceContext creates a present TraceContext from its parts.
func NewTraceContext(traceID trace.TraceID, spanID trace.SpanID, sampled bool) TraceContext {
	return TraceContext{
		traceID: traceID,
		spanID:  spanID,
		sampled: sampled,
	}
}

// WithBaggage returns a copy of tc carrying the given baggage.
// The input map is copied; the receiver is not modified.
func (tc TraceContext) WithBaggage(baggage map[string]string) TraceContext {
	if len(baggage) == 0 {
		tc.baggage = nil
		return tc
	}
	b := make(map[string]string, len(baggage))
	for k, v := range baggage {
		b[k] = v
	}
	tc.baggage = b
	return tc
}

// TraceID returns the trace id.
func (tc TraceContext) TraceID() trace.TraceID { return tc.traceID }

// SpanID returns the span id.
func (tc TraceContext) SpanID() trace.SpanID { return tc.spanID }

// Sampled reports the head-based sampling decision carried by the
// context.
func (tc TraceContext) Sampled() bool { return tc.sampled }

// Baggage returns a copy of the baggage carried by the context.
func (tc TraceContext) Baggage() map[string]string {
	if len(tc.baggage) == 0 {
		return nil
	}
	b := make(map[string]string, len(tc.baggage))
	for k, v := range tc.baggage {
		b[k] = v
	}
	return b
}

// IsValid reports whether the context is present: both ids non-zero.
func (tc TraceContext) IsValid() bool {
	return tc.traceID.IsValid() && tc.spanID.IsValid()
}

// Equal reports whether two contexts carry the same ids, sampling flag
// and baggage. Used by cmp.Equal in tests.
func (tc TraceContext) Equal(other TraceContext) bool {
	if tc.traceID != other.traceID || tc.spanID != other.spanID || tc.sampled != other.sampled {
		return false
	}
	if len(tc.baggage) != len(other.baggage) {
		return false
	}
	for k, v := range tc.baggage {
		if other.baggage[k] != v {
			return false
		}
	}
	return true
}

// activeKeyType is a private type for context keys to avoid collisions.
type activeKeyType struct{}

var activeKey activeKeyType

// ContextWithTrace returns a context carrying tc as the active trace
// context. The active context is an explicit value threaded through
// interceptor calls; restoring the previous context on exit is a
// property of context.Context itself, not of any global state.
func ContextWithTrace(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, activeKey, tc)
}

// TraceFromContext extracts the active trace context from ctx.
// Returns the absent context if none is present.
func TraceFromContext(ctx context.Context) TraceContext {
	if ctx == nil {
		return TraceContext{}
	}
	if tc, ok := ctx.Value(activeKey).(TraceContext); ok {
		return tc
	}
	return TraceContext{}
}
