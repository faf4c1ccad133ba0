// Package sentry forwards handler errors to Sentry, tagged with the
// trace/span correlation key so Sentry issues and exported traces can
// be cross-referenced.
package sentry

import (
	sentrygo "github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel/trace"
)

// Tag keys attached to every reported event.
const (
	TraceIDTag = "trace_id"
	SpanIDTag  = "span_id"
)

// Reporter implements tracing.ErrorReporter on a Sentry hub. Capture
// is fire-and-forget: the reporter never flushes or awaits delivery.
type Reporter struct {
	hub *sentrygo.Hub
}

// NewReporter creates a Reporter. A nil hub falls back to the current
// hub.
func NewReporter(hub *sentrygo.Hub) *Reporter {
	if hub == nil {
		hub = sentrygo.CurrentHub()
	}
	return &Reporter{hub: hub}
}

// ReportError implements tracing.ErrorReporter.
func (r *Reporter) ReportError(traceID trace.TraceID, spanID trace.SpanID, err error) {
	if err == nil {
		return
	}

	r.hub.WithScope(func(scope *sentrygo.Scope) {
		scope.SetTag(TraceIDTag, traceID.String())
		scope.SetTag(SpanIDTag, spanID.String())
		r.hub.CaptureException(err)
	})
}
