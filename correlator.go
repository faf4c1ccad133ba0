package tracing

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// An ErrorReporter forwards errors to an external error-monitoring
// backend together with the trace and span ids, so the two telemetry
// systems can be cross-referenced by a shared correlation key.
//
// Implementations must not block materially; the correlator never
// awaits a response.
type ErrorReporter interface {
	ReportError(traceID trace.TraceID, spanID trace.SpanID, err error)
}

// ErrorCorrelator attaches exceptions to spans and, best-effort,
// forwards them to the error-monitoring collaborator. A failing or
// panicking reporter is logged and otherwise ignored: it never affects
// span closure or the re-raising of the original error.
type ErrorCorrelator struct {
	reporter ErrorReporter
	logger   logrus.FieldLogger
}

// NewErrorCorrelator creates an ErrorCorrelator. reporter may be nil,
// in which case exceptions are only recorded on spans.
func NewErrorCorrelator(reporter ErrorReporter, logger logrus.FieldLogger) *ErrorCorrelator {
	return &ErrorCorrelator{reporter: reporter, logger: logger}
}

// RecordException appends an exception event to the span, sets its
// status to error and forwards the correlation reference.
func (c *ErrorCorrelator) RecordException(span *Span, err error) {
	if span == nil || err == nil {
		return
	}

	span.addException(errorTypeName(err), err.Error())
	span.SetStatus(StatusError)
	c.report(span, err)
}

// RecordPanic records a recovered panic value on the span. The caller
// re-raises the original value afterwards.
func (c *ErrorCorrelator) RecordPanic(span *Span, recovered interface{}) {
	if span == nil || recovered == nil {
		return
	}

	span.addException(fmt.Sprintf("%T", recovered), fmt.Sprintf("%v", recovered))
	span.SetStatus(StatusError)
	c.report(span, fmt.Errorf("panic: %v", recovered))
}

func (c *ErrorCorrelator) report(span *Span, err error) {
	if c.reporter == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil && c.logger != nil {
			c.logger.WithFields(logrus.Fields{
				"trace_id": span.TraceID().String(),
				"span_id":  span.SpanID().String(),
				"panic":    r,
			}).Warn("error reporter panicked")
		}
	}()

	c.reporter.ReportError(span.TraceID(), span.SpanID(), err)
}

// errorTypeName returns the concrete type of err, the exception-event
// type recorded on spans.
func errorTypeName(err error) string {
	return fmt.Sprintf("%T", err)
}
