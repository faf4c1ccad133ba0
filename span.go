package tracing

import (
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Status is the terminal outcome recorded on a Span.
type Status int

const (
	StatusUnset Status = iota
	StatusOK
	StatusError
	StatusCancelled
)

// String returns the status tag value.
func (s Status) String() string {
	switch s {
	case StatusUnset:
		return "unset"
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unset"
	}
}

// ExceptionEvent records one exception observed while a span was
// active.
type ExceptionEvent struct {
	Type    string
	Message string
	Time    time.Time
}

// Span is a timed record of one unit of work within a trace. A span is
// mutable while active: attributes may be added, the status set and
// exceptions appended. End transitions it exactly once into the ended
// state, after which it is immutable and handed to the export filter.
//
// Mutating operations are safe for concurrent use; mutations after End
// are silently dropped.
type Span struct {
	mu sync.Mutex

	name     string
	kind     trace.SpanKind
	traceID  trace.TraceID
	spanID   trace.SpanID
	parentID trace.SpanID
	sampled  bool

	attrs      map[attribute.Key]attribute.Value
	status     Status
	exceptions []ExceptionEvent

	start time.Time
	end   time.Time
	ended bool

	// onEnd hands the ended span to the filter/collector pair.
	onEnd func(*Span)
}

// Name returns the span name.
func (s *Span) Name() string { return s.name }

// Kind returns the span kind.
func (s *Span) Kind() trace.SpanKind { return s.kind }

// TraceID returns the id of the trace the span belongs to.
func (s *Span) TraceID() trace.TraceID { return s.traceID }

// SpanID returns the span's own id.
func (s *Span) SpanID() trace.SpanID { return s.spanID }

// ParentSpanID returns the parent span id, or the zero id for a root
// span.
func (s *Span) ParentSpanID() trace.SpanID { return s.parentID }

// Sampled reports the head-based sampling flag inherited from (or
// drawn for) the span's trace.
func (s *Span) Sampled() bool { return s.sampled }

// StartTime returns the creation time of the span.
func (s *Span) StartTime() time.Time { return s.start }

// TraceContext returns the context identifying this span, suitable
// for carrier injection and for parenting child spans.
func (s *Span) TraceContext() TraceContext {
	return NewTraceContext(s.traceID, s.spanID, s.sampled)
}

// SetAttribute sets one attribute on the span. No-op once ended.
func (s *Span) SetAttribute(key attribute.Key, value attribute.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	if s.attrs == nil {
		s.attrs = make(map[attribute.Key]attribute.Value)
	}
	s.attrs[key] = value
}

// Attribute retrieves an attribute value by key.
func (s *Span) Attribute(key attribute.Key) (attribute.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.attrs[key]
	return value, ok
}

// Attributes returns a copy of the span's attributes.
func (s *Span) Attributes() []attribute.KeyValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	kvs := make([]attribute.KeyValue, 0, len(s.attrs))
	for k, v := range s.attrs {
		kvs = append(kvs, attribute.KeyValue{Key: k, Value: v})
	}
	return kvs
}

// SetStatus sets the span status. No-op once ended.
func (s *Span) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	s.status = status
}

// Status returns the span status.
func (s *Span) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// addException appends an exception event. No-op once ended.
func (s *Span) addException(typeName, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	s.exceptions = append(s.exceptions, ExceptionEvent{
		Type:    typeName,
		Message: message,
		Time:    time.Now(),
	})
}

// Exceptions returns a copy of the recorded exception events.
func (s *Span) Exceptions() []ExceptionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]ExceptionEvent, len(s.exceptions))
	copy(events, s.exceptions)
	return events
}

// End completes the span. Safe to call multiple times - subsequent
// calls are no-ops, so the end-of-life transition happens exactly
// once no matter how many exit paths reach it.
func (s *Span) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.end = time.Now()
	onEnd := s.onEnd
	s.mu.Unlock()

	if onEnd != nil {
		onEnd(s)
	}
}

// Ended reports whether End has been called.
func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// EndTime returns the completion time, zero while the span is active.
func (s *Span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end
}

// Duration returns the elapsed time between start and end, zero while
// the span is active.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ended {
		return 0
	}
	return s.end.Sub(s.start)
}
