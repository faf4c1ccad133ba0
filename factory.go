package tracing

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SpanFactory builds correctly-named, correctly-kinded,
// attribute-populated spans for each message phase.
type SpanFactory struct {
	config    Config
	providers *providerSet
	sampler   *ratioSampler
	logger    logrus.FieldLogger

	// onEnd is attached to every created span; the core uses it to
	// route ended spans through the export filter into the collector.
	onEnd func(*Span)
}

// NewSpanFactory creates a SpanFactory. The providers are applied to
// every span in ascending priority order.
func NewSpanFactory(config Config, providers []AttributeProvider, logger logrus.FieldLogger) *SpanFactory {
	return &SpanFactory{
		config:    config,
		providers: newProviderSet(providers...),
		sampler:   newRatioSampler(config.SampleRatio),
		logger:    logger,
	}
}

// DispatchSpan builds the span measuring the "sending" phase of a
// message. Command and query dispatch is a Client span; event publish
// is a Producer span. The span is named "{Verb}: {name}".
func (f *SpanFactory) DispatchSpan(m *Message, parent TraceContext) *Span {
	kind := trace.SpanKindClient
	if m.Kind == KindEvent {
		kind = trace.SpanKindProducer
	}

	name := fmt.Sprintf("%s: %s", m.Kind.verb(), m.Name)
	span := f.newSpan(name, kind, parent)
	f.populate(span, m)
	return span
}

// HandlerSpan builds the span measuring the "processing" phase of a
// message. Event handling is a Consumer span; synchronous command and
// query handling is a Server span. The span is named "Handle: {name}".
func (f *SpanFactory) HandlerSpan(m *Message, handlerID string, parent TraceContext) *Span {
	kind := trace.SpanKindServer
	if m.Kind == KindEvent {
		kind = trace.SpanKindConsumer
	}

	span := f.newSpan("Handle: "+m.Name, kind, parent)
	if handlerID != "" {
		span.SetAttribute(AttrHandlerID, attribute.StringValue(handlerID))
	}
	f.populate(span, m)
	return span
}

// newSpan creates a span below parent, or a new root trace when the
// parent is absent. The root draws the head-based sampling decision;
// children inherit the parent's flag unchanged.
func (f *SpanFactory) newSpan(name string, kind trace.SpanKind, parent TraceContext) *Span {
	span := &Span{
		name:   name,
		kind:   kind,
		spanID: newSpanID(),
		start:  time.Now(),
		onEnd:  f.onEnd,
	}

	if parent.IsValid() {
		span.traceID = parent.TraceID()
		span.parentID = parent.SpanID()
		span.sampled = parent.Sampled()
	} else {
		span.traceID = newTraceID()
		span.sampled = f.sampler.Sample(name, kind, span.traceID)
	}

	return span
}

// populate applies the standard attributes, the configured providers
// and, when enabled, the truncated payload capture.
func (f *SpanFactory) populate(span *Span, m *Message) {
	span.SetAttribute(AttrMessageID, attribute.StringValue(m.ID))
	span.SetAttribute(AttrMessageKind, attribute.StringValue(m.Kind.String()))
	span.SetAttribute(AttrPayloadType, attribute.StringValue(m.payloadType()))

	f.providers.apply(span, m, f.logger)

	if f.config.CapturePayload && len(m.Payload) > 0 {
		captured := truncate(string(m.Payload), f.config.PayloadMaxLength)
		span.SetAttribute(AttrPayload, attribute.StringValue(captured))
	}
}

// newTraceID generates a random non-zero 128-bit trace id.
func newTraceID() trace.TraceID {
	var id trace.TraceID
	for !id.IsValid() {
		if _, err := rand.Read(id[:]); err != nil {
			// crypto/rand is documented to never fail on supported
			// platforms; fall back to a time-derived id anyway.
			now := time.Now().UnixNano()
			for i := 0; i < 8; i++ {
				id[i] = byte(now >> (8 * i))
				id[i+8] = byte(now >> (8 * (7 - i)))
			}
		}
	}
	return id
}

// newSpanID generates a random non-zero 64-bit span id.
func newSpanID() trace.SpanID {
	var id trace.SpanID
	for !id.IsValid() {
		if _, err := rand.Read(id[:]); err != nil {
			now := time.Now().UnixNano()
			for i := 0; i < 8; i++ {
				id[i] = byte(now >> (8 * i))
			}
		}
	}
	return id
}
