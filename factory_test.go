package tracing

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func newTestFactory(cfg Config, providers ...AttributeProvider) *SpanFactory {
	return NewSpanFactory(cfg, providers, nil)
}

func TestDispatchSpan_NamesAndKinds(t *testing.T) {
	f := newTestFactory(DefaultConfig())

	tests := []struct {
		kind     Kind
		wantName string
		wantKind trace.SpanKind
	}{
		{KindCommand, "Command: CreateOrder", trace.SpanKindClient},
		{KindQuery, "Query: CreateOrder", trace.SpanKindClient},
		{KindEvent, "Event: CreateOrder", trace.SpanKindProducer},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			span := f.DispatchSpan(NewMessage(tt.kind, "CreateOrder", nil), TraceContext{})
			if span.Name() != tt.wantName {
				t.Errorf("name %q, expected %q", span.Name(), tt.wantName)
			}
			if span.Kind() != tt.wantKind {
				t.Errorf("kind %v, expected %v", span.Kind(), tt.wantKind)
			}
		})
	}
}

func TestHandlerSpan_NamesAndKinds(t *testing.T) {
	f := newTestFactory(DefaultConfig())

	tests := []struct {
		kind     Kind
		wantKind trace.SpanKind
	}{
		{KindCommand, trace.SpanKindServer},
		{KindQuery, trace.SpanKindServer},
		{KindEvent, trace.SpanKindConsumer},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			span := f.HandlerSpan(NewMessage(tt.kind, "CreateOrder", nil), "handler-1", TraceContext{})
			if span.Name() != "Handle: CreateOrder" {
				t.Errorf("name %q, expected %q", span.Name(), "Handle: CreateOrder")
			}
			if span.Kind() != tt.wantKind {
				t.Errorf("kind %v, expected %v", span.Kind(), tt.wantKind)
			}
		})
	}
}

func TestSpan_StandardAttributes(t *testing.T) {
	f := newTestFactory(DefaultConfig())
	m := NewMessage(KindCommand, "CreateOrder", nil)
	m.PayloadType = "orders.CreateOrder"

	span := f.HandlerSpan(m, "order-handler", TraceContext{})

	if got, _ := span.Attribute(AttrMessageID); got.AsString() != m.ID {
		t.Errorf("message id attribute %q, expected %q", got.AsString(), m.ID)
	}
	if got, _ := span.Attribute(AttrMessageKind); got.AsString() != "command" {
		t.Errorf("kind tag %q, expected %q", got.AsString(), "command")
	}
	if got, _ := span.Attribute(AttrPayloadType); got.AsString() != "orders.CreateOrder" {
		t.Errorf("payload type %q, expected %q", got.AsString(), "orders.CreateOrder")
	}
	if got, _ := span.Attribute(AttrHandlerID); got.AsString() != "order-handler" {
		t.Errorf("handler id %q, expected %q", got.AsString(), "order-handler")
	}

	// dispatch spans carry no handler identity
	dispatch := f.DispatchSpan(m, TraceContext{})
	if _, ok := dispatch.Attribute(AttrHandlerID); ok {
		t.Error("dispatch span must not carry a handler id")
	}
}

// The created span's parent linkage must equal the context that was
// active or extracted at creation time.
func TestSpan_ParentLinkage(t *testing.T) {
	f := newTestFactory(DefaultConfig())
	parent := NewTraceContext(mustTraceID(t, "4bf92f3577b34da6a3ce929d0e0e4736"), mustSpanID(t, "00f067aa0ba902b7"), true)

	span := f.HandlerSpan(NewMessage(KindCommand, "CreateOrder", nil), "h", parent)

	if span.TraceID() != parent.TraceID() {
		t.Errorf("trace id %s, expected parent's %s", span.TraceID(), parent.TraceID())
	}
	if span.ParentSpanID() != parent.SpanID() {
		t.Errorf("parent span id %s, expected %s", span.ParentSpanID(), parent.SpanID())
	}
	if span.SpanID() == parent.SpanID() {
		t.Error("span id must differ from parent span id")
	}
}

func TestSpan_RootCreation(t *testing.T) {
	f := newTestFactory(DefaultConfig())

	a := f.DispatchSpan(NewMessage(KindCommand, "CreateOrder", nil), TraceContext{})
	b := f.DispatchSpan(NewMessage(KindCommand, "CreateOrder", nil), TraceContext{})

	if !a.TraceID().IsValid() || !a.SpanID().IsValid() {
		t.Fatal("root span must have non-zero ids")
	}
	if a.ParentSpanID().IsValid() {
		t.Fatal("root span must have no parent")
	}
	if a.TraceID() == b.TraceID() {
		t.Fatal("independent roots must start fresh traces")
	}
}

// Sampling is decided once at the root and inherited by descendants,
// never re-drawn per span.
func TestSampling_HeadBased(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRatio = 0
	f := newTestFactory(cfg)

	root := f.DispatchSpan(NewMessage(KindCommand, "CreateOrder", nil), TraceContext{})
	if root.Sampled() {
		t.Fatal("ratio 0 must not sample roots")
	}

	// a child below a sampled remote parent inherits the flag even
	// though the local ratio is 0
	sampledParent := NewTraceContext(mustTraceID(t, "4bf92f3577b34da6a3ce929d0e0e4736"), mustSpanID(t, "00f067aa0ba902b7"), true)
	child := f.HandlerSpan(NewMessage(KindCommand, "CreateOrder", nil), "h", sampledParent)
	if !child.Sampled() {
		t.Fatal("descendants must inherit the parent's sampling flag")
	}

	cfg.SampleRatio = 1
	always := newTestFactory(cfg)
	if !always.DispatchSpan(NewMessage(KindCommand, "CreateOrder", nil), TraceContext{}).Sampled() {
		t.Fatal("ratio 1 must sample every root")
	}
}

func TestPayloadCapture_OffByDefault(t *testing.T) {
	f := newTestFactory(DefaultConfig())
	m := NewMessage(KindCommand, "CreateOrder", []byte(`{"order":"o-1"}`))

	span := f.DispatchSpan(m, TraceContext{})
	if _, ok := span.Attribute(AttrPayload); ok {
		t.Fatal("payload captured without opt-in")
	}
}

func TestPayloadCapture_Truncation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CapturePayload = true
	cfg.PayloadMaxLength = 8
	f := newTestFactory(cfg)

	m := NewMessage(KindCommand, "CreateOrder", []byte(strings.Repeat("a", 32)))
	span := f.DispatchSpan(m, TraceContext{})

	got, ok := span.Attribute(AttrPayload)
	if !ok {
		t.Fatal("payload not captured")
	}
	want := strings.Repeat("a", 8) + truncationMarker
	if got.AsString() != want {
		t.Fatalf("got %q expected %q", got.AsString(), want)
	}
}

func TestFactory_ProvidersApplied(t *testing.T) {
	p := ProviderFunc(0, func(m *Message) map[string]interface{} {
		return map[string]interface{}{"order.id": m.ID}
	})
	f := newTestFactory(DefaultConfig(), p)

	m := NewMessage(KindCommand, "CreateOrder", nil)
	span := f.DispatchSpan(m, TraceContext{})

	if got, _ := span.Attribute("order.id"); got.AsString() != m.ID {
		t.Fatalf("provider attribute missing, got %q", got.AsString())
	}
}
