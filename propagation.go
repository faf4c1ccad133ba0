package tracing

import (
	"context"
	"encoding/base64"

	ocpropagation "go.opencensus.io/trace/propagation"
	"go.opentelemetry.io/otel/baggage"
	ocbridge "go.opentelemetry.io/otel/bridge/opencensus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Reserved carrier keys. TraceparentKey and BaggageKey follow the W3C
// Trace Context text format; LegacyContextKey carries the OpenCensus
// binary format for older consumers.
const (
	TraceparentKey   = "traceparent"
	BaggageKey       = "baggage"
	LegacyContextKey = "Tracecontext"
)

// PropagatorOptions configure a Propagator.
type PropagatorOptions struct {
	// LegacyBinaryFormat also writes (and falls back to reading) the
	// base64-encoded OpenCensus binary representation of the trace
	// context under LegacyContextKey.
	LegacyBinaryFormat bool
}

// PropagatorOption is a functional option for a Propagator.
type PropagatorOption func(*PropagatorOptions)

// WithLegacyBinaryFormat enables dual-format propagation for
// consumers that still speak the OpenCensus binary format.
func WithLegacyBinaryFormat() PropagatorOption {
	return func(o *PropagatorOptions) {
		o.LegacyBinaryFormat = true
	}
}

// Propagator encodes and decodes a TraceContext into a flat carrier
// using the W3C Trace Context text format. Inject and Extract never
// fail: malformed carrier content degrades to the absent context.
//
// Propagator is safe for concurrent use by multiple goroutines.
type Propagator struct {
	textmap propagation.TextMapPropagator
	options PropagatorOptions
}

// NewPropagator creates a Propagator.
func NewPropagator(opts ...PropagatorOption) *Propagator {
	options := PropagatorOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &Propagator{
		textmap: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		options: options,
	}
}

// Inject writes tc into the carrier's reserved keys. Injecting an
// absent context is a no-op; a present-but-unsampled context is still
// injected, with the flags octet communicating the sampling decision.
func (p *Propagator) Inject(tc TraceContext, carrier Metadata) {
	if !tc.IsValid() || carrier == nil {
		return
	}

	sc := spanContextOf(tc)
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	if len(tc.baggage) > 0 {
		members := make([]baggage.Member, 0, len(tc.baggage))
		for k, v := range tc.baggage {
			member, err := baggage.NewMemberRaw(k, v)
			if err != nil {
				// Baggage enrichment is best-effort; skip entries the
				// format cannot represent.
				continue
			}
			members = append(members, member)
		}
		if b, err := baggage.New(members...); err == nil {
			ctx = baggage.ContextWithBaggage(ctx, b)
		}
	}

	p.textmap.Inject(ctx, propagation.MapCarrier(carrier))

	if p.options.LegacyBinaryFormat {
		bs := ocpropagation.Binary(ocbridge.OTelSpanContextToOC(sc))
		carrier.Set(LegacyContextKey, base64.StdEncoding.EncodeToString(bs))
	}
}

// Extract parses the reserved keys out of the carrier. A missing key,
// wrong token length, non-hex content or unknown version all yield the
// absent context, never an error.
func (p *Propagator) Extract(carrier Metadata) TraceContext {
	if carrier == nil {
		return TraceContext{}
	}

	ctx := p.textmap.Extract(context.Background(), propagation.MapCarrier(carrier))
	sc := trace.SpanContextFromContext(ctx)

	if !sc.IsValid() && p.options.LegacyBinaryFormat {
		sc = p.extractLegacy(carrier)
	}

	if !sc.IsValid() {
		return TraceContext{}
	}

	tc := TraceContext{
		traceID: sc.TraceID(),
		spanID:  sc.SpanID(),
		sampled: sc.IsSampled(),
	}

	if b := baggage.FromContext(ctx); b.Len() > 0 {
		bag := make(map[string]string, b.Len())
		for _, member := range b.Members() {
			bag[member.Key()] = member.Value()
		}
		tc.baggage = bag
	}

	return tc
}

// extractLegacy decodes the OpenCensus binary fallback key.
func (p *Propagator) extractLegacy(carrier Metadata) trace.SpanContext {
	encoded := carrier.Get(LegacyContextKey)
	if encoded == "" {
		return trace.SpanContext{}
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return trace.SpanContext{}
	}

	ocSC, ok := ocpropagation.FromBinary(raw)
	if !ok {
		return trace.SpanContext{}
	}

	return ocbridge.OCSpanContextToOTel(ocSC)
}

// spanContextOf converts a present TraceContext to its OTel form.
func spanContextOf(tc TraceContext) trace.SpanContext {
	var flags trace.TraceFlags
	if tc.sampled {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tc.traceID,
		SpanID:     tc.spanID,
		TraceFlags: flags,
	})
}
