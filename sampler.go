package tracing

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ratioSampler draws the head-based sampling decision for root spans.
// The decision is made exactly once per trace, on the freshly
// generated random trace id; descendant spans inherit the flag through
// propagation and never re-sample.
type ratioSampler struct {
	inner sdktrace.Sampler
}

func newRatioSampler(ratio float64) *ratioSampler {
	return &ratioSampler{inner: sdktrace.TraceIDRatioBased(ratio)}
}

// Sample returns the sampling decision for a new root trace.
func (s *ratioSampler) Sample(name string, kind trace.SpanKind, traceID trace.TraceID) bool {
	result := s.inner.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       traceID,
		Name:          name,
		Kind:          kind,
	})
	return result.Decision == sdktrace.RecordAndSample
}
