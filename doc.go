// Package tracing provides the message-tracing core for an
// asynchronous message-dispatch system.
//
// How it works
//
// The core wraps the two call sites of a message framework. On the
// sending side, Interceptor.WrapDispatch creates a span per outgoing
// message and injects its trace context into the message metadata in
// the W3C Trace Context text format. On the receiving side,
// Interceptor.WrapHandler extracts the parent context from the inbound
// metadata, runs the business handler inside a child span and closes
// the span on every exit path, re-surfacing handler errors unchanged.
//
// Completed spans flow through the configured export filters into a
// bounded, non-blocking collector that an external exporter drains.
// Handler errors are additionally forwarded, together with the
// trace/span id correlation key, to an external error-monitoring
// backend.
//
// Examples
//
// Wiring up the core:
//
//	core, err := tracing.New(tracing.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer core.Shutdown(context.Background())
//
//	itc := core.Interceptor()
//
// Tracing a handler:
//
//	h := itc.WrapHandler("order-projector", tracing.HandlerFunc(
//		func(ctx context.Context, m *tracing.Message) (interface{}, error) {
//			// business logic; ctx carries the active trace context
//			return nil, nil
//		}))
//
// Tracing a dispatch:
//
//	d := itc.WrapDispatch(ctx, m)[0]
//	res, err := bus.Send(ctx, d.Message)
//	d.Complete(res, err)
package tracing
