package tracing

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Options configure a Core.
type Options struct {
	Logger    logrus.FieldLogger
	Reporter  ErrorReporter
	Providers []AttributeProvider
	Filters   []ExportFilter
}

// Option is a functional option for New.
type Option func(*Options)

// WithLogger sets the logger used on absorbed error paths. Defaults to
// the logrus standard logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithReporter sets the external error-monitoring collaborator that
// receives correlation references for handler errors.
func WithReporter(reporter ErrorReporter) Option {
	return func(o *Options) {
		o.Reporter = reporter
	}
}

// WithProviders registers attribute providers consulted on every span.
func WithProviders(providers ...AttributeProvider) Option {
	return func(o *Options) {
		o.Providers = append(o.Providers, providers...)
	}
}

// WithFilters adds export filters evaluated, together with the
// configuration filter, as a logical AND.
func WithFilters(filters ...ExportFilter) Option {
	return func(o *Options) {
		o.Filters = append(o.Filters, filters...)
	}
}

// Core ties the tracing components together: factory, propagator,
// filter chain, error correlator and the export hand-off queue. It is
// constructed explicitly and injected where needed; there is no
// process-wide instance.
type Core struct {
	config Config

	propagator *Propagator
	factory    *SpanFactory
	filter     ExportFilter
	correlator *ErrorCorrelator
	collector  *Collector
	logger     logrus.FieldLogger
}

// New creates a Core. It fails fast on invalid configuration.
func New(config Config, opts ...Option) (*Core, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options := Options{
		Logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	var propagatorOpts []PropagatorOption
	if config.LegacyPropagation {
		propagatorOpts = append(propagatorOpts, WithLegacyBinaryFormat())
	}

	filters := append([]ExportFilter{NewConfigFilter(config)}, options.Filters...)

	c := &Core{
		config:     config,
		propagator: NewPropagator(propagatorOpts...),
		factory:    NewSpanFactory(config, options.Providers, options.Logger),
		filter:     NewCompositeFilter(filters...),
		correlator: NewErrorCorrelator(options.Reporter, options.Logger),
		collector:  NewCollector(config.QueueSize),
		logger:     options.Logger,
	}
	c.factory.onEnd = c.submit

	return c, nil
}

// submit routes an ended span toward the exporter: unsampled traces
// and filtered spans are discarded here.
func (c *Core) submit(span *Span) {
	if !span.Sampled() {
		return
	}
	if !c.filter.ShouldExport(span) {
		return
	}
	c.collector.Submit(span)
}

// Interceptor returns the dispatch/handler entry points bound to this
// core.
func (c *Core) Interceptor() *Interceptor {
	return newInterceptor(c)
}

// Propagator returns the carrier codec bound to this core.
func (c *Core) Propagator() *Propagator {
	return c.propagator
}

// Factory returns the span factory bound to this core.
func (c *Core) Factory() *SpanFactory {
	return c.factory
}

// Collector returns the hand-off queue the external exporter drains.
func (c *Core) Collector() *Collector {
	return c.collector
}

// Shutdown stops the hand-off queue. Spans ended afterwards are
// counted as dropped. The provided context bounds the wait for
// queued spans to settle.
func (c *Core) Shutdown(ctx context.Context) error {
	if ctx == nil {
		panic("invalid context (nil)")
	}

	done := make(chan struct{})
	go func() {
		c.collector.close()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
