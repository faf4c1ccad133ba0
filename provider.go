package tracing

import (
	pq "github.com/JimWen/gods-generic/queues/priorityqueue"
	"github.com/JimWen/gods-generic/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// An AttributeProvider enriches spans with domain-specific metadata.
// Providers are applied in ascending priority order; when two
// providers write the same key the higher priority wins. A nil value
// means "omit this key". Enrichment is best-effort: a panicking
// provider is logged and skipped without aborting span creation.
type AttributeProvider interface {
	// Priority orders the provider relative to others; higher runs
	// later and overrides earlier writes for conflicting keys.
	Priority() int

	// Attributes returns the metadata to merge into the span.
	Attributes(m *Message) map[string]interface{}
}

type providerFunc struct {
	priority int
	fn       func(m *Message) map[string]interface{}
}

func (p providerFunc) Priority() int { return p.priority }

func (p providerFunc) Attributes(m *Message) map[string]interface{} { return p.fn(m) }

// ProviderFunc adapts an ordinary function into an AttributeProvider
// with the given priority.
func ProviderFunc(priority int, fn func(m *Message) map[string]interface{}) AttributeProvider {
	return providerFunc{priority: priority, fn: fn}
}

// providerSet holds attribute providers in ascending priority order.
type providerSet struct {
	providers []AttributeProvider
}

// newProviderSet orders the given providers by priority.
func newProviderSet(providers ...AttributeProvider) *providerSet {
	queue := pq.NewWith(func(a, b AttributeProvider) int {
		return utils.NumberComparator(a.Priority(), b.Priority())
	})
	for _, p := range providers {
		if p != nil {
			queue.Enqueue(p)
		}
	}

	ordered := make([]AttributeProvider, 0, queue.Size())
	for {
		p, ok := queue.Dequeue()
		if !ok {
			break
		}
		ordered = append(ordered, p)
	}

	return &providerSet{providers: ordered}
}

// apply merges every provider's output into the span, lowest priority
// first so that later writes win.
func (s *providerSet) apply(span *Span, m *Message, logger logrus.FieldLogger) {
	for _, provider := range s.providers {
		s.applyOne(provider, span, m, logger)
	}
}

func (s *providerSet) applyOne(provider AttributeProvider, span *Span, m *Message, logger logrus.FieldLogger) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.WithFields(logrus.Fields{
				"provider_priority": provider.Priority(),
				"message":           m.Name,
				"panic":             r,
			}).Warn("attribute provider panicked, skipping")
		}
	}()

	for key, raw := range provider.Attributes(m) {
		value, ok := coerceValue(raw)
		if !ok {
			continue
		}
		span.SetAttribute(attribute.Key(key), value)
	}
}
