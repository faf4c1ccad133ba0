package tracing

// An ExportFilter decides, per completed span, whether it should be
// handed to the export collaborator. Filtering is a pure
// inclusion/exclusion policy evaluated at export time, layered on top
// of the head-based sampling decision.
type ExportFilter interface {
	ShouldExport(s *Span) bool
}

// The ExportFilterFunc is an adapter to allow the use of ordinary
// functions as an ExportFilter.
type ExportFilterFunc func(s *Span) bool

// ShouldExport calls f(s)
func (f ExportFilterFunc) ShouldExport(s *Span) bool {
	return f(s)
}

// ConfigFilter gates spans on the configured global and per-kind
// flags. A span with no recognizable message-kind tag defaults to
// exportable: unknown or extension spans are not silently dropped.
type ConfigFilter struct {
	config Config
}

// NewConfigFilter creates a ConfigFilter over the given configuration.
func NewConfigFilter(config Config) *ConfigFilter {
	return &ConfigFilter{config: config}
}

// ShouldExport implements ExportFilter.
func (f *ConfigFilter) ShouldExport(s *Span) bool {
	if !f.config.Enabled {
		return false
	}

	tag, ok := s.Attribute(AttrMessageKind)
	if !ok {
		return true
	}

	switch tag.AsString() {
	case KindCommand.String():
		return f.config.Commands.Enabled
	case KindQuery.String():
		return f.config.Queries.Enabled
	case KindEvent.String():
		return f.config.Events.Enabled
	default:
		return true
	}
}

// CompositeFilter combines filters with logical AND, short-circuiting
// on the first rejection. An empty filter list accepts everything.
type CompositeFilter struct {
	filters []ExportFilter
}

// NewCompositeFilter creates a CompositeFilter over the given filters.
func NewCompositeFilter(filters ...ExportFilter) *CompositeFilter {
	return &CompositeFilter{filters: filters}
}

// ShouldExport implements ExportFilter.
func (f *CompositeFilter) ShouldExport(s *Span) bool {
	for _, filter := range f.filters {
		if !filter.ShouldExport(s) {
			return false
		}
	}
	return true
}
