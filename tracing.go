package tracing

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Kind identifies the messaging pattern a Message belongs to.
// Commands and queries are point-to-point request/response messages;
// events are fire-and-forget publish/subscribe messages.
type Kind int

const (
	KindCommand Kind = iota
	KindQuery
	KindEvent
)

// String returns the lowercase tag used to mark spans with their
// message kind.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindQuery:
		return "query"
	case KindEvent:
		return "event"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// verb returns the span-name prefix for dispatch spans.
func (k Kind) verb() string {
	switch k {
	case KindCommand:
		return "Command"
	case KindQuery:
		return "Query"
	case KindEvent:
		return "Event"
	default:
		return "Message"
	}
}

// Metadata represents the key-value metadata for a Message. It is the
// carrier trace context travels in: the propagator owns the reserved
// trace-context keys, every other key belongs to callers and is never
// touched.
type Metadata map[string]string

// Get returns the value associated with the given key, or "" if the
// key is not present.
func (m Metadata) Get(key string) string {
	return m[key]
}

// Set sets the value associated with key, replacing any existing value.
func (m Metadata) Set(key, value string) {
	m[key] = value
}

// Keys returns the carrier's keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// from https://golang.org/src/net/http/header.go#L62
func (m Metadata) clone() Metadata {
	m2 := make(Metadata, len(m))
	for k, v := range m {
		m2[k] = v
	}
	return m2
}

// A Message represents a discrete message in a messaging system.
// The dispatch framework owns routing, retries and persistence; the
// tracing core only reads the fields below and writes to Metadata.
type Message struct {
	// ID uniquely identifies the message.
	ID string

	// Name is the logical message name, e.g. "CreateOrder".
	Name string

	// Kind is the messaging pattern of the message.
	Kind Kind

	// PayloadType is the type name of the payload. If empty, Name is
	// used for the payload-type span attribute.
	PayloadType string

	// Payload is the serialized message body. It is only read when
	// payload capture is enabled.
	Payload []byte

	// Metadata is the message's carrier.
	Metadata Metadata
}

// NewMessage creates a Message with a generated ID and empty Metadata.
func NewMessage(kind Kind, name string, payload []byte) *Message {
	return &Message{
		ID:       uuid.NewString(),
		Name:     name,
		Kind:     kind,
		Payload:  payload,
		Metadata: Metadata{},
	}
}

// Copy returns a new Message with the same fields and a deep copy of
// the parent's Metadata, so concurrent consumers never share a
// mutable carrier.
func (m *Message) Copy() *Message {
	return &Message{
		ID:          m.ID,
		Name:        m.Name,
		Kind:        m.Kind,
		PayloadType: m.PayloadType,
		Payload:     m.Payload,
		Metadata:    m.Metadata.clone(),
	}
}

// payloadType returns the payload-type attribute value.
func (m *Message) payloadType() string {
	if m.PayloadType != "" {
		return m.PayloadType
	}
	return m.Name
}

// A Handler processes a Message and produces a result.
//
// Handle should process the message and then return. For commands and
// queries the first return value is the result awaited by the
// dispatcher; for events it is ignored. If Handle returns an error,
// the dispatch framework assumes the message has not been processed.
type Handler interface {
	Handle(context.Context, *Message) (interface{}, error)
}

// The HandlerFunc is an adapter to allow the use of ordinary functions
// as a Handler. HandlerFunc(f) is a Handler that calls f.
type HandlerFunc func(context.Context, *Message) (interface{}, error)

// Handle calls f(ctx, m)
func (f HandlerFunc) Handle(ctx context.Context, m *Message) (interface{}, error) {
	return f(ctx, m)
}
