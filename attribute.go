package tracing

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Standard attribute keys applied by the span factory.
const (
	AttrMessageID   = attribute.Key("messaging.message.id")
	AttrMessageKind = attribute.Key("messaging.message.kind")
	AttrPayloadType = attribute.Key("messaging.payload.type")
	AttrPayload     = attribute.Key("messaging.payload.body")
	AttrHandlerID   = attribute.Key("messaging.handler.id")
	AttrResultType  = attribute.Key("messaging.result.type")
)

// truncationMarker is appended to attribute values cut at the
// configured maximum payload length.
const truncationMarker = " [truncated]"

// coerceValue converts an arbitrary provider output into a closed
// String|Int64|Float64|Bool attribute value. The second return is
// false for nil, which means "omit this key". Anything outside the
// closed variant is rendered to its deterministic string form, never
// stored as an opaque type.
func coerceValue(v interface{}) (attribute.Value, bool) {
	switch value := v.(type) {
	case nil:
		return attribute.Value{}, false
	case string:
		return attribute.StringValue(value), true
	case bool:
		return attribute.BoolValue(value), true
	case int:
		return attribute.Int64Value(int64(value)), true
	case int8:
		return attribute.Int64Value(int64(value)), true
	case int16:
		return attribute.Int64Value(int64(value)), true
	case int32:
		return attribute.Int64Value(int64(value)), true
	case int64:
		return attribute.Int64Value(value), true
	case uint8:
		return attribute.Int64Value(int64(value)), true
	case uint16:
		return attribute.Int64Value(int64(value)), true
	case uint32:
		return attribute.Int64Value(int64(value)), true
	case float32:
		return attribute.Float64Value(float64(value)), true
	case float64:
		return attribute.Float64Value(value), true
	case fmt.Stringer:
		return attribute.StringValue(value.String()), true
	case error:
		return attribute.StringValue(value.Error()), true
	default:
		return attribute.StringValue(fmt.Sprintf("%v", value)), true
	}
}

// truncate cuts s to at most max bytes, appending a marker when
// anything was removed. max <= 0 disables truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + truncationMarker
}
