package logger

import (
	"encoding/hex"
	"log/slog"
)

// Standard field keys for structured logging. Use these consistently across
// log statements so downstream log aggregation and querying stay uniform.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// RPC Method & Connection
	// ========================================================================
	KeyMethod       = "method"        // JSON-RPC method name
	KeyRequestID    = "request_id"    // JSON-RPC request id
	KeyClientID     = "client_id"     // Monotonic transport-assigned client id
	KeyConnectionID = "connection_id" // UNIX socket connection identifier
	KeyErrorCode    = "error_code"    // JSON-RPC numeric error code

	// ========================================================================
	// Surfaces & Layers
	// ========================================================================
	KeySurfaceID  = "surface_id"
	KeyLayerID    = "layer_id"
	KeyZOrder     = "z_order"
	KeyOpacity    = "opacity"
	KeyVisible    = "visible"
	KeyOrientation = "orientation"
	KeyPositionX  = "x"
	KeyPositionY  = "y"
	KeyWidth      = "width"
	KeyHeight     = "height"

	// ========================================================================
	// Events & Notifications
	// ========================================================================
	KeyEventType     = "event_type"
	KeySubscriberCnt = "subscriber_count"
	KeyOutboxDepth   = "outbox_depth"
	KeyDropped       = "dropped"

	// ========================================================================
	// Framing & Transport
	// ========================================================================
	KeyFrameLength = "frame_length"
	KeyClientAddr  = "client_addr"
	KeyHandle      = "handle" // Opaque binary handle, hex-encoded

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyComponent  = "component"
)

// Handle returns a slog.Attr carrying an opaque binary handle as lowercase
// hex.
func Handle(h []byte) slog.Attr {
	return slog.String(KeyHandle, hex.EncodeToString(h))
}

// TraceID returns a slog.Attr for a correlation trace id.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for a correlation span id.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Method returns a slog.Attr for the JSON-RPC method name.
func Method(name string) slog.Attr {
	return slog.String(KeyMethod, name)
}

// RequestID returns a slog.Attr for the JSON-RPC request id.
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// ClientID returns a slog.Attr for the transport-assigned client id.
func ClientID(id uint64) slog.Attr {
	return slog.Uint64(KeyClientID, id)
}

// ConnectionID returns a slog.Attr for a connection identifier.
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// ErrorCode returns a slog.Attr for a JSON-RPC numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// SurfaceID returns a slog.Attr for a surface identifier.
func SurfaceID(id uint32) slog.Attr {
	return slog.Any(KeySurfaceID, id)
}

// LayerID returns a slog.Attr for a layer identifier.
func LayerID(id uint32) slog.Attr {
	return slog.Any(KeyLayerID, id)
}

// ZOrder returns a slog.Attr for a z-order value.
func ZOrder(z int32) slog.Attr {
	return slog.Int64(KeyZOrder, int64(z))
}

// Opacity returns a slog.Attr for an opacity value.
func Opacity(o float64) slog.Attr {
	return slog.Float64(KeyOpacity, o)
}

// Visible returns a slog.Attr for a visibility flag.
func Visible(v bool) slog.Attr {
	return slog.Bool(KeyVisible, v)
}

// Orientation returns a slog.Attr for an orientation value.
func Orientation(o int) slog.Attr {
	return slog.Int(KeyOrientation, o)
}

// Position returns slog.Attrs for a surface/layer (x, y) position.
func Position(x, y int32) []slog.Attr {
	return []slog.Attr{slog.Int64(KeyPositionX, int64(x)), slog.Int64(KeyPositionY, int64(y))}
}

// Size returns slog.Attrs for a surface/layer (width, height) extent.
func Size(w, h uint32) []slog.Attr {
	return []slog.Attr{slog.Any(KeyWidth, w), slog.Any(KeyHeight, h)}
}

// EventType returns a slog.Attr for a notification event type.
func EventType(t string) slog.Attr {
	return slog.String(KeyEventType, t)
}

// SubscriberCount returns a slog.Attr for the number of active subscribers.
func SubscriberCount(n int) slog.Attr {
	return slog.Int(KeySubscriberCnt, n)
}

// OutboxDepth returns a slog.Attr for a client's current outbox depth.
func OutboxDepth(n int) slog.Attr {
	return slog.Int(KeyOutboxDepth, n)
}

// Dropped returns a slog.Attr for a count of dropped notifications.
func Dropped(n int) slog.Attr {
	return slog.Int(KeyDropped, n)
}

// FrameLength returns a slog.Attr for a decoded frame length in bytes.
func FrameLength(n uint32) slog.Attr {
	return slog.Any(KeyFrameLength, n)
}

// ClientAddr returns a slog.Attr for a client's socket peer description.
func ClientAddr(addr string) slog.Attr {
	return slog.String(KeyClientAddr, addr)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or a no-op attr for a nil error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Component returns a slog.Attr naming the emitting subsystem (statecore,
// notifcore, transport, rpc, ...).
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}
