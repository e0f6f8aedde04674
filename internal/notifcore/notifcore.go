// Package notifcore is the typed event bus sitting between the state core
// and everything that wants to react to surface/layer changes (spec.md
// §4.4): today that is exactly the subscription manager, wired in by
// internal/rpc's notification bridge.
package notifcore

import (
	"context"
	"sync"

	"github.com/saimizi/iviplugind/internal/capability"
	"github.com/saimizi/iviplugind/internal/logger"
)

// EventType names one of the thirteen change categories the core can emit.
type EventType int

const (
	SurfaceCreated EventType = iota
	SurfaceDestroyed
	SourceGeometryChanged
	DestinationGeometryChanged
	VisibilityChanged
	OpacityChanged
	OrientationChanged
	ZOrderChanged
	FocusChanged
	LayerCreated
	LayerDestroyed
	LayerVisibilityChanged
	LayerOpacityChanged
)

// String renders the wire name used in notification envelopes (spec.md §6).
func (t EventType) String() string {
	switch t {
	case SurfaceCreated:
		return "SurfaceCreated"
	case SurfaceDestroyed:
		return "SurfaceDestroyed"
	case SourceGeometryChanged:
		return "SourceGeometryChanged"
	case DestinationGeometryChanged:
		return "DestinationGeometryChanged"
	case VisibilityChanged:
		return "VisibilityChanged"
	case OpacityChanged:
		return "OpacityChanged"
	case OrientationChanged:
		return "OrientationChanged"
	case ZOrderChanged:
		return "ZOrderChanged"
	case FocusChanged:
		return "FocusChanged"
	case LayerCreated:
		return "LayerCreated"
	case LayerDestroyed:
		return "LayerDestroyed"
	case LayerVisibilityChanged:
		return "LayerVisibilityChanged"
	case LayerOpacityChanged:
		return "LayerOpacityChanged"
	default:
		return "Unknown"
	}
}

// Event carries the entity the change applies to and the before/after
// values relevant to its EventType. Callers type-switch on EventType and
// read only the fields that apply to it; unused fields are left zero.
type Event struct {
	Type EventType

	SurfaceID uint32
	LayerID   uint32

	OldRect capability.Rect
	NewRect capability.Rect

	OldVisible bool
	NewVisible bool

	OldOpacity float64
	NewOpacity float64

	OldOrientation capability.Orientation
	NewOrientation capability.Orientation

	OldZOrder int32
	NewZOrder int32

	OldFocus *uint32
	NewFocus *uint32
}

// Callback receives emitted events. It must not block. It may call back
// into the Bus that invoked it: Register and a re-entrant Emit do not
// deadlock, since the Bus releases its lock before invoking callbacks, but
// ordering between concurrent emits is undefined.
type Callback func(Event)

// Bus is a synchronous, panic-safe, typed pub/sub registry. The zero value
// is not usable; construct with New.
type Bus struct {
	mu        sync.Mutex
	callbacks map[EventType][]Callback
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{callbacks: make(map[EventType][]Callback)}
}

// Register adds a callback invoked synchronously for every Emit of the
// given type, in registration order.
func (b *Bus) Register(t EventType, cb Callback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks[t] = append(b.callbacks[t], cb)
}

// Emit invokes every callback registered for ev.Type. The callback slice is
// copied out while holding the lock, then the lock is released before any
// callback runs — an emitter on the host compositor thread must never
// block behind a slow or reentrant subscriber holding the Bus's lock.
// A panicking callback is recovered, logged, and does not prevent the
// remaining callbacks from running.
func (b *Bus) Emit(ctx context.Context, ev Event) {
	b.mu.Lock()
	cbs := append([]Callback(nil), b.callbacks[ev.Type]...)
	b.mu.Unlock()

	for _, cb := range cbs {
		invokeSafely(ctx, ev, cb)
	}
}

func invokeSafely(ctx context.Context, ev Event, cb Callback) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCtx(ctx, "notifcore: callback panicked",
				logger.EventType(ev.Type.String()),
				"panic", r,
			)
		}
	}()
	cb(ev)
}
