// Package capability defines the adapter contract over the host
// compositor's layout API (spec.md §4.2). The core only ever consumes this
// interface; a real implementation would wrap libweston-ivi-layout behind
// cgo, but that binding is out of scope here (the "C-ABI wrappers ... out
// of scope" carve-out) — only the interface and an in-process mock are
// built in this module.
package capability

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by any method the host build does not
// implement.
var ErrUnavailable = errors.New("capability: operation unavailable on this host build")

// ErrOrientationUnsupported is returned by writers attempting to set
// orientation: the capability reports orientation in snapshots but never
// lets the core write it (spec.md §9, "Orientation asymmetry").
var ErrOrientationUnsupported = errors.New("capability: orientation write is not supported")

// Orientation mirrors the four values the host reports for a surface.
type Orientation int

const (
	OrientationNormal Orientation = iota
	OrientationRotate90
	OrientationRotate180
	OrientationRotate270
)

// String renders the wire representation used in surface snapshots
// (spec.md §6).
func (o Orientation) String() string {
	switch o {
	case OrientationRotate90:
		return "Rotate90"
	case OrientationRotate180:
		return "Rotate180"
	case OrientationRotate270:
		return "Rotate270"
	default:
		return "Normal"
	}
}

// Rect is a sub-rectangle in either buffer-source or screen-destination
// coordinates.
type Rect struct {
	X, Y          int32
	Width, Height uint32
}

// Size is a plain width/height pair (the surface's original buffer size).
type Size struct {
	Width, Height uint32
}

// SurfaceSnapshot is an immutable view of a surface's properties as
// reported by the host at a point in time (spec.md §3).
type SurfaceSnapshot struct {
	ID          uint32
	OrigSize    Size
	SrcRect     Rect
	DestRect    Rect
	Visible     bool
	Opacity     float64
	Orientation Orientation
}

// LayerSnapshot is an immutable view of a layer's properties.
type LayerSnapshot struct {
	ID      uint32
	Visible bool
	Opacity float64
}

// EventMask identifies which attribute categories changed since the last
// snapshot the host handed the core (spec.md §4.2). A zero mask means
// "unknown — diff everything".
type EventMask uint32

const (
	MaskOpacity EventMask = 1 << iota
	MaskSourceRect
	MaskDestRect
	MaskDimension
	MaskPosition
	MaskOrientation
	MaskVisibility
	MaskPixelFormat
	MaskAdd
	MaskRemove
	MaskConfigure
)

// Has reports whether the mask has no bits set, or shares at least one bit
// with want.
func (m EventMask) Has(want EventMask) bool {
	return m == 0 || m&want != 0
}

// ListenerHandle is an opaque token returned by listener registration,
// analogous to the address of the host's listener struct (spec.md §9).
type ListenerHandle uintptr

// HostListeners bundles the global lifecycle callbacks the plugin registers
// once at startup (spec.md §4.9 step 5).
type HostListeners struct {
	OnSurfaceCreated    func(id uint32)
	OnSurfaceRemoved    func(id uint32)
	OnSurfaceConfigured func(id uint32)
	OnLayerCreated      func(id uint32)
	OnLayerRemoved      func(id uint32)
	OnLayerConfigured   func(id uint32)

	// OnHostDestroy fires when the host is tearing the plugin down
	// (spec.md §4.9 step 7). The plugin stops the transport and drops
	// the State Core in response; it never calls back into the
	// capability afterward.
	OnHostDestroy func()
}

// Capability is the façade the core consumes over the host's layout API.
// All methods may return ErrUnavailable if the host build lacks the
// corresponding feature.
type Capability interface {
	// CommitChanges atomically applies all pending property writes made
	// since the last commit.
	CommitChanges(ctx context.Context) error

	GetSurfaceByID(id uint32) (SurfaceSnapshot, bool)
	GetSurfaces() []SurfaceSnapshot
	GetLayerByID(id uint32) (LayerSnapshot, bool)
	GetLayers() []LayerSnapshot

	// SurfaceEventMask / LayerEventMask return the mask describing which
	// attribute categories changed since the last snapshot was taken for
	// the given entity.
	SurfaceEventMask(id uint32) EventMask
	LayerEventMask(id uint32) EventMask

	SetSurfaceVisibility(id uint32, visible bool) error
	SetSurfaceOpacity(id uint32, opacity float64) error
	SetSurfaceSourceRect(id uint32, rect Rect) error
	SetSurfaceDestRect(id uint32, rect Rect) error

	// SetSurfaceRenderOrder writes a surface's position within its
	// containing layer's render-order list — the host's actual home for
	// z-order (spec.md §9, "Z-order home").
	SetSurfaceRenderOrder(layerID, surfaceID uint32, order int32) error

	SetLayerVisibility(id uint32, visible bool) error
	SetLayerOpacity(id uint32, opacity float64) error

	// SetInputFocus designates a surface as the input recipient, or clears
	// focus entirely when ok is false. Best-effort: hosts that do not
	// surface an input-focus concept return ErrUnavailable.
	SetInputFocus(id uint32, ok bool) error

	// RegisterHostListeners installs the global lifecycle callbacks.
	RegisterHostListeners(hl HostListeners) (ListenerHandle, error)
	UnregisterHostListeners(h ListenerHandle) error

	// SurfaceAddListener / LayerAddListener install a per-entity configure
	// listener; exactly one must exist per tracked entity (spec.md §3
	// invariant).
	SurfaceAddListener(id uint32, onConfigured func(uint32)) (ListenerHandle, error)
	SurfaceRemoveListener(h ListenerHandle) error
	LayerAddListener(id uint32, onConfigured func(uint32)) (ListenerHandle, error)
	LayerRemoveListener(h ListenerHandle) error
}
