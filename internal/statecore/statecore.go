// Package statecore is the thread-safe in-memory mirror of the
// compositor's surfaces and layers (spec.md §4.3). It reads entity state
// from a capability.Capability and emits change events; RPC handlers read
// the mirror through it, write mutations to the capability directly, and
// then ask the Core to reconcile.
package statecore

import (
	"context"
	"sync"

	"github.com/saimizi/iviplugind/internal/capability"
	"github.com/saimizi/iviplugind/internal/logger"
	"github.com/saimizi/iviplugind/internal/notifcore"
)

// Surface is the core's view of one surface, the snapshot plus the
// z-order the core itself tracks (the host has no per-surface z-order
// property — see capability.Capability.SetSurfaceRenderOrder).
type Surface struct {
	capability.SurfaceSnapshot
	ZOrder int32
}

// Layer is the core's view of one layer.
type Layer struct {
	capability.LayerSnapshot
}

// Core owns the mirror and the listener handles backing it. The zero
// value is not usable; construct with New.
type Core struct {
	cap capability.Capability
	bus *notifcore.Bus

	mu       sync.RWMutex
	surfaces map[uint32]Surface
	layers   map[uint32]Layer
	focus    *uint32

	surfaceListeners map[uint32]capability.ListenerHandle
	layerListeners   map[uint32]capability.ListenerHandle

	pendingZOrder map[uint32]int32
}

// New returns a Core backed by cap, emitting change events onto bus.
func New(cap capability.Capability, bus *notifcore.Bus) *Core {
	return &Core{
		cap:              cap,
		bus:              bus,
		surfaces:         make(map[uint32]Surface),
		layers:           make(map[uint32]Layer),
		surfaceListeners: make(map[uint32]capability.ListenerHandle),
		layerListeners:   make(map[uint32]capability.ListenerHandle),
		pendingZOrder:    make(map[uint32]int32),
	}
}

// SyncWithLayout discards the current mirror and repopulates it from a
// full enumeration of the host's surfaces and layers (spec.md §4.9 step
// 3). Every entity the host enumerates is tracked as reported.
func (c *Core) SyncWithLayout(ctx context.Context) {
	hostSurfaces := c.cap.GetSurfaces()
	hostLayers := c.cap.GetLayers()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.surfaces = make(map[uint32]Surface, len(hostSurfaces))
	for _, s := range hostSurfaces {
		c.surfaces[s.ID] = Surface{SurfaceSnapshot: s}
	}

	c.layers = make(map[uint32]Layer, len(hostLayers))
	for _, l := range hostLayers {
		c.layers[l.ID] = Layer{LayerSnapshot: l}
	}

	logger.InfoCtx(ctx, "statecore: synced with layout",
		"surface_count", len(c.surfaces),
		"layer_count", len(c.layers),
	)
}

// GetSurface returns a copy of the tracked surface, if any.
func (c *Core) GetSurface(id uint32) (Surface, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.surfaces[id]
	return s, ok
}

// ListSurfaces returns a snapshot of every tracked surface.
func (c *Core) ListSurfaces() []Surface {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Surface, 0, len(c.surfaces))
	for _, s := range c.surfaces {
		out = append(out, s)
	}
	return out
}

// GetLayer returns a copy of the tracked layer, if any.
func (c *Core) GetLayer(id uint32) (Layer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.layers[id]
	return l, ok
}

// ListLayers returns a snapshot of every tracked layer.
func (c *Core) ListLayers() []Layer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Layer, 0, len(c.layers))
	for _, l := range c.layers {
		out = append(out, l)
	}
	return out
}

// Focus returns the currently focused surface id, if any.
func (c *Core) Focus() (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.focus == nil {
		return 0, false
	}
	return *c.focus, true
}

// SetFocus changes the focused surface and emits FocusChanged if it
// actually changed. Passing ok=false clears focus.
func (c *Core) SetFocus(ctx context.Context, id uint32, ok bool) {
	c.mu.Lock()
	var newFocus *uint32
	if ok {
		v := id
		newFocus = &v
	}
	oldFocus := c.focus
	changed := !focusEqual(oldFocus, newFocus)
	c.focus = newFocus
	c.mu.Unlock()

	if changed {
		c.bus.Emit(ctx, notifcore.Event{Type: notifcore.FocusChanged, OldFocus: oldFocus, NewFocus: newFocus})
	}
}

func focusEqual(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// HandleSurfaceCreated reads the new surface from the host and adds it to
// the mirror, emitting SurfaceCreated (spec.md §4.3). A surface the host
// does not report is not tracked.
func (c *Core) HandleSurfaceCreated(ctx context.Context, id uint32) {
	snap, ok := c.cap.GetSurfaceByID(id)
	if !ok {
		return
	}

	c.mu.Lock()
	c.surfaces[id] = Surface{SurfaceSnapshot: snap}
	c.mu.Unlock()

	logger.InfoCtx(ctx, "statecore: surface created", logger.SurfaceID(id))
	c.bus.Emit(ctx, notifcore.Event{Type: notifcore.SurfaceCreated, SurfaceID: id})
}

// HandleSurfaceDestroyed removes a surface's listener and its mirror entry,
// emits SurfaceDestroyed, and clears focus if this surface held it.
func (c *Core) HandleSurfaceDestroyed(ctx context.Context, id uint32) {
	c.mu.Lock()
	delete(c.surfaces, id)
	if h, ok := c.surfaceListeners[id]; ok {
		delete(c.surfaceListeners, id)
		_ = c.cap.SurfaceRemoveListener(h)
	}
	wasFocused := c.focus != nil && *c.focus == id
	c.mu.Unlock()

	logger.InfoCtx(ctx, "statecore: surface destroyed", logger.SurfaceID(id))
	c.bus.Emit(ctx, notifcore.Event{Type: notifcore.SurfaceDestroyed, SurfaceID: id})

	if wasFocused {
		c.SetFocus(ctx, 0, false)
	}
}

// HandleSurfaceConfigured re-reads a surface from the host and diffs it
// against the prior snapshot, emitting one event per changed category
// gated by the host's event mask (spec.md §4.3, the five-step algorithm):
// read the prior snapshot (an id absent from the mirror is handled as a
// creation by HandleSurfaceCreated), query the host's current one (bailing
// out if the host no longer reports the surface), preserve the core's own
// z-order (the host has no such property), diff per category, and only
// then write the new snapshot.
func (c *Core) HandleSurfaceConfigured(ctx context.Context, id uint32) {
	c.mu.RLock()
	old, hadOld := c.surfaces[id]
	c.mu.RUnlock()
	if !hadOld {
		c.HandleSurfaceCreated(ctx, id)
		return
	}

	snap, ok := c.cap.GetSurfaceByID(id)
	if !ok {
		return
	}

	mask := c.cap.SurfaceEventMask(id)
	zOrder := int32(0)
	if hadOld {
		zOrder = old.ZOrder
	}
	updated := Surface{SurfaceSnapshot: snap, ZOrder: zOrder}

	if hadOld {
		c.diffAndEmitSurface(ctx, id, old, updated, mask)
	}

	c.mu.Lock()
	c.surfaces[id] = updated
	c.mu.Unlock()
}

func (c *Core) diffAndEmitSurface(ctx context.Context, id uint32, old, updated Surface, mask capability.EventMask) {
	if mask.Has(capability.MaskSourceRect) && old.SrcRect != updated.SrcRect {
		c.bus.Emit(ctx, notifcore.Event{Type: notifcore.SourceGeometryChanged, SurfaceID: id, OldRect: old.SrcRect, NewRect: updated.SrcRect})
	}
	if mask.Has(capability.MaskDestRect) && old.DestRect != updated.DestRect {
		c.bus.Emit(ctx, notifcore.Event{Type: notifcore.DestinationGeometryChanged, SurfaceID: id, OldRect: old.DestRect, NewRect: updated.DestRect})
	}
	if mask.Has(capability.MaskVisibility) && old.Visible != updated.Visible {
		c.bus.Emit(ctx, notifcore.Event{Type: notifcore.VisibilityChanged, SurfaceID: id, OldVisible: old.Visible, NewVisible: updated.Visible})
	}
	if mask.Has(capability.MaskOpacity) && old.Opacity != updated.Opacity {
		c.bus.Emit(ctx, notifcore.Event{Type: notifcore.OpacityChanged, SurfaceID: id, OldOpacity: old.Opacity, NewOpacity: updated.Opacity})
	}
	if mask.Has(capability.MaskOrientation) && old.Orientation != updated.Orientation {
		c.bus.Emit(ctx, notifcore.Event{Type: notifcore.OrientationChanged, SurfaceID: id, OldOrientation: old.Orientation, NewOrientation: updated.Orientation})
	}
}

// SetZOrder records the core-tracked z-order for a surface and, if it
// changed, emits ZOrderChanged. The caller is responsible for also calling capability.SetSurfaceRenderOrder on the containing
// layer — the core's z_order field is a read model, not the host's source
// of truth (spec.md §9, "Z-order home").
func (c *Core) SetZOrder(ctx context.Context, id uint32, z int32) bool {
	c.mu.Lock()
	s, ok := c.surfaces[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	old := s.ZOrder
	s.ZOrder = z
	c.surfaces[id] = s
	c.mu.Unlock()

	if old != z {
		c.bus.Emit(ctx, notifcore.Event{Type: notifcore.ZOrderChanged, SurfaceID: id, OldZOrder: old, NewZOrder: z})
	}
	return true
}

// StageZOrder records a pending z-order change for a surface without
// emitting a notification; the RPC handler calls FlushZOrder once the
// write is committed (spec.md §4.8: "validates [0,1000]; updates mirror;
// emits ZOrderChanged on commit").
func (c *Core) StageZOrder(id uint32, z int32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.surfaces[id]; !ok {
		return false
	}
	c.pendingZOrder[id] = z
	return true
}

// FlushZOrder applies a surface's pending z-order change, if any, and
// emits ZOrderChanged when the value actually differs from the prior one.
func (c *Core) FlushZOrder(ctx context.Context, id uint32) {
	c.mu.Lock()
	z, staged := c.pendingZOrder[id]
	if !staged {
		c.mu.Unlock()
		return
	}
	delete(c.pendingZOrder, id)
	s, ok := c.surfaces[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	old := s.ZOrder
	s.ZOrder = z
	c.surfaces[id] = s
	c.mu.Unlock()

	if old != z {
		c.bus.Emit(ctx, notifcore.Event{Type: notifcore.ZOrderChanged, SurfaceID: id, OldZOrder: old, NewZOrder: z})
	}
}

// ReconcileSurface re-reads a surface from the capability and diffs it
// against the mirror, ignoring the host's event mask (mask 0 means "diff
// everything"): used after an RPC-driven commit, where the change
// originated from a client mutator rather than a host configure event.
func (c *Core) ReconcileSurface(ctx context.Context, id uint32) {
	c.mu.RLock()
	old, hadOld := c.surfaces[id]
	c.mu.RUnlock()
	if !hadOld {
		return
	}

	snap, ok := c.cap.GetSurfaceByID(id)
	if !ok {
		return
	}
	updated := Surface{SurfaceSnapshot: snap, ZOrder: old.ZOrder}
	c.diffAndEmitSurface(ctx, id, old, updated, 0)

	c.mu.Lock()
	c.surfaces[id] = updated
	c.mu.Unlock()
}

// ReconcileLayer is ReconcileSurface's layer counterpart.
func (c *Core) ReconcileLayer(ctx context.Context, id uint32) {
	c.mu.RLock()
	old, hadOld := c.layers[id]
	c.mu.RUnlock()
	if !hadOld {
		return
	}

	snap, ok := c.cap.GetLayerByID(id)
	if !ok {
		return
	}
	updated := Layer{LayerSnapshot: snap}
	if old.Visible != updated.Visible {
		c.bus.Emit(ctx, notifcore.Event{Type: notifcore.LayerVisibilityChanged, LayerID: id, OldVisible: old.Visible, NewVisible: updated.Visible})
	}
	if old.Opacity != updated.Opacity {
		c.bus.Emit(ctx, notifcore.Event{Type: notifcore.LayerOpacityChanged, LayerID: id, OldOpacity: old.Opacity, NewOpacity: updated.Opacity})
	}

	c.mu.Lock()
	c.layers[id] = updated
	c.mu.Unlock()
}

// HandleLayerCreated mirrors HandleSurfaceCreated for layers.
func (c *Core) HandleLayerCreated(ctx context.Context, id uint32) {
	snap, ok := c.cap.GetLayerByID(id)
	if !ok {
		return
	}

	c.mu.Lock()
	c.layers[id] = Layer{LayerSnapshot: snap}
	c.mu.Unlock()

	logger.InfoCtx(ctx, "statecore: layer created", logger.LayerID(id))
	c.bus.Emit(ctx, notifcore.Event{Type: notifcore.LayerCreated, LayerID: id})
}

// HandleLayerDestroyed mirrors HandleSurfaceDestroyed for layers (layers
// do not hold focus, so there is no focus-clearing step).
func (c *Core) HandleLayerDestroyed(ctx context.Context, id uint32) {
	c.mu.Lock()
	delete(c.layers, id)
	if h, ok := c.layerListeners[id]; ok {
		delete(c.layerListeners, id)
		_ = c.cap.LayerRemoveListener(h)
	}
	c.mu.Unlock()

	logger.InfoCtx(ctx, "statecore: layer destroyed", logger.LayerID(id))
	c.bus.Emit(ctx, notifcore.Event{Type: notifcore.LayerDestroyed, LayerID: id})
}

// HandleLayerConfigured mirrors HandleSurfaceConfigured for layers: only
// visibility and opacity apply.
func (c *Core) HandleLayerConfigured(ctx context.Context, id uint32) {
	c.mu.RLock()
	old, hadOld := c.layers[id]
	c.mu.RUnlock()
	if !hadOld {
		c.HandleLayerCreated(ctx, id)
		return
	}

	snap, ok := c.cap.GetLayerByID(id)
	if !ok {
		return
	}
	mask := c.cap.LayerEventMask(id)
	updated := Layer{LayerSnapshot: snap}

	if hadOld {
		if mask.Has(capability.MaskVisibility) && old.Visible != updated.Visible {
			c.bus.Emit(ctx, notifcore.Event{Type: notifcore.LayerVisibilityChanged, LayerID: id, OldVisible: old.Visible, NewVisible: updated.Visible})
		}
		if mask.Has(capability.MaskOpacity) && old.Opacity != updated.Opacity {
			c.bus.Emit(ctx, notifcore.Event{Type: notifcore.LayerOpacityChanged, LayerID: id, OldOpacity: old.Opacity, NewOpacity: updated.Opacity})
		}
	}

	c.mu.Lock()
	c.layers[id] = updated
	c.mu.Unlock()
}

// TrackSurfaceListener records the listener handle registered for a
// surface so it can be torn down when the surface is destroyed or the
// Core itself is torn down.
func (c *Core) TrackSurfaceListener(id uint32, h capability.ListenerHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surfaceListeners[id] = h
}

// TrackLayerListener records the listener handle registered for a layer.
func (c *Core) TrackLayerListener(id uint32, h capability.ListenerHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layerListeners[id] = h
}

// Close unregisters every per-entity listener the Core holds (spec.md
// §4.9, host-destroy teardown: "drop State Core" unregisters every
// per-entity listener).
func (c *Core) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, h := range c.surfaceListeners {
		_ = c.cap.SurfaceRemoveListener(h)
		delete(c.surfaceListeners, id)
	}
	for id, h := range c.layerListeners {
		_ = c.cap.LayerRemoveListener(h)
		delete(c.layerListeners, id)
	}
}
