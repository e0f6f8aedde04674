// Package mockcapability provides an in-process, goroutine-safe
// implementation of capability.Capability for tests and for
// `iviplugind -simulate`. It starts empty; callers populate it with
// SeedSurface and SeedLayer and drive host lifecycle events without a real
// compositor.
package mockcapability

import (
	"context"
	"sync"

	"github.com/saimizi/iviplugind/internal/capability"
)

type listenerSlot struct {
	onConfigured func(uint32)
}

// Mock is an in-memory capability.Capability. The zero value is not usable;
// construct via New.
type Mock struct {
	mu sync.Mutex

	surfaces map[uint32]capability.SurfaceSnapshot
	layers   map[uint32]capability.LayerSnapshot

	surfaceMasks map[uint32]capability.EventMask
	layerMasks   map[uint32]capability.EventMask

	surfaceListeners map[capability.ListenerHandle]uint32
	layerListeners   map[capability.ListenerHandle]uint32
	slots            map[capability.ListenerHandle]listenerSlot

	hostListeners   capability.HostListeners
	hostRegistered  bool
	nextHandle      capability.ListenerHandle
	renderOrder     map[uint32][]uint32 // layerID -> ordered surfaceIDs
}

// New returns an empty Mock.
func New() *Mock {
	return &Mock{
		surfaces:         make(map[uint32]capability.SurfaceSnapshot),
		layers:           make(map[uint32]capability.LayerSnapshot),
		surfaceMasks:     make(map[uint32]capability.EventMask),
		layerMasks:       make(map[uint32]capability.EventMask),
		surfaceListeners: make(map[capability.ListenerHandle]uint32),
		layerListeners:   make(map[capability.ListenerHandle]uint32),
		slots:            make(map[capability.ListenerHandle]listenerSlot),
		renderOrder:      make(map[uint32][]uint32),
		nextHandle:       1,
	}
}

// SeedSurface inserts a surface snapshot and fires the host's
// surface-created listener, mimicking a real compositor mapping a new
// client buffer.
func (m *Mock) SeedSurface(s capability.SurfaceSnapshot) {
	m.mu.Lock()
	m.surfaces[s.ID] = s
	cb := m.hostListeners.OnSurfaceCreated
	m.mu.Unlock()

	if cb != nil {
		cb(s.ID)
	}
}

// SeedLayer inserts a layer snapshot and fires the host's
// layer-created listener.
func (m *Mock) SeedLayer(l capability.LayerSnapshot) {
	m.mu.Lock()
	m.layers[l.ID] = l
	cb := m.hostListeners.OnLayerCreated
	m.mu.Unlock()

	if cb != nil {
		cb(l.ID)
	}
}

// DestroySurface removes a surface and fires the host's surface-removed
// listener.
func (m *Mock) DestroySurface(id uint32) {
	m.mu.Lock()
	delete(m.surfaces, id)
	delete(m.surfaceMasks, id)
	cb := m.hostListeners.OnSurfaceRemoved
	m.mu.Unlock()

	if cb != nil {
		cb(id)
	}
}

// DestroyLayer removes a layer and fires the host's layer-removed listener.
func (m *Mock) DestroyLayer(id uint32) {
	m.mu.Lock()
	delete(m.layers, id)
	delete(m.layerMasks, id)
	cb := m.hostListeners.OnLayerRemoved
	m.mu.Unlock()

	if cb != nil {
		cb(id)
	}
}

// Configure mutates a surface's snapshot in place (as if the host applied a
// buffer resize/reposition out of band) with the given event mask, then
// fires the per-entity configure listener registered for it, if any.
func (m *Mock) Configure(id uint32, mutate func(*capability.SurfaceSnapshot), mask capability.EventMask) {
	m.mu.Lock()
	snap, ok := m.surfaces[id]
	if ok {
		mutate(&snap)
		m.surfaces[id] = snap
		m.surfaceMasks[id] = mask
	}
	var cb func(uint32)
	for handle, sid := range m.surfaceListeners {
		if sid == id {
			cb = m.slots[handle].onConfigured
			break
		}
	}
	globalCb := m.hostListeners.OnSurfaceConfigured
	m.mu.Unlock()

	if cb != nil {
		cb(id)
	}
	if globalCb != nil {
		globalCb(id)
	}
}

func (m *Mock) CommitChanges(ctx context.Context) error {
	return nil
}

// SimulateHostDestroy fires the registered host-destroy listener, mimicking
// the host tearing the plugin down (spec.md §4.9 step 7).
func (m *Mock) SimulateHostDestroy() {
	m.mu.Lock()
	cb := m.hostListeners.OnHostDestroy
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (m *Mock) GetSurfaceByID(id uint32) (capability.SurfaceSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surfaces[id]
	return s, ok
}

func (m *Mock) GetSurfaces() []capability.SurfaceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]capability.SurfaceSnapshot, 0, len(m.surfaces))
	for _, s := range m.surfaces {
		out = append(out, s)
	}
	return out
}

func (m *Mock) GetLayerByID(id uint32) (capability.LayerSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[id]
	return l, ok
}

func (m *Mock) GetLayers() []capability.LayerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]capability.LayerSnapshot, 0, len(m.layers))
	for _, l := range m.layers {
		out = append(out, l)
	}
	return out
}

func (m *Mock) SurfaceEventMask(id uint32) capability.EventMask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.surfaceMasks[id]
}

func (m *Mock) LayerEventMask(id uint32) capability.EventMask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.layerMasks[id]
}

func (m *Mock) SetSurfaceVisibility(id uint32, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surfaces[id]
	if !ok {
		return capability.ErrUnavailable
	}
	s.Visible = visible
	m.surfaces[id] = s
	return nil
}

func (m *Mock) SetSurfaceOpacity(id uint32, opacity float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surfaces[id]
	if !ok {
		return capability.ErrUnavailable
	}
	s.Opacity = opacity
	m.surfaces[id] = s
	return nil
}

func (m *Mock) SetSurfaceSourceRect(id uint32, rect capability.Rect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surfaces[id]
	if !ok {
		return capability.ErrUnavailable
	}
	s.SrcRect = rect
	m.surfaces[id] = s
	return nil
}

func (m *Mock) SetSurfaceDestRect(id uint32, rect capability.Rect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surfaces[id]
	if !ok {
		return capability.ErrUnavailable
	}
	s.DestRect = rect
	m.surfaces[id] = s
	return nil
}

func (m *Mock) SetSurfaceRenderOrder(layerID, surfaceID uint32, order int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.layers[layerID]; !ok {
		return capability.ErrUnavailable
	}
	order_list := m.renderOrder[layerID]
	for i, id := range order_list {
		if id == surfaceID {
			order_list = append(order_list[:i], order_list[i+1:]...)
			break
		}
	}
	idx := int(order)
	if idx < 0 {
		idx = 0
	}
	if idx > len(order_list) {
		idx = len(order_list)
	}
	order_list = append(order_list, 0)
	copy(order_list[idx+1:], order_list[idx:])
	order_list[idx] = surfaceID
	m.renderOrder[layerID] = order_list
	return nil
}

func (m *Mock) SetLayerVisibility(id uint32, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[id]
	if !ok {
		return capability.ErrUnavailable
	}
	l.Visible = visible
	m.layers[id] = l
	return nil
}

func (m *Mock) SetLayerOpacity(id uint32, opacity float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[id]
	if !ok {
		return capability.ErrUnavailable
	}
	l.Opacity = opacity
	m.layers[id] = l
	return nil
}

func (m *Mock) SetInputFocus(id uint32, ok bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		if _, exists := m.surfaces[id]; !exists {
			return capability.ErrUnavailable
		}
	}
	return nil
}

func (m *Mock) RegisterHostListeners(hl capability.HostListeners) (capability.ListenerHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hostListeners = hl
	m.hostRegistered = true
	h := m.nextHandle
	m.nextHandle++
	return h, nil
}

func (m *Mock) UnregisterHostListeners(h capability.ListenerHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hostListeners = capability.HostListeners{}
	m.hostRegistered = false
	return nil
}

func (m *Mock) SurfaceAddListener(id uint32, onConfigured func(uint32)) (capability.ListenerHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.nextHandle
	m.nextHandle++
	m.surfaceListeners[h] = id
	m.slots[h] = listenerSlot{onConfigured: onConfigured}
	return h, nil
}

func (m *Mock) SurfaceRemoveListener(h capability.ListenerHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.surfaceListeners, h)
	delete(m.slots, h)
	return nil
}

func (m *Mock) LayerAddListener(id uint32, onConfigured func(uint32)) (capability.ListenerHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.nextHandle
	m.nextHandle++
	m.layerListeners[h] = id
	m.slots[h] = listenerSlot{onConfigured: onConfigured}
	return h, nil
}

func (m *Mock) LayerRemoveListener(h capability.ListenerHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.layerListeners, h)
	delete(m.slots, h)
	return nil
}

var _ capability.Capability = (*Mock)(nil)
