package lifecycle

import "sync"

// eventContextRegistry recovers a Plugin from the numeric address of the
// listener handle the host gave back at registration time (spec.md §9,
// "C listener callback with no user-data"): a real cgo-backed capability
// has no user-data slot on its callback ABI, so the listener struct's own
// address is the only thing the host hands back on each invocation.
//
// capability.Capability's interface methods already carry the entity id
// directly, so this module's Plugin never needs the lookup on the hot
// path; it exists to give a real capability implementation somewhere to
// stash the mapping it does need, and to keep that mapping's lifetime
// scoped to the Plugin that owns it.
type eventContextRegistry struct {
	mu      sync.Mutex
	entries map[uintptr]*Plugin
}

var globalRegistry = &eventContextRegistry{entries: make(map[uintptr]*Plugin)}

func (r *eventContextRegistry) register(addr uintptr, p *Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[addr] = p
}

func (r *eventContextRegistry) lookup(addr uintptr) (*Plugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.entries[addr]
	return p, ok
}

func (r *eventContextRegistry) remove(addr uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, addr)
}
