// Package subscription tracks, per connected client, which notification
// topics it wants and a bounded FIFO of serialized notifications awaiting
// delivery (spec.md §4.5).
package subscription

import (
	"sync"

	"github.com/saimizi/iviplugind/internal/logger"
	"github.com/saimizi/iviplugind/internal/metrics"
	"github.com/saimizi/iviplugind/internal/notifcore"
)

// DefaultCapacity is the outbox depth used when a Manager is constructed
// with a non-positive capacity.
const DefaultCapacity = 100

// ClientID is the transport-assigned, monotonically increasing client
// identifier.
type ClientID uint64

// clientState is one client's subscribed topic set and pending outbox.
type clientState struct {
	topics map[notifcore.EventType]struct{}
	outbox [][]byte
}

// Manager is a goroutine-safe registry of per-client subscriptions and
// outboxes, guarded by one mutex (spec.md §5: "Subscription Manager has a
// single internal mutex"). The zero value is not usable; construct with
// New.
type Manager struct {
	mu       sync.Mutex
	capacity int
	clients  map[ClientID]*clientState
}

// New returns a Manager with the given per-client outbox capacity. A
// non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{capacity: capacity, clients: make(map[ClientID]*clientState)}
}

func (m *Manager) stateFor(id ClientID) *clientState {
	cs, ok := m.clients[id]
	if !ok {
		cs = &clientState{topics: make(map[notifcore.EventType]struct{})}
		m.clients[id] = cs
	}
	return cs
}

// Subscribe adds topics to a client's subscribed set, creating the client
// if this is its first subscription.
func (m *Manager) Subscribe(id ClientID, topics []notifcore.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := m.stateFor(id)
	for _, t := range topics {
		cs.topics[t] = struct{}{}
	}
}

// Unsubscribe removes topics from a client's subscribed set. Unsubscribing
// from a client with no prior state is a no-op.
func (m *Manager) Unsubscribe(id ClientID, topics []notifcore.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.clients[id]
	if !ok {
		return
	}
	for _, t := range topics {
		delete(cs.topics, t)
	}
}

// GetSubscriptions returns the topics a client currently subscribes to.
func (m *Manager) GetSubscriptions(id ClientID) []notifcore.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.clients[id]
	if !ok {
		return nil
	}
	out := make([]notifcore.EventType, 0, len(cs.topics))
	for t := range cs.topics {
		out = append(out, t)
	}
	return out
}

// QueueNotification pushes a serialized notification onto the outbox of
// every client subscribed to topic. If a client's outbox is already at
// capacity, its oldest entry is dropped first (spec.md §4.5, §8
// "Subscription FIFO-drop").
func (m *Manager) QueueNotification(topic notifcore.EventType, serialized []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, cs := range m.clients {
		if _, subscribed := cs.topics[topic]; !subscribed {
			continue
		}
		dropped := false
		if len(cs.outbox) >= m.capacity {
			cs.outbox = cs.outbox[1:]
			dropped = true
		}
		cs.outbox = append(cs.outbox, serialized)

		if dropped {
			metrics.NotificationsDroppedTotal.Inc()
			logger.Warn("subscription: outbox full, dropped oldest entry",
				logger.ClientID(uint64(id)), logger.OutboxDepth(len(cs.outbox)))
		}
	}
}

// Drain removes and returns every queued entry for a client, oldest
// first, leaving its outbox empty.
func (m *Manager) Drain(id ClientID) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.clients[id]
	if !ok || len(cs.outbox) == 0 {
		return nil
	}
	out := cs.outbox
	cs.outbox = nil
	return out
}

// RemoveClient drops a client's subscription set and outbox entirely,
// called on disconnect.
func (m *Manager) RemoveClient(id ClientID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, id)
}

// OutboxDepth reports how many entries are currently queued for a client,
// used by diagnostics and metrics.
func (m *Manager) OutboxDepth(id ClientID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.clients[id]
	if !ok {
		return 0
	}
	return len(cs.outbox)
}

// ClientCount reports how many clients currently have tracked state.
func (m *Manager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}
