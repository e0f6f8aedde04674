package subscription

import (
	"reflect"
	"testing"

	"github.com/saimizi/iviplugind/internal/notifcore"
)

func TestQueueNotificationOnlyReachesSubscribers(t *testing.T) {
	m := New(DefaultCapacity)
	m.Subscribe(1, []notifcore.EventType{notifcore.SurfaceCreated})
	m.Subscribe(2, []notifcore.EventType{notifcore.SourceGeometryChanged})

	m.QueueNotification(notifcore.SurfaceCreated, []byte("n1"))

	a := m.Drain(1)
	b := m.Drain(2)
	if len(a) != 1 {
		t.Fatalf("client A: got %d entries, want 1", len(a))
	}
	if len(b) != 0 {
		t.Fatalf("client B: got %d entries, want 0", len(b))
	}
}

func TestFIFODropOnOverflow(t *testing.T) {
	m := New(2)
	m.Subscribe(1, []notifcore.EventType{notifcore.OpacityChanged})

	m.QueueNotification(notifcore.OpacityChanged, []byte("N1"))
	m.QueueNotification(notifcore.OpacityChanged, []byte("N2"))
	m.QueueNotification(notifcore.OpacityChanged, []byte("N3"))

	got := m.Drain(1)
	want := [][]byte{[]byte("N2"), []byte("N3")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Drain = %v, want %v", stringify(got), stringify(want))
	}
}

func stringify(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}

func TestDrainEmptiesOutbox(t *testing.T) {
	m := New(DefaultCapacity)
	m.Subscribe(1, []notifcore.EventType{notifcore.VisibilityChanged})
	m.QueueNotification(notifcore.VisibilityChanged, []byte("n"))

	first := m.Drain(1)
	second := m.Drain(1)

	if len(first) != 1 {
		t.Fatalf("first drain: got %d, want 1", len(first))
	}
	if len(second) != 0 {
		t.Fatalf("second drain: got %d, want 0 (outbox should be empty)", len(second))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := New(DefaultCapacity)
	m.Subscribe(1, []notifcore.EventType{notifcore.ZOrderChanged})
	m.Unsubscribe(1, []notifcore.EventType{notifcore.ZOrderChanged})

	m.QueueNotification(notifcore.ZOrderChanged, []byte("n"))

	if got := m.Drain(1); len(got) != 0 {
		t.Errorf("expected no entries after unsubscribe, got %d", len(got))
	}
}

func TestRemoveClientDropsState(t *testing.T) {
	m := New(DefaultCapacity)
	m.Subscribe(1, []notifcore.EventType{notifcore.SurfaceCreated})
	m.QueueNotification(notifcore.SurfaceCreated, []byte("n"))

	m.RemoveClient(1)

	if got := m.GetSubscriptions(1); got != nil {
		t.Errorf("expected nil subscriptions after RemoveClient, got %v", got)
	}
	if got := m.OutboxDepth(1); got != 0 {
		t.Errorf("expected zero outbox depth after RemoveClient, got %d", got)
	}
}

func TestDefaultCapacityAppliedForNonPositive(t *testing.T) {
	m := New(0)
	if m.capacity != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", m.capacity, DefaultCapacity)
	}
}
