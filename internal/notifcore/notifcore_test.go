package notifcore

import (
	"context"
	"sync"
	"testing"
)

func TestEmitInvokesRegisteredCallback(t *testing.T) {
	b := New()
	var got Event
	var called bool
	b.Register(SurfaceCreated, func(ev Event) {
		called = true
		got = ev
	})

	b.Emit(context.Background(), Event{Type: SurfaceCreated, SurfaceID: 7})

	if !called {
		t.Fatal("callback was not invoked")
	}
	if got.SurfaceID != 7 {
		t.Errorf("SurfaceID = %d, want 7", got.SurfaceID)
	}
}

func TestEmitIgnoresUnrelatedTypes(t *testing.T) {
	b := New()
	called := false
	b.Register(SurfaceCreated, func(Event) { called = true })

	b.Emit(context.Background(), Event{Type: SurfaceDestroyed, SurfaceID: 1})

	if called {
		t.Fatal("callback for SurfaceCreated fired on a SurfaceDestroyed emit")
	}
}

func TestEmitInvokesMultipleCallbacksInOrder(t *testing.T) {
	b := New()
	var order []int
	b.Register(OpacityChanged, func(Event) { order = append(order, 1) })
	b.Register(OpacityChanged, func(Event) { order = append(order, 2) })

	b.Emit(context.Background(), Event{Type: OpacityChanged})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("callbacks ran out of order: %v", order)
	}
}

func TestEmitRecoversPanickingCallback(t *testing.T) {
	b := New()
	secondRan := false
	b.Register(VisibilityChanged, func(Event) { panic("boom") })
	b.Register(VisibilityChanged, func(Event) { secondRan = true })

	b.Emit(context.Background(), Event{Type: VisibilityChanged})

	if !secondRan {
		t.Fatal("a panicking callback prevented subsequent callbacks from running")
	}
}

func TestEmitDoesNotHoldLockDuringCallback(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	wg.Add(1)
	b.Register(FocusChanged, func(Event) {
		// Registering from within a callback must not deadlock: Emit must
		// have released its lock before invoking callbacks.
		b.Register(FocusChanged, func(Event) {})
		wg.Done()
	})

	b.Emit(context.Background(), Event{Type: FocusChanged})
	wg.Wait()
}

func TestEventTypeString(t *testing.T) {
	cases := map[EventType]string{
		SurfaceCreated:         "SurfaceCreated",
		LayerOpacityChanged:    "LayerOpacityChanged",
		ZOrderChanged:          "ZOrderChanged",
		EventType(999):         "Unknown",
	}
	for et, want := range cases {
		if got := et.String(); got != want {
			t.Errorf("EventType(%d).String() = %q, want %q", et, got, want)
		}
	}
}
