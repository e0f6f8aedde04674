package transport

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/saimizi/iviplugind/internal/framing"
)

type recordingHandler struct {
	mu            sync.Mutex
	connected     []ClientID
	messages      [][]byte
	disconnected  []ClientID
}

func (h *recordingHandler) HandleConnect(id ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = append(h.connected, id)
}

func (h *recordingHandler) HandleMessage(id ClientID, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := append([]byte(nil), payload...)
	h.messages = append(h.messages, cp)
}

func (h *recordingHandler) HandleDisconnect(id ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, id)
}

func (h *recordingHandler) messageCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

func (h *recordingHandler) disconnectCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.disconnected)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestTransportAcceptsAndDeliversFrame(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ivictl.sock")
	h := &recordingHandler{}
	tr := New(socketPath, h)

	ctx := context.Background()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop(ctx)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := framing.WriteFrame(conn, []byte(`{"method":"list_surfaces"}`)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	waitFor(t, time.Second, func() bool { return h.messageCount() == 1 })
}

func TestTransportNotifiesDisconnect(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ivictl.sock")
	h := &recordingHandler{}
	tr := New(socketPath, h)

	ctx := context.Background()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop(ctx)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()

	waitFor(t, time.Second, func() bool { return h.disconnectCount() == 1 })
}

func TestTransportRejectsFramesAboveConfiguredMaxSize(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ivictl.sock")
	h := &recordingHandler{}
	tr := New(socketPath, h)
	tr.SetMaxFrameSize(16)

	ctx := context.Background()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop(ctx)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, time.Second, func() bool { return tr.ClientCount() == 1 })

	if err := framing.WriteFrame(conn, []byte(`{"method":"list_surfaces_with_a_long_enough_payload"}`)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	waitFor(t, time.Second, func() bool { return h.disconnectCount() == 1 })
	if h.messageCount() != 0 {
		t.Errorf("expected the oversized frame to be rejected, got %d delivered messages", h.messageCount())
	}
}

func TestTransportSendWritesFramedMessage(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "ivictl.sock")
	h := &recordingHandler{}
	tr := New(socketPath, h)

	ctx := context.Background()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop(ctx)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, time.Second, func() bool { return tr.ClientCount() == 1 })

	if err := tr.Send(1, []byte(`{"method":"notification"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	r := framing.NewReader()
	outcome, payload, err := r.ReadFrame(conn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if outcome != framing.Complete {
		t.Fatalf("outcome = %v, want Complete", outcome)
	}
	if string(payload) != `{"method":"notification"}` {
		t.Errorf("payload = %q", payload)
	}
}
