// Package transport owns the UNIX domain socket listener, per-client
// connections, and the accept/poll loops that drive them (spec.md §4.7).
// It knows nothing about JSON-RPC; it hands complete frames to a Handler
// and lets the handler push frames back out to a specific client.
package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/saimizi/iviplugind/internal/bufpool"
	"github.com/saimizi/iviplugind/internal/framing"
	"github.com/saimizi/iviplugind/internal/logger"
	"github.com/saimizi/iviplugind/internal/metrics"
)

// ClientID is the transport-assigned, monotonically increasing identifier
// handed to a connection when it is accepted. IDs start at 1.
type ClientID uint64

// pollInterval is how often the event loop iterates: accept pending
// connections, attempt a read on every client, and prune the disconnected
// (spec.md §4.7, "~10ms event-loop iteration").
const pollInterval = 10 * time.Millisecond

// readDeadline bounds each per-client read attempt so one client's
// WaitingForPayload state never stalls the loop.
const readDeadline = 2 * time.Millisecond

// Handler receives events from the Transport. Implementations must not
// block; HandleMessage is called from the transport's own poll goroutine.
type Handler interface {
	HandleConnect(id ClientID)
	HandleMessage(id ClientID, payload []byte)
	HandleDisconnect(id ClientID)
}

type clientConn struct {
	conn   *net.UnixConn
	reader *framing.Reader
}

// Transport listens on a single UNIX domain socket and multiplexes every
// connected client through one poll loop (spec.md §4.7).
type Transport struct {
	socketPath   string
	handler      Handler
	maxFrameSize uint32

	listener *net.UnixListener

	mu      sync.Mutex
	clients map[ClientID]*clientConn
	nextID  ClientID

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// New returns a Transport bound to socketPath once Start is called.
func New(socketPath string, handler Handler) *Transport {
	return &Transport{
		socketPath: socketPath,
		handler:    handler,
		clients:    make(map[ClientID]*clientConn),
		nextID:     1,
		shutdown:   make(chan struct{}),
	}
}

// SetMaxFrameSize overrides the per-frame size ceiling (framing.MaxMessageSize
// by default). Must be called before Start.
func (t *Transport) SetMaxFrameSize(n uint32) {
	t.maxFrameSize = n
}

// Start unlinks any stale socket at socketPath, binds a fresh listener, and
// launches the accept and poll loops as background goroutines.
func (t *Transport) Start(ctx context.Context) error {
	if err := os.Remove(t.socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	addr, err := net.ResolveUnixAddr("unix", t.socketPath)
	if err != nil {
		return err
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return err
	}
	t.listener = ln

	t.wg.Add(2)
	go t.acceptLoop(ctx)
	go t.pollLoop(ctx)

	logger.InfoCtx(ctx, "transport: listening", logger.ClientAddr(t.socketPath))
	return nil
}

// Stop signals both loops to exit, waits for them, closes the listener and
// every client connection, and unlinks the socket path (spec.md §4.9,
// host-destroy teardown).
func (t *Transport) Stop(ctx context.Context) {
	t.shutdownOnce.Do(func() { close(t.shutdown) })
	if t.listener != nil {
		t.listener.Close()
	}
	t.wg.Wait()

	t.mu.Lock()
	for id, c := range t.clients {
		c.conn.Close()
		delete(t.clients, id)
	}
	t.mu.Unlock()

	if err := os.Remove(t.socketPath); err != nil && !os.IsNotExist(err) {
		logger.WarnCtx(ctx, "transport: failed to unlink socket", logger.Err(err))
	}
	logger.InfoCtx(ctx, "transport: stopped")
}

func (t *Transport) acceptLoop(ctx context.Context) {
	defer t.wg.Done()
	for {
		conn, err := t.listener.AcceptUnix()
		if err != nil {
			select {
			case <-t.shutdown:
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logger.WarnCtx(ctx, "transport: accept failed", logger.Err(err))
				continue
			}
		}

		t.mu.Lock()
		id := t.nextID
		t.nextID++
		t.clients[id] = &clientConn{conn: conn, reader: framing.NewReaderSize(t.maxFrameSize)}
		t.mu.Unlock()

		metrics.ConnectedClients.Inc()
		logger.InfoCtx(ctx, "transport: client connected", logger.ClientID(uint64(id)))
		t.handler.HandleConnect(id)
	}
}

func (t *Transport) pollLoop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.shutdown:
			return
		case <-ticker.C:
			t.pollOnce(ctx)
		}
	}
}

func (t *Transport) pollOnce(ctx context.Context) {
	t.mu.Lock()
	snapshot := make(map[ClientID]*clientConn, len(t.clients))
	for id, c := range t.clients {
		snapshot[id] = c
	}
	t.mu.Unlock()

	var disconnected []ClientID
	for id, c := range snapshot {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		outcome, payload, err := c.reader.ReadFrame(c.conn)
		if err != nil {
			metrics.FramingErrorsTotal.WithLabelValues(framingErrorReason(err)).Inc()
			logger.WarnCtx(ctx, "transport: framing error, dropping client",
				logger.ClientID(uint64(id)), logger.Err(err))
			disconnected = append(disconnected, id)
			continue
		}
		switch outcome {
		case framing.Complete:
			t.handler.HandleMessage(id, payload)
			bufpool.Put(payload)
		case framing.Eof:
			disconnected = append(disconnected, id)
		case framing.NeedMore:
			// nothing to do this tick
		}
	}

	if len(disconnected) == 0 {
		return
	}

	t.mu.Lock()
	for _, id := range disconnected {
		if c, ok := t.clients[id]; ok {
			c.conn.Close()
			delete(t.clients, id)
		}
	}
	t.mu.Unlock()

	for _, id := range disconnected {
		metrics.ConnectedClients.Dec()
		logger.InfoCtx(ctx, "transport: client disconnected", logger.ClientID(uint64(id)))
		t.handler.HandleDisconnect(id)
	}
}

func framingErrorReason(err error) string {
	switch {
	case errors.Is(err, framing.ErrZeroLength):
		return "zero_length"
	case errors.Is(err, framing.ErrTooLarge):
		return "too_large"
	default:
		return "io_error"
	}
}

// Send writes payload as one framed message to the given client. It
// returns an error if the client is not currently connected.
func (t *Transport) Send(id ClientID, payload []byte) error {
	t.mu.Lock()
	c, ok := t.clients[id]
	t.mu.Unlock()
	if !ok {
		return net.ErrClosed
	}
	return framing.WriteFrameSize(c.conn, payload, t.maxFrameSize)
}

// ClientCount reports how many clients are currently connected.
func (t *Transport) ClientCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// ClientIDs returns the currently connected client ids, in no particular
// order. Used by the notification pump to know who to drain.
func (t *Transport) ClientIDs() []ClientID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ClientID, 0, len(t.clients))
	for id := range t.clients {
		out = append(out, id)
	}
	return out
}
