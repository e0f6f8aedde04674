// Package lifecycle sequences plugin startup and teardown (spec.md §4.9):
// obtaining the capability, building the State Core and RPC Handler,
// registering host listeners, starting the transport and notification
// pump, and reversing all of it cleanly on host-destroy.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/saimizi/iviplugind/internal/auditlog"
	"github.com/saimizi/iviplugind/internal/capability"
	"github.com/saimizi/iviplugind/internal/diagnostics"
	"github.com/saimizi/iviplugind/internal/logger"
	"github.com/saimizi/iviplugind/internal/notifcore"
	"github.com/saimizi/iviplugind/internal/rpc"
	"github.com/saimizi/iviplugind/internal/statecore"
	"github.com/saimizi/iviplugind/internal/subscription"
	"github.com/saimizi/iviplugind/internal/transport"
)

// DefaultSocketPath is used when no socket path is supplied (spec.md §4.9
// step 1).
const DefaultSocketPath = "/tmp/weston-ivi-controller.sock"

// Plugin owns every long-lived component built during Start and torn down
// during Stop. The zero value is not usable; construct with New.
type Plugin struct {
	socketPath       string
	outboxCapacity   int
	auditLogPath     string
	auditLogCapacity int
	diagnosticsAddr  string
	maxFrameSize     uint32
	cap              capability.Capability

	core   *statecore.Core
	bus    *notifcore.Bus
	subs   *subscription.Manager
	audit  *auditlog.Log
	handle *rpc.Handler
	trans  *transport.Transport
	diag   *diagnostics.Server

	pumpCancel context.CancelFunc
	pumpWG     sync.WaitGroup

	listenerHandle capability.ListenerHandle
	stopOnce       sync.Once
}

// New returns a Plugin that will listen on socketPath (DefaultSocketPath if
// empty) over cap, bounding every client's notification outbox at
// outboxCapacity and keeping the last auditLogCapacity notifications in a
// buntdb store at auditLogPath (a non-positive capacity disables the audit
// log entirely).
func New(socketPath string, outboxCapacity int, auditLogPath string, auditLogCapacity int, cap capability.Capability) *Plugin {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Plugin{
		socketPath:       socketPath,
		outboxCapacity:   outboxCapacity,
		auditLogPath:     auditLogPath,
		auditLogCapacity: auditLogCapacity,
		cap:              cap,
	}
}

// EnableDiagnostics turns on the read-only HTTP diagnostics surface
// (/healthz, /metrics, /debug/state) on addr. Must be called before Start.
func (p *Plugin) EnableDiagnostics(addr string) {
	p.diagnosticsAddr = addr
}

// SetMaxFrameSize overrides the RPC transport's per-frame size ceiling
// (framing.MaxMessageSize by default). Must be called before Start.
func (p *Plugin) SetMaxFrameSize(n uint32) {
	p.maxFrameSize = n
}

// Start runs the plugin's host-driven startup sequence (spec.md §4.9,
// steps 2-7; step 1's argument parsing is the caller's responsibility).
// Every host-facing callback registered here recovers from panics so one
// never unwinds into the host's runtime (spec.md §7).
func (p *Plugin) Start(ctx context.Context) error {
	if p.cap == nil {
		return fmt.Errorf("lifecycle: no layout capability available")
	}

	p.bus = notifcore.New()
	p.core = statecore.New(p.cap, p.bus)
	p.core.SyncWithLayout(ctx)

	audit, err := auditlog.Open(p.auditLogPath, p.auditLogCapacity)
	if err != nil {
		return fmt.Errorf("lifecycle: opening audit log: %w", err)
	}
	p.audit = audit

	p.subs = subscription.New(p.outboxCapacity)
	rpc.BridgeNotifications(p.bus, p.subs, p.audit)
	p.handle = rpc.New(p.core, p.cap, p.subs)
	p.handle.SetAuditLog(p.audit)

	p.trans = transport.New(p.socketPath, p.handle)
	p.trans.SetMaxFrameSize(p.maxFrameSize)
	p.handle.SetSender(p.trans)

	if err := p.trans.Start(ctx); err != nil {
		return fmt.Errorf("lifecycle: starting transport: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	p.pumpCancel = cancel
	p.pumpWG.Add(1)
	go func() {
		defer p.pumpWG.Done()
		p.handle.RunPump(pumpCtx, p.subs, p.trans.ClientIDs)
	}()

	p.registerHostListeners(ctx)
	p.registerExistingEntityListeners()

	if p.diagnosticsAddr != "" {
		p.diag = diagnostics.New(p.diagnosticsAddr, p.core)
		if err := p.diag.Start(); err != nil {
			return fmt.Errorf("lifecycle: starting diagnostics server: %w", err)
		}
	}

	logger.InfoCtx(ctx, "lifecycle: plugin started", logger.ClientAddr(p.socketPath))
	return nil
}

// registerHostListeners installs the global lifecycle callbacks (spec.md
// §4.9 step 5) plus the host-destroy listener (step 7).
func (p *Plugin) registerHostListeners(ctx context.Context) {
	h, err := p.cap.RegisterHostListeners(capability.HostListeners{
		OnSurfaceCreated:    p.guarded(func(id uint32) { p.core.HandleSurfaceCreated(ctx, id) }),
		OnSurfaceRemoved:    p.guarded(func(id uint32) { p.core.HandleSurfaceDestroyed(ctx, id) }),
		OnSurfaceConfigured: p.guarded(func(id uint32) { p.core.HandleSurfaceConfigured(ctx, id) }),
		OnLayerCreated:      p.guarded(func(id uint32) { p.core.HandleLayerCreated(ctx, id) }),
		OnLayerRemoved:      p.guarded(func(id uint32) { p.core.HandleLayerDestroyed(ctx, id) }),
		OnLayerConfigured:   p.guarded(func(id uint32) { p.core.HandleLayerConfigured(ctx, id) }),
		OnHostDestroy:       p.guardedDestroy(ctx),
	})
	if err != nil {
		logger.ErrorCtx(ctx, "lifecycle: failed to register host listeners", logger.Err(err))
		return
	}
	p.listenerHandle = h
	globalRegistry.register(uintptr(h), p)
}

// registerExistingEntityListeners installs a per-entity configure listener
// for every surface and layer already known at startup (spec.md §4.9
// step 6).
func (p *Plugin) registerExistingEntityListeners() {
	for _, s := range p.core.ListSurfaces() {
		id := s.ID
		h, err := p.cap.SurfaceAddListener(id, p.guarded(func(sid uint32) {
			p.core.HandleSurfaceConfigured(context.Background(), sid)
		}))
		if err != nil {
			continue
		}
		p.core.TrackSurfaceListener(id, h)
	}
	for _, l := range p.core.ListLayers() {
		id := l.ID
		h, err := p.cap.LayerAddListener(id, p.guarded(func(lid uint32) {
			p.core.HandleLayerConfigured(context.Background(), lid)
		}))
		if err != nil {
			continue
		}
		p.core.TrackLayerListener(id, h)
	}
}

// guarded wraps a host-invoked callback so a panic is caught, logged, and
// swallowed rather than unwinding into the host's runtime (spec.md §4.9,
// "Panics at any entry point from the host must be caught and logged").
func (p *Plugin) guarded(fn func(uint32)) func(uint32) {
	return func(id uint32) {
		defer recoverAndLog("callback", id)
		fn(id)
	}
}

func (p *Plugin) guardedDestroy(ctx context.Context) func() {
	return func() {
		defer recoverAndLog("host-destroy", 0)
		p.Stop(ctx)
	}
}

func recoverAndLog(site string, id uint32) {
	if r := recover(); r != nil {
		logger.Error("lifecycle: panic recovered at host entry point",
			logger.Component(site), logger.SurfaceID(id), "panic", r)
	}
}

// Stop runs host-destroy teardown (spec.md §4.9): stop the transport, drop
// the State Core (unregistering every per-entity listener), and unlink the
// socket. Safe to call more than once; only the first call does anything.
func (p *Plugin) Stop(ctx context.Context) {
	p.stopOnce.Do(func() {
		if p.pumpCancel != nil {
			p.pumpCancel()
			p.pumpWG.Wait()
		}
		if p.diag != nil {
			p.diag.Stop(ctx)
		}
		if p.trans != nil {
			p.trans.Stop(ctx)
		}
		if p.core != nil {
			p.core.Close()
		}
		if p.audit != nil {
			if err := p.audit.Close(); err != nil {
				logger.ErrorCtx(ctx, "lifecycle: closing audit log", logger.Err(err))
			}
		}
		if p.listenerHandle != 0 {
			_ = p.cap.UnregisterHostListeners(p.listenerHandle)
			globalRegistry.remove(uintptr(p.listenerHandle))
		}
		logger.InfoCtx(ctx, "lifecycle: plugin stopped")
	})
}
