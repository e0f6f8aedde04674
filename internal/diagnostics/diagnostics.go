// Package diagnostics exposes a read-only operator HTTP surface:
// /healthz, /metrics, and /debug/state. None of these handlers ever mutate
// the State Core, Notification Core, Subscription Manager, or Layout
// Capability (SPEC_FULL.md, "Diagnostics read-only").
package diagnostics

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saimizi/iviplugind/internal/logger"
	"github.com/saimizi/iviplugind/internal/statecore"
)

// Server serves the diagnostics HTTP surface over a dedicated listener,
// separate from the RPC socket.
type Server struct {
	addr string
	core *statecore.Core
	http *http.Server
}

// New returns a diagnostics Server bound to addr, reading from core.
func New(addr string, core *statecore.Core) *Server {
	s := &Server{addr: addr, core: core}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /debug/state", s.handleDebugState)

	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins serving in the background. Start returns once the listener
// is known to be ready to accept, or immediately on a bind failure.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("diagnostics: server exited", logger.Err(err))
		}
	}()
	logger.Info("diagnostics: listening", logger.ClientAddr(s.addr))
	return nil
}

// Stop gracefully shuts the diagnostics server down.
func (s *Server) Stop(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logger.Warn("diagnostics: shutdown error", logger.Err(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type debugStateResponse struct {
	Surfaces []statecore.Surface `json:"surfaces"`
	Layers   []statecore.Layer   `json:"layers"`
}

// handleDebugState dumps a snapshot of the in-memory mirror. It reads the
// same accessors the RPC layer uses for list_surfaces/list_layers and never
// reaches into the capability.
func (s *Server) handleDebugState(w http.ResponseWriter, r *http.Request) {
	resp := debugStateResponse{
		Surfaces: s.core.ListSurfaces(),
		Layers:   s.core.ListLayers(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("diagnostics: encoding debug state", logger.Err(err))
	}
}
