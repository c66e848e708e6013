// Package server exposes the read API: cached bridge, network, wallet and
// activity snapshots plus health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/bridgewatch/internal/core/domain"
)

// BridgeSource serves the cached bridge status snapshot.
type BridgeSource interface {
	Ready() bool
	Snapshot(ctx context.Context) (domain.BridgeStatus, error)
}

// NetworkSource serves the network service status.
type NetworkSource interface {
	Ready() bool
	Status(ctx context.Context) (domain.NetworkStatus, error)
}

// WalletSource serves the paymaster wallet balances.
type WalletSource interface {
	Ready() bool
	Balances(ctx context.Context) (domain.PaymasterWallets, error)
}

// ActivitySource serves the aggregated activity statistics.
type ActivitySource interface {
	Ready() bool
	Stats(ctx context.Context) (domain.ActivityStats, error)
}

// Sources groups the snapshot providers behind the API. Nil fields
// disable their endpoints with 404.
type Sources struct {
	Bridge   BridgeSource
	Network  NetworkSource
	Wallets  WalletSource
	Activity ActivitySource
}

// firstSnapshotWait bounds how long a request blocks on a subsystem that
// has not completed its first refresh.
const firstSnapshotWait = 10 * time.Second

// Server is the HTTP read API.
type Server struct {
	sources Sources
	server  *http.Server
	log     *slog.Logger
}

// New creates the server on the given port.
func New(port int, sources Sources) *Server {
	mux := http.NewServeMux()
	s := &Server{
		sources: sources,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		log: slog.Default().With("component", "server"),
	}

	if sources.Bridge != nil {
		mux.HandleFunc("GET /api/bridge_status", serveSnapshot(sources.Bridge.Snapshot))
	}
	if sources.Network != nil {
		mux.HandleFunc("GET /api/network_status", serveSnapshot(sources.Network.Status))
	}
	if sources.Wallets != nil {
		mux.HandleFunc("GET /api/wallet_balances", serveSnapshot(sources.Wallets.Balances))
	}
	if sources.Activity != nil {
		mux.HandleFunc("GET /api/activity_stats", serveSnapshot(sources.Activity.Stats))
	}
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("Read API listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// serveSnapshot adapts a blocking snapshot accessor into a handler.
// Requests arriving before the subsystem's first refresh wait up to
// firstSnapshotWait, then answer 503.
func serveSnapshot[T any](fetch func(context.Context) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), firstSnapshotWait)
		defer cancel()

		snapshot, err := fetch(ctx)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "snapshot not ready",
			})
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}

type healthResponse struct {
	Status     string          `json:"status"`
	Subsystems map[string]bool `json:"subsystems"`
}

// handleHealth reports per-subsystem readiness. Overall status degrades
// when any enabled subsystem has not completed its first refresh.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Subsystems: map[string]bool{}}

	check := func(name string, ready func() bool) {
		ok := ready()
		resp.Subsystems[name] = ok
		if !ok {
			resp.Status = "degraded"
		}
	}
	if s.sources.Bridge != nil {
		check("bridge", s.sources.Bridge.Ready)
	}
	if s.sources.Network != nil {
		check("network", s.sources.Network.Ready)
	}
	if s.sources.Wallets != nil {
		check("wallets", s.sources.Wallets.Ready)
	}
	if s.sources.Activity != nil {
		check("activity", s.sources.Activity.Ready)
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
