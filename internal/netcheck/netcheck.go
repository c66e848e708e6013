// Package netcheck probes the network's core services (sequencer RPC,
// full-node RPC, bundler) and maintains the status snapshot served over
// the read API.
package netcheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/bridgewatch/internal/core/domain"
	"github.com/vietddude/bridgewatch/internal/core/ready"
	"github.com/vietddude/bridgewatch/internal/infra/rpc"
)

// Config holds the checker's endpoints and retry policy.
type Config struct {
	SequencerURL    string
	RPCURL          string
	BundlerURL      string
	RefetchInterval time.Duration
	MaxRetries      uint64
	TotalRetryTime  time.Duration
}

// Checker probes each service once per interval. A service is retried
// within a probe round until MaxRetries or TotalRetryTime is exhausted;
// only then is it reported offline.
type Checker struct {
	cfg        Config
	sequencer  *rpc.Client
	fullNode   *rpc.Client
	httpClient *http.Client
	gate       *ready.Gate
	log        *slog.Logger

	mu     sync.RWMutex
	status domain.NetworkStatus
}

// New creates a checker with every service initially offline.
func New(cfg Config) *Checker {
	timeout := 10 * time.Second
	return &Checker{
		cfg:        cfg,
		sequencer:  rpc.NewClient("sequencer", cfg.SequencerURL, timeout),
		fullNode:   rpc.NewClient("rpc_endpoint", cfg.RPCURL, timeout),
		httpClient: &http.Client{Timeout: timeout},
		gate:       ready.NewGate(),
		log:        slog.Default().With("component", "netcheck"),
		status:     domain.DefaultNetworkStatus(),
	}
}

// Run probes until the context is cancelled.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.RefetchInterval)
	defer ticker.Stop()

	c.probeAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probeAll(ctx)
		}
	}
}

// Ready reports whether at least one probe round has completed.
func (c *Checker) Ready() bool {
	return c.gate.Ready()
}

// Status returns the current network status. Callers arriving before the
// first probe round block until it completes or ctx is cancelled.
func (c *Checker) Status(ctx context.Context) (domain.NetworkStatus, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return domain.NetworkStatus{}, fmt.Errorf("waiting for first probe round: %w", err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status, nil
}

func (c *Checker) probeAll(ctx context.Context) {
	status := domain.NetworkStatus{
		Sequencer:       c.withRetry(ctx, "sequencer", func(ctx context.Context) error { return c.probeSync(ctx, c.sequencer) }),
		RPCEndpoint:     c.withRetry(ctx, "rpc_endpoint", func(ctx context.Context) error { return c.probeSync(ctx, c.fullNode) }),
		BundlerEndpoint: c.withRetry(ctx, "bundler", c.probeBundler),
	}

	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	c.gate.Signal()

	c.log.Debug("Network probe round complete",
		"sequencer", status.Sequencer,
		"rpc_endpoint", status.RPCEndpoint,
		"bundler", status.BundlerEndpoint)
}

// withRetry runs probe until success, MaxRetries attempts, or
// TotalRetryTime elapses, whichever comes first.
func (c *Checker) withRetry(ctx context.Context, name string, probe func(context.Context) error) domain.ServiceStatus {
	deadline := time.Now().Add(c.cfg.TotalRetryTime)
	delay := c.cfg.TotalRetryTime / time.Duration(c.cfg.MaxRetries+1)

	var lastErr error
	for attempt := uint64(0); attempt <= c.cfg.MaxRetries; attempt++ {
		if err := probe(ctx); err == nil {
			return domain.ServiceOnline
		} else {
			lastErr = err
		}

		if time.Now().Add(delay).After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return domain.ServiceOffline
		case <-time.After(delay):
		}
	}

	c.log.Warn("Service probe exhausted", "service", name, "error", lastErr)
	return domain.ServiceOffline
}

type syncStatus struct {
	TipHeight *uint64 `json:"tip_height"`
}

// probeSync calls strata_syncStatus; the node counts as online only when
// it reports a tip height.
func (c *Checker) probeSync(ctx context.Context, client *rpc.Client) error {
	status, err := rpc.Call[syncStatus](ctx, client, "strata_syncStatus")
	if err != nil {
		return err
	}
	if status.TipHeight == nil {
		return fmt.Errorf("sync status missing tip_height")
	}
	return nil
}

// probeBundler checks the bundler health URL for an "ok" body.
func (c *Checker) probeBundler(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BundlerURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bundler health status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ToLower(string(body)), "ok") {
		return fmt.Errorf("bundler health body %q", body)
	}
	return nil
}
