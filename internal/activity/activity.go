// Package activity aggregates user-operation statistics from the activity
// API into fixed reporting windows, with a Redis-backed warm cache so a
// restart keeps serving the previous aggregate.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/vietddude/bridgewatch/internal/core/domain"
	"github.com/vietddude/bridgewatch/internal/core/ready"
	redisclient "github.com/vietddude/bridgewatch/internal/infra/redis"
)

// Config holds the aggregator's endpoints and refresh policy.
type Config struct {
	UserOpsURL      string
	AccountsURL     string
	PageSize        int
	RefetchInterval time.Duration
	CacheTTL        time.Duration
}

const recentAccountCount = 5

// Aggregator refreshes activity statistics on an interval. The warm cache
// is optional: with a nil Redis client the aggregator simply starts cold.
type Aggregator struct {
	cfg        Config
	httpClient *http.Client
	warm       *redisclient.Client
	gate       *ready.Gate
	log        *slog.Logger

	mu    sync.RWMutex
	stats domain.ActivityStats
}

// New creates an aggregator. warm may be nil.
func New(cfg Config, warm *redisclient.Client) *Aggregator {
	return &Aggregator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		warm:       warm,
		gate:       ready.NewGate(),
		log:        slog.Default().With("component", "activity"),
	}
}

// Run refreshes until the context is cancelled. A stored warm snapshot
// makes stats available immediately, before the first live refresh.
func (a *Aggregator) Run(ctx context.Context) {
	a.warmStart(ctx)

	ticker := time.NewTicker(a.cfg.RefetchInterval)
	defer ticker.Stop()

	a.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refresh(ctx)
		}
	}
}

// Ready reports whether stats are available, from warm cache or refresh.
func (a *Aggregator) Ready() bool {
	return a.gate.Ready()
}

// Stats returns the current aggregate. Callers arriving before any data is
// available block until the first refresh or warm load completes.
func (a *Aggregator) Stats(ctx context.Context) (domain.ActivityStats, error) {
	if err := a.gate.Wait(ctx); err != nil {
		return domain.ActivityStats{}, fmt.Errorf("waiting for first activity refresh: %w", err)
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats, nil
}

func (a *Aggregator) warmStart(ctx context.Context) {
	if a.warm == nil {
		return
	}
	stats, ok, err := a.warm.GetActivityStats(ctx)
	if err != nil {
		a.log.Warn("Warm cache load failed", "error", err)
		return
	}
	if !ok {
		return
	}

	a.mu.Lock()
	a.stats = stats
	a.mu.Unlock()
	a.gate.Signal()
	a.log.Info("Serving warm activity snapshot", "refreshed_at", stats.RefreshedAt)
}

func (a *Aggregator) refresh(ctx context.Context) {
	now := time.Now().UTC()

	ops, err := a.fetchUserOps(ctx, oldestWindowStart(now))
	if err != nil {
		a.log.Error("User-op fetch failed, keeping previous stats", "error", err)
		return
	}
	accounts, err := a.fetchAccounts(ctx)
	if err != nil {
		a.log.Error("Account fetch failed, keeping previous stats", "error", err)
		return
	}

	stats := aggregate(ops, accounts, now)

	a.mu.Lock()
	a.stats = stats
	a.mu.Unlock()
	a.gate.Signal()

	if a.warm != nil {
		if err := a.warm.SetActivityStats(ctx, stats, a.cfg.CacheTTL); err != nil {
			a.log.Warn("Warm cache store failed", "error", err)
		}
	}

	a.log.Info("Activity stats refreshed", "user_ops", len(ops), "accounts", len(accounts))
}

// oldestWindowStart is the earliest instant any reporting window covers;
// user ops older than this cannot affect the aggregate.
func oldestWindowStart(now time.Time) time.Time {
	cutoff := now
	for _, w := range domain.Windows() {
		if start := w.Start(now); start.Before(cutoff) {
			cutoff = start
		}
	}
	return cutoff
}

// fetchUserOps pages through the user-op feed, newest first, until a page
// falls entirely before cutoff or the feed is exhausted.
func (a *Aggregator) fetchUserOps(ctx context.Context, cutoff time.Time) ([]domain.UserOp, error) {
	var ops []domain.UserOp
	for page := 1; ; page++ {
		var batch []domain.UserOp
		if err := a.getPage(ctx, a.cfg.UserOpsURL, page, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		done := false
		for _, op := range batch {
			if op.Timestamp.Before(cutoff) {
				done = true
				continue
			}
			ops = append(ops, op)
		}
		if done || len(batch) < a.cfg.PageSize {
			break
		}
	}
	return ops, nil
}

func (a *Aggregator) fetchAccounts(ctx context.Context) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := a.getPage(ctx, a.cfg.AccountsURL, 1, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (a *Aggregator) getPage(ctx context.Context, base string, page int, out any) error {
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("parse url %q: %w", base, err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(a.cfg.PageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("activity API status %d for %s", resp.StatusCode, u.Path)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode activity page: %w", err)
	}
	return nil
}

// aggregate buckets ops into every window they fall in.
func aggregate(ops []domain.UserOp, accounts []domain.Account, now time.Time) domain.ActivityStats {
	stats := domain.ActivityStats{
		Stats: map[string]map[domain.TimeWindow]uint64{
			domain.StatUserOps:        {},
			domain.StatGasUsed:        {},
			domain.StatUniqueAccounts: {},
		},
		RefreshedAt: now,
	}

	unique := make(map[domain.TimeWindow]map[string]bool)
	for _, w := range domain.Windows() {
		stats.Stats[domain.StatUserOps][w] = 0
		stats.Stats[domain.StatGasUsed][w] = 0
		stats.Stats[domain.StatUniqueAccounts][w] = 0
		unique[w] = make(map[string]bool)
	}

	for _, op := range ops {
		for _, w := range domain.Windows() {
			if op.Timestamp.Before(w.Start(now)) {
				continue
			}
			stats.Stats[domain.StatUserOps][w]++
			stats.Stats[domain.StatGasUsed][w] += op.GasUsed
			unique[w][op.Sender] = true
		}
	}
	for _, w := range domain.Windows() {
		stats.Stats[domain.StatUniqueAccounts][w] = uint64(len(unique[w]))
	}

	sorted := make([]domain.Account, len(accounts))
	copy(sorted, accounts)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].CreatedAt, sorted[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	if len(sorted) > recentAccountCount {
		sorted = sorted[:recentAccountCount]
	}
	stats.RecentAccounts = sorted

	return stats
}
