// Package monitor runs the bridge status reconciliation loop: it polls
// operator liveness, refreshes deposit/withdrawal/reimbursement entries via
// the failover RPC manager, checks finality against the block explorer, and
// maintains the status cache served over the read API.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/bridgewatch/internal/bridge/cache"
	"github.com/vietddude/bridgewatch/internal/core/domain"
	"github.com/vietddude/bridgewatch/internal/core/ready"
	"github.com/vietddude/bridgewatch/internal/infra/esplora"
	"github.com/vietddude/bridgewatch/internal/infra/rpc"
	"github.com/vietddude/bridgewatch/internal/metrics"
)

// Operator RPC method names.
const (
	methodUptime          = "stratabridge_uptime"
	methodDepositRequests = "stratabridge_depositRequests"
	methodDepositInfo     = "stratabridge_depositInfo"
	methodWithdrawals     = "stratabridge_withdrawals"
	methodWithdrawalInfo  = "stratabridge_withdrawalInfo"
	methodClaims          = "stratabridge_claims"
	methodClaimInfo       = "stratabridge_claimInfo"
)

// Config holds the monitor's tuning knobs.
type Config struct {
	MaxTxConfirmations uint64
	RefetchInterval    time.Duration
}

// Monitor owns the reconciliation loop and the status cache. The loop is
// the cache's only writer; HTTP readers copy snapshots out through
// Snapshot, blocking only until the first cycle completes.
type Monitor struct {
	cfg     Config
	manager *rpc.Manager
	oracle  *esplora.Client
	cache   *cache.Cache
	gate    *ready.Gate
	log     *slog.Logger
}

// New creates a monitor with an empty cache and an unsignaled gate.
func New(cfg Config, manager *rpc.Manager, oracle *esplora.Client) *Monitor {
	return &Monitor{
		cfg:     cfg,
		manager: manager,
		oracle:  oracle,
		cache:   cache.New(),
		gate:    ready.NewGate(),
		log:     slog.Default(),
	}
}

// Run executes reconciliation cycles until the context is cancelled. Cycles
// never overlap: the ticker only fires into this goroutine, and a cycle
// that overruns the interval simply absorbs the missed ticks.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.RefetchInterval)
	defer ticker.Stop()

	m.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runCycle(ctx)
		}
	}
}

// Ready reports whether at least one cycle has completed.
func (m *Monitor) Ready() bool {
	return m.gate.Ready()
}

// Snapshot returns the current bridge status. Callers arriving before the
// first completed cycle block until it finishes or ctx is cancelled; later
// callers never block.
func (m *Monitor) Snapshot(ctx context.Context) (domain.BridgeStatus, error) {
	if err := m.gate.Wait(ctx); err != nil {
		return domain.BridgeStatus{}, fmt.Errorf("waiting for first reconciliation cycle: %w", err)
	}
	return m.cache.Snapshot(), nil
}

func (m *Monitor) runCycle(ctx context.Context) {
	start := time.Now()
	log := m.log.With("cycle", uuid.NewString()[:8])

	// Phase 1: operator liveness. Probe failures mark single operators
	// offline without affecting the rest of the cycle.
	m.refreshOperators(ctx, log)

	// Phase 2: chain tip. Entity reconciliation needs one consistent
	// reference height; without it the cycle is abandoned until next tick.
	tip, err := m.oracle.TipHeight(ctx)
	if err != nil {
		log.Error("Chain tip fetch failed, skipping cycle", "error", err)
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return
	}
	metrics.ChainTipHeight.Set(float64(tip))

	// Phase 3: per-entity fetch and batch apply.
	m.reconcileDeposits(ctx, log, tip)
	m.reconcileWithdrawals(ctx, log, tip)
	m.reconcileReimbursements(ctx, log, tip)

	// Phase 4: purge. Kept separate from phase 3 so entries that turned
	// terminal this cycle survive at least one more cycle before removal.
	m.purgeDeposits(ctx, log, tip)
	m.purgeWithdrawals(ctx, log, tip)
	m.purgeReimbursements(ctx, log, tip)

	// Phase 5: readiness. Only the first completed cycle matters.
	m.gate.Signal()

	deposits, withdrawals, reimbursements := m.cache.Counts()
	metrics.CacheEntries.WithLabelValues("deposits").Set(float64(deposits))
	metrics.CacheEntries.WithLabelValues("withdrawals").Set(float64(withdrawals))
	metrics.CacheEntries.WithLabelValues("reimbursements").Set(float64(reimbursements))
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	log.Info("Reconciliation cycle complete",
		"chain_tip", tip,
		"deposits", deposits,
		"withdrawals", withdrawals,
		"reimbursements", reimbursements,
		"elapsed", time.Since(start))
}

// refreshOperators probes each operator individually and replaces the
// cache's operator table. No failover here: the question is precisely
// whether each endpoint answers for itself.
func (m *Monitor) refreshOperators(ctx context.Context, log *slog.Logger) {
	clients := m.manager.Operators()
	operators := make([]domain.Operator, 0, len(clients))

	for i, op := range clients {
		liveness := domain.OperatorOffline
		resp, err := rpc.Call[uptimeResponse](ctx, op.Client, methodUptime)
		if err != nil {
			log.Warn("Operator liveness probe failed", "operator", op.Key, "error", err)
		} else if resp.Online {
			liveness = domain.OperatorOnline
		}

		operators = append(operators, domain.Operator{
			OperatorID:      fmt.Sprintf("Alpen Labs #%d", i),
			OperatorAddress: op.Key,
			Status:          liveness,
		})
	}

	m.cache.UpdateOperators(operators)
}

// unionKeys merges the keys of currently active cache entries with freshly
// listed identities, deduplicated and in sorted order.
func unionKeys[T any](active []cache.Keyed[T], fresh []string) []string {
	seen := make(map[string]bool, len(active)+len(fresh))
	keys := make([]string, 0, len(active)+len(fresh))
	for _, kd := range active {
		if !seen[kd.Key] {
			seen[kd.Key] = true
			keys = append(keys, kd.Key)
		}
	}
	for _, key := range fresh {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *Monitor) reconcileDeposits(ctx context.Context, log *slog.Logger, tip uint64) {
	active := m.cache.FilterDeposits(func(d domain.Deposit) bool {
		return !d.Status.Terminal()
	})

	fresh, ok := rpc.QueryWithRetry(ctx, m.manager, methodDepositRequests,
		func(ctx context.Context, c *rpc.Client) ([]string, error) {
			return rpc.Call[[]string](ctx, c, methodDepositRequests)
		})
	if !ok {
		log.Warn("Deposit request listing unavailable this cycle")
	}

	updates := make([]cache.Update[domain.Deposit], 0, len(active)+len(fresh))
	for _, txid := range unionKeys(active, fresh) {
		resp, ok := rpc.QueryWithRetry(ctx, m.manager, methodDepositInfo,
			func(ctx context.Context, c *rpc.Client) (depositInfoResponse, error) {
				return rpc.Call[depositInfoResponse](ctx, c, methodDepositInfo, txid)
			})
		if !ok {
			log.Warn("Deposit detail unavailable, keeping stale entry", "deposit", txid)
			continue
		}

		dep, err := resp.toDomain(txid)
		if err != nil {
			log.Warn("Skipping malformed deposit", "deposit", txid, "error", err)
			continue
		}

		if !dep.Status.Terminal() {
			updates = append(updates, cache.Update[domain.Deposit]{Key: txid, Data: dep})
			continue
		}

		confirmations := m.oracle.Confirmations(ctx, dep.SettlementTxid(), tip)
		if confirmations < m.cfg.MaxTxConfirmations {
			updates = append(updates, cache.Update[domain.Deposit]{
				Key: txid, Data: dep, Confirmations: confirmations,
			})
		} else {
			log.Debug("Deposit already final, not tracked", "deposit", txid, "confirmations", confirmations)
		}
	}

	m.cache.ApplyDeposits(updates)
}

func (m *Monitor) reconcileWithdrawals(ctx context.Context, log *slog.Logger, tip uint64) {
	active := m.cache.FilterWithdrawals(func(w domain.Withdrawal) bool {
		return !w.Status.Terminal()
	})

	fresh, ok := rpc.QueryWithRetry(ctx, m.manager, methodWithdrawals,
		func(ctx context.Context, c *rpc.Client) ([]string, error) {
			return rpc.Call[[]string](ctx, c, methodWithdrawals)
		})
	if !ok {
		log.Warn("Withdrawal listing unavailable this cycle")
	}

	updates := make([]cache.Update[domain.Withdrawal], 0, len(active)+len(fresh))
	for _, requestID := range unionKeys(active, fresh) {
		resp, ok := rpc.QueryWithRetry(ctx, m.manager, methodWithdrawalInfo,
			func(ctx context.Context, c *rpc.Client) (withdrawalInfoResponse, error) {
				return rpc.Call[withdrawalInfoResponse](ctx, c, methodWithdrawalInfo, requestID)
			})
		if !ok {
			log.Warn("Withdrawal detail unavailable, keeping stale entry", "withdrawal", requestID)
			continue
		}

		wd, err := resp.toDomain(requestID)
		if err != nil {
			log.Warn("Skipping malformed withdrawal", "withdrawal", requestID, "error", err)
			continue
		}

		if !wd.Status.Terminal() {
			updates = append(updates, cache.Update[domain.Withdrawal]{Key: requestID, Data: wd})
			continue
		}

		confirmations := m.oracle.Confirmations(ctx, wd.SettlementTxid(), tip)
		if confirmations < m.cfg.MaxTxConfirmations {
			updates = append(updates, cache.Update[domain.Withdrawal]{
				Key: requestID, Data: wd, Confirmations: confirmations,
			})
		} else {
			log.Debug("Withdrawal already final, not tracked", "withdrawal", requestID, "confirmations", confirmations)
		}
	}

	m.cache.ApplyWithdrawals(updates)
}

func (m *Monitor) reconcileReimbursements(ctx context.Context, log *slog.Logger, tip uint64) {
	active := m.cache.FilterReimbursements(func(r domain.Reimbursement) bool {
		return !r.Status.Terminal()
	})

	fresh, ok := rpc.QueryWithRetry(ctx, m.manager, methodClaims,
		func(ctx context.Context, c *rpc.Client) ([]string, error) {
			return rpc.Call[[]string](ctx, c, methodClaims)
		})
	if !ok {
		log.Warn("Claim listing unavailable this cycle")
	}

	updates := make([]cache.Update[domain.Reimbursement], 0, len(active)+len(fresh))
	for _, claimTxid := range unionKeys(active, fresh) {
		resp, ok := rpc.QueryWithRetry(ctx, m.manager, methodClaimInfo,
			func(ctx context.Context, c *rpc.Client) (claimInfoResponse, error) {
				return rpc.Call[claimInfoResponse](ctx, c, methodClaimInfo, claimTxid)
			})
		if !ok {
			log.Warn("Claim detail unavailable, keeping stale entry", "claim", claimTxid)
			continue
		}

		reimb, err := resp.toDomain(claimTxid)
		if err != nil {
			log.Warn("Skipping malformed claim", "claim", claimTxid, "error", err)
			continue
		}

		// Claims that have not started tracking yet never enter the cache.
		if reimb.Status == domain.ReimbursementNotStarted {
			continue
		}

		if !reimb.Status.Terminal() {
			updates = append(updates, cache.Update[domain.Reimbursement]{Key: claimTxid, Data: reimb})
			continue
		}

		confirmations := m.oracle.Confirmations(ctx, reimb.SettlementTxid(), tip)
		if confirmations < m.cfg.MaxTxConfirmations {
			updates = append(updates, cache.Update[domain.Reimbursement]{
				Key: claimTxid, Data: reimb, Confirmations: confirmations,
			})
		} else {
			log.Debug("Claim already final, not tracked", "claim", claimTxid, "confirmations", confirmations)
		}
	}

	m.cache.ApplyReimbursements(updates)
}

func (m *Monitor) purgeDeposits(ctx context.Context, log *slog.Logger, tip uint64) {
	terminal := m.cache.FilterDeposits(func(d domain.Deposit) bool {
		return d.Status.Terminal()
	})

	var purge []string
	for _, kd := range terminal {
		if m.oracle.Confirmations(ctx, kd.Data.SettlementTxid(), tip) >= m.cfg.MaxTxConfirmations {
			purge = append(purge, kd.Key)
		}
	}
	if len(purge) > 0 {
		m.cache.PurgeDeposits(purge)
		metrics.PurgedTotal.WithLabelValues("deposits").Add(float64(len(purge)))
		log.Info("Purged finalized deposits", "count", len(purge))
	}
}

func (m *Monitor) purgeWithdrawals(ctx context.Context, log *slog.Logger, tip uint64) {
	terminal := m.cache.FilterWithdrawals(func(w domain.Withdrawal) bool {
		return w.Status.Terminal()
	})

	var purge []string
	for _, kw := range terminal {
		if m.oracle.Confirmations(ctx, kw.Data.SettlementTxid(), tip) >= m.cfg.MaxTxConfirmations {
			purge = append(purge, kw.Key)
		}
	}
	if len(purge) > 0 {
		m.cache.PurgeWithdrawals(purge)
		metrics.PurgedTotal.WithLabelValues("withdrawals").Add(float64(len(purge)))
		log.Info("Purged finalized withdrawals", "count", len(purge))
	}
}

func (m *Monitor) purgeReimbursements(ctx context.Context, log *slog.Logger, tip uint64) {
	terminal := m.cache.FilterReimbursements(func(r domain.Reimbursement) bool {
		return r.Status.Terminal()
	})

	var purge []string
	for _, kr := range terminal {
		if m.oracle.Confirmations(ctx, kr.Data.SettlementTxid(), tip) >= m.cfg.MaxTxConfirmations {
			purge = append(purge, kr.Key)
		}
	}
	if len(purge) > 0 {
		m.cache.PurgeReimbursements(purge)
		metrics.PurgedTotal.WithLabelValues("reimbursements").Add(float64(len(purge)))
		log.Info("Purged finalized reimbursements", "count", len(purge))
	}
}
