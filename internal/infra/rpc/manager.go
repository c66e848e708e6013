package rpc

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Endpoint pairs an operator's stable identity with its RPC URL.
type Endpoint struct {
	Key string
	URL string
}

// OperatorClient is the persistent client for one operator.
type OperatorClient struct {
	Key string
	*Client
}

// Manager holds one long-lived client per operator, in ascending key order,
// and executes queries with per-operator retry and ordered failover.
type Manager struct {
	operators []*OperatorClient
	retry     RetryConfig
	log       *slog.Logger
}

// NewManager builds one client per endpoint. Iteration order is
// deterministic (sorted by key) so failover behavior is reproducible.
func NewManager(endpoints []Endpoint, timeout time.Duration, retry RetryConfig) *Manager {
	sorted := make([]Endpoint, len(endpoints))
	copy(sorted, endpoints)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	operators := make([]*OperatorClient, 0, len(sorted))
	for _, ep := range sorted {
		operators = append(operators, &OperatorClient{
			Key:    ep.Key,
			Client: NewClient(ep.Key, ep.URL, timeout),
		})
	}

	return &Manager{
		operators: operators,
		retry:     retry,
		log:       slog.Default(),
	}
}

// Operators returns the operator clients in probe order. Callers that need
// a per-operator answer (liveness probes) use these directly, without
// failover.
func (m *Manager) Operators() []*OperatorClient {
	return m.operators
}

// QueryWithRetry runs op against the first operator that answers. Each
// operator is retried with exponential backoff before failover moves to the
// next; the first success short-circuits the remaining operators. When every
// operator is exhausted the second return is false: the data is temporarily
// unknown, not in error.
func QueryWithRetry[T any](ctx context.Context, m *Manager, name string, op func(context.Context, *Client) (T, error)) (T, bool) {
	var zero T

	for _, operator := range m.operators {
		result, err := callWithBackoff(ctx, m, operator, name, op)
		if err == nil {
			return result, true
		}
		if ctx.Err() != nil {
			return zero, false
		}
		m.log.Warn("Operator exhausted, failing over",
			"operation", name, "operator", operator.Key, "error", err)
	}

	m.log.Warn("All operators exhausted", "operation", name)
	return zero, false
}

func callWithBackoff[T any](ctx context.Context, m *Manager, operator *OperatorClient, name string, op func(context.Context, *Client) (T, error)) (T, error) {
	var zero T
	deadline := time.Now().Add(m.retry.MaxElapsed)

	var lastErr error
	for attempt := 0; attempt <= m.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := m.retry.delay(attempt)
			if time.Now().Add(delay).After(deadline) {
				break
			}
			m.log.Debug("Retrying operator",
				"operation", name, "operator", operator.Key,
				"attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := op(ctx, operator.Client)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return zero, lastErr
}
