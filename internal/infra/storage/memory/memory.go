// Package memory provides in-memory repository implementations, used when
// no database is configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/bridgewatch/internal/core/domain"
	"github.com/vietddude/bridgewatch/internal/infra/storage"
)

type requestKey struct {
	txHash   string
	logIndex uint32
}

// WithdrawalRequestRepo is an in-memory storage.WithdrawalRequestRepository.
type WithdrawalRequestRepo struct {
	mu       sync.RWMutex
	requests map[requestKey]domain.WithdrawalRequest
}

// NewWithdrawalRequestRepo creates an empty in-memory repository.
func NewWithdrawalRequestRepo() *WithdrawalRequestRepo {
	return &WithdrawalRequestRepo{requests: make(map[requestKey]domain.WithdrawalRequest)}
}

// SaveBatch upserts a batch of requests. Duplicate (tx_hash, log_index)
// pairs keep their first stored version, matching the SQL ON CONFLICT
// DO NOTHING behavior.
func (r *WithdrawalRequestRepo) SaveBatch(ctx context.Context, requests []domain.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range requests {
		key := requestKey{txHash: req.TxHash, logIndex: req.LogIndex}
		if _, exists := r.requests[key]; !exists {
			r.requests[key] = req
		}
	}
	return nil
}

// Recent returns the most recently indexed requests, newest first.
func (r *WithdrawalRequestRepo) Recent(ctx context.Context, limit int) ([]domain.WithdrawalRequest, error) {
	r.mu.RLock()
	requests := make([]domain.WithdrawalRequest, 0, len(r.requests))
	for _, req := range r.requests {
		requests = append(requests, req)
	}
	r.mu.RUnlock()

	sort.Slice(requests, func(i, j int) bool {
		if requests[i].BlockNumber != requests[j].BlockNumber {
			return requests[i].BlockNumber > requests[j].BlockNumber
		}
		return requests[i].LogIndex > requests[j].LogIndex
	})
	if limit > 0 && len(requests) > limit {
		requests = requests[:limit]
	}
	return requests, nil
}

// Count returns the total number of indexed requests.
func (r *WithdrawalRequestRepo) Count(ctx context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.requests)), nil
}

// IndexerStateRepo is an in-memory storage.IndexerStateRepository.
type IndexerStateRepo struct {
	mu     sync.RWMutex
	states map[string]domain.IndexerState
}

// NewIndexerStateRepo creates an empty in-memory state repository.
func NewIndexerStateRepo() *IndexerStateRepo {
	return &IndexerStateRepo{states: make(map[string]domain.IndexerState)}
}

// Get returns the cursor for a task.
func (r *IndexerStateRepo) Get(ctx context.Context, taskID string) (domain.IndexerState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[taskID]
	if !ok {
		return domain.IndexerState{}, storage.ErrStateNotFound
	}
	return state, nil
}

// Save upserts the cursor for a task.
func (r *IndexerStateRepo) Save(ctx context.Context, state domain.IndexerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	r.states[state.TaskID] = state
	return nil
}
