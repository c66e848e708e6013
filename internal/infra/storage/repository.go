package storage

import (
	"context"
	"errors"

	"github.com/vietddude/bridgewatch/internal/core/domain"
)

// ErrStateNotFound is returned when an indexer task has no persisted cursor.
var ErrStateNotFound = errors.New("indexer state not found")

// WithdrawalRequestRepository persists decoded withdrawal-intent events.
type WithdrawalRequestRepository interface {
	// SaveBatch upserts a batch of requests. Re-indexing the same log is a
	// no-op, keyed on (tx_hash, log_index).
	SaveBatch(ctx context.Context, requests []domain.WithdrawalRequest) error

	// Recent returns the most recently indexed requests, newest first.
	Recent(ctx context.Context, limit int) ([]domain.WithdrawalRequest, error)

	// Count returns the total number of indexed requests.
	Count(ctx context.Context) (uint64, error)
}

// IndexerStateRepository persists per-task scan cursors.
type IndexerStateRepository interface {
	// Get returns the cursor for a task, or ErrStateNotFound.
	Get(ctx context.Context, taskID string) (domain.IndexerState, error)

	// Save upserts the cursor for a task.
	Save(ctx context.Context, state domain.IndexerState) error
}
