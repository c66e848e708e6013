package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/bridgewatch/internal/core/domain"
	"github.com/vietddude/bridgewatch/internal/infra/storage"
)

// IndexerStateRepo implements storage.IndexerStateRepository.
type IndexerStateRepo struct {
	db *DB
}

// NewIndexerStateRepo creates a PostgreSQL indexer-state repository.
func NewIndexerStateRepo(db *DB) *IndexerStateRepo {
	return &IndexerStateRepo{db: db}
}

// Get returns the cursor for a task.
func (r *IndexerStateRepo) Get(ctx context.Context, taskID string) (domain.IndexerState, error) {
	const query = `
		SELECT task_id, last_scanned_block, updated_at
		FROM indexer_state
		WHERE task_id = $1`

	var state domain.IndexerState
	err := r.db.GetContext(ctx, &state, query, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IndexerState{}, storage.ErrStateNotFound
	}
	if err != nil {
		return domain.IndexerState{}, fmt.Errorf("get indexer state: %w", err)
	}
	return state, nil
}

// Save upserts the cursor for a task.
func (r *IndexerStateRepo) Save(ctx context.Context, state domain.IndexerState) error {
	const query = `
		INSERT INTO indexer_state (task_id, last_scanned_block, updated_at)
		VALUES (:task_id, :last_scanned_block, :updated_at)
		ON CONFLICT (task_id) DO UPDATE SET
			last_scanned_block = EXCLUDED.last_scanned_block,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, state); err != nil {
		return fmt.Errorf("save indexer state: %w", err)
	}
	return nil
}
