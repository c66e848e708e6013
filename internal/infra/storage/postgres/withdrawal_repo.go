package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/bridgewatch/internal/core/domain"
)

// WithdrawalRequestRepo implements storage.WithdrawalRequestRepository.
type WithdrawalRequestRepo struct {
	db *DB
}

// NewWithdrawalRequestRepo creates a PostgreSQL withdrawal-request repository.
func NewWithdrawalRequestRepo(db *DB) *WithdrawalRequestRepo {
	return &WithdrawalRequestRepo{db: db}
}

// SaveBatch upserts a batch of requests in one transaction.
func (r *WithdrawalRequestRepo) SaveBatch(ctx context.Context, requests []domain.WithdrawalRequest) error {
	if len(requests) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO withdrawal_requests
			(tx_hash, log_index, block_number, amount, destination, indexed_at)
		VALUES
			(:tx_hash, :log_index, :block_number, :amount, :destination, :indexed_at)
		ON CONFLICT (tx_hash, log_index) DO NOTHING`

	for _, req := range requests {
		if _, err := tx.NamedExecContext(ctx, query, req); err != nil {
			return fmt.Errorf("insert withdrawal request %s/%d: %w", req.TxHash, req.LogIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns the most recently indexed requests, newest first.
func (r *WithdrawalRequestRepo) Recent(ctx context.Context, limit int) ([]domain.WithdrawalRequest, error) {
	const query = `
		SELECT tx_hash, log_index, block_number, amount, destination, indexed_at
		FROM withdrawal_requests
		ORDER BY block_number DESC, log_index DESC
		LIMIT $1`

	var requests []domain.WithdrawalRequest
	if err := r.db.SelectContext(ctx, &requests, query, limit); err != nil {
		return nil, fmt.Errorf("select withdrawal requests: %w", err)
	}
	return requests, nil
}

// Count returns the total number of indexed requests.
func (r *WithdrawalRequestRepo) Count(ctx context.Context) (uint64, error) {
	var count uint64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM withdrawal_requests`); err != nil {
		return 0, fmt.Errorf("count withdrawal requests: %w", err)
	}
	return count, nil
}
