package domain

import "time"

// WithdrawalRequest is a decoded WithdrawalIntentEvent log from the
// BridgeOut contract, as persisted by the indexer.
type WithdrawalRequest struct {
	TxHash      string    `json:"tx_hash"      db:"tx_hash"`
	LogIndex    uint32    `json:"log_index"    db:"log_index"`
	BlockNumber uint64    `json:"block_number" db:"block_number"`
	Amount      string    `json:"amount"       db:"amount"`
	Destination string    `json:"destination"  db:"destination"`
	IndexedAt   time.Time `json:"indexed_at"   db:"indexed_at"`
}

// IndexerState is the persisted scan cursor for one indexer task.
type IndexerState struct {
	TaskID           string    `db:"task_id"`
	LastScannedBlock uint64    `db:"last_scanned_block"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// TaskWithdrawalRequests identifies the withdrawal-request scan cursor.
const TaskWithdrawalRequests = "withdrawal_requests"
