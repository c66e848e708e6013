// Package cache holds the latest reconciled bridge view. It is a passive
// store: all policy about what to fetch and what to purge lives in the
// monitor. A single RWMutex guards every table so the reconciliation loop
// can commit one batch per table while readers copy snapshots out.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/vietddude/bridgewatch/internal/core/domain"
)

// Entry wraps cached data with confirmation tracking. Confirmations is
// meaningful only for terminal-status entries; non-terminal entries carry 0
// and are never purged by confirmation logic.
type Entry[T any] struct {
	Data          T
	Confirmations uint64
	LastUpdated   time.Time
}

// Update is one keyed upsert in a batch.
type Update[T any] struct {
	Key           string
	Data          T
	Confirmations uint64
}

// Keyed pairs a cache key with its data, as returned by filters.
type Keyed[T any] struct {
	Key  string
	Data T
}

type table[T any] map[string]Entry[T]

func (t table[T]) upsert(key string, data T, confirmations uint64) {
	t[key] = Entry[T]{
		Data:          data,
		Confirmations: confirmations,
		LastUpdated:   time.Now(),
	}
}

func filterTable[T any](t table[T], pred func(T) bool) []Keyed[T] {
	out := make([]Keyed[T], 0, len(t))
	for key, entry := range t {
		if pred(entry.Data) {
			out = append(out, Keyed[T]{Key: key, Data: entry.Data})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Cache is the in-memory store of operator statuses and the three keyed
// entity tables: deposits by deposit request txid, withdrawals by withdrawal
// request txid, reimbursements by claim txid.
type Cache struct {
	mu             sync.RWMutex
	deposits       table[domain.Deposit]
	withdrawals    table[domain.Withdrawal]
	reimbursements table[domain.Reimbursement]
	operators      []domain.Operator
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		deposits:       make(table[domain.Deposit]),
		withdrawals:    make(table[domain.Withdrawal]),
		reimbursements: make(table[domain.Reimbursement]),
	}
}

// UpsertDeposit inserts or overwrites one deposit entry.
func (c *Cache) UpsertDeposit(key string, data domain.Deposit, confirmations uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deposits.upsert(key, data, confirmations)
}

// ApplyDeposits commits a batch of deposit updates under one lock
// acquisition, so readers observe the whole cycle's result at once.
func (c *Cache) ApplyDeposits(updates []Update[domain.Deposit]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range updates {
		c.deposits.upsert(u.Key, u.Data, u.Confirmations)
	}
}

// FilterDeposits returns deposits whose data matches pred, sorted by key.
func (c *Cache) FilterDeposits(pred func(domain.Deposit) bool) []Keyed[domain.Deposit] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filterTable(c.deposits, pred)
}

// PurgeDeposits removes the given deposit keys.
func (c *Cache) PurgeDeposits(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.deposits, key)
	}
}

// UpsertWithdrawal inserts or overwrites one withdrawal entry.
func (c *Cache) UpsertWithdrawal(key string, data domain.Withdrawal, confirmations uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.withdrawals.upsert(key, data, confirmations)
}

// ApplyWithdrawals commits a batch of withdrawal updates.
func (c *Cache) ApplyWithdrawals(updates []Update[domain.Withdrawal]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range updates {
		c.withdrawals.upsert(u.Key, u.Data, u.Confirmations)
	}
}

// FilterWithdrawals returns withdrawals whose data matches pred, sorted by key.
func (c *Cache) FilterWithdrawals(pred func(domain.Withdrawal) bool) []Keyed[domain.Withdrawal] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filterTable(c.withdrawals, pred)
}

// PurgeWithdrawals removes the given withdrawal keys.
func (c *Cache) PurgeWithdrawals(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.withdrawals, key)
	}
}

// UpsertReimbursement inserts or overwrites one reimbursement entry.
func (c *Cache) UpsertReimbursement(key string, data domain.Reimbursement, confirmations uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reimbursements.upsert(key, data, confirmations)
}

// ApplyReimbursements commits a batch of reimbursement updates.
func (c *Cache) ApplyReimbursements(updates []Update[domain.Reimbursement]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range updates {
		c.reimbursements.upsert(u.Key, u.Data, u.Confirmations)
	}
}

// FilterReimbursements returns reimbursements whose data matches pred,
// sorted by key.
func (c *Cache) FilterReimbursements(pred func(domain.Reimbursement) bool) []Keyed[domain.Reimbursement] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filterTable(c.reimbursements, pred)
}

// PurgeReimbursements removes the given reimbursement keys.
func (c *Cache) PurgeReimbursements(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.reimbursements, key)
	}
}

// UpdateOperators replaces the operator list wholesale. The list is small
// and refetched fully each cycle.
func (c *Cache) UpdateOperators(operators []domain.Operator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operators = operators
}

// GetOperators returns a copy of the operator list.
func (c *Cache) GetOperators() []domain.Operator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Operator, len(c.operators))
	copy(out, c.operators)
	return out
}

// DepositEntry returns the full deposit entry for key, for callers that
// need confirmation counts rather than just data.
func (c *Cache) DepositEntry(key string) (Entry[domain.Deposit], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.deposits[key]
	return e, ok
}

// WithdrawalEntry returns the full withdrawal entry for key.
func (c *Cache) WithdrawalEntry(key string) (Entry[domain.Withdrawal], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.withdrawals[key]
	return e, ok
}

// ReimbursementEntry returns the full reimbursement entry for key.
func (c *Cache) ReimbursementEntry(key string) (Entry[domain.Reimbursement], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.reimbursements[key]
	return e, ok
}

// Counts returns the current table sizes.
func (c *Cache) Counts() (deposits, withdrawals, reimbursements int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.deposits), len(c.withdrawals), len(c.reimbursements)
}

// Snapshot copies the whole cache into the read-API shape, sorted by key
// for stable output.
func (c *Cache) Snapshot() domain.BridgeStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := domain.BridgeStatus{
		Operators:      make([]domain.Operator, len(c.operators)),
		Deposits:       make([]domain.Deposit, 0, len(c.deposits)),
		Withdrawals:    make([]domain.Withdrawal, 0, len(c.withdrawals)),
		Reimbursements: make([]domain.Reimbursement, 0, len(c.reimbursements)),
	}
	copy(status.Operators, c.operators)

	for _, kd := range filterTable(c.deposits, func(domain.Deposit) bool { return true }) {
		status.Deposits = append(status.Deposits, kd.Data)
	}
	for _, kw := range filterTable(c.withdrawals, func(domain.Withdrawal) bool { return true }) {
		status.Withdrawals = append(status.Withdrawals, kw.Data)
	}
	for _, kr := range filterTable(c.reimbursements, func(domain.Reimbursement) bool { return true }) {
		status.Reimbursements = append(status.Reimbursements, kr.Data)
	}
	return status
}
