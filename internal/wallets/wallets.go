// Package wallets polls the paymaster wallet balances from the execution
// RPC and serves the last known values.
package wallets

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/bridgewatch/internal/core/domain"
	"github.com/vietddude/bridgewatch/internal/core/ready"
	"github.com/vietddude/bridgewatch/internal/infra/rpc"
)

// Config holds the fetcher's endpoints and wallet addresses.
type Config struct {
	RethURL           string
	DepositAddress    string
	ValidatingAddress string
	RefetchInterval   time.Duration
}

// Fetcher polls eth_getBalance for both paymaster wallets. A failed fetch
// keeps the previous balance, so readers never see a balance flap to zero
// on a transient RPC error.
type Fetcher struct {
	cfg    Config
	client *rpc.Client
	gate   *ready.Gate
	log    *slog.Logger

	mu      sync.RWMutex
	wallets domain.PaymasterWallets
}

// New creates a fetcher with zero balances.
func New(cfg Config) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		client: rpc.NewClient("reth", cfg.RethURL, 10*time.Second),
		gate:   ready.NewGate(),
		log:    slog.Default().With("component", "wallets"),
		wallets: domain.PaymasterWallets{
			Deposit:    domain.Wallet{Address: cfg.DepositAddress, Balance: "0"},
			Validating: domain.Wallet{Address: cfg.ValidatingAddress, Balance: "0"},
		},
	}
}

// Run polls until the context is cancelled.
func (f *Fetcher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.cfg.RefetchInterval)
	defer ticker.Stop()

	f.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.refresh(ctx)
		}
	}
}

// Ready reports whether at least one refresh has completed.
func (f *Fetcher) Ready() bool {
	return f.gate.Ready()
}

// Balances returns the current wallet balances. Callers arriving before
// the first refresh block until it completes or ctx is cancelled.
func (f *Fetcher) Balances(ctx context.Context) (domain.PaymasterWallets, error) {
	if err := f.gate.Wait(ctx); err != nil {
		return domain.PaymasterWallets{}, fmt.Errorf("waiting for first balance fetch: %w", err)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.wallets, nil
}

func (f *Fetcher) refresh(ctx context.Context) {
	f.mu.Lock()
	f.wallets.Deposit.Balance = f.fetchBalance(ctx, f.cfg.DepositAddress, f.wallets.Deposit.Balance)
	f.wallets.Validating.Balance = f.fetchBalance(ctx, f.cfg.ValidatingAddress, f.wallets.Validating.Balance)
	f.mu.Unlock()
	f.gate.Signal()
}

// fetchBalance returns the wallet's balance in wei as a decimal string,
// or previous when the fetch fails.
func (f *Fetcher) fetchBalance(ctx context.Context, address, previous string) string {
	hexBalance, err := rpc.Call[string](ctx, f.client, "eth_getBalance", address, "latest")
	if err != nil {
		f.log.Warn("Balance fetch failed, keeping previous", "address", address, "error", err)
		return previous
	}

	balance, ok := new(big.Int).SetString(strings.TrimPrefix(hexBalance, "0x"), 16)
	if !ok {
		f.log.Warn("Unparsable balance, keeping previous", "address", address, "balance", hexBalance)
		return previous
	}
	return balance.String()
}
