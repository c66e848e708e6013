// Package indexer scans the execution chain for BridgeOut withdrawal
// intents and persists them through the storage repositories.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/bridgewatch/internal/core/domain"
	"github.com/vietddude/bridgewatch/internal/infra/rpc"
	"github.com/vietddude/bridgewatch/internal/infra/storage"
	"github.com/vietddude/bridgewatch/internal/metrics"
)

// Config holds the scanner's tuning knobs.
type Config struct {
	BridgeOutAddress string
	StartBlock       uint64
	BlockBatch       uint64
	ScanInterval     time.Duration
}

// Scanner follows the chain head and indexes withdrawal intents in
// batched eth_getLogs windows, persisting a cursor after each window so a
// restart resumes where it left off.
type Scanner struct {
	cfg      Config
	client   *rpc.Client
	requests storage.WithdrawalRequestRepository
	states   storage.IndexerStateRepository
	log      *slog.Logger
}

// New creates a scanner over the given execution RPC client.
func New(cfg Config, client *rpc.Client, requests storage.WithdrawalRequestRepository, states storage.IndexerStateRepository) *Scanner {
	return &Scanner{
		cfg:      cfg,
		client:   client,
		requests: requests,
		states:   states,
		log:      slog.Default().With("component", "indexer"),
	}
}

// Run scans until the context is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if err := s.scanOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("Scan pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type ethLog struct {
	Data            string `json:"data"`
	BlockNumber     string `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
	LogIndex        string `json:"logIndex"`
}

type logFilter struct {
	FromBlock string `json:"fromBlock"`
	ToBlock   string `json:"toBlock"`
	Address   string `json:"address"`
}

// scanOnce catches the cursor up to the current head, one batch at a time.
func (s *Scanner) scanOnce(ctx context.Context) error {
	headHex, err := rpc.Call[string](ctx, s.client, "eth_blockNumber")
	if err != nil {
		return fmt.Errorf("fetch head: %w", err)
	}
	head, err := parseHexUint64(headHex)
	if err != nil {
		return fmt.Errorf("parse head: %w", err)
	}

	cursor, err := s.cursor(ctx)
	if err != nil {
		return err
	}

	for from := cursor + 1; from <= head; {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		to := from + s.cfg.BlockBatch - 1
		if to > head {
			to = head
		}

		count, err := s.scanRange(ctx, from, to)
		if err != nil {
			return fmt.Errorf("scan blocks %d-%d: %w", from, to, err)
		}

		if err := s.states.Save(ctx, domain.IndexerState{
			TaskID:           domain.TaskWithdrawalRequests,
			LastScannedBlock: to,
			UpdatedAt:        time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("save cursor at %d: %w", to, err)
		}
		metrics.IndexerLastScannedBlock.Set(float64(to))

		if count > 0 {
			s.log.Info("Indexed withdrawal requests", "from", from, "to", to, "count", count)
		}
		from = to + 1
	}

	return nil
}

func (s *Scanner) cursor(ctx context.Context) (uint64, error) {
	state, err := s.states.Get(ctx, domain.TaskWithdrawalRequests)
	if errors.Is(err, storage.ErrStateNotFound) {
		if s.cfg.StartBlock > 0 {
			return s.cfg.StartBlock - 1, nil
		}
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	return state.LastScannedBlock, nil
}

func (s *Scanner) scanRange(ctx context.Context, from, to uint64) (int, error) {
	logs, err := rpc.Call[[]ethLog](ctx, s.client, "eth_getLogs", logFilter{
		FromBlock: fmt.Sprintf("0x%x", from),
		ToBlock:   fmt.Sprintf("0x%x", to),
		Address:   s.cfg.BridgeOutAddress,
	})
	if err != nil {
		return 0, err
	}

	requests := make([]domain.WithdrawalRequest, 0, len(logs))
	for _, lg := range logs {
		req, err := s.decodeLog(lg)
		if err != nil {
			s.log.Warn("Skipping undecodable log", "tx", lg.TransactionHash, "error", err)
			continue
		}
		requests = append(requests, req)
	}

	if err := s.requests.SaveBatch(ctx, requests); err != nil {
		return 0, fmt.Errorf("persist batch: %w", err)
	}
	metrics.WithdrawalRequestsIndexed.Add(float64(len(requests)))
	return len(requests), nil
}

func (s *Scanner) decodeLog(lg ethLog) (domain.WithdrawalRequest, error) {
	blockNumber, err := parseHexUint64(lg.BlockNumber)
	if err != nil {
		return domain.WithdrawalRequest{}, fmt.Errorf("block number: %w", err)
	}
	logIndex, err := parseHexUint64(lg.LogIndex)
	if err != nil {
		return domain.WithdrawalRequest{}, fmt.Errorf("log index: %w", err)
	}
	intent, err := decodeWithdrawalIntent(lg.Data)
	if err != nil {
		return domain.WithdrawalRequest{}, err
	}

	return domain.WithdrawalRequest{
		TxHash:      lg.TransactionHash,
		LogIndex:    uint32(logIndex),
		BlockNumber: blockNumber,
		Amount:      intent.Amount,
		Destination: intent.Destination,
		IndexedAt:   time.Now().UTC(),
	}, nil
}
