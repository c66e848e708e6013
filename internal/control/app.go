// Package control assembles the application from configuration and manages
// its lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/bridgewatch/internal/activity"
	"github.com/vietddude/bridgewatch/internal/bridge/monitor"
	"github.com/vietddude/bridgewatch/internal/core/config"
	"github.com/vietddude/bridgewatch/internal/indexer"
	"github.com/vietddude/bridgewatch/internal/infra/esplora"
	redisclient "github.com/vietddude/bridgewatch/internal/infra/redis"
	"github.com/vietddude/bridgewatch/internal/infra/rpc"
	"github.com/vietddude/bridgewatch/internal/infra/storage"
	"github.com/vietddude/bridgewatch/internal/infra/storage/memory"
	"github.com/vietddude/bridgewatch/internal/infra/storage/postgres"
	"github.com/vietddude/bridgewatch/internal/netcheck"
	"github.com/vietddude/bridgewatch/internal/server"
	"github.com/vietddude/bridgewatch/internal/wallets"
)

// App owns every subsystem. Subsystems are optional: a missing URL in the
// config leaves the corresponding field nil and its API endpoint disabled.
type App struct {
	cfg config.AppConfig

	bridgeMon   *monitor.Monitor
	netChecker  *netcheck.Checker
	walletsFtch *wallets.Fetcher
	activityAgg *activity.Aggregator
	scanner     *indexer.Scanner
	httpServer  *server.Server

	db          *postgres.DB
	redisClient *redisclient.Client

	log    *slog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp wires the application together.
func NewApp(cfg config.AppConfig) (*App, error) {
	app := &App{cfg: cfg, log: slog.Default()}

	// Bridge status monitor. Operators are mandatory, validated at load.
	endpoints := make([]rpc.Endpoint, 0, len(cfg.Bridge.Operators))
	for _, op := range cfg.Bridge.Operators {
		endpoints = append(endpoints, rpc.Endpoint{Key: op.Key, URL: op.URL})
	}
	manager := rpc.NewManager(endpoints, cfg.Bridge.RPCTimeout.Std(), rpc.DefaultRetryConfig)
	oracle := esplora.NewClient(cfg.Bridge.EsploraURL, cfg.Bridge.RPCTimeout.Std())
	app.bridgeMon = monitor.New(monitor.Config{
		MaxTxConfirmations: cfg.Bridge.MaxTxConfirmations,
		RefetchInterval:    cfg.Bridge.RefetchInterval.Std(),
	}, manager, oracle)

	if cfg.Network.SequencerURL != "" {
		app.netChecker = netcheck.New(netcheck.Config{
			SequencerURL:    cfg.Network.SequencerURL,
			RPCURL:          cfg.Network.RPCURL,
			BundlerURL:      cfg.Network.BundlerURL,
			RefetchInterval: cfg.Network.RefetchInterval.Std(),
			MaxRetries:      cfg.Network.MaxRetries,
			TotalRetryTime:  cfg.Network.TotalRetryTime.Std(),
		})
	}

	if cfg.Wallets.RethURL != "" {
		app.walletsFtch = wallets.New(wallets.Config{
			RethURL:           cfg.Wallets.RethURL,
			DepositAddress:    cfg.Wallets.DepositAddress,
			ValidatingAddress: cfg.Wallets.ValidatingAddress,
			RefetchInterval:   cfg.Wallets.RefetchInterval.Std(),
		})
	}

	if cfg.Redis.URL != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			app.log.Warn("Redis unavailable, activity warm cache disabled", "error", err)
		} else {
			app.redisClient = redisClient
		}
	}

	if cfg.Activity.UserOpsURL != "" {
		app.activityAgg = activity.New(activity.Config{
			UserOpsURL:      cfg.Activity.UserOpsURL,
			AccountsURL:     cfg.Activity.AccountsURL,
			PageSize:        cfg.Activity.PageSize,
			RefetchInterval: cfg.Activity.RefetchInterval.Std(),
			CacheTTL:        cfg.Activity.CacheTTL.Std(),
		}, app.redisClient)
	}

	if cfg.Indexer.Enabled {
		requests, states, err := app.initStorage(cfg)
		if err != nil {
			return nil, err
		}
		app.scanner = indexer.New(indexer.Config{
			BridgeOutAddress: cfg.Indexer.BridgeOutAddress,
			StartBlock:       cfg.Indexer.StartBlock,
			BlockBatch:       cfg.Indexer.BlockBatch,
			ScanInterval:     cfg.Indexer.ScanInterval.Std(),
		}, rpc.NewClient("reth", cfg.Indexer.RethURL, cfg.Bridge.RPCTimeout.Std()), requests, states)
	}

	sources := server.Sources{Bridge: app.bridgeMon}
	if app.netChecker != nil {
		sources.Network = app.netChecker
	}
	if app.walletsFtch != nil {
		sources.Wallets = app.walletsFtch
	}
	if app.activityAgg != nil {
		sources.Activity = app.activityAgg
	}
	app.httpServer = server.New(cfg.Server.Port, sources)

	return app, nil
}

// initStorage opens postgres when configured, runs migrations, and falls
// back to in-memory repositories otherwise.
func (a *App) initStorage(cfg config.AppConfig) (storage.WithdrawalRequestRepository, storage.IndexerStateRepository, error) {
	if cfg.Database.URL == "" {
		a.log.Info("No database configured, using in-memory storage")
		return memory.NewWithdrawalRequestRepo(), memory.NewIndexerStateRepo(), nil
	}

	db, err := postgres.NewDB(context.Background(), cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init db: %w", err)
	}
	a.db = db

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, nil, err
	}
	if err := goose.Up(db.DB.DB, "migrations"); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	a.log.Info("Using PostgreSQL storage")

	return postgres.NewWithdrawalRequestRepo(db), postgres.NewIndexerStateRepo(db), nil
}

// Start launches every configured subsystem.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	go func() {
		if err := a.httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Read API server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	run := func(name string, fn func(context.Context)) {
		a.log.Info("Starting subsystem", "subsystem", name)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			fn(ctx)
		}()
	}

	run("bridge_monitor", a.bridgeMon.Run)
	if a.netChecker != nil {
		run("netcheck", a.netChecker.Run)
	}
	if a.walletsFtch != nil {
		run("wallets", a.walletsFtch.Run)
	}
	if a.activityAgg != nil {
		run("activity", a.activityAgg.Run)
	}
	if a.scanner != nil {
		run("indexer", a.scanner.Run)
	}

	return nil
}

// Stop shuts the application down, waiting for subsystem loops to exit.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping...")
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Redis close failed", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Database close failed", "error", err)
		}
	}

	return a.httpServer.Stop(ctx)
}
