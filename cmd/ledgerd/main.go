package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinledger/internal/api"
	"coinledger/internal/cache"
	"coinledger/internal/config"
	"coinledger/internal/economy"
	"coinledger/internal/lock"
	"coinledger/internal/scheduler"
	"coinledger/internal/store"
	"coinledger/internal/store/postgres"
	"coinledger/internal/store/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("open store failed", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	ledger, err := economy.New(ctx, st, logger, economy.Options{
		MaxTransactions: cfg.MaxTransactions,
		Retention:       cfg.TxRetention,
		BalanceTTL:      cfg.BalanceCacheTTL,
		SliceTTL:        cfg.SliceCacheTTL,
		MaxPrizePool:    cfg.MaxPrizePool,
		Cache:           cache.New(nil),
		Locks:           lock.NewManager(),
	})
	if err != nil {
		logger.Error("ledger init failed", "err", err)
		os.Exit(1)
	}

	runner := scheduler.New(logger, jobs(cfg, ledger, logger)...)
	if cfg.RunOnce {
		if err := runner.RunOnce(ctx); err != nil {
			logger.Error("run-once failed", "err", err)
			os.Exit(1)
		}
		logger.Info("run-once completed")
		return
	}
	if err := runner.Start(ctx); err != nil {
		logger.Error("scheduler start failed", "err", err)
		os.Exit(1)
	}
	defer runner.Stop()

	server := api.New(cfg, logger, ledger)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("ledgerd listening", "addr", cfg.Addr, "store", cfg.Store)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreFile:
		return store.OpenFile(cfg.StorePath)
	case config.StoreSQLite:
		return sqlite.Open(cfg.StorePath, cfg.DocumentName)
	case config.StorePostgres:
		return postgres.Open(ctx, cfg.DatabaseURL, cfg.DocumentName)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func jobs(cfg config.Config, ledger *economy.Engine, logger *slog.Logger) []scheduler.Job {
	return []scheduler.Job{
		{
			Name:  "market_tick",
			Every: cfg.MarketTickEvery,
			Run: func(ctx context.Context) error {
				_, err := ledger.TickMarket(ctx)
				return err
			},
		},
		{
			Name:  "investment_sweep",
			Every: cfg.InvestmentSweepEvery,
			Run: func(ctx context.Context) error {
				_, err := ledger.ProcessMatureInvestments(ctx)
				return err
			},
		},
		{
			Name:  "retention",
			Every: cfg.RetentionSweepEvery,
			Run: func(ctx context.Context) error {
				removed, err := ledger.PruneTransactions(ctx)
				if err != nil {
					return err
				}
				swept := ledger.SweepCache()
				logger.Debug("retention pass", "pruned", removed, "cache_swept", swept)
				return nil
			},
		},
	}
}
