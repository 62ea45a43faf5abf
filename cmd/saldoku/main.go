package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/saldoku/saldoku/internal/app"
	"github.com/saldoku/saldoku/internal/ledger/accounts"
	"github.com/saldoku/saldoku/internal/ledger/engine"
	ledgerhttp "github.com/saldoku/saldoku/internal/ledger/http"
	"github.com/saldoku/saldoku/internal/ledger/journal"
	"github.com/saldoku/saldoku/internal/ledger/periods"
	"github.com/saldoku/saldoku/internal/ledger/rules"
	"github.com/saldoku/saldoku/internal/observability"
	"github.com/saldoku/saldoku/internal/platform/cache"
	"github.com/saldoku/saldoku/internal/platform/db"
	"github.com/saldoku/saldoku/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, rule cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	ruleRepo := rules.NewRepository(pool)
	ruleSource := rules.NewCachedSource(ruleRepo, redisClient, cfg.RuleCacheTTL)
	periodRepo := periods.NewRepository(pool)
	journalRepo := journal.NewRepository(pool)
	accountRepo := accounts.NewRepository(pool)

	periodService := periods.NewService(periodRepo, auditLogger)
	coordinator := engine.NewService(journalRepo, ruleSource, periodService, auditLogger)
	coordinator.WithMetrics(metrics)

	ledgerHandler := ledgerhttp.NewHandler(logger, coordinator, periodService, journalRepo, accountRepo)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		LedgerHandler: ledgerHandler,
		Pool:          pool,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
