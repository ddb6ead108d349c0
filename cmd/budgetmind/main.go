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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"budgetmind/internal/amqp"
	"budgetmind/internal/config"
	apphttp "budgetmind/internal/http"
	"budgetmind/internal/risk"
	"budgetmind/internal/storage"
	"budgetmind/internal/storage/memory"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var (
		users   apphttp.UserReader
		entries apphttp.EntryStore
		notes   apphttp.NoteReader
		txns    apphttp.TransactionReader
		userDir risk.UserDirectory
		ledger  risk.Ledger
		source  risk.TransactionSource
		links   risk.AdvisorLinks
		snaps   risk.SnapshotStore
	)

	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		users, entries, notes, txns = repo, repo, repo, repo
		userDir, ledger, source, links, snaps = repo, repo, repo, repo, repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		store := memory.New()
		users, entries, notes, txns = store, store, store, store
		userDir, ledger, source, links, snaps = store, store, store, store, store
		logger.Info("Initialized memory backend")
	}

	opts := apphttp.Options{
		DefaultLookbackDays: cfg.ScanLookbackDays,
		WindowCacheSize:     cfg.WindowCacheSize,
		WindowCacheTTL:      cfg.WindowCacheTTL,
	}

	// With a broker the worker owns recalcs and scans; without one the
	// server runs them inline.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEntryQueue, cfg.AMQPScanQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, falling back to inline processing", "error", err)
		} else {
			amqpClient = client
			defer amqpClient.Close()
			opts.EntryPublisher = amqpClient
			opts.ScanPublisher = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	}
	if amqpClient == nil {
		opts.Recalculator = risk.NewSpendingEvaluator(userDir, ledger)
		opts.Scanner = risk.NewScanner(userDir, source, links, snaps)
	}

	srv := apphttp.NewServer(":"+cfg.Port, users, entries, notes, txns, opts)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting budgetmind server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
