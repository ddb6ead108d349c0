package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"budgetmind/internal/amqp"
	"budgetmind/internal/config"
	"budgetmind/internal/report"
	reportsheet "budgetmind/internal/report/google"
	"budgetmind/internal/risk"
	"budgetmind/internal/storage"
	"budgetmind/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting scan-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// The compliance sink is optional.
	var sink report.ScanWriter
	if cfg.ReportSpreadsheetID != "" {
		client, err := reportsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize report sink", "error", err)
			os.Exit(1)
		}
		sink = client
		logger.Info("Report sink initialized", "spreadsheet_id", cfg.ReportSpreadsheetID)
	} else {
		logger.Info("Report sink disabled - no REPORT_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEntryQueue, cfg.AMQPScanQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	evaluator := risk.NewSpendingEvaluator(repo, repo)
	scanner := risk.NewScanner(repo, repo, repo, repo).WithBalances(repo)
	w := worker.New(evaluator, scanner, sink)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeEntryRecorded(ctx, func(msg *amqp.EntryRecordedMessage) error {
			return w.HandleEntryRecorded(ctx, msg)
		})
	})

	// Scan requests are consumed on a single goroutine, so scans never
	// overlap each other.
	g.Go(func() error {
		return amqpClient.ConsumeScanRequests(ctx, func(msg *amqp.ScanRequestMessage) error {
			return w.HandleScanRequest(ctx, msg)
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
