// Package worker runs the queue-driven side of the engine: spending flag
// re-evaluation on recorded entries and vulnerability scans on request.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgetmind/internal/amqp"
	"budgetmind/internal/core"
	"budgetmind/internal/report"
	"budgetmind/internal/risk"
)

type Worker struct {
	evaluator *risk.SpendingEvaluator
	scanner   *risk.Scanner
	reports   report.ScanWriter
}

// New wires the worker. reports may be nil when no compliance sink is
// configured.
func New(evaluator *risk.SpendingEvaluator, scanner *risk.Scanner, reports report.ScanWriter) *Worker {
	return &Worker{
		evaluator: evaluator,
		scanner:   scanner,
		reports:   reports,
	}
}

// HandleEntryRecorded re-evaluates the spending flag for the entry's
// owner. The flag tracks expense totals only, so income entries are
// skipped.
func (w *Worker) HandleEntryRecorded(ctx context.Context, msg *amqp.EntryRecordedMessage) error {
	if msg.EntryType != string(core.EntryExpense) {
		slog.DebugContext(ctx, "Skipping non-expense entry", "entry_id", msg.EntryID, "entry_type", msg.EntryType)
		return nil
	}

	if err := w.evaluator.Recalc(ctx, msg.UserID); err != nil {
		return fmt.Errorf("recalc spending flag for %s: %w", msg.UserID, err)
	}

	slog.InfoContext(ctx, "Spending flag re-evaluated",
		"user_id", msg.UserID,
		"entry_id", msg.EntryID)
	return nil
}

// HandleScanRequest runs one vulnerability scan and forwards the result
// to the compliance sink when one is configured.
func (w *Worker) HandleScanRequest(ctx context.Context, msg *amqp.ScanRequestMessage) error {
	started := time.Now()

	snapshots, err := w.scanner.Scan(ctx, msg.LookbackDays)
	if err != nil {
		return fmt.Errorf("vulnerability scan %s: %w", msg.RequestID, err)
	}

	slog.InfoContext(ctx, "Vulnerability scan completed",
		"scan_id", msg.RequestID,
		"lookback_days", msg.LookbackDays,
		"snapshots", len(snapshots),
		"duration_ms", time.Since(started).Milliseconds())

	if w.reports == nil {
		return nil
	}

	ref, err := w.reports.AppendScanReport(ctx, report.ScanReport{
		RequestID:    msg.RequestID,
		RanAt:        started.UTC(),
		LookbackDays: msg.LookbackDays,
		Snapshots:    snapshots,
	})
	if err != nil {
		// The scan itself succeeded; a sink failure must not requeue it.
		slog.ErrorContext(ctx, "Scan report append failed", "error", err, "scan_id", msg.RequestID)
		return nil
	}

	slog.InfoContext(ctx, "Scan report appended", "scan_id", msg.RequestID, "ref", ref)
	return nil
}
