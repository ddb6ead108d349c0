package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgetmind/internal/core"
)

// DefaultSpendingLimit applies when a user has no limit configured.
const DefaultSpendingLimit = 1000.0

// OverLimitNote is the message appended when a user crosses their limit.
// It appears at most once per user no matter how often the evaluator
// runs.
const OverLimitNote = "Spending limit exceeded"

// SpendingEvaluator recomputes a user's over-limit flag from their full
// ledger history. It is re-run on every recorded expense rather than
// maintained incrementally.
//
// The expense sum is all-time, not windowed; that mirrors the original
// behavior and is flagged as a known inconsistency rather than silently
// switched to a rolling window.
type SpendingEvaluator struct {
	users  UserDirectory
	ledger Ledger
	now    func() time.Time
}

func NewSpendingEvaluator(users UserDirectory, ledger Ledger) *SpendingEvaluator {
	return &SpendingEvaluator{users: users, ledger: ledger, now: time.Now}
}

// Recalc recomputes the spending flag for one user. An unknown user id
// is a silent no-op: the caller may race with user deletion.
func (e *SpendingEvaluator) Recalc(ctx context.Context, userID string) error {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		slog.DebugContext(ctx, "Spending recalc skipped, user not found", "user_id", userID)
		return nil
	}

	entries, err := e.ledger.EntriesByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list ledger entries: %w", err)
	}

	var totalExpense float64
	for _, entry := range entries {
		if entry.Type == core.EntryExpense {
			totalExpense += entry.Amount
		}
	}

	limit := DefaultSpendingLimit
	if user.SpendingLimit != nil {
		limit = *user.SpendingLimit
	}

	// Strictly greater-than: spending exactly the limit is not over.
	isOver := totalExpense > limit

	if err := e.users.SetSpendingFlag(ctx, userID, isOver); err != nil {
		return fmt.Errorf("set spending flag: %w", err)
	}

	if isOver {
		inserted, err := e.users.AddNoteOnce(ctx, userID, OverLimitNote, e.now().UTC())
		if err != nil {
			return fmt.Errorf("add over-limit note: %w", err)
		}
		if inserted {
			slog.InfoContext(ctx, "User flagged for exceeding spending limit",
				"user_id", userID,
				"total_expense", core.Round2(totalExpense),
				"limit", limit)
		}
	}

	return nil
}
