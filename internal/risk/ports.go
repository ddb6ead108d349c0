// Package risk hosts the two side-effecting engine components: the
// spending-limit evaluator and the vulnerability scanner. Both receive
// their collaborators as small injected interfaces and are unit-testable
// against the in-memory store.
package risk

import (
	"context"
	"time"

	"budgetmind/internal/core"
)

// Ports for the stores the engine consumes.
type (
	// UserDirectory exposes the engine-relevant slice of the user store.
	// GetUser returns (nil, nil) for an unknown id: missing users are a
	// no-op for mutating operations, not an error.
	UserDirectory interface {
		GetUser(ctx context.Context, id string) (*core.User, error)
		ListUserIDs(ctx context.Context) ([]string, error)
		SetSpendingFlag(ctx context.Context, id string, flagged bool) error
		// AddNoteOnce appends a note unless one with the same message
		// already exists for the user. The check-and-insert must be
		// atomic at the storage layer; it reports whether a note was
		// actually inserted.
		AddNoteOnce(ctx context.Context, id, message string, at time.Time) (bool, error)
	}

	// Ledger reads a user's manually entered rows.
	Ledger interface {
		EntriesByUser(ctx context.Context, userID string) ([]core.ManualEntry, error)
	}

	// TransactionSource supplies raw transaction records for a user over
	// the trailing N days. Implementations include the aggregator-synced
	// store and the ledger fallback.
	TransactionSource interface {
		RecentTransactions(ctx context.Context, userID string, days int) ([]core.Transaction, error)
	}

	// BalanceSource reports a user's current balance, when an aggregator
	// connection exists. May be absent.
	BalanceSource interface {
		CurrentBalance(ctx context.Context, userID string) (float64, error)
	}

	// AdvisorLinks is the advisor-client relationship collaborator.
	AdvisorLinks interface {
		FindAcceptedLinks(ctx context.Context, userID string) ([]string, error)
		SetLinkPriority(ctx context.Context, linkID string, tier core.RiskTier) error
	}

	// SnapshotStore holds the scan's full-replace materialized view.
	SnapshotStore interface {
		ClearSnapshots(ctx context.Context) error
		UpsertSnapshot(ctx context.Context, snap core.VulnerabilitySnapshot) error
		ListSnapshots(ctx context.Context) ([]core.VulnerabilitySnapshot, error)
	}
)
