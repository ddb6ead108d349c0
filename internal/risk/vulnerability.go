package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgetmind/internal/budget"
	"budgetmind/internal/core"
)

// Scanner produces the vulnerability snapshot view: one full-replace pass
// over every user, scoring the percentage of income left after expenses
// in a lookback window.
//
// A scan is exclusive with itself (callers run one at a time); it is not
// exclusive with concurrent readers, who may observe a transiently empty
// snapshot collection mid-run.
type Scanner struct {
	users     UserDirectory
	source    TransactionSource
	balances  BalanceSource // optional
	links     AdvisorLinks
	snapshots SnapshotStore
	now       func() time.Time
}

func NewScanner(users UserDirectory, source TransactionSource, links AdvisorLinks, snapshots SnapshotStore) *Scanner {
	return &Scanner{
		users:     users,
		source:    source,
		links:     links,
		snapshots: snapshots,
		now:       time.Now,
	}
}

// WithBalances attaches an optional balance source; without one, every
// snapshot's current balance is zero.
func (s *Scanner) WithBalances(b BalanceSource) *Scanner {
	s.balances = b
	return s
}

// Scan clears all prior snapshots and recomputes one per vulnerable
// user. Users with no in-window activity are skipped, and users with
// more than half their income left produce no snapshot at all; absence
// means "not vulnerable". Accepted advisor links get their priority set
// to the computed tier as a side effect.
func (s *Scanner) Scan(ctx context.Context, lookbackDays int) ([]core.VulnerabilitySnapshot, error) {
	if err := s.snapshots.ClearSnapshots(ctx); err != nil {
		return nil, fmt.Errorf("clear snapshots: %w", err)
	}

	userIDs, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	computedAt := s.now().UTC()
	cutoff := computedAt.AddDate(0, 0, -lookbackDays).Truncate(24 * time.Hour)

	var out []core.VulnerabilitySnapshot
	for _, userID := range userIDs {
		snap, ok, err := s.scoreUser(ctx, userID, lookbackDays, cutoff, computedAt)
		if err != nil {
			return out, err
		}
		if !ok {
			continue
		}
		if err := s.snapshots.UpsertSnapshot(ctx, snap); err != nil {
			return out, fmt.Errorf("upsert snapshot for %s: %w", userID, err)
		}
		if err := s.updateLinkPriorities(ctx, userID, snap.RiskLevel); err != nil {
			return out, err
		}
		out = append(out, snap)
	}

	slog.InfoContext(ctx, "Vulnerability scan completed",
		"lookback_days", lookbackDays,
		"scanned_users", len(userIDs),
		"vulnerable_users", len(out))
	return out, nil
}

func (s *Scanner) scoreUser(ctx context.Context, userID string, lookbackDays int, cutoff, computedAt time.Time) (core.VulnerabilitySnapshot, bool, error) {
	var zero core.VulnerabilitySnapshot

	txns, err := s.source.RecentTransactions(ctx, userID, lookbackDays)
	if err != nil {
		// Stale or unavailable transaction data is the collaborator's
		// problem to surface; the scan moves on.
		slog.WarnContext(ctx, "Skipping user, transaction source failed",
			"user_id", userID, "error", err)
		return zero, false, nil
	}

	w := budget.Build(txns, cutoff)
	if w.TotalIncome == 0 && w.TotalExpenses == 0 {
		return zero, false, nil
	}

	net := w.TotalIncome - w.TotalExpenses
	percentLeft := 0.0
	if w.TotalIncome > 0 {
		percentLeft = net / w.TotalIncome * 100
	}

	tier, vulnerable := core.TierFor(percentLeft)
	if !vulnerable {
		return zero, false, nil
	}

	var balance float64
	if s.balances != nil {
		balance, err = s.balances.CurrentBalance(ctx, userID)
		if err != nil {
			slog.WarnContext(ctx, "Balance unavailable, snapshot keeps zero",
				"user_id", userID, "error", err)
			balance = 0
		}
	}

	return core.VulnerabilitySnapshot{
		UserID:            userID,
		PercentIncomeLeft: core.Round2(percentLeft),
		TotalIncome:       w.TotalIncome,
		TotalExpenses:     w.TotalExpenses,
		NetAmount:         core.Round2(net),
		CurrentBalance:    core.Round2(balance),
		RiskLevel:         tier,
		ComputedAt:        computedAt,
	}, true, nil
}

func (s *Scanner) updateLinkPriorities(ctx context.Context, userID string, tier core.RiskTier) error {
	linkIDs, err := s.links.FindAcceptedLinks(ctx, userID)
	if err != nil {
		return fmt.Errorf("find advisor links for %s: %w", userID, err)
	}
	for _, linkID := range linkIDs {
		if err := s.links.SetLinkPriority(ctx, linkID, tier); err != nil {
			return fmt.Errorf("set link priority %s: %w", linkID, err)
		}
	}
	return nil
}
