package risk

import (
	"context"
	"testing"
	"time"

	"budgetmind/internal/core"
	"budgetmind/internal/storage/memory"
)

func TestScanner_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	userID := store.AddUser(core.User{Username: "ada"})
	seedEntries(t, store, userID, []core.ManualEntry{
		{Type: core.EntryIncome, Category: "Salary", Amount: 2000},
		{Type: core.EntryExpense, Category: "Dining", Amount: 600},
		{Type: core.EntryExpense, Category: "Transport", Amount: 500},
	})
	linkID := store.AddLink(core.AdvisorLink{UserID: userID, AdvisorID: "adv1", Status: core.LinkAccepted})
	pendingID := store.AddLink(core.AdvisorLink{UserID: userID, AdvisorID: "adv2", Status: core.LinkPending})

	snaps, err := NewScanner(store, store, store, store).Scan(ctx, 30)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}

	s := snaps[0]
	if s.UserID != userID {
		t.Errorf("snapshot user = %q, want %q", s.UserID, userID)
	}
	if s.TotalIncome != 2000 || s.TotalExpenses != 1100 {
		t.Errorf("totals = %v/%v, want 2000/1100", s.TotalIncome, s.TotalExpenses)
	}
	if s.NetAmount != 900 {
		t.Errorf("NetAmount = %v, want 900", s.NetAmount)
	}
	if s.PercentIncomeLeft != 45 {
		t.Errorf("PercentIncomeLeft = %v, want 45", s.PercentIncomeLeft)
	}
	if s.RiskLevel != core.RiskLow {
		t.Errorf("RiskLevel = %q, want low", s.RiskLevel)
	}

	if l, _ := store.Link(linkID); l.Priority != "low" {
		t.Errorf("accepted link priority = %q, want low", l.Priority)
	}
	if l, _ := store.Link(pendingID); l.Priority != "" {
		t.Errorf("pending link priority must stay untouched, got %q", l.Priority)
	}
}

func TestScanner_ZeroIncomeWithExpensesIsHighRisk(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	userID := store.AddUser(core.User{Username: "bob"})
	seedEntries(t, store, userID, []core.ManualEntry{
		{Type: core.EntryExpense, Category: "Bills", Amount: 40},
	})

	snaps, err := NewScanner(store, store, store, store).Scan(ctx, 30)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].PercentIncomeLeft != 0 || snaps[0].RiskLevel != core.RiskHigh {
		t.Errorf("zero income with expenses must score percent 0 / high, got %v / %q",
			snaps[0].PercentIncomeLeft, snaps[0].RiskLevel)
	}
}

func TestScanner_NotVulnerableUserGetsNoSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	userID := store.AddUser(core.User{Username: "carol"})
	// 80% of income left.
	seedEntries(t, store, userID, []core.ManualEntry{
		{Type: core.EntryIncome, Category: "Salary", Amount: 1000},
		{Type: core.EntryExpense, Category: "Dining", Amount: 200},
	})

	snaps, err := NewScanner(store, store, store, store).Scan(ctx, 30)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(snaps) != 0 {
		t.Fatalf("user with >50%% income left must produce no snapshot, got %d", len(snaps))
	}
	stored, _ := store.ListSnapshots(ctx)
	if len(stored) != 0 {
		t.Errorf("snapshot store must stay empty, got %d rows", len(stored))
	}
}

func TestScanner_SkipsUsersWithoutActivity(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.AddUser(core.User{Username: "idle"})

	snaps, err := NewScanner(store, store, store, store).Scan(ctx, 30)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("users with zero in-window activity must be skipped, got %d snapshots", len(snaps))
	}
}

func TestScanner_ReplacesPriorSnapshots(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	// Stale snapshot for a user who no longer exists.
	if err := store.UpsertSnapshot(ctx, core.VulnerabilitySnapshot{UserID: "gone", RiskLevel: core.RiskHigh}); err != nil {
		t.Fatal(err)
	}

	userID := store.AddUser(core.User{Username: "dan"})
	seedEntries(t, store, userID, []core.ManualEntry{
		{Type: core.EntryIncome, Category: "Salary", Amount: 100},
		{Type: core.EntryExpense, Category: "Bills", Amount: 90},
	})

	if _, err := NewScanner(store, store, store, store).Scan(ctx, 30); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	stored, _ := store.ListSnapshots(ctx)
	if len(stored) != 1 || stored[0].UserID != userID {
		t.Errorf("scan must fully replace prior snapshots, got %+v", stored)
	}
	// 10% of income left maps to the high tier.
	if stored[0].RiskLevel != core.RiskHigh {
		t.Errorf("RiskLevel = %q, want high", stored[0].RiskLevel)
	}
}

func TestScanner_UsesBalanceSourceWhenAttached(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	userID := store.AddUser(core.User{Username: "erin"})
	store.SetBalance(userID, 321.55)
	seedEntries(t, store, userID, []core.ManualEntry{
		{Type: core.EntryIncome, Category: "Salary", Amount: 100},
		{Type: core.EntryExpense, Category: "Dining", Amount: 80},
	})

	snaps, err := NewScanner(store, store, store, store).WithBalances(store).Scan(ctx, 30)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(snaps) != 1 || snaps[0].CurrentBalance != 321.55 {
		t.Errorf("snapshot must carry the source balance, got %+v", snaps)
	}
}

func TestScanner_IncludesEntriesOnCutoffDay(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	userID := store.AddUser(core.User{Username: "eve"})

	// Midnight UTC of the first day inside a 30-day lookback.
	cutoffDay := time.Now().UTC().AddDate(0, 0, -30).Truncate(24 * time.Hour)
	seedEntries(t, store, userID, []core.ManualEntry{
		{Type: core.EntryExpense, Category: "Dining", Amount: 80, CreatedAt: cutoffDay},
	})

	snaps, err := NewScanner(store, store, store, store).Scan(ctx, 30)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot for an entry dated on the cutoff day, got %d", len(snaps))
	}
	if snaps[0].RiskLevel != core.RiskHigh {
		t.Errorf("RiskLevel = %q, want high", snaps[0].RiskLevel)
	}
}
