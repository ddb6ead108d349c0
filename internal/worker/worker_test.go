package worker

import (
	"context"
	"testing"
	"time"

	"budgetmind/internal/amqp"
	"budgetmind/internal/core"
	reportmem "budgetmind/internal/report/memory"
	"budgetmind/internal/risk"
	"budgetmind/internal/storage/memory"
)

func TestWorker_HandleEntryRecorded(t *testing.T) {
	store := memory.New()
	uid := store.AddUser(core.User{Email: "over@example.com"})
	ctx := context.Background()

	if _, err := store.AddEntry(ctx, core.ManualEntry{
		UserID: uid, Type: core.EntryExpense, Category: "Rent", Amount: 1500, CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	w := New(risk.NewSpendingEvaluator(store, store), risk.NewScanner(store, store, store, store), nil)

	msg := amqp.NewEntryRecordedMessage("e1", uid, string(core.EntryExpense))
	if err := w.HandleEntryRecorded(ctx, msg); err != nil {
		t.Fatalf("HandleEntryRecorded() error = %v", err)
	}

	user, _ := store.GetUser(ctx, uid)
	if !user.IsFlagged {
		t.Error("user should be flagged after the expense message")
	}
}

func TestWorker_HandleEntryRecorded_SkipsIncome(t *testing.T) {
	store := memory.New()
	uid := store.AddUser(core.User{Email: "income@example.com"})
	ctx := context.Background()

	if _, err := store.AddEntry(ctx, core.ManualEntry{
		UserID: uid, Type: core.EntryExpense, Category: "Rent", Amount: 1500, CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	w := New(risk.NewSpendingEvaluator(store, store), risk.NewScanner(store, store, store, store), nil)

	msg := amqp.NewEntryRecordedMessage("e1", uid, string(core.EntryIncome))
	if err := w.HandleEntryRecorded(ctx, msg); err != nil {
		t.Fatalf("HandleEntryRecorded() error = %v", err)
	}

	user, _ := store.GetUser(ctx, uid)
	if user.IsFlagged {
		t.Error("income messages must not trigger a recalc")
	}
}

func TestWorker_HandleScanRequest(t *testing.T) {
	store := memory.New()
	uid := store.AddUser(core.User{Email: "scan@example.com"})
	ctx := context.Background()
	now := time.Now().UTC()

	for _, e := range []core.ManualEntry{
		{UserID: uid, Type: core.EntryIncome, Category: "Salary", Amount: 2000, CreatedAt: now.AddDate(0, 0, -3)},
		{UserID: uid, Type: core.EntryExpense, Category: "Dining", Amount: 600, CreatedAt: now.AddDate(0, 0, -2)},
		{UserID: uid, Type: core.EntryExpense, Category: "Transport", Amount: 500, CreatedAt: now.AddDate(0, 0, -1)},
	} {
		if _, err := store.AddEntry(ctx, e); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	sink := reportmem.New()
	w := New(risk.NewSpendingEvaluator(store, store), risk.NewScanner(store, store, store, store), sink)

	msg := amqp.NewScanRequestMessage(30, "advisor-1")
	if err := w.HandleScanRequest(ctx, msg); err != nil {
		t.Fatalf("HandleScanRequest() error = %v", err)
	}

	snaps, _ := store.ListSnapshots(ctx)
	if len(snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snaps))
	}
	if snaps[0].RiskLevel != core.RiskLow {
		t.Errorf("risk level = %v, want low", snaps[0].RiskLevel)
	}

	reports := sink.Reports()
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	if reports[0].RequestID != msg.RequestID {
		t.Errorf("report request id = %q, want %q", reports[0].RequestID, msg.RequestID)
	}
	if len(reports[0].Snapshots) != 1 {
		t.Errorf("report snapshots = %d, want 1", len(reports[0].Snapshots))
	}
}

func TestWorker_HandleScanRequest_NoSink(t *testing.T) {
	store := memory.New()
	w := New(risk.NewSpendingEvaluator(store, store), risk.NewScanner(store, store, store, store), nil)

	msg := amqp.NewScanRequestMessage(30, "")
	if err := w.HandleScanRequest(context.Background(), msg); err != nil {
		t.Fatalf("HandleScanRequest() without sink error = %v", err)
	}
}
