package budget

import (
	"math"
	"testing"
	"time"

	"budgetmind/internal/core"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuild_CutoffBoundary(t *testing.T) {
	cutoff := day(2024, 3, 10)
	txns := []core.Transaction{
		{Date: "2024-03-09", Name: "Day Before", Amount: 10, TransactionID: "t1"},
		{Date: "2024-03-10", Name: "On Cutoff", Amount: 20, TransactionID: "t2"},
		{Date: "2024-03-11", Name: "Day After", Amount: 30, TransactionID: "t3"},
	}

	w := Build(txns, cutoff)

	if len(w.Transactions) != 2 {
		t.Fatalf("expected 2 transactions in window, got %d", len(w.Transactions))
	}
	for _, ct := range w.Transactions {
		if ct.TransactionID == "t1" {
			t.Error("transaction dated one day before cutoff must be excluded")
		}
	}
	if w.Transactions[0].TransactionID != "t2" {
		t.Errorf("transaction dated exactly on cutoff must be included first, got %q",
			w.Transactions[0].TransactionID)
	}
}

func TestBuild_DropsUnparseableDates(t *testing.T) {
	txns := []core.Transaction{
		{Date: "not-a-date", Name: "Broken", Amount: 5},
		{Date: "", Name: "Missing", Amount: 5},
		{Date: "2024-03-10 14:22:01", Name: "Datetime Form", Amount: 5},
		{Date: "2024-03-12", Name: "ISO Form", Amount: 5},
	}

	w := Build(txns, day(2024, 3, 1))

	if len(w.Transactions) != 2 {
		t.Fatalf("expected 2 parseable transactions, got %d", len(w.Transactions))
	}
	wantLabels := []string{"2024-03-10", "2024-03-12"}
	if len(w.Labels) != len(wantLabels) {
		t.Fatalf("labels = %v, want %v", w.Labels, wantLabels)
	}
	for i, l := range wantLabels {
		if w.Labels[i] != l {
			t.Errorf("labels[%d] = %q, want %q", i, w.Labels[i], l)
		}
	}
}

func TestBuild_SignsAndCategoryTotals(t *testing.T) {
	txns := []core.Transaction{
		{Date: "2024-03-10", Name: "ACME Payroll", Amount: 2000, TransactionID: "a"},
		{Date: "2024-03-10", Name: "Starbucks Store #9", Amount: 4.50, TransactionID: "b"},
		{Date: "2024-03-11", Name: "Uber Trip", Amount: 15.25, TransactionID: "c"},
		{Date: "2024-03-11", Name: "Lyft", Category: []string{"Travel", "Taxi"}, Amount: 9.75, TransactionID: "d"},
	}

	w := Build(txns, day(2024, 3, 1))

	if w.TotalIncome != 2000 {
		t.Errorf("TotalIncome = %v, want 2000", w.TotalIncome)
	}
	if w.TotalExpenses != 29.50 {
		t.Errorf("TotalExpenses = %v, want 29.50", w.TotalExpenses)
	}
	if got := w.CategoryTotals["Dining"]; got != 4.50 {
		t.Errorf("CategoryTotals[Dining] = %v, want 4.50", got)
	}
	// Both the label-matched Uber trip and the token-matched Lyft ride
	// land in Transport.
	if got := w.CategoryTotals["Transport"]; got != 25.00 {
		t.Errorf("CategoryTotals[Transport] = %v, want 25.00", got)
	}
	// Income never contributes to category totals.
	if _, ok := w.CategoryTotals["Income"]; ok {
		t.Error("income transactions must not appear in CategoryTotals")
	}
}

func TestBuild_SeriesAlignedToLabels(t *testing.T) {
	txns := []core.Transaction{
		{Date: "2024-03-11", Name: "Uber Trip", Amount: 10},
		{Date: "2024-03-10", Name: "Payroll", Amount: 100},
	}

	w := Build(txns, day(2024, 3, 1))

	if len(w.Labels) != 2 || len(w.Income) != 2 || len(w.Expenses) != 2 {
		t.Fatalf("series misaligned: labels=%d income=%d expenses=%d",
			len(w.Labels), len(w.Income), len(w.Expenses))
	}
	if w.Income[0] != 100 || w.Expenses[0] != 0 {
		t.Errorf("day 1: income=%v expenses=%v, want 100/0", w.Income[0], w.Expenses[0])
	}
	if w.Income[1] != 0 || w.Expenses[1] != 10 {
		t.Errorf("day 2: income=%v expenses=%v, want 0/10", w.Income[1], w.Expenses[1])
	}
}

func TestBuild_ConservesAmounts(t *testing.T) {
	txns := []core.Transaction{
		{Date: "2024-03-10", Name: "Payroll", Amount: 1234.56},
		{Date: "2024-03-10", Name: "Starbucks", Amount: 4.50},
		{Date: "2024-03-12", Name: "Refund Target", Amount: 19.99},
		{Date: "2024-03-13", Name: "Uber", Amount: 7.25},
		{Date: "2024-03-14", Name: "Verizon", Amount: 80.00},
	}

	w := Build(txns, day(2024, 3, 1))

	var wantNet float64
	for _, ct := range w.Transactions {
		wantNet += ct.SignedAmount
	}
	var income, expenses float64
	for i := range w.Labels {
		income += w.Income[i]
		expenses += w.Expenses[i]
	}
	if got := core.Round2(income - expenses); math.Abs(got-core.Round2(wantNet)) > 0.005 {
		t.Errorf("sum(income)-sum(expenses) = %v, want %v", got, core.Round2(wantNet))
	}
}

func TestBuild_EmptyWindow(t *testing.T) {
	w := Build(nil, day(2024, 3, 1))
	if len(w.Labels) != 0 || len(w.Transactions) != 0 {
		t.Errorf("empty input must produce empty window, got labels=%v", w.Labels)
	}
	if w.TotalIncome != 0 || w.TotalExpenses != 0 {
		t.Errorf("empty window totals = %v/%v, want 0/0", w.TotalIncome, w.TotalExpenses)
	}
}

func TestBuild_DeterministicAcrossInputOrder(t *testing.T) {
	a := []core.Transaction{
		{Date: "2024-03-10", Name: "Payroll", Amount: 100, TransactionID: "x"},
		{Date: "2024-03-09", Name: "Uber", Amount: 10, TransactionID: "y"},
		{Date: "2024-03-11", Name: "Starbucks", Amount: 5, TransactionID: "z"},
	}
	b := []core.Transaction{a[2], a[0], a[1]}

	wa := Build(a, day(2024, 3, 1))
	wb := Build(b, day(2024, 3, 1))

	if len(wa.Transactions) != len(wb.Transactions) {
		t.Fatal("window size differs across input orderings")
	}
	for i := range wa.Transactions {
		if wa.Transactions[i].TransactionID != wb.Transactions[i].TransactionID {
			t.Errorf("position %d: %q vs %q", i,
				wa.Transactions[i].TransactionID, wb.Transactions[i].TransactionID)
		}
	}
}
