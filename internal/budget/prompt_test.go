package budget

import (
	"strings"
	"testing"

	"budgetmind/internal/core"
)

func TestPromptInputFrom(t *testing.T) {
	txns := []core.Transaction{
		{Date: "2024-03-10", Name: "ACME Payroll", Amount: 2000},
		{Date: "2024-03-11", Name: "Starbucks", Amount: 4.50},
	}
	w := Build(txns, day(2024, 3, 1))

	p := PromptInputFrom(w)

	if p.TotalIncome != 2000 || p.TotalExpenses != 4.50 {
		t.Errorf("totals = %v/%v, want 2000/4.50", p.TotalIncome, p.TotalExpenses)
	}
	if p.NetIncome != 1995.50 {
		t.Errorf("NetIncome = %v, want 1995.50", p.NetIncome)
	}
	if len(p.TransactionLines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(p.TransactionLines))
	}
	if !strings.Contains(p.TransactionLines[0], "ACME Payroll") ||
		!strings.Contains(p.TransactionLines[0], "+2000.00") {
		t.Errorf("unexpected line: %q", p.TransactionLines[0])
	}
	if !strings.Contains(p.TransactionLines[1], "-4.50") {
		t.Errorf("expense line must carry a negative signed amount: %q", p.TransactionLines[1])
	}
}

func TestPromptInputFrom_EmptyWindow(t *testing.T) {
	p := PromptInputFrom(Build(nil, day(2024, 3, 1)))
	if p.NetIncome != 0 || len(p.TransactionLines) != 0 {
		t.Errorf("empty window must compose an empty prompt input, got %+v", p)
	}
}
