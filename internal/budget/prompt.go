package budget

import (
	"fmt"

	"budgetmind/internal/core"
)

// PromptInput is the composition handed to the LLM prompt-builder
// collaborator: window totals plus one text line per transaction.
type PromptInput struct {
	TotalIncome      float64  `json:"total_income"`
	TotalExpenses    float64  `json:"total_expenses"`
	NetIncome        float64  `json:"net_income"`
	TransactionLines []string `json:"transaction_lines"`
}

// PromptInputFrom flattens a Window into prompt-builder input. The line
// format is stable so prompts stay cache-friendly downstream.
func PromptInputFrom(w Window) PromptInput {
	lines := make([]string, 0, len(w.Transactions))
	for _, t := range w.Transactions {
		lines = append(lines, transactionLine(t))
	}
	return PromptInput{
		TotalIncome:      w.TotalIncome,
		TotalExpenses:    w.TotalExpenses,
		NetIncome:        core.Round2(w.TotalIncome - w.TotalExpenses),
		TransactionLines: lines,
	}
}

func transactionLine(t core.ClassifiedTransaction) string {
	return fmt.Sprintf("%s | %s | %s | %+.2f",
		t.Date.Format(dayFormat), t.Name, t.Category, t.SignedAmount)
}
