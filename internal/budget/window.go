// Package budget turns raw transaction records into time-windowed
// aggregates: per-day income/expense series, expense category totals and
// a flat list of signed transactions.
package budget

import (
	"sort"
	"strings"
	"time"

	"budgetmind/internal/classify"
	"budgetmind/internal/core"
)

// dayFormat is the label format for per-day series keys.
const dayFormat = "2006-01-02"

// dateFormats are tried in order when parsing a transaction's date text.
// Aggregator records carry bare ISO dates; ledger-derived records carry a
// datetime-shaped value.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Window is the aggregate over all transactions dated on or after Cutoff.
// Income and Expenses are aligned positionally to Labels, with 0 for days
// without activity in that direction. All monetary fields are rounded to
// two decimals; accumulation happens unrounded.
type Window struct {
	Cutoff         time.Time                    `json:"-"`
	Labels         []string                     `json:"labels"`
	Income         []float64                    `json:"income"`
	Expenses       []float64                    `json:"expenses"`
	CategoryTotals map[string]float64           `json:"category_totals"`
	TotalIncome    float64                      `json:"total_income"`
	TotalExpenses  float64                      `json:"total_expenses"`
	Transactions   []core.ClassifiedTransaction `json:"transactions"`
}

// Build aggregates transactions into a Window. Records with unparseable
// dates are dropped silently (dirty aggregator data is expected, not an
// error) and records dated before cutoff are discarded. Output is stable
// for a fixed input set regardless of input ordering.
func Build(txns []core.Transaction, cutoff time.Time) Window {
	classified := make([]core.ClassifiedTransaction, 0, len(txns))
	for _, t := range txns {
		date, ok := parseDate(t.Date)
		if !ok || date.Before(cutoff) {
			continue
		}
		catText := strings.Join(t.Category, " ")
		income := classify.IsIncome(t.Name, catText)
		signed := t.Amount
		if !income {
			signed = -t.Amount
		}
		classified = append(classified, core.ClassifiedTransaction{
			Date:          date,
			Name:          t.Name,
			Category:      categoryOf(t),
			SignedAmount:  signed,
			TransactionID: t.TransactionID,
		})
	}

	sort.SliceStable(classified, func(i, j int) bool {
		return classified[i].Date.Before(classified[j].Date)
	})

	incomeByDay := map[string]float64{}
	expenseByDay := map[string]float64{}
	categoryTotals := map[string]float64{}
	var totalIncome, totalExpenses float64

	for _, ct := range classified {
		day := ct.Date.Format(dayFormat)
		if ct.SignedAmount >= 0 {
			incomeByDay[day] += ct.SignedAmount
			totalIncome += ct.SignedAmount
		} else {
			amount := -ct.SignedAmount
			expenseByDay[day] += amount
			categoryTotals[ct.Category] += amount
			totalExpenses += amount
		}
	}

	labels := dayLabels(incomeByDay, expenseByDay)
	w := Window{
		Cutoff:         cutoff,
		Labels:         labels,
		Income:         make([]float64, len(labels)),
		Expenses:       make([]float64, len(labels)),
		CategoryTotals: make(map[string]float64, len(categoryTotals)),
		TotalIncome:    core.Round2(totalIncome),
		TotalExpenses:  core.Round2(totalExpenses),
		Transactions:   classified,
	}
	for i, day := range labels {
		w.Income[i] = core.Round2(incomeByDay[day])
		w.Expenses[i] = core.Round2(expenseByDay[day])
	}
	for cat, sum := range categoryTotals {
		w.CategoryTotals[cat] = core.Round2(sum)
	}
	for i := range w.Transactions {
		w.Transactions[i].SignedAmount = core.Round2(w.Transactions[i].SignedAmount)
	}
	return w
}

// categoryOf picks the structured-token categorizer when the aggregator
// sent category tokens and falls back to label matching otherwise. The
// two categorizers stay independent; this is only a dispatch.
func categoryOf(t core.Transaction) string {
	if len(t.Category) > 0 {
		return classify.ResolveCategory(t.Category)
	}
	return classify.AssignCategory(t.Name)
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func dayLabels(income, expense map[string]float64) []string {
	seen := make(map[string]struct{}, len(income)+len(expense))
	labels := make([]string, 0, len(income)+len(expense))
	for day := range income {
		if _, ok := seen[day]; !ok {
			seen[day] = struct{}{}
			labels = append(labels, day)
		}
	}
	for day := range expense {
		if _, ok := seen[day]; !ok {
			seen[day] = struct{}{}
			labels = append(labels, day)
		}
	}
	sort.Strings(labels)
	return labels
}
