// Package classify decides transaction direction and spending category
// from aggregator text fields. All functions are pure: they are called
// for every transaction in every aggregation and must stay cheap.
package classify

import "strings"

// incomeKeywords mark a transaction as money-in when any of them appears
// in the label or category text. Substring match, not whole-word:
// "INTRST PYMNT" and "Interest Payment" both hit.
var incomeKeywords = []string{
	"payroll",
	"deposit",
	"credit",
	"refund",
	"interest",
	"intrst",
}

// IsIncome reports whether a transaction with the given label and
// category text represents income. The amount is never consulted: a
// refunded purchase is income regardless of its magnitude, and the
// aggregator's sign convention is not trusted.
func IsIncome(label, category string) bool {
	text := strings.ToLower(label + " " + category)
	for _, kw := range incomeKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
