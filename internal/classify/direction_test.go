package classify

import "testing"

func TestIsIncome(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		category string
		want     bool
	}{
		{"payroll deposit", "Payroll Direct Deposit", "", true},
		{"food purchase", "Uber Eats", "Food and Drink", false},
		{"empty input", "", "", false},
		{"keyword in category only", "ACH 99821", "Transfer Deposit", true},
		{"refund beats purchase heuristics", "REFUND Best Buy 4K TV", "Shops", true},
		{"intrst abbreviation", "INTRST PYMNT", "", true},
		{"credit substring", "CREDIT CARD REWARD", "", true},
		{"mixed case", "PaYrOlL acme corp", "", true},
		{"plain merchant", "Starbucks Store #4821", "Food and Drink", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIncome(tt.label, tt.category); got != tt.want {
				t.Errorf("IsIncome(%q, %q) = %v, want %v", tt.label, tt.category, got, tt.want)
			}
		})
	}
}
