package classify

import (
	"testing"
	"unicode/utf8"
)

func TestAssignCategory(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"STARBUCKS STORE #123", CategoryDining},
		{"UBER TRIP", CategoryTransport},
		{"RANDOM MERCHANT XYZ", CategoryOther},
		{"UBER EATS 8832", CategoryDining}, // dining group is checked before transport
		{"Delta Air Lines", CategoryTravel},
		{"AMAZON MKTPLACE", CategoryShopping},
		{"Planet Fitness Monthly", CategoryFitness},
		{"ACME PAYROLL", CategoryIncome},
		{"Verizon Wireless", CategoryBills},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := AssignCategory(tt.label); got != tt.want {
				t.Errorf("AssignCategory(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestResolveCategory(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   string
	}{
		{"taxi tokens", []string{"Travel", "Taxi"}, CategoryTransport},
		{"food and drink", []string{"Food and Drink", "Restaurants"}, CategoryDining},
		{"payment", []string{"Payment", "Credit Card"}, CategoryBills},
		{"lodging", []string{"Travel", "Lodging"}, CategoryTravel},
		{"payroll transfer", []string{"Transfer", "Payroll"}, CategoryIncome},
		{"fallback title-cases first token", []string{"PERSONAL CARE", "Laundry"}, "Personal Care"},
		{"empty list", nil, CategoryOther},
		{"blank first token", []string{"   "}, CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveCategory(tt.tokens); got != tt.want {
				t.Errorf("ResolveCategory(%v) = %q, want %q", tt.tokens, got, tt.want)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"groceries", "Groceries"},
		{"weekly GROCERIES run", "Weekly Groceries Run"},
		{"  padded  input ", "Padded Input"},
		{"épicerie", "Épicerie"}, // first letter may be multibyte
		{"über fahrt", "Über Fahrt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := TitleCase(tt.in)
			if got != tt.want {
				t.Errorf("TitleCase(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("TitleCase(%q) produced invalid UTF-8: %q", tt.in, got)
			}
		})
	}
}
