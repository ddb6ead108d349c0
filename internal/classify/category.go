package classify

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Spending categories form a closed set; AssignCategory never returns
// anything outside it.
const (
	CategoryDining    = "Dining"
	CategoryTransport = "Transport"
	CategoryTravel    = "Travel"
	CategoryShopping  = "Shopping"
	CategoryFitness   = "Fitness"
	CategoryIncome    = "Income"
	CategoryBills     = "Bills"
	CategoryOther     = "Other"
)

type keywordGroup struct {
	category string
	keywords []string
}

// labelGroups are checked in order; the first group with a substring
// match wins. The order is a deliberate tie-break ("uber eats" resolves
// to Dining before "uber" can resolve to Transport) and must not be
// reshuffled.
var labelGroups = []keywordGroup{
	{CategoryDining, []string{
		"uber eats", "doordash", "grubhub", "starbucks", "dunkin",
		"mcdonald", "chipotle", "pizza", "restaurant", "coffee",
		"cafe", "bakery", "diner",
	}},
	{CategoryTransport, []string{
		"uber", "lyft", "taxi", "transit", "metro", "parking",
		"shell", "chevron", "exxon", "gas station", "fuel", "toll",
	}},
	{CategoryTravel, []string{
		"airline", "airlines", "flight", "hotel", "airbnb", "hostel",
		"expedia", "booking.com", "delta", "united air", "cruise",
	}},
	{CategoryShopping, []string{
		"amazon", "walmart", "target", "ebay", "etsy", "best buy",
		"ikea", "mall", "store", "shop",
	}},
	{CategoryFitness, []string{
		"gym", "fitness", "peloton", "yoga", "crossfit", "pilates",
	}},
	{CategoryIncome, []string{
		"payroll", "salary", "paycheck", "deposit", "interest",
	}},
	{CategoryBills, []string{
		"electric", "water", "internet", "phone", "rent", "mortgage",
		"insurance", "utility", "utilities", "comcast", "verizon",
		"bill",
	}},
}

// AssignCategory maps a merchant/label string to a spending category by
// keyword matching. Unmatched labels fall through to Other.
func AssignCategory(label string) string {
	text := strings.ToLower(label)
	for _, g := range labelGroups {
		for _, kw := range g.keywords {
			if strings.Contains(text, kw) {
				return g.category
			}
		}
	}
	return CategoryOther
}

// ResolveCategory is the independent categorizer for structured
// aggregator category token lists (e.g. Plaid's ["Food and Drink",
// "Restaurants"]). It applies its own keyword rules and otherwise
// title-cases the first token.
//
// It deliberately shares no keyword table with AssignCategory; the two
// strategies coexist and are not to be unified.
func ResolveCategory(tokens []string) string {
	if len(tokens) == 0 {
		return CategoryOther
	}
	joined := strings.ToLower(strings.Join(tokens, " "))
	switch {
	case containsAny(joined, "taxi", "ride share", "transportation", "travel by"):
		return CategoryTransport
	case containsAny(joined, "food and drink", "food & drink", "restaurants", "fast food"):
		return CategoryDining
	case containsAny(joined, "payment", "utilities", "subscription", "rent"):
		return CategoryBills
	case containsAny(joined, "travel", "airlines", "lodging"):
		return CategoryTravel
	case containsAny(joined, "payroll", "transfer deposit", "interest earned"):
		return CategoryIncome
	default:
		if t := TitleCase(tokens[0]); t != "" {
			return t
		}
		return CategoryOther
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// TitleCase uppercases the first letter of each space-separated word and
// lowercases the rest. The first letter may be multibyte, so it is
// decoded as a rune rather than sliced as a byte.
func TitleCase(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
