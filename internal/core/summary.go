package core

// CategoryTotal is an expense total aggregated by category name.
type CategoryTotal struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

// Summary is the all-time ledger overview for one user: totals plus
// expense categories sorted by descending total.
type Summary struct {
	Income     float64         `json:"income"`
	Expense    float64         `json:"expense"`
	Categories []CategoryTotal `json:"categories"`
}
