package core

import (
	"errors"
	"strings"
	"time"
)

const (
	EntryIncome  EntryType = "income"
	EntryExpense EntryType = "expense"
)

const (
	RiskHigh   RiskTier = "high"
	RiskMedium RiskTier = "medium"
	RiskLow    RiskTier = "low"
)

const (
	LinkPending  LinkStatus = "pending"
	LinkAccepted LinkStatus = "accepted"
)

type (
	EntryType  string
	RiskTier   string
	LinkStatus string

	// Transaction is a raw record from the bank aggregator or the ledger
	// fallback. Amount is an unsigned magnitude; the aggregator gives no
	// sign guarantee, so direction is always derived from the text fields.
	// Category holds the aggregator's category tokens: nil when absent,
	// a single element when the aggregator sent a plain string.
	Transaction struct {
		Date          string
		Name          string
		Category      []string
		Amount        float64
		Currency      string
		TransactionID string
	}

	// ManualEntry is a user-entered ledger row, used as the transaction
	// source when no aggregator connection exists.
	ManualEntry struct {
		ID        string
		UserID    string
		Type      EntryType
		Category  string
		Amount    float64
		CreatedAt time.Time
	}

	// ClassifiedTransaction is a Transaction after direction and category
	// assignment. SignedAmount is positive for income, negative for
	// expenses. Never persisted.
	ClassifiedTransaction struct {
		Date          time.Time
		Name          string
		Category      string
		SignedAmount  float64
		TransactionID string
	}

	// Note is a flag annotation on a user record. The spending-limit
	// evaluator appends at most one note per distinct message.
	Note struct {
		Message   string
		CreatedAt time.Time
	}

	User struct {
		ID            string
		FullName      string
		Username      string
		Email         string
		Role          string
		SpendingLimit *float64
		IsFlagged     bool
		CreatedAt     time.Time
	}

	// AdvisorLink is an advisor-client relationship. Priority is written
	// by the vulnerability scanner for accepted links.
	AdvisorLink struct {
		ID        string
		UserID    string
		AdvisorID string
		Status    LinkStatus
		Priority  string
	}

	// VulnerabilitySnapshot is one row of the scan's full-replace
	// materialized view. Users with more than half their income left get
	// no snapshot at all.
	VulnerabilitySnapshot struct {
		UserID            string
		PercentIncomeLeft float64
		TotalIncome       float64
		TotalExpenses     float64
		NetAmount         float64
		CurrentBalance    float64
		RiskLevel         RiskTier
		ComputedAt        time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidEntryType = errors.New("invalid entry type")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyUserID      = errors.New("empty user id")
)

// ParseEntryType normalizes user input to a known entry type.
func ParseEntryType(s string) (EntryType, error) {
	switch EntryType(strings.ToLower(strings.TrimSpace(s))) {
	case EntryIncome:
		return EntryIncome, nil
	case EntryExpense:
		return EntryExpense, nil
	default:
		return "", ErrInvalidEntryType
	}
}

func (e ManualEntry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrEmptyUserID
	}
	if e.Type != EntryIncome && e.Type != EntryExpense {
		return ErrInvalidEntryType
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if e.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// AsTransaction converts a ledger entry into the aggregator's record
// shape so manual data can flow through the same classification and
// aggregation pipeline. The entry's explicit type is translated into
// aggregator-convention category text ("Transfer Deposit" is the
// aggregator's income category), which the direction classifier then
// reads back out.
func (e ManualEntry) AsTransaction() Transaction {
	category := []string{e.Category}
	if e.Type == EntryIncome {
		category = []string{"Transfer Deposit", e.Category}
	}
	return Transaction{
		Date:          e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		Name:          e.Category,
		Category:      category,
		Amount:        e.Amount,
		Currency:      "USD",
		TransactionID: e.ID,
	}
}

// TierFor maps a percent-of-income-left value to a risk tier. The boolean
// is false when the user is not vulnerable (more than 50% left) and no
// snapshot should exist.
func TierFor(percentLeft float64) (RiskTier, bool) {
	switch {
	case percentLeft <= 20:
		return RiskHigh, true
	case percentLeft <= 40:
		return RiskMedium, true
	case percentLeft <= 50:
		return RiskLow, true
	default:
		return "", false
	}
}
