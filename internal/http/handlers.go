package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"budgetmind/internal/budget"
	"budgetmind/internal/classify"
	"budgetmind/internal/core"
	applog "budgetmind/internal/log"
)

type createEntryRequest struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

type createEntryResponse struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing X-User-ID header")
		return
	}

	user, err := s.users.GetUser(r.Context(), uid)
	if err != nil {
		slog.ErrorContext(r.Context(), "User lookup failed", "error", err, "user_id", uid)
		writeError(w, http.StatusInternalServerError, "user lookup failed")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}

	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entryType, err := core.ParseEntryType(sanitizeInput(req.Type))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "type must be income or expense")
		return
	}

	amount, err := core.ParseAmount(sanitizeInput(req.Amount))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	category := classify.TitleCase(sanitizeInput(req.Category))
	if category == "" {
		writeError(w, http.StatusUnprocessableEntity, "category is required")
		return
	}

	entry := core.ManualEntry{
		UserID:    uid,
		Type:      entryType,
		Category:  category,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}

	id, err := s.entries.AddEntry(r.Context(), entry)
	if err != nil {
		s.logger.LogError(r.Context(), "Entry save failed", err, applog.ComponentStorage, applog.OpCreate, applog.NewFields().WithUser(uid))
		writeError(w, http.StatusInternalServerError, "could not save entry")
		return
	}
	s.logger.LogEntryRecorded(r.Context(), uid, id, string(entryType), category, amount)

	// A new entry changes every cached window for this user.
	s.windowCache.DeletePrefix(uid + "|")

	// Hand the flag re-evaluation to the worker; without a broker the
	// evaluator runs inline.
	if s.entryPub != nil {
		if err := s.entryPub.PublishEntryRecorded(r.Context(), id, uid, string(entryType)); err != nil {
			slog.ErrorContext(r.Context(), "Entry event publish failed", "error", err, "entry_id", id)
		}
	} else if s.recalc != nil && entryType == core.EntryExpense {
		if err := s.recalc.Recalc(r.Context(), uid); err != nil {
			slog.ErrorContext(r.Context(), "Spending flag recalc failed", "error", err, "user_id", uid)
		}
	}

	writeJSON(w, http.StatusCreated, createEntryResponse{
		ID:       id,
		Type:     string(entryType),
		Category: category,
		Amount:   amount,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing X-User-ID header")
		return
	}

	entries, err := s.entries.EntriesByUser(r.Context(), uid)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Entry listing failed", "error", err, "user_id", uid)
		writeError(w, http.StatusInternalServerError, "could not load entries")
		return
	}

	writeJSON(w, http.StatusOK, summarize(entries))
}

// summarize folds the ledger into all-time totals with expense categories
// sorted by descending total, name ascending on ties.
func summarize(entries []core.ManualEntry) core.Summary {
	var income, expense float64
	byCategory := map[string]float64{}
	for _, e := range entries {
		switch e.Type {
		case core.EntryIncome:
			income += e.Amount
		case core.EntryExpense:
			expense += e.Amount
			byCategory[e.Category] += e.Amount
		}
	}

	categories := make([]core.CategoryTotal, 0, len(byCategory))
	for name, total := range byCategory {
		categories = append(categories, core.CategoryTotal{Name: name, Total: core.Round2(total)})
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Total != categories[j].Total {
			return categories[i].Total > categories[j].Total
		}
		return categories[i].Name < categories[j].Name
	})

	return core.Summary{
		Income:     core.Round2(income),
		Expense:    core.Round2(expense),
		Categories: categories,
	}
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing X-User-ID header")
		return
	}

	days := parseDays(r, s.defaultLookbackDays)
	cacheKey := uid + "|" + strconv.Itoa(days)

	if win, ok := s.windowCache.Get(cacheKey); ok {
		w.Header().Set("X-Cache", "hit")
		writeJSON(w, http.StatusOK, win)
		return
	}

	txns, err := s.txns.RecentTransactions(r.Context(), uid, days)
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction listing failed", "error", err, "user_id", uid, "days", days)
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}

	// Midnight UTC of the cutoff day: bare ISO dates parse as midnight
	// and a transaction dated on the cutoff day must stay in the window.
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)
	win := budget.Build(txns, cutoff)
	s.windowCache.Set(cacheKey, win)

	w.Header().Set("X-Cache", "miss")
	writeJSON(w, http.StatusOK, win)
}

type noteView struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing X-User-ID header")
		return
	}

	notes, err := s.notes.NotesByUser(r.Context(), uid)
	if err != nil {
		slog.ErrorContext(r.Context(), "Note listing failed", "error", err, "user_id", uid)
		writeError(w, http.StatusInternalServerError, "could not load notes")
		return
	}

	views := make([]noteView, 0, len(notes))
	for _, n := range notes {
		views = append(views, noteView{Message: n.Message, CreatedAt: n.CreatedAt})
	}
	writeJSON(w, http.StatusOK, views)
}

type scanRequest struct {
	LookbackDays int `json:"lookback_days"`
}

type scanResponse struct {
	RequestID    string `json:"request_id,omitempty"`
	LookbackDays int    `json:"lookback_days"`
	Status       string `json:"status"`
	Snapshots    int    `json:"snapshots,omitempty"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	uid := userID(r)

	var req scanRequest
	if r.Body != nil {
		// Body is optional; a malformed one is still a client error.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	days := req.LookbackDays
	if days <= 0 {
		days = s.defaultLookbackDays
	}
	if days > 365 {
		days = 365
	}

	if s.scanPub != nil {
		requestID, err := s.scanPub.PublishScanRequest(r.Context(), days, uid)
		if err != nil {
			slog.ErrorContext(r.Context(), "Scan request publish failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "could not queue scan")
			return
		}
		writeJSON(w, http.StatusAccepted, scanResponse{RequestID: requestID, LookbackDays: days, Status: "queued"})
		return
	}

	if s.scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "scanning is not configured")
		return
	}

	snapshots, err := s.scanner.Scan(r.Context(), days)
	if err != nil {
		s.logger.LogError(r.Context(), "Scan failed", err, applog.ComponentRisk, applog.OpScan, applog.NewFields())
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{LookbackDays: days, Status: "completed", Snapshots: len(snapshots)})
}
