// Package memory is the in-process store backend: the default when no
// SQLite path is configured, and the fake the engine's unit tests run
// against.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"budgetmind/internal/core"

	"github.com/google/uuid"
)

type Store struct {
	mu        sync.Mutex
	users     map[string]*core.User
	notes     map[string][]core.Note
	entries   map[string][]core.ManualEntry
	links     map[string]*core.AdvisorLink
	snapshots map[string]core.VulnerabilitySnapshot
	balances  map[string]float64
}

func New() *Store {
	return &Store{
		users:     map[string]*core.User{},
		notes:     map[string][]core.Note{},
		entries:   map[string][]core.ManualEntry{},
		links:     map[string]*core.AdvisorLink{},
		snapshots: map[string]core.VulnerabilitySnapshot{},
		balances:  map[string]float64{},
	}
}

// AddUser registers a user and returns its id.
func (s *Store) AddUser(u core.User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = &u
	return u.ID
}

func (s *Store) GetUser(_ context.Context, id string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) SetSpendingFlag(_ context.Context, id string, flagged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsFlagged = flagged
	}
	return nil
}

func (s *Store) AddNoteOnce(_ context.Context, id, message string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notes[id] {
		if n.Message == message {
			return false, nil
		}
	}
	s.notes[id] = append(s.notes[id], core.Note{Message: message, CreatedAt: at})
	return true, nil
}

func (s *Store) NotesByUser(_ context.Context, id string) ([]core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Note(nil), s.notes[id]...), nil
}

func (s *Store) AddEntry(_ context.Context, e core.ManualEntry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.entries[e.UserID] = append(s.entries[e.UserID], e)
	return e.ID, nil
}

func (s *Store) EntriesByUser(_ context.Context, userID string) ([]core.ManualEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ManualEntry(nil), s.entries[userID]...), nil
}

// RecentTransactions serves the ledger-fallback transaction source:
// entries from the trailing window converted to the aggregator record
// shape. The window starts at midnight UTC of the cutoff day, so entries
// anywhere on that calendar day are included.
func (s *Store) RecentTransactions(_ context.Context, userID string, days int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	since := time.Now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)
	var out []core.Transaction
	for _, e := range s.entries[userID] {
		if e.CreatedAt.Before(since) {
			continue
		}
		out = append(out, e.AsTransaction())
	}
	return out, nil
}

func (s *Store) CurrentBalance(_ context.Context, userID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

// SetBalance seeds a balance for tests and demos.
func (s *Store) SetBalance(userID string, balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = balance
}

func (s *Store) AddLink(l core.AdvisorLink) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	s.links[l.ID] = &l
	return l.ID
}

func (s *Store) FindAcceptedLinks(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, l := range s.links {
		if l.UserID == userID && l.Status == core.LinkAccepted {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) SetLinkPriority(_ context.Context, linkID string, tier core.RiskTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.links[linkID]; ok {
		l.Priority = string(tier)
	}
	return nil
}

// Link returns a copy of a stored advisor link, for assertions.
func (s *Store) Link(id string) (core.AdvisorLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[id]
	if !ok {
		return core.AdvisorLink{}, false
	}
	return *l, true
}

func (s *Store) ClearSnapshots(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = map[string]core.VulnerabilitySnapshot{}
	return nil
}

func (s *Store) UpsertSnapshot(_ context.Context, snap core.VulnerabilitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.UserID] = snap
	return nil
}

func (s *Store) ListSnapshots(_ context.Context) ([]core.VulnerabilitySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.VulnerabilitySnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
