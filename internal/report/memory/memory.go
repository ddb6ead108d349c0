package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetmind/internal/report"
)

// Store keeps scan reports in memory. Used in tests and when no report
// spreadsheet is configured.
type Store struct {
	mu    sync.Mutex
	items []report.ScanReport
}

func New() *Store {
	return &Store{}
}

// AppendScanReport stores the report and returns a synthetic row reference.
func (s *Store) AppendScanReport(_ context.Context, r report.ScanReport) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, r)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Reports returns a copy of everything appended so far.
func (s *Store) Reports() []report.ScanReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]report.ScanReport, len(s.items))
	copy(out, s.items)
	return out
}
