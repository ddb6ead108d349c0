package report

import (
	"context"
	"time"

	"budgetmind/internal/core"
)

// ScanReport is the advisor-facing record of one completed vulnerability
// scan: when it ran, the window it covered, and the snapshots it produced.
type ScanReport struct {
	RequestID    string
	RanAt        time.Time
	LookbackDays int
	Snapshots    []core.VulnerabilitySnapshot
}

// Ports for outbound adapters.
type (
	// ScanWriter appends a scan report to an external compliance log.
	ScanWriter interface {
		AppendScanReport(ctx context.Context, r ScanReport) (rowRef string, err error)
	}
)
