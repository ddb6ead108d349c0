package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	ports "budgetmind/internal/report"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	scansSheet    string
}

// Ensure interface conformance
var _ ports.ScanWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: REPORT_SPREADSHEET_ID
// Optional: REPORT_SHEET_NAME (default "Scans"),
// GOOGLE_SERVICE_ACCOUNT_JSON / GOOGLE_SERVICE_ACCOUNT_FILE /
// GOOGLE_APPLICATION_CREDENTIALS for auth.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("REPORT_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing REPORT_SPREADSHEET_ID")
	}

	scansSheet := strings.TrimSpace(os.Getenv("REPORT_SHEET_NAME"))
	if scansSheet == "" {
		scansSheet = "Scans"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		scansSheet:    scansSheet,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "sheet", "scans")
	return service, nil
}

// AppendScanReport writes one row per snapshot plus a summary row to the
// scans sheet. Rows are appended after the last used row.
func (c *Client) AppendScanReport(ctx context.Context, r ports.ScanReport) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	// Find the next empty row by reading the first column.
	rng := fmt.Sprintf("%s!A:A", c.scansSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get sheet dimensions for %s: %w", c.scansSheet, err)
	}
	firstRow := len(resp.Values) + 1

	ranAt := r.RanAt.UTC().Format(time.RFC3339)
	rows := make([][]any, 0, len(r.Snapshots)+1)
	rows = append(rows, []any{
		r.RequestID, ranAt, r.LookbackDays, "summary", len(r.Snapshots), "", "", "",
	})
	for _, s := range r.Snapshots {
		rows = append(rows, []any{
			r.RequestID,
			ranAt,
			s.UserID,
			string(s.RiskLevel),
			s.PercentIncomeLeft,
			s.TotalIncome,
			s.TotalExpenses,
			s.CurrentBalance,
		})
	}

	lastRow := firstRow + len(rows) - 1
	dataRange := fmt.Sprintf("%s!A%d:H%d", c.scansSheet, firstRow, lastRow)
	vr := &gsheet.ValueRange{Values: rows}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", dataRange, err)
	}

	slog.InfoContext(ctx, "Appended scan report",
		"request_id", r.RequestID,
		"snapshots", len(r.Snapshots),
		"range", dataRange)

	return dataRange, nil
}
