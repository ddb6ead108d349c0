// Package storage is the SQLite-backed store for users, ledger entries,
// advisor links, flag notes and vulnerability snapshots. It implements
// every port in internal/risk.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budgetmind/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts a user and returns its id.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (string, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, full_name, username, email, role, spending_limit, is_flagged, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FullName, u.Username, u.Email, u.Role, u.SpendingLimit, u.IsFlagged, u.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return u.ID, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (*core.User, error) {
	var u core.User
	var limit sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, full_name, username, email, role, spending_limit, is_flagged, created_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.FullName, &u.Username, &u.Email, &u.Role, &limit, &u.IsFlagged, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if limit.Valid {
		u.SpendingLimit = &limit.Float64
	}
	return &u, nil
}

func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) SetSpendingFlag(ctx context.Context, id string, flagged bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_flagged = ? WHERE id = ?`, flagged, id)
	if err != nil {
		return fmt.Errorf("set spending flag: %w", err)
	}
	return nil
}

// CurrentBalance reads the user's last synced account balance. Unknown
// users read as zero.
func (r *SQLiteRepository) CurrentBalance(ctx context.Context, userID string) (float64, error) {
	var balance float64
	err := r.db.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current balance: %w", err)
	}
	return balance, nil
}

// SetBalance records a synced account balance.
func (r *SQLiteRepository) SetBalance(ctx context.Context, userID string, balance float64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET balance = ? WHERE id = ?`, balance, userID)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// AddNoteOnce inserts a note unless the user already has one with the
// same message. The uniqueness lives in the schema, so two concurrent
// evaluator runs cannot both insert.
func (r *SQLiteRepository) AddNoteOnce(ctx context.Context, id, message string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notes (user_id, message, created_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, message) DO NOTHING`,
		id, message, at)
	if err != nil {
		return false, fmt.Errorf("insert note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("note rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) NotesByUser(ctx context.Context, id string) ([]core.Note, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT message, created_at FROM notes WHERE user_id = ? ORDER BY created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []core.Note
	for rows.Next() {
		var n core.Note
		if err := rows.Scan(&n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// AddEntry persists a ledger row.
func (r *SQLiteRepository) AddEntry(ctx context.Context, e core.ManualEntry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (id, user_id, type, category, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, string(e.Type), e.Category, e.Amount, e.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("create entry: %w", err)
	}

	slog.InfoContext(ctx, "Ledger entry saved",
		"id", e.ID,
		"user_id", e.UserID,
		"type", e.Type,
		"category", e.Category,
		"amount", e.Amount)
	return e.ID, nil
}

func (r *SQLiteRepository) EntriesByUser(ctx context.Context, userID string) ([]core.ManualEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, category, amount, created_at
		FROM entries WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// RecentTransactions implements the ledger-fallback transaction source:
// ledger rows from the trailing window, converted to the aggregator's
// record shape. The window starts at midnight UTC of the cutoff day, so
// rows anywhere on that calendar day are included.
func (r *SQLiteRepository) RecentTransactions(ctx context.Context, userID string, days int) ([]core.Transaction, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, category, amount, created_at
		FROM entries WHERE user_id = ? AND created_at >= ? ORDER BY created_at`,
		userID, since)
	if err != nil {
		return nil, fmt.Errorf("list recent entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	txns := make([]core.Transaction, len(entries))
	for i, e := range entries {
		txns[i] = e.AsTransaction()
	}
	return txns, nil
}

func scanEntries(rows *sql.Rows) ([]core.ManualEntry, error) {
	var entries []core.ManualEntry
	for rows.Next() {
		var e core.ManualEntry
		var typ string
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &e.Category, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Type = core.EntryType(typ)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreateLink inserts an advisor-client relationship.
func (r *SQLiteRepository) CreateLink(ctx context.Context, l core.AdvisorLink) (string, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = core.LinkPending
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO advisor_links (id, user_id, advisor_id, status, priority)
		VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.AdvisorID, string(l.Status), l.Priority)
	if err != nil {
		return "", fmt.Errorf("create advisor link: %w", err)
	}
	return l.ID, nil
}

func (r *SQLiteRepository) FindAcceptedLinks(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM advisor_links WHERE user_id = ? AND status = 'accepted' ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("find accepted links: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan link id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) SetLinkPriority(ctx context.Context, linkID string, tier core.RiskTier) error {
	_, err := r.db.ExecContext(ctx, `UPDATE advisor_links SET priority = ? WHERE id = ?`, string(tier), linkID)
	if err != nil {
		return fmt.Errorf("set link priority: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ClearSnapshots(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM vulnerability_snapshots`)
	if err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertSnapshot(ctx context.Context, s core.VulnerabilitySnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vulnerability_snapshots
			(user_id, percent_income_left, total_income, total_expenses, net_amount, current_balance, risk_level, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			percent_income_left = excluded.percent_income_left,
			total_income = excluded.total_income,
			total_expenses = excluded.total_expenses,
			net_amount = excluded.net_amount,
			current_balance = excluded.current_balance,
			risk_level = excluded.risk_level,
			computed_at = excluded.computed_at`,
		s.UserID, s.PercentIncomeLeft, s.TotalIncome, s.TotalExpenses,
		s.NetAmount, s.CurrentBalance, string(s.RiskLevel), s.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListSnapshots(ctx context.Context) ([]core.VulnerabilitySnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, percent_income_left, total_income, total_expenses, net_amount, current_balance, risk_level, computed_at
		FROM vulnerability_snapshots ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []core.VulnerabilitySnapshot
	for rows.Next() {
		var s core.VulnerabilitySnapshot
		var tier string
		if err := rows.Scan(&s.UserID, &s.PercentIncomeLeft, &s.TotalIncome, &s.TotalExpenses,
			&s.NetAmount, &s.CurrentBalance, &tier, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.RiskLevel = core.RiskTier(tier)
		out = append(out, s)
	}
	return out, rows.Err()
}
