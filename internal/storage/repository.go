package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finbook/internal/core"

	_ "modernc.org/sqlite"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so repository methods
// run unchanged inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	db *sql.DB
	q  dbtx
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

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, q: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InTransaction runs fn against a transaction-bound repository. The
// transaction commits when fn returns nil and rolls back otherwise, so
// a failing batch leaves no partial writes. Not reentrant.
func (r *SQLiteRepository) InTransaction(ctx context.Context, fn func(*SQLiteRepository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	if err := fn(&SQLiteRepository{db: r.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetBalance aggregates all persisted transactions.
func (r *SQLiteRepository) GetBalance(ctx context.Context) (core.Balance, error) {
	var income, outcome int64
	err := r.q.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN value_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'outcome' THEN value_cents ELSE 0 END), 0)
		FROM transactions
	`).Scan(&income, &outcome)
	if err != nil {
		return core.Balance{}, fmt.Errorf("aggregate balance: %w", err)
	}

	return core.Balance{
		Income:  core.Money{Cents: income},
		Outcome: core.Money{Cents: outcome},
		Total:   core.Money{Cents: income - outcome},
	}, nil
}

// FindCategoryByTitle looks a category up by exact title match.
// Returns sql.ErrNoRows when absent.
func (r *SQLiteRepository) FindCategoryByTitle(ctx context.Context, title string) (core.Category, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, title, created_at FROM categories WHERE title = ?
	`, title)
	return scanCategory(row)
}

// ResolveCategory returns the category with the given title, creating
// it when absent. The conditional insert makes concurrent resolvers for
// the same new title converge on a single row.
func (r *SQLiteRepository) ResolveCategory(ctx context.Context, title string) (core.Category, error) {
	cand := core.NewCategory(title)
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO categories (id, title, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (title) DO NOTHING
	`, cand.ID, cand.Title, formatTime(cand.CreatedAt))
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}

	cat, err := r.FindCategoryByTitle(ctx, title)
	if err != nil {
		return core.Category{}, fmt.Errorf("find category after upsert: %w", err)
	}

	slog.DebugContext(ctx, "Category resolved",
		"category", cat.Title,
		"category_id", cat.ID,
		"created", cat.ID == cand.ID)

	return cat, nil
}

// InsertTransaction persists a single transaction row.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO transactions (id, title, value_cents, type, category_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.Title, t.Value.Cents, string(t.Type), t.CategoryID, formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns all transactions in creation order, with
// category titles resolved from the same snapshot.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT t.id, t.title, t.value_cents, t.type, t.category_id, c.title, t.created_at
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		ORDER BY t.rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t         core.Transaction
			kind      string
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Value.Cents, &kind, &t.CategoryID, &t.CategoryTitle, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TransactionType(kind)
		t.CreatedAt = parseTime(createdAt)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// DeleteTransaction removes a transaction by ID.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

// ListCategories returns all categories in creation order.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, title, created_at FROM categories ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c         core.Category
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) CountCategories(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

// AuditEntry is one append-only audit record, written by the worker.
type AuditEntry struct {
	ID            int64
	TransactionID string
	Action        string
	Source        string
	RecordedAt    time.Time
}

func (r *SQLiteRepository) RecordAudit(ctx context.Context, e AuditEntry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_log (transaction_id, action, source, recorded_at)
		VALUES (?, ?, ?, ?)
	`, e.TransactionID, e.Action, e.Source, formatTime(e.RecordedAt))
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, transaction_id, action, source, recorded_at
		FROM audit_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e          AuditEntry
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.Action, &e.Source, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.RecordedAt = parseTime(recordedAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}

// IsNotFound reports whether err means a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func scanCategory(row *sql.Row) (core.Category, error) {
	var (
		c         core.Category
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Title, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
