package transactions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the transactions table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id          VARCHAR(32) PRIMARY KEY,
			user_id     VARCHAR(32) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			date        TIMESTAMPTZ NOT NULL,
			description VARCHAR(500) NOT NULL DEFAULT '',
			amount      NUMERIC(20,4) NOT NULL,
			type        VARCHAR(10) NOT NULL,
			category    VARCHAR(100) NOT NULL DEFAULT '',
			channel     VARCHAR(50) NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, created_at DESC, id DESC);
	`)
	return err
}

// CreateBatch inserts records in one transaction using COPY.
func (p *PostgresStore) CreateBatch(ctx context.Context, records []*Record) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("transactions",
		"id", "user_id", "date", "description", "amount", "type", "category", "channel", "created_at"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.UserID, r.Date, r.Description, r.Amount, r.Type, r.Category, r.Channel, r.CreatedAt,
		); err != nil {
			stmt.Close()
			return fmt.Errorf("copy record: %w", err)
		}
	}
	// Flush the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}

	return tx.Commit()
}

// ListByUser returns a page of a user's transactions, newest first.
func (p *PostgresStore) ListByUser(ctx context.Context, userID string, limit int, afterCreatedAt time.Time, afterID string) ([]*Record, error) {
	var rows *sql.Rows
	var err error
	if afterCreatedAt.IsZero() {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, user_id, date, description, amount, type, category, channel, created_at
			FROM transactions WHERE user_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2
		`, userID, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, user_id, date, description, amount, type, category, channel, created_at
			FROM transactions
			WHERE user_id = $1 AND (created_at, id) < ($3, $4)
			ORDER BY created_at DESC, id DESC LIMIT $2
		`, userID, limit, afterCreatedAt, afterID)
	}
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

// AllByUser returns every transaction for a user, oldest first.
func (p *PostgresStore) AllByUser(ctx context.Context, userID string) ([]*Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, date, description, amount, type, category, channel, created_at
		FROM transactions WHERE user_id = $1
		ORDER BY date ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

// CountByUser returns the number of stored transactions for a user.
func (p *PostgresStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// DeleteByUser removes all of a user's transactions.
func (p *PostgresStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	result, err := p.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(rows), nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var result []*Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.Date, &r.Description, &r.Amount,
			&r.Type, &r.Category, &r.Channel, &r.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}
