package users

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

// NewPostgresStore creates a new PostgreSQL-backed user store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the users table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id             VARCHAR(32) PRIMARY KEY,
			name           VARCHAR(200) NOT NULL,
			email          VARCHAR(320) NOT NULL DEFAULT '',
			account_number VARCHAR(18) NOT NULL UNIQUE,
			ifsc_code      VARCHAR(11) NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_created ON users(created_at DESC, id DESC);
	`)
	return err
}

// Create inserts a new user, rejecting duplicate account numbers.
func (p *PostgresStore) Create(ctx context.Context, u *User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, account_number, ifsc_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Name, u.Email, u.AccountNumber, u.IFSCCode, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID.
func (p *PostgresStore) Get(ctx context.Context, id string) (*User, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, email, account_number, ifsc_code, created_at, updated_at
		FROM users WHERE id = $1
	`, id)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByAccountNumber retrieves a user by bank account number.
func (p *PostgresStore) GetByAccountNumber(ctx context.Context, accountNumber string) (*User, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, email, account_number, ifsc_code, created_at, updated_at
		FROM users WHERE account_number = $1
	`, accountNumber)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by account: %w", err)
	}
	return u, nil
}

// Update modifies a user's mutable fields.
func (p *PostgresStore) Update(ctx context.Context, u *User) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET name = $2, email = $3, updated_at = $4 WHERE id = $1
	`, u.ID, u.Name, u.Email, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user. Dependent transaction and assessment rows cascade.
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List returns a page of users ordered by creation time descending,
// starting after the given cursor position when one is set.
func (p *PostgresStore) List(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]*User, error) {
	var rows *sql.Rows
	var err error
	if afterCreatedAt.IsZero() {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, name, email, account_number, ifsc_code, created_at, updated_at
			FROM users ORDER BY created_at DESC, id DESC LIMIT $1
		`, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, name, email, account_number, ifsc_code, created_at, updated_at
			FROM users
			WHERE (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC LIMIT $1
		`, limit, afterCreatedAt, afterID)
	}
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// scannable abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scannable interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scannable) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.AccountNumber, &u.IFSCCode, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
