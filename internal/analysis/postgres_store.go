package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/credlens/credlens/internal/engine"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL. Summary and
// behavioral blocks are stored as JSONB: they are read back whole, never
// queried field by field.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the assessments table if it doesn't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS assessments (
			id                  VARCHAR(32) PRIMARY KEY,
			user_id             VARCHAR(32) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			overall_risk_score  NUMERIC(6,2) NOT NULL,
			risk_category       VARCHAR(10) NOT NULL,
			loan_eligible       BOOLEAN NOT NULL,
			eligibility_reason  VARCHAR(50) NOT NULL,
			financial_summary   JSONB NOT NULL,
			behavioral_analysis JSONB NOT NULL,
			transaction_count   INTEGER NOT NULL,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_assessments_user ON assessments(user_id, created_at DESC);
	`)
	return err
}

// Create inserts a new assessment.
func (p *PostgresStore) Create(ctx context.Context, a *Assessment) error {
	summary, err := json.Marshal(a.FinancialSummary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	behavior, err := json.Marshal(a.BehavioralAnalysis)
	if err != nil {
		return fmt.Errorf("marshal behavior: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO assessments (
			id, user_id, overall_risk_score, risk_category, loan_eligible,
			eligibility_reason, financial_summary, behavioral_analysis,
			transaction_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.UserID, a.OverallRiskScore, string(a.RiskCategory), a.LoanEligible,
		a.EligibilityReason, summary, behavior, a.TransactionCount, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// Get retrieves an assessment by ID.
func (p *PostgresStore) Get(ctx context.Context, id string) (*Assessment, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, overall_risk_score, risk_category, loan_eligible,
			eligibility_reason, financial_summary, behavioral_analysis,
			transaction_count, created_at
		FROM assessments WHERE id = $1
	`, id)

	a, err := scanAssessment(row)
	if err == sql.ErrNoRows {
		return nil, ErrAssessmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return a, nil
}

// GetLatestByUser retrieves the most recent assessment for a user.
func (p *PostgresStore) GetLatestByUser(ctx context.Context, userID string) (*Assessment, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, overall_risk_score, risk_category, loan_eligible,
			eligibility_reason, financial_summary, behavioral_analysis,
			transaction_count, created_at
		FROM assessments WHERE user_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, userID)

	a, err := scanAssessment(row)
	if err == sql.ErrNoRows {
		return nil, ErrAssessmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest assessment: %w", err)
	}
	return a, nil
}

// ListByUser returns a user's assessments, newest first.
func (p *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, overall_risk_score, risk_category, loan_eligible,
			eligibility_reason, financial_summary, behavioral_analysis,
			transaction_count, created_at
		FROM assessments WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// ListStale returns user IDs whose latest assessment predates olderThan.
func (p *PostgresStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT user_id FROM assessments
		GROUP BY user_id
		HAVING MAX(created_at) < $1
		ORDER BY MAX(created_at) ASC
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		result = append(result, userID)
	}
	return result, rows.Err()
}

// scannable abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scannable interface {
	Scan(dest ...interface{}) error
}

func scanAssessment(row scannable) (*Assessment, error) {
	var a Assessment
	var category string
	var summary, behavior []byte

	err := row.Scan(&a.ID, &a.UserID, &a.OverallRiskScore, &category, &a.LoanEligible,
		&a.EligibilityReason, &summary, &behavior, &a.TransactionCount, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.RiskCategory = engine.RiskCategory(category)
	if err := json.Unmarshal(summary, &a.FinancialSummary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	if err := json.Unmarshal(behavior, &a.BehavioralAnalysis); err != nil {
		return nil, fmt.Errorf("unmarshal behavior: %w", err)
	}
	return &a, nil
}
