// Package analysis orchestrates risk assessments: it loads a user's
// transaction history, runs the scoring engine over it, persists the
// resulting assessment, and notifies webhook subscribers.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/credlens/credlens/internal/engine"
)

var (
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrUserNotFound       = errors.New("user not found")
)

// Assessment is one persisted risk analysis run for a user.
type Assessment struct {
	ID                 string                    `json:"id"`
	UserID             string                    `json:"userId"`
	OverallRiskScore   float64                   `json:"overallRiskScore"`
	RiskCategory       engine.RiskCategory       `json:"riskCategory"`
	LoanEligible       bool                      `json:"loanEligible"`
	EligibilityReason  string                    `json:"eligibilityReason"`
	FinancialSummary   engine.FinancialSummary   `json:"financialSummary"`
	BehavioralAnalysis engine.BehavioralAnalysis `json:"behavioralAnalysis"`
	TransactionCount   int                       `json:"transactionCount"`
	CreatedAt          time.Time                 `json:"createdAt"`
}

// Store persists assessments.
type Store interface {
	Create(ctx context.Context, a *Assessment) error
	Get(ctx context.Context, id string) (*Assessment, error)
	GetLatestByUser(ctx context.Context, userID string) (*Assessment, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

// HistorySource loads a user's full transaction history. Implemented by
// the transactions service.
type HistorySource interface {
	History(ctx context.Context, userID string) ([]*Record, error)
}

// Record mirrors one stored transaction as the analysis layer sees it.
// Declared here so the package depends on data shape, not on the
// transactions package.
type Record struct {
	ID          string
	UserID      string
	Date        time.Time
	Description string
	Amount      float64
	Type        string
	Category    string
	Channel     string
}

// UserDirectory answers whether a user exists.
type UserDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Notifier receives assessment lifecycle events. Implemented by the
// webhooks emitter; a nil Notifier is a no-op.
type Notifier interface {
	AnalysisCompleted(userID, assessmentID string, score float64, category string, eligible bool)
	AnalysisFailed(userID, reason string)
}
