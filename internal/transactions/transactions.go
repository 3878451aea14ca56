// Package transactions ingests and serves bank transaction histories.
//
// Records arrive in bulk from statement parsers or aggregator feeds and
// are stored append-only: an analysis re-reads the full history every
// time rather than trusting incremental state.
package transactions

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmptyBatch     = errors.New("transaction batch is empty")
	ErrBatchTooLarge  = errors.New("transaction batch exceeds the maximum size")
	ErrInvalidRecord  = errors.New("invalid transaction record")
	ErrRecordNotFound = errors.New("transaction not found")
)

// MaxBatchSize bounds one ingest call. Larger statements are split by
// the caller.
const MaxBatchSize = 5000

// Record is one stored bank transaction.
type Record struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Date        time.Time `json:"date"`
	Description string    `json:"description,omitempty"`
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"` // CREDIT or DEBIT
	Category    string    `json:"category,omitempty"`
	Channel     string    `json:"channel,omitempty"` // UPI, NEFT, card, ATM...
	CreatedAt   time.Time `json:"createdAt"`
}

// IngestItem is one transaction in an ingest request body.
type IngestItem struct {
	Date        time.Time `json:"date" binding:"required"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount" binding:"required"`
	Type        string    `json:"type" binding:"required"`
	Category    string    `json:"category"`
	Channel     string    `json:"channel"`
}

// IngestRequest is the request body for batch transaction upload.
type IngestRequest struct {
	Transactions []IngestItem `json:"transactions" binding:"required"`
}

// Store persists transaction records.
type Store interface {
	CreateBatch(ctx context.Context, records []*Record) error
	ListByUser(ctx context.Context, userID string, limit int, afterCreatedAt time.Time, afterID string) ([]*Record, error)
	AllByUser(ctx context.Context, userID string) ([]*Record, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

// UserDirectory answers whether a user exists. Implemented by the users
// service.
type UserDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}
