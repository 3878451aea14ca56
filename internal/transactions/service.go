package transactions

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/credlens/credlens/internal/idgen"
	"github.com/credlens/credlens/internal/logging"
	"github.com/credlens/credlens/internal/metrics"
	"github.com/credlens/credlens/internal/traces"
	"github.com/credlens/credlens/internal/validation"
)

// Events receives ingest notifications. Implemented by the webhooks
// emitter.
type Events interface {
	TransactionsIngested(userID string, count int)
}

// Service provides transaction ingest and query logic.
type Service struct {
	store  Store
	users  UserDirectory
	events Events
}

// NewService creates a new transaction service.
func NewService(store Store, users UserDirectory) *Service {
	return &Service{store: store, users: users}
}

// WithEvents attaches an ingest event emitter.
func (s *Service) WithEvents(ev Events) *Service {
	s.events = ev
	return s
}

// Ingest validates and stores a batch of transactions for a user. The
// batch is all-or-nothing: one malformed record rejects the whole upload
// so a partial statement can never skew later analyses.
func (s *Service) Ingest(ctx context.Context, userID string, req IngestRequest) ([]*Record, error) {
	ctx, span := traces.StartSpan(ctx, "transactions.ingest",
		traces.UserID(userID), traces.BatchSize(len(req.Transactions)))
	defer span.End()

	if len(req.Transactions) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(req.Transactions) > MaxBatchSize {
		metrics.IngestBatchesTotal.WithLabelValues("rejected").Inc()
		return nil, ErrBatchTooLarge
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	now := time.Now().UTC()
	records := make([]*Record, 0, len(req.Transactions))
	for i, item := range req.Transactions {
		if err := validateItem(i, item, now); err != nil {
			metrics.IngestBatchesTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		records = append(records, &Record{
			ID:          idgen.WithPrefix(idgen.PrefixTransaction),
			UserID:      userID,
			Date:        item.Date.UTC(),
			Description: validation.SanitizeString(item.Description, 500),
			Amount:      item.Amount,
			Type:        strings.ToUpper(strings.TrimSpace(item.Type)),
			Category:    validation.SanitizeString(item.Category, 100),
			Channel:     validation.SanitizeString(item.Channel, 50),
			CreatedAt:   now,
		})
	}

	if err := s.store.CreateBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("store batch: %w", err)
	}

	metrics.IngestBatchesTotal.WithLabelValues("accepted").Inc()
	metrics.TransactionsIngestedTotal.Add(float64(len(records)))
	if s.events != nil {
		s.events.TransactionsIngested(userID, len(records))
	}

	logging.L(ctx).Info("transactions ingested", "user_id", userID, "count", len(records))
	return records, nil
}

func validateItem(index int, item IngestItem, now time.Time) error {
	if !(item.Amount > 0) || math.IsInf(item.Amount, 1) {
		return fmt.Errorf("%w: record %d: amount must be positive and finite", ErrInvalidRecord, index)
	}
	typ := strings.ToUpper(strings.TrimSpace(item.Type))
	if typ != "CREDIT" && typ != "DEBIT" {
		return fmt.Errorf("%w: record %d: type must be CREDIT or DEBIT", ErrInvalidRecord, index)
	}
	if item.Date.IsZero() {
		return fmt.Errorf("%w: record %d: date is required", ErrInvalidRecord, index)
	}
	if item.Date.After(now) {
		return fmt.Errorf("%w: record %d: date is in the future", ErrInvalidRecord, index)
	}
	return nil
}

// List returns a page of a user's transactions, newest first.
func (s *Service) List(ctx context.Context, userID string, limit int, afterCreatedAt time.Time, afterID string) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByUser(ctx, userID, limit, afterCreatedAt, afterID)
}

// History returns every stored transaction for a user, for analysis.
func (s *Service) History(ctx context.Context, userID string) ([]*Record, error) {
	return s.store.AllByUser(ctx, userID)
}

// Count returns how many transactions are stored for a user.
func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	return s.store.CountByUser(ctx, userID)
}

// Purge removes all of a user's transactions and returns how many were
// deleted.
func (s *Service) Purge(ctx context.Context, userID string) (int, error) {
	return s.store.DeleteByUser(ctx, userID)
}
