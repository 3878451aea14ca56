package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/credlens/credlens/internal/engine"
	"github.com/credlens/credlens/internal/idgen"
	"github.com/credlens/credlens/internal/logging"
	"github.com/credlens/credlens/internal/syncutil"
	"github.com/credlens/credlens/internal/traces"
)

var (
	analysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credlens",
		Subsystem: "analysis",
		Name:      "runs_total",
		Help:      "Completed analysis runs by resulting risk category.",
	}, []string{"risk_category"})

	analysisFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credlens",
		Subsystem: "analysis",
		Name:      "failures_total",
		Help:      "Failed analysis runs by failure kind.",
	}, []string{"kind"})

	eligibilityTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credlens",
		Subsystem: "analysis",
		Name:      "eligibility_total",
		Help:      "Eligibility verdicts by machine-readable reason.",
	}, []string{"reason"})

	analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "credlens",
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "End-to-end analysis run duration.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(analysesTotal, analysisFailures, eligibilityTotal, analysisDuration)
}

// Service runs risk analyses and serves stored assessments.
type Service struct {
	store    Store
	history  HistorySource
	users    UserDirectory
	engine   *engine.Engine
	notifier Notifier
	locks    *syncutil.ContextShardedMutex
	now      func() time.Time
}

// NewService creates a new analysis service. notifier may be nil.
func NewService(store Store, history HistorySource, users UserDirectory, eng *engine.Engine, notifier Notifier) *Service {
	return &Service{
		store:    store,
		history:  history,
		users:    users,
		engine:   eng,
		notifier: notifier,
		locks:    syncutil.NewContextShardedMutex(),
		now:      time.Now,
	}
}

// Run performs a full analysis for the user and persists the result.
// An empty history is a valid run: it produces the worst-case assessment
// rather than an error.
func (s *Service) Run(ctx context.Context, userID string) (*Assessment, error) {
	ctx, span := traces.StartSpan(ctx, "analysis.run", traces.UserID(userID))
	defer span.End()

	// Serialize runs per user so concurrent analyze requests and the
	// refresh timer don't produce duplicate assessments.
	unlock, err := s.locks.LockContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := s.now()

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		analysisFailures.WithLabelValues("user_lookup").Inc()
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		analysisFailures.WithLabelValues("unknown_user").Inc()
		return nil, ErrUserNotFound
	}

	records, err := s.history.History(ctx, userID)
	if err != nil {
		analysisFailures.WithLabelValues("history_load").Inc()
		s.notifyFailure(userID, "history_load_failed")
		return nil, fmt.Errorf("load history: %w", err)
	}

	txns := make([]engine.Transaction, 0, len(records))
	for _, r := range records {
		txns = append(txns, engine.Transaction{
			UserID:      r.UserID,
			Date:        r.Date,
			Description: r.Description,
			Amount:      r.Amount,
			Direction:   engine.Direction(r.Type),
			Category:    r.Category,
			Channel:     r.Channel,
		})
	}

	result, err := s.engine.Analyze(txns)
	if err != nil {
		// Stored records are validated at ingest, so an engine rejection
		// here means the stored data has been corrupted.
		analysisFailures.WithLabelValues("engine").Inc()
		s.notifyFailure(userID, "invalid_history")
		return nil, fmt.Errorf("analyze history: %w", err)
	}

	a := &Assessment{
		ID:                 idgen.WithPrefix(idgen.PrefixAssessment),
		UserID:             userID,
		OverallRiskScore:   result.OverallRiskScore,
		RiskCategory:       result.RiskCategory,
		LoanEligible:       result.LoanEligible,
		EligibilityReason:  result.EligibilityReason,
		FinancialSummary:   result.FinancialSummary,
		BehavioralAnalysis: result.BehavioralAnalysis,
		TransactionCount:   len(records),
		CreatedAt:          s.now().UTC(),
	}

	if err := s.store.Create(ctx, a); err != nil {
		analysisFailures.WithLabelValues("store").Inc()
		s.notifyFailure(userID, "persist_failed")
		return nil, fmt.Errorf("store assessment: %w", err)
	}

	span.SetAttributes(
		traces.AssessmentID(a.ID),
		traces.RiskCategory(string(a.RiskCategory)),
		traces.TransactionCount(a.TransactionCount),
	)

	analysesTotal.WithLabelValues(string(a.RiskCategory)).Inc()
	eligibilityTotal.WithLabelValues(a.EligibilityReason).Inc()
	analysisDuration.Observe(s.now().Sub(start).Seconds())

	if s.notifier != nil {
		s.notifier.AnalysisCompleted(userID, a.ID, a.OverallRiskScore, string(a.RiskCategory), a.LoanEligible)
	}

	logging.L(ctx).Info("analysis completed",
		"user_id", userID,
		"assessment_id", a.ID,
		"score", a.OverallRiskScore,
		"category", a.RiskCategory,
		"eligible", a.LoanEligible,
		"transactions", a.TransactionCount,
	)
	return a, nil
}

func (s *Service) notifyFailure(userID, reason string) {
	if s.notifier != nil {
		s.notifier.AnalysisFailed(userID, reason)
	}
}

// Get returns an assessment by ID.
func (s *Service) Get(ctx context.Context, id string) (*Assessment, error) {
	return s.store.Get(ctx, id)
}

// Latest returns the most recent assessment for a user.
func (s *Service) Latest(ctx context.Context, userID string) (*Assessment, error) {
	return s.store.GetLatestByUser(ctx, userID)
}

// ListByUser returns a user's assessments, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListByUser(ctx, userID, limit)
}

// RefreshStale re-runs analyses whose latest assessment is older than
// maxAge. Returns how many runs completed.
func (s *Service) RefreshStale(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-maxAge)
	userIDs, err := s.store.ListStale(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list stale assessments: %w", err)
	}

	refreshed := 0
	for _, userID := range userIDs {
		if _, err := s.Run(ctx, userID); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				continue // user deleted since the assessment was written
			}
			logging.L(ctx).Warn("stale refresh failed", "user_id", userID, "error", err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}
