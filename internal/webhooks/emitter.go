package webhooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/credlens/credlens/internal/idgen"
)

var (
	emitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credlens",
		Subsystem: "webhook",
		Name:      "emit_total",
		Help:      "Webhook events emitted by type.",
	}, []string{"event_type"})

	emitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credlens",
		Subsystem: "webhook",
		Name:      "emit_errors_total",
		Help:      "Webhook dispatch errors by type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(emitTotal, emitErrors)
}

// Emitter publishes domain events to webhook subscribers. It satisfies
// the analysis notifier interface so the analysis service never imports
// this package directly.
type Emitter struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(dispatcher *Dispatcher, logger *slog.Logger) *Emitter {
	return &Emitter{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// AnalysisCompleted emits an analysis.completed event for a user.
func (e *Emitter) AnalysisCompleted(userID, assessmentID string, score float64, category string, eligible bool) {
	e.emitToUser(userID, EventAnalysisCompleted, map[string]interface{}{
		"userId":           userID,
		"assessmentId":     assessmentID,
		"overallRiskScore": score,
		"riskCategory":     category,
		"loanEligible":     eligible,
	})
}

// AnalysisFailed emits an analysis.failed event for a user.
func (e *Emitter) AnalysisFailed(userID, reason string) {
	e.emitToUser(userID, EventAnalysisFailed, map[string]interface{}{
		"userId": userID,
		"reason": reason,
	})
}

// TransactionsIngested emits a transactions.ingested event after a batch
// has been accepted.
func (e *Emitter) TransactionsIngested(userID string, count int) {
	e.emitToUser(userID, EventTransactionsIngested, map[string]interface{}{
		"userId": userID,
		"count":  count,
	})
}

// UserCreated emits a user.created event.
func (e *Emitter) UserCreated(userID string) {
	e.emitToUser(userID, EventUserCreated, map[string]interface{}{
		"userId": userID,
	})
}

// UserDeleted emits a user.deleted event.
func (e *Emitter) UserDeleted(userID string) {
	e.emitToUser(userID, EventUserDeleted, map[string]interface{}{
		"userId": userID,
	})
}

func (e *Emitter) emitToUser(userID string, eventType EventType, data map[string]interface{}) {
	if e == nil || e.dispatcher == nil {
		return
	}

	event := &Event{
		ID:        idgen.WithPrefix(idgen.PrefixEvent),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	emitTotal.WithLabelValues(string(eventType)).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	go func() {
		defer cancel()
		if err := e.dispatcher.DispatchToUser(ctx, userID, event); err != nil {
			emitErrors.WithLabelValues(string(eventType)).Inc()
			if e.logger != nil {
				e.logger.Warn("webhook dispatch failed",
					"event_type", eventType,
					"user_id", userID,
					"error", err)
			}
		}
	}()
}
