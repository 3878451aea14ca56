package analysis

import (
	"context"
	"log/slog"
	"time"
)

// refreshBatchSize bounds one timer pass so a backlog of stale users
// cannot monopolize the database.
const refreshBatchSize = 100

// Timer periodically re-runs analyses whose latest assessment has gone
// stale, so webhook consumers see scores that track newly ingested
// transactions without polling.
type Timer struct {
	service  *Service
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewTimer creates a new stale-assessment refresh timer.
func NewTimer(service *Service, interval, maxAge time.Duration, logger *slog.Logger) *Timer {
	return &Timer{
		service:  service,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the refresh loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.refresh(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) refresh(ctx context.Context) {
	count, err := t.service.RefreshStale(ctx, t.maxAge, refreshBatchSize)
	if err != nil {
		t.logger.Warn("stale assessment refresh failed", "error", err)
		return
	}
	if count > 0 {
		t.logger.Info("stale assessments refreshed", "count", count)
	}
}
