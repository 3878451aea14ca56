// Package webhooks provides event notifications to external services.
//
// Lending platforms register webhook URLs per user to hear about:
// - Completed and failed analysis runs
// - Newly ingested transaction batches
// - User lifecycle changes
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/credlens/credlens/internal/circuitbreaker"
	"github.com/credlens/credlens/internal/retry"
	"github.com/credlens/credlens/internal/syncutil"
)

// EventType represents the type of webhook event
type EventType string

const (
	EventAnalysisCompleted    EventType = "analysis.completed"
	EventAnalysisFailed       EventType = "analysis.failed"
	EventTransactionsIngested EventType = "transactions.ingested"
	EventUserCreated          EventType = "user.created"
	EventUserDeleted          EventType = "user.deleted"
)

// maxConsecutiveFailures before a subscription is disabled automatically.
const maxConsecutiveFailures = 10

// Event represents a webhook event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscription represents a webhook subscription
type Subscription struct {
	ID                  string      `json:"id"`
	UserID              string      `json:"userId"`
	URL                 string      `json:"url"`
	Secret              string      `json:"-"` // Used for HMAC signing
	Events              []EventType `json:"events"`
	Active              bool        `json:"active"`
	CreatedAt           time.Time   `json:"createdAt"`
	LastSuccess         *time.Time  `json:"lastSuccess,omitempty"`
	LastError           string      `json:"lastError,omitempty"`
	ConsecutiveFailures int         `json:"consecutiveFailures"`
}

// Store persists webhook subscriptions
type Store interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	GetByUser(ctx context.Context, userID string) ([]*Subscription, error)
	GetByEvent(ctx context.Context, eventType EventType) ([]*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error
}

// RetryConfig controls delivery retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryConfig is used by NewDispatcher.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
}

// Dispatcher sends webhook events. Each endpoint gets a circuit breaker
// so one dead consumer cannot soak delivery goroutines, and every
// delivery retries transient failures with backoff.
type Dispatcher struct {
	store   Store
	client  *http.Client
	breaker *circuitbreaker.Breaker
	retry   RetryConfig

	// Serializes delivery-state writes per subscription: concurrent
	// deliveries would otherwise race the failure counter.
	state syncutil.ShardedMutex
}

// NewDispatcher creates a new webhook dispatcher
func NewDispatcher(store Store) *Dispatcher {
	return NewDispatcherWithRetry(store, DefaultRetryConfig)
}

// NewDispatcherWithRetry creates a dispatcher with custom retry behavior
func NewDispatcherWithRetry(store Store, retry RetryConfig) *Dispatcher {
	return &Dispatcher{
		store: store,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: circuitbreaker.New(5, 30*time.Second),
		retry:   retry,
	}
}

// Dispatch sends an event to all relevant subscribers
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	subs, err := d.store.GetByEvent(ctx, event.Type)
	if err != nil {
		return fmt.Errorf("failed to get subscribers: %w", err)
	}

	for _, sub := range subs {
		if !sub.Active {
			continue
		}

		// Send async to avoid blocking
		go d.send(ctx, sub, event)
	}

	return nil
}

// DispatchToUser sends an event to a specific user's webhooks
func (d *Dispatcher) DispatchToUser(ctx context.Context, userID string, event *Event) error {
	subs, err := d.store.GetByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get subscriptions: %w", err)
	}

	for _, sub := range subs {
		if !sub.Active {
			continue
		}

		// Check if subscribed to this event type
		for _, et := range sub.Events {
			if et == event.Type {
				go d.send(ctx, sub, event)
				break
			}
		}
	}

	return nil
}

func (d *Dispatcher) send(ctx context.Context, sub *Subscription, event *Event) {
	if !d.breaker.Allow(sub.URL) {
		d.updateError(ctx, sub, "endpoint circuit open")
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.updateError(ctx, sub, "failed to marshal event")
		return
	}

	err = retry.Do(ctx, d.retry.MaxAttempts, d.retry.BaseDelay, func() error {
		return d.deliver(ctx, sub, event, payload)
	})
	if err != nil {
		d.breaker.RecordFailure(sub.URL)
		d.updateError(ctx, sub, err.Error())
		return
	}

	d.breaker.RecordSuccess(sub.URL)
	d.updateSuccess(ctx, sub)
}

func (d *Dispatcher) deliver(ctx context.Context, sub *Subscription, event *Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", sub.URL, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Credlens-Event", string(event.Type))
	req.Header.Set("X-Credlens-Timestamp", fmt.Sprintf("%d", event.Timestamp.Unix()))

	// Sign the payload if secret is set
	if sub.Secret != "" {
		req.Header.Set("X-Credlens-Signature", sign(payload, sub.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		// The consumer rejected the payload; retrying the same bytes
		// cannot help.
		return retry.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	}
	return fmt.Errorf("status %d", resp.StatusCode)
}

func sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func (d *Dispatcher) updateSuccess(ctx context.Context, sub *Subscription) {
	unlock := d.state.Lock(sub.ID)
	defer unlock()

	now := time.Now()
	sub.LastSuccess = &now
	sub.LastError = ""
	sub.ConsecutiveFailures = 0
	d.store.Update(ctx, sub)
}

func (d *Dispatcher) updateError(ctx context.Context, sub *Subscription, errMsg string) {
	unlock := d.state.Lock(sub.ID)
	defer unlock()

	sub.LastError = errMsg
	sub.ConsecutiveFailures++
	if sub.ConsecutiveFailures >= maxConsecutiveFailures {
		sub.Active = false
	}
	d.store.Update(ctx, sub)
}

// MemoryStore is an in-memory implementation for testing and demo mode
type MemoryStore struct {
	subs map[string]*Subscription
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs: make(map[string]*Subscription),
	}
}

func (m *MemoryStore) Create(ctx context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = sub
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sub, ok := m.subs[id]; ok {
		return sub, nil
	}
	return nil, fmt.Errorf("subscription not found")
}

func (m *MemoryStore) GetByUser(ctx context.Context, userID string) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Subscription
	for _, sub := range m.subs {
		if sub.UserID == userID {
			result = append(result, sub)
		}
	}
	return result, nil
}

func (m *MemoryStore) GetByEvent(ctx context.Context, eventType EventType) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Subscription
	for _, sub := range m.subs {
		for _, et := range sub.Events {
			if et == eventType {
				result = append(result, sub)
				break
			}
		}
	}
	return result, nil
}

func (m *MemoryStore) Update(ctx context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = sub
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
	return nil
}
