package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fastRetry keeps failure-path tests quick.
var fastRetry = RetryConfig{MaxAttempts: 1, BaseDelay: 10 * time.Millisecond}

// ---------------------------------------------------------------------------
// MemoryStore tests
// ---------------------------------------------------------------------------

func TestMemoryStore_CRUD(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sub := &Subscription{
		ID:        "whk_test1",
		UserID:    "usr_1",
		URL:       "https://example.com/hook",
		Secret:    "secret123",
		Events:    []EventType{EventAnalysisCompleted},
		Active:    true,
		CreatedAt: time.Now(),
	}

	// Create
	if err := store.Create(ctx, sub); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Get
	got, err := store.Get(ctx, "whk_test1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.URL != "https://example.com/hook" {
		t.Errorf("Expected URL, got %s", got.URL)
	}

	// Update
	sub.Active = false
	store.Update(ctx, sub)
	got, _ = store.Get(ctx, "whk_test1")
	if got.Active {
		t.Error("Expected inactive after update")
	}

	// Delete
	store.Delete(ctx, "whk_test1")
	_, err = store.Get(ctx, "whk_test1")
	if err == nil {
		t.Error("Expected error after delete")
	}
}

func TestMemoryStore_GetByUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Create(ctx, &Subscription{ID: "whk1", UserID: "usr_a", Events: []EventType{EventAnalysisCompleted}})
	store.Create(ctx, &Subscription{ID: "whk2", UserID: "usr_b", Events: []EventType{EventAnalysisCompleted}})
	store.Create(ctx, &Subscription{ID: "whk3", UserID: "usr_a", Events: []EventType{EventAnalysisFailed}})

	subs, _ := store.GetByUser(ctx, "usr_a")
	if len(subs) != 2 {
		t.Errorf("Expected 2 subs for usr_a, got %d", len(subs))
	}
}

func TestMemoryStore_GetByEvent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Create(ctx, &Subscription{ID: "whk1", Events: []EventType{EventAnalysisCompleted, EventTransactionsIngested}})
	store.Create(ctx, &Subscription{ID: "whk2", Events: []EventType{EventAnalysisFailed}})
	store.Create(ctx, &Subscription{ID: "whk3", Events: []EventType{EventAnalysisCompleted}})

	subs, _ := store.GetByEvent(ctx, EventAnalysisCompleted)
	if len(subs) != 2 {
		t.Errorf("Expected 2 subs for analysis.completed, got %d", len(subs))
	}
}

// ---------------------------------------------------------------------------
// Signature tests
// ---------------------------------------------------------------------------

func TestSign(t *testing.T) {
	payload := []byte(`{"type":"analysis.completed","data":{}}`)
	secret := "test_secret_key"

	sig := sign(payload, secret)

	// Verify manually
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))

	if sig != expected {
		t.Errorf("Signature mismatch: got %s, want %s", sig, expected)
	}
}

func TestSign_DifferentSecrets(t *testing.T) {
	payload := []byte(`{"test": true}`)
	sig1 := sign(payload, "secret1")
	sig2 := sign(payload, "secret2")

	if sig1 == sig2 {
		t.Error("Different secrets should produce different signatures")
	}
}

// ---------------------------------------------------------------------------
// Dispatch tests
// ---------------------------------------------------------------------------

func TestDispatch_SendsToSubscribers(t *testing.T) {
	store := NewMemoryStore()

	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(200)
	}))
	defer server.Close()

	ctx := context.Background()
	store.Create(ctx, &Subscription{
		ID:     "whk1",
		URL:    server.URL,
		Events: []EventType{EventAnalysisCompleted},
		Active: true,
	})

	d := NewDispatcher(store)
	event := &Event{
		Type:      EventAnalysisCompleted,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"overallRiskScore": 12.5},
	}

	err := d.Dispatch(ctx, event)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	// Wait for async delivery
	time.Sleep(200 * time.Millisecond)

	if received.Load() != 1 {
		t.Errorf("Expected 1 webhook delivery, got %d", received.Load())
	}
}

func TestDispatch_SkipsInactiveSubscribers(t *testing.T) {
	store := NewMemoryStore()

	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(200)
	}))
	defer server.Close()

	ctx := context.Background()
	store.Create(ctx, &Subscription{
		ID:     "whk1",
		URL:    server.URL,
		Events: []EventType{EventAnalysisCompleted},
		Active: false, // Inactive
	})

	d := NewDispatcher(store)
	d.Dispatch(ctx, &Event{Type: EventAnalysisCompleted, Timestamp: time.Now()})

	time.Sleep(200 * time.Millisecond)

	if received.Load() != 0 {
		t.Errorf("Expected 0 deliveries for inactive sub, got %d", received.Load())
	}
}

func TestDispatch_IncludesSignature(t *testing.T) {
	store := NewMemoryStore()

	var mu sync.Mutex
	var gotSig string
	var gotBody []byte
	secret := "test_webhook_secret" //nolint:gosec // test credential

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotSig = r.Header.Get("X-Credlens-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer server.Close()

	ctx := context.Background()
	store.Create(ctx, &Subscription{
		ID:     "whk1",
		URL:    server.URL,
		Events: []EventType{EventAnalysisCompleted},
		Active: true,
		Secret: secret,
	})

	d := NewDispatcher(store)
	d.Dispatch(ctx, &Event{
		Type:      EventAnalysisCompleted,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"riskCategory": "LOW"},
	})

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if gotSig == "" {
		t.Fatal("Expected signature header")
	}

	// Verify signature
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(gotBody)
	expected := hex.EncodeToString(h.Sum(nil))

	if gotSig != expected {
		t.Errorf("Signature mismatch: %s != %s", gotSig, expected)
	}
}

func TestDispatch_IncludesEventHeaders(t *testing.T) {
	store := NewMemoryStore()

	var mu sync.Mutex
	var gotEventType string
	var gotTimestamp string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotEventType = r.Header.Get("X-Credlens-Event")
		gotTimestamp = r.Header.Get("X-Credlens-Timestamp")
		w.WriteHeader(200)
	}))
	defer server.Close()

	ctx := context.Background()
	store.Create(ctx, &Subscription{
		ID:     "whk1",
		URL:    server.URL,
		Events: []EventType{EventTransactionsIngested},
		Active: true,
	})

	d := NewDispatcher(store)
	d.Dispatch(ctx, &Event{Type: EventTransactionsIngested, Timestamp: time.Now()})

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if gotEventType != "transactions.ingested" {
		t.Errorf("Expected event type transactions.ingested, got %s", gotEventType)
	}
	if gotTimestamp == "" {
		t.Error("Expected timestamp header")
	}
}

func TestDispatch_PayloadFormat(t *testing.T) {
	store := NewMemoryStore()

	var mu sync.Mutex
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer server.Close()

	ctx := context.Background()
	store.Create(ctx, &Subscription{
		ID:     "whk1",
		URL:    server.URL,
		Events: []EventType{EventAnalysisCompleted},
		Active: true,
	})

	d := NewDispatcher(store)
	d.Dispatch(ctx, &Event{
		Type:      EventAnalysisCompleted,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"userId": "usr_1", "riskCategory": "MEDIUM"},
	})

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	var parsed Event
	if err := json.Unmarshal(gotBody, &parsed); err != nil {
		t.Fatalf("Failed to parse webhook payload: %v", err)
	}
	if parsed.Type != EventAnalysisCompleted {
		t.Errorf("Expected type analysis.completed, got %s", parsed.Type)
	}
}

func TestDispatch_ErrorUpdatesSubscription(t *testing.T) {
	store := NewMemoryStore()

	// Server that returns 500
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer server.Close()

	ctx := context.Background()
	store.Create(ctx, &Subscription{
		ID:     "whk1",
		URL:    server.URL,
		Events: []EventType{EventAnalysisCompleted},
		Active: true,
	})

	d := NewDispatcherWithRetry(store, fastRetry)
	d.Dispatch(ctx, &Event{Type: EventAnalysisCompleted, Timestamp: time.Now()})

	time.Sleep(200 * time.Millisecond)

	sub, _ := store.Get(ctx, "whk1")
	if sub.LastError == "" {
		t.Error("Expected lastError to be set after 500 response")
	}
	if sub.ConsecutiveFailures != 1 {
		t.Errorf("Expected 1 consecutive failure, got %d", sub.ConsecutiveFailures)
	}
}

func TestDispatch_SuccessUpdatesSubscription(t *testing.T) {
	store := NewMemoryStore()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer server.Close()

	ctx := context.Background()
	store.Create(ctx, &Subscription{
		ID:     "whk1",
		URL:    server.URL,
		Events: []EventType{EventAnalysisCompleted},
		Active: true,
	})

	d := NewDispatcher(store)
	d.Dispatch(ctx, &Event{Type: EventAnalysisCompleted, Timestamp: time.Now()})

	time.Sleep(200 * time.Millisecond)

	sub, _ := store.Get(ctx, "whk1")
	if sub.LastSuccess == nil {
		t.Error("Expected lastSuccess to be set after successful delivery")
	}
	if sub.LastError != "" {
		t.Errorf("Expected no error after success, got %s", sub.LastError)
	}
}

func TestDispatch_ClientErrorDoesNotRetry(t *testing.T) {
	store := NewMemoryStore()

	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(400)
	}))
	defer server.Close()

	ctx := context.Background()
	store.Create(ctx, &Subscription{
		ID:     "whk1",
		URL:    server.URL,
		Events: []EventType{EventAnalysisCompleted},
		Active: true,
	})

	d := NewDispatcherWithRetry(store, RetryConfig{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond})
	d.Dispatch(ctx, &Event{Type: EventAnalysisCompleted, Timestamp: time.Now()})

	time.Sleep(300 * time.Millisecond)

	if received.Load() != 1 {
		t.Errorf("Expected exactly 1 attempt for a 4xx response, got %d", received.Load())
	}
}

func TestDispatch_DisablesAfterRepeatedFailures(t *testing.T) {
	store := NewMemoryStore()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
	}))
	defer server.Close()

	ctx := context.Background()
	store.Create(ctx, &Subscription{
		ID:                  "whk1",
		URL:                 server.URL,
		Events:              []EventType{EventAnalysisCompleted},
		Active:              true,
		ConsecutiveFailures: maxConsecutiveFailures - 1,
	})

	d := NewDispatcherWithRetry(store, fastRetry)
	d.Dispatch(ctx, &Event{Type: EventAnalysisCompleted, Timestamp: time.Now()})

	time.Sleep(200 * time.Millisecond)

	sub, _ := store.Get(ctx, "whk1")
	if sub.Active {
		t.Error("Expected subscription disabled after repeated failures")
	}
}

// ---------------------------------------------------------------------------
// DispatchToUser tests
// ---------------------------------------------------------------------------

func TestDispatchToUser_FiltersCorrectly(t *testing.T) {
	store := NewMemoryStore()

	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(200)
	}))
	defer server.Close()

	ctx := context.Background()
	// User A has 2 hooks
	store.Create(ctx, &Subscription{ID: "whk1", UserID: "usr_a", URL: server.URL, Events: []EventType{EventAnalysisCompleted}, Active: true})
	store.Create(ctx, &Subscription{ID: "whk2", UserID: "usr_a", URL: server.URL, Events: []EventType{EventAnalysisFailed}, Active: true})
	// User B has 1 hook
	store.Create(ctx, &Subscription{ID: "whk3", UserID: "usr_b", URL: server.URL, Events: []EventType{EventAnalysisCompleted}, Active: true})

	d := NewDispatcher(store)
	d.DispatchToUser(ctx, "usr_a", &Event{Type: EventAnalysisCompleted, Timestamp: time.Now()})

	time.Sleep(200 * time.Millisecond)

	if received.Load() != 1 {
		t.Errorf("Expected 1 delivery (user A, analysis.completed only), got %d", received.Load())
	}
}

func TestDispatchToUser_NoMatchingEvents(t *testing.T) {
	store := NewMemoryStore()

	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(200)
	}))
	defer server.Close()

	ctx := context.Background()
	store.Create(ctx, &Subscription{ID: "whk1", UserID: "usr_a", URL: server.URL, Events: []EventType{EventAnalysisFailed}, Active: true})

	d := NewDispatcher(store)
	d.DispatchToUser(ctx, "usr_a", &Event{Type: EventAnalysisCompleted, Timestamp: time.Now()})

	time.Sleep(200 * time.Millisecond)

	if received.Load() != 0 {
		t.Errorf("Expected 0 deliveries for non-matching event, got %d", received.Load())
	}
}
