package transactions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupHandlerTestRouter() (*gin.Engine, *Service) {
	gin.SetMode(gin.TestMode)

	svc := newTestService()
	handler := NewHandler(svc)

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)
	handler.RegisterAdminRoutes(v1)

	return r, svc
}

func ingestBody(t *testing.T, items ...IngestItem) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(IngestRequest{Transactions: items})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewReader(body)
}

func TestHandler_Ingest_201(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/users/"+testUser+"/transactions",
		ingestBody(t, item("2025-01-01", 50000, "CREDIT", "salary")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Ingested int `json:"ingested"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Ingested != 1 {
		t.Errorf("ingested = %d, want 1", resp.Ingested)
	}
}

func TestHandler_Ingest_404_UnknownUser(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/users/usr_ffffffffffffffffffffffff/transactions",
		ingestBody(t, item("2025-01-01", 100, "CREDIT", "")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_Ingest_400_MalformedRecord(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/users/"+testUser+"/transactions",
		ingestBody(t, item("2025-01-01", 100, "TRANSFER", "")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != "invalid_request" {
		t.Errorf("Expected error code invalid_request, got %s", resp.Error)
	}
}

func TestHandler_List_Pagination(t *testing.T) {
	router, svc := setupHandlerTestRouter()

	_, err := svc.Ingest(context.Background(), testUser, IngestRequest{
		Transactions: []IngestItem{
			item("2025-01-01", 50000, "CREDIT", "salary"),
			item("2025-01-05", 3000, "DEBIT", "groceries"),
			item("2025-01-09", 800, "DEBIT", "food"),
		},
	})
	if err != nil {
		t.Fatalf("seed transactions: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/users/"+testUser+"/transactions?limit=2", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count      int    `json:"count"`
		HasMore    bool   `json:"has_more"`
		NextCursor string `json:"next_cursor"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Count != 2 || !resp.HasMore || resp.NextCursor == "" {
		t.Errorf("unexpected page: %+v", resp)
	}

	// Follow the cursor to the last page.
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/users/"+testUser+"/transactions?limit=2&cursor="+resp.NextCursor, nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on page 2, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse page 2: %v", err)
	}
	if resp.Count != 1 || resp.HasMore {
		t.Errorf("unexpected final page: %+v", resp)
	}
}

func TestHandler_Purge_200(t *testing.T) {
	router, svc := setupHandlerTestRouter()

	_, err := svc.Ingest(context.Background(), testUser, IngestRequest{
		Transactions: []IngestItem{item("2025-01-01", 100, "CREDIT", "")},
	})
	if err != nil {
		t.Fatalf("seed transactions: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/v1/users/"+testUser+"/transactions", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Deleted int `json:"deleted"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", resp.Deleted)
	}
}
