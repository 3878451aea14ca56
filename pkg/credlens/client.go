package credlens

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to a Credlens server.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// AdminSecret, when set, is sent on destructive requests as
	// X-Admin-Secret.
	AdminSecret string
}

// NewClient creates a client for the given base URL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// CreateUser registers a borrower profile.
func (c *Client) CreateUser(ctx context.Context, name, email, accountNumber, ifscCode string) (*User, error) {
	body := map[string]string{
		"name":          name,
		"email":         email,
		"accountNumber": accountNumber,
		"ifscCode":      ifscCode,
	}
	var resp struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/users", body, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// GetUser fetches one user by ID.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var resp struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// DeleteUser removes a user and all dependent data.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/users/"+url.PathEscape(userID), nil, nil)
}

// IngestTransactions uploads a batch of transactions for a user. The whole
// batch is rejected if any record is invalid.
func (c *Client) IngestTransactions(ctx context.Context, userID string, txns []Transaction) (int, error) {
	body := map[string]interface{}{"transactions": txns}
	var resp struct {
		Ingested int `json:"ingested"`
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/transactions"
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return 0, err
	}
	return resp.Ingested, nil
}

// TransactionPage is one page of a user's transaction history.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	NextCursor   string        `json:"next_cursor"`
	HasMore      bool          `json:"has_more"`
}

// ListTransactions returns a page of a user's transactions, newest first.
// Pass the previous page's NextCursor to continue; empty cursor starts over.
func (c *Client) ListTransactions(ctx context.Context, userID string, limit int, cursor string) (*TransactionPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/transactions"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var page TransactionPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Analyze runs a fresh risk analysis over the user's stored history.
func (c *Client) Analyze(ctx context.Context, userID string) (*Assessment, error) {
	var resp struct {
		Assessment *Assessment `json:"assessment"`
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/analyze"
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Assessment, nil
}

// LatestAssessment returns the user's most recent assessment.
func (c *Client) LatestAssessment(ctx context.Context, userID string) (*Assessment, error) {
	var resp struct {
		Assessment *Assessment `json:"assessment"`
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/assessments/latest"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Assessment, nil
}

// CreateWebhookResult carries the one-time secret alongside the subscription.
type CreateWebhookResult struct {
	Webhook *Webhook
	Secret  string // shown only at creation
}

// CreateWebhook subscribes a URL to events for a user. Keep the returned
// secret: it is needed to verify delivery signatures and is never shown
// again.
func (c *Client) CreateWebhook(ctx context.Context, userID, hookURL string, events []string) (*CreateWebhookResult, error) {
	body := map[string]interface{}{"url": hookURL, "events": events}
	var resp struct {
		Webhook *Webhook `json:"webhook"`
		Secret  string   `json:"secret"`
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/webhooks"
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &CreateWebhookResult{Webhook: resp.Webhook, Secret: resp.Secret}, nil
}

// DeleteWebhook removes a subscription.
func (c *Client) DeleteWebhook(ctx context.Context, userID, webhookID string) error {
	path := "/v1/users/" + url.PathEscape(userID) + "/webhooks/" + url.PathEscape(webhookID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// PurgeTransactions deletes all of a user's transactions. Requires the
// client's AdminSecret when the server has one configured.
func (c *Client) PurgeTransactions(ctx context.Context, userID string) error {
	path := "/v1/users/" + url.PathEscape(userID) + "/transactions"
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do executes one request and decodes the response into out (when non-nil).
// Non-2xx responses are returned as *Error.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AdminSecret != "" && method == http.MethodDelete {
		req.Header.Set("X-Admin-Secret", c.AdminSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = "http_error"
			apiErr.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
