package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/schoolhub/lessonshop/internal/models"
)

// Client talks to the remote lessons/orders API
type Client struct {
	BaseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client. A zero timeout means no timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithHTTPClient swaps the underlying HTTP client (tests, custom transports).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) apiPath(path string) string {
	return c.BaseURL + path
}

// FetchLessons fetches the full catalog from GET /lessons
func (c *Client) FetchLessons(ctx context.Context) ([]models.Lesson, error) {
	return c.getLessons(ctx, "/lessons")
}

// Search fetches the lessons matching q from GET /search. An empty query
// fetches the full catalog instead.
func (c *Client) Search(ctx context.Context, q string) ([]models.Lesson, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return c.FetchLessons(ctx)
	}
	return c.getLessons(ctx, "/search?q="+url.QueryEscape(q))
}

func (c *Client) getLessons(ctx context.Context, path string) ([]models.Lesson, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiPath(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("GET %s returned %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}

	lessons, err := MapRecords(body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return lessons, nil
}

// CreateOrder posts the order to POST /orders and returns the raw response body.
func (c *Client) CreateOrder(ctx context.Context, order models.OrderRequest) (json.RawMessage, error) {
	resp, err := c.sendJSON(ctx, http.MethodPost, "/orders", order)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !isSuccess(resp.StatusCode) {
		return nil, apiError(resp.StatusCode, body, fmt.Sprintf("order failed: POST /orders returned %d", resp.StatusCode))
	}
	return json.RawMessage(body), nil
}

// UpdateLesson pushes a lesson's fields, including its new space count, to
// PUT /lessons/:id.
func (c *Client) UpdateLesson(ctx context.Context, id models.LessonID, update models.LessonUpdate) error {
	resp, err := c.sendJSON(ctx, http.MethodPut, "/lessons/"+url.PathEscape(id.String()), update)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body, fmt.Sprintf("PUT failed for lesson %s: %d", id, resp.StatusCode))
	}
	return nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiPath(path), bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s %s: %w", method, path, err)
	}
	return resp, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// APIError is a non-success answer from the remote API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// apiError prefers the backend's {"error": "..."} message over the fallback.
func apiError(status int, body []byte, fallback string) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &APIError{StatusCode: status, Message: payload.Error}
	}
	return &APIError{StatusCode: status, Message: fallback}
}
