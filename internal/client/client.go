// Package client talks to the taskthread HTTP API. A Client satisfies the
// page-fetching side of a thread store, so a cursor can drive it directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"taskthread/internal/thread"
	"taskthread/internal/version"
)

// Client is an HTTP client for the thread API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
	userAgent  string
}

// Option configures a Client
type Option func(*Client)

// WithToken sets the bearer token sent with every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the API rooted at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    zap.NewNop(),
		userAgent: version.UserAgent("threadctl"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// GetPage fetches one page of a task's thread
func (c *Client) GetPage(ctx context.Context, taskID int64, req thread.PageRequest) (*thread.Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(req.PageIndex))
	q.Set("size", strconv.Itoa(req.PageSize))
	if req.Sort != "" {
		q.Set("sort", string(req.Sort))
	}

	var page thread.Page
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d/comments?%s", taskID, q.Encode()), nil, &page); err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched comment page",
		zap.Int64("task_id", taskID),
		zap.Int("page", page.PageIndex),
		zap.Int("items", len(page.Content)),
	)
	return &page, nil
}

// GetComment fetches a single comment of a task
func (c *Client) GetComment(ctx context.Context, taskID, commentID int64) (*thread.Comment, error) {
	var out thread.Comment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d/comments/%d", taskID, commentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateComment posts a root comment, or a reply when parentID is set.
// The author is the user the token belongs to.
func (c *Client) CreateComment(ctx context.Context, taskID int64, content string, parentID *int64) (*thread.Comment, error) {
	if err := thread.ValidateContent(content); err != nil {
		return nil, err
	}

	body := map[string]any{"content": content}
	if parentID != nil {
		body["parentId"] = *parentID
	}

	var out thread.Comment
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/comments", taskID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateComment replaces the content of a comment
func (c *Client) UpdateComment(ctx context.Context, taskID, commentID int64, content string) (*thread.Comment, error) {
	if err := thread.ValidateContent(content); err != nil {
		return nil, err
	}

	var out thread.Comment
	path := fmt.Sprintf("/api/tasks/%d/comments/%d", taskID, commentID)
	if err := c.do(ctx, http.MethodPut, path, map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment removes a comment and its replies, returning how many
// comments went away
func (c *Client) DeleteComment(ctx context.Context, taskID, commentID int64) (int, error) {
	var out struct {
		Deleted int `json:"deleted"`
	}
	path := fmt.Sprintf("/api/tasks/%d/comments/%d", taskID, commentID)
	if err := c.do(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

// ListActivity returns the newest activity entries of a task
func (c *Client) ListActivity(ctx context.Context, taskID int64, limit int) ([]thread.Activity, error) {
	path := fmt.Sprintf("/api/tasks/%d/activity", taskID)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var out []thread.Activity
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTask creates a task
func (c *Client) CreateTask(ctx context.Context, title string) (*thread.Task, error) {
	var out thread.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", map[string]string{"title": title}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTask fetches a task
func (c *Client) GetTask(ctx context.Context, taskID int64) (*thread.Task, error) {
	var out thread.Task
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d", taskID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HealthCheck checks if the API is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// do sends a request and decodes a successful reply into out. Failures are
// wrapped with the thread error matching the status.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		bodyBytes, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", method, path, errors.Join(thread.ErrTransport, ctxErr))
		}
		return fmt.Errorf("%s %s: %w: %v", method, path, thread.ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w: %v", method, path, thread.ErrTransport, err)
	}

	if resp.StatusCode >= 300 {
		return statusError(method, path, resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s %s: failed to unmarshal response: %w: %v", method, path, thread.ErrTransport, err)
	}
	return nil
}

func statusError(method, path string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
		msg = eb.Error
	}

	var kind error
	switch {
	case status == http.StatusNotFound:
		kind = thread.ErrNotFound
	case status == http.StatusBadRequest:
		kind = thread.ErrValidation
	default:
		kind = thread.ErrTransport
	}
	return &StatusError{Method: method, Path: path, StatusCode: status, Message: msg, kind: kind}
}

// StatusError is a non-2xx reply from the API
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	kind       error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap exposes the thread error the status maps to
func (e *StatusError) Unwrap() error {
	return e.kind
}
