package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap/zaptest"

	"taskthread/internal/auth"
	"taskthread/internal/config"
	"taskthread/internal/thread"
)

// TestServer holds test server dependencies
type TestServer struct {
	*Server
	Store *thread.MemoryStore
}

// NewTestServer creates a new test server over an in-memory thread store
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store := thread.NewMemoryStore()

	testCfg := &config.Config{
		Env:               "test",
		JWTSecret:         "test-secret-key",
		JWTExpiryHours:    24,
		RateLimitRequests: 10000,
		ServiceName:       "taskthread-test",
	}

	server := NewServer(thread.NewService(store, logger, nil), testCfg, logger)

	return &TestServer{
		Server: server,
		Store:  store,
	}
}

// CreateTestTask creates a task and returns its ID
func (ts *TestServer) CreateTestTask(t *testing.T, title string) int64 {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	task, err := ts.Store.CreateTask(ctx, title)
	if err != nil {
		t.Fatalf("Failed to create test task: %v", err)
	}
	return task.ID
}

// CreateTestComment adds a comment to a task and returns it
func (ts *TestServer) CreateTestComment(t *testing.T, taskID, authorID int64, content string, parentID *int64) *thread.Comment {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := ts.Store.CreateComment(ctx, thread.NewComment{
		TaskID:          taskID,
		AuthorID:        authorID,
		Content:         content,
		ParentCommentID: parentID,
	})
	if err != nil {
		t.Fatalf("Failed to create test comment: %v", err)
	}
	return c
}

// GenerateTestToken generates a JWT token for testing
func (ts *TestServer) GenerateTestToken(t *testing.T, userID int64, email string) string {
	t.Helper()

	token, err := auth.GenerateToken(userID, email, ts.config.JWTSecret, ts.config.JWTExpiry())
	if err != nil {
		t.Fatalf("Failed to generate test token: %v", err)
	}

	return token
}

// MakeRequest is a helper to make HTTP requests in tests
// Returns both the ResponseRecorder and the Request for testing
func MakeRequest(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()

	var reqBody []byte
	var err error
	if body != nil {
		reqBody, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return httptest.NewRecorder(), req
}

// MakeAuthRequest creates an HTTP request with auth context (UserIDKey) and optional chi URL params
func (ts *TestServer) MakeAuthRequest(t *testing.T, method, path string, body interface{}, userID int64, urlParams map[string]string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()

	rec, req := MakeRequest(t, method, path, body, nil)

	ctx := context.WithValue(req.Context(), UserIDKey, userID)

	if len(urlParams) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range urlParams {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}

	req = req.WithContext(ctx)
	return rec, req
}

// DecodeJSON decodes a JSON response into the provided interface
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AssertStatusCode checks if the response status code matches expected
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()

	if got != want {
		t.Errorf("Status code mismatch: got %d, want %d", got, want)
	}
}

// AssertError checks if the error response matches expected error and code
func AssertError(t *testing.T, rec *httptest.ResponseRecorder, wantCode int, wantErrorContains, wantCodeContains string) {
	t.Helper()

	AssertStatusCode(t, rec.Code, wantCode)

	var errResp ErrorResponse
	DecodeJSON(t, rec, &errResp)

	if wantErrorContains != "" && !strings.Contains(errResp.Error, wantErrorContains) {
		t.Errorf("Error message %q does not contain %q", errResp.Error, wantErrorContains)
	}

	if wantCodeContains != "" && !strings.Contains(errResp.Code, wantCodeContains) {
		t.Errorf("Error code %q does not contain %q", errResp.Code, wantCodeContains)
	}
}
