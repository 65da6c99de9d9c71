package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"taskthread/internal/api"
	"taskthread/internal/cursor"
	"taskthread/internal/thread"
)

func newTestAPI(t *testing.T) (*api.TestServer, *Client) {
	t.Helper()

	ts := api.NewTestServer(t)
	srv := httptest.NewServer(ts.Routes())
	t.Cleanup(srv.Close)

	token := ts.GenerateTestToken(t, 11, "cli@example.com")
	c := New(srv.URL+"/", WithToken(token), WithHTTPClient(srv.Client()), WithLogger(zaptest.NewLogger(t)))
	return ts, c
}

func TestClient_CommentRoundTrip(t *testing.T) {
	_, c := newTestAPI(t)
	ctx := context.Background()

	task, err := c.CreateTask(ctx, "Remote")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	root, err := c.CreateComment(ctx, task.ID, "root", nil)
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if root.AuthorID != 11 {
		t.Errorf("authorId = %d, want 11", root.AuthorID)
	}

	reply, err := c.CreateComment(ctx, task.ID, "reply", &root.ID)
	if err != nil {
		t.Fatalf("CreateComment reply: %v", err)
	}
	if reply.ParentCommentID == nil || *reply.ParentCommentID != root.ID {
		t.Errorf("parentId = %v, want %d", reply.ParentCommentID, root.ID)
	}

	edited, err := c.UpdateComment(ctx, task.ID, root.ID, "root v2")
	if err != nil {
		t.Fatalf("UpdateComment: %v", err)
	}

	got, err := c.GetComment(ctx, task.ID, root.ID)
	if err != nil {
		t.Fatalf("GetComment: %v", err)
	}
	if diff := cmp.Diff(edited, got); diff != "" {
		t.Errorf("GetComment mismatch (-want +got):\n%s", diff)
	}

	page, err := c.GetPage(ctx, task.ID, thread.PageRequest{PageSize: 10, Sort: thread.SortNewest})
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if page.TotalElements != 2 || len(page.Content) != 2 {
		t.Fatalf("page = %+v", page)
	}

	removed, err := c.DeleteComment(ctx, task.ID, root.ID)
	if err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	entries, err := c.ListActivity(ctx, task.ID, 0)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(entries) != 4 || entries[0].Type != thread.ActivityCommentDeleted {
		t.Errorf("activity = %+v", entries)
	}

	fetched, err := c.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if fetched.Title != "Remote" {
		t.Errorf("title = %q", fetched.Title)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	ts, c := newTestAPI(t)
	ctx := context.Background()
	taskID := ts.CreateTestTask(t, "Errors")
	root := ts.CreateTestComment(t, taskID, 1, "root", nil)
	reply := ts.CreateTestComment(t, taskID, 1, "reply", &root.ID)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{
			name: "unknown task",
			call: func() error {
				_, err := c.GetPage(ctx, 999, thread.PageRequest{PageSize: 10})
				return err
			},
			want: thread.ErrNotFound,
		},
		{
			name: "reply to reply",
			call: func() error {
				_, err := c.CreateComment(ctx, taskID, "deep", &reply.ID)
				return err
			},
			want: thread.ErrNotFound,
		},
		{
			name: "blank content checked locally",
			call: func() error {
				_, err := c.CreateComment(ctx, taskID, "  ", nil)
				return err
			},
			want: thread.ErrValidation,
		},
		{
			name: "invalid page request checked locally",
			call: func() error {
				_, err := c.GetPage(ctx, taskID, thread.PageRequest{PageSize: 0})
				return err
			},
			want: thread.ErrValidation,
		},
		{
			name: "server side validation",
			call: func() error {
				_, err := c.CreateTask(ctx, "")
				return err
			},
			want: thread.ErrValidation,
		},
		{
			name: "missing comment",
			call: func() error {
				_, err := c.DeleteComment(ctx, taskID, 12345)
				return err
			},
			want: thread.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_StatusErrorCarriesMessage(t *testing.T) {
	_, c := newTestAPI(t)

	_, err := c.GetTask(context.Background(), 404)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %T %v, want *StatusError", err, err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", se.StatusCode)
	}
	if !strings.Contains(se.Message, "task 404") {
		t.Errorf("message = %q", se.Message)
	}
}

func TestClient_TransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetPage(context.Background(), 1, thread.PageRequest{PageSize: 10})
	if !errors.Is(err, thread.ErrTransport) {
		t.Errorf("5xx err = %v, want ErrTransport", err)
	}

	srv.Close()
	_, err = c.GetPage(context.Background(), 1, thread.PageRequest{PageSize: 10})
	if !errors.Is(err, thread.ErrTransport) {
		t.Errorf("closed server err = %v, want ErrTransport", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetPage(ctx, 1, thread.PageRequest{PageSize: 10})
	if !errors.Is(err, thread.ErrTransport) || !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v, want ErrTransport and context.Canceled", err)
	}
}

func TestClient_SendsHeaders(t *testing.T) {
	var gotAuth, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := New(srv.URL, WithToken("abc")).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !strings.HasPrefix(gotAgent, "threadctl/") {
		t.Errorf("User-Agent = %q", gotAgent)
	}
}

func TestClient_DrivesCursor(t *testing.T) {
	ts, c := newTestAPI(t)
	taskID := ts.CreateTestTask(t, "Scroll")
	for i := 0; i < 25; i++ {
		ts.CreateTestComment(t, taskID, 1, fmt.Sprintf("c%d", i), nil)
	}

	cur := cursor.New(c, cursor.WithPageSize(10))
	ctx := context.Background()
	if err := cur.Mount(ctx, taskID, thread.SortOldest); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	for cur.Snapshot().HasMore {
		if _, err := cur.LoadMore(ctx); err != nil {
			t.Fatalf("LoadMore: %v", err)
		}
	}

	snap := cur.Snapshot()
	if snap.State != cursor.Exhausted {
		t.Errorf("state = %s, want exhausted", snap.State)
	}
	if len(snap.Items) != 25 || snap.TotalElements != 25 {
		t.Fatalf("items = %d, total = %d", len(snap.Items), snap.TotalElements)
	}
	if snap.Items[0].Content != "c0" || snap.Items[24].Content != "c24" {
		t.Errorf("order = %q..%q", snap.Items[0].Content, snap.Items[24].Content)
	}
}
