package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fatih/color"

	"taskthread/internal/api"
	"taskthread/internal/auth"
	"taskthread/internal/thread"
)

func init() {
	color.NoColor = true
}

// runCLI executes threadctl with args against srv and returns stdout.
func runCLI(t *testing.T, srv *httptest.Server, token string, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--server", srv.URL, "--token", token}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newAPI(t *testing.T) (*api.TestServer, *httptest.Server, string) {
	t.Helper()
	ts := api.NewTestServer(t)
	srv := httptest.NewServer(ts.Routes())
	t.Cleanup(srv.Close)
	return ts, srv, ts.GenerateTestToken(t, 21, "cli@example.com")
}

func TestCommentsList(t *testing.T) {
	ts, srv, token := newAPI(t)
	taskID := ts.CreateTestTask(t, "CLI")
	var first *thread.Comment
	for i := 0; i < 7; i++ {
		c := ts.CreateTestComment(t, taskID, 1, fmt.Sprintf("comment %d", i), nil)
		if first == nil {
			first = c
		}
	}
	ts.CreateTestComment(t, taskID, 2, "a reply", &first.ID)

	tests := []struct {
		name      string
		args      []string
		contains  []string
		excludes  []string
	}{
		{
			name:     "first page only",
			args:     []string{"--size", "3"},
			contains: []string{"comment 6", "comment 4", "3 of 8 comments, page 1 of 3, more available"},
			excludes: []string{"comment 3"},
		},
		{
			name:     "two pages",
			args:     []string{"--size", "3", "--pages", "2"},
			contains: []string{"comment 1", "6 of 8 comments, page 2 of 3"},
		},
		{
			name:     "everything oldest first",
			args:     []string{"--size", "3", "--all", "--sort", "oldest"},
			contains: []string{"    ↳ #", "a reply", "8 of 8 comments, page 3 of 3, end of thread"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"comments", "list", fmt.Sprint(taskID)}, tt.args...)
			out, err := runCLI(t, srv, token, args...)
			if err != nil {
				t.Fatalf("list: %v\n%s", err, out)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(out, unwanted) {
					t.Errorf("output unexpectedly has %q:\n%s", unwanted, out)
				}
			}
		})
	}
}

func TestCommentsListJSON(t *testing.T) {
	ts, srv, token := newAPI(t)
	taskID := ts.CreateTestTask(t, "CLI")
	ts.CreateTestComment(t, taskID, 1, "only", nil)

	out, err := runCLI(t, srv, token, "--json", "comments", "list", fmt.Sprint(taskID))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var items []thread.Comment
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(items) != 1 || items[0].Content != "only" {
		t.Errorf("items = %+v", items)
	}
}

func TestCommentsMutations(t *testing.T) {
	ts, srv, token := newAPI(t)
	taskID := ts.CreateTestTask(t, "CLI")
	task := fmt.Sprint(taskID)

	out, err := runCLI(t, srv, token, "comments", "add", task, "hello", "world")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Created comment 1") {
		t.Errorf("add output = %q", out)
	}

	if _, err := runCLI(t, srv, token, "comments", "add", task, "re", "--reply-to", "1"); err != nil {
		t.Fatalf("reply: %v", err)
	}

	out, err = runCLI(t, srv, token, "comments", "edit", task, "1", "hello", "again")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !strings.Contains(out, "Updated comment 1") {
		t.Errorf("edit output = %q", out)
	}

	out, err = runCLI(t, srv, token, "comments", "delete", task, "1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "Deleted 2 comment(s)") {
		t.Errorf("delete output = %q", out)
	}

	out, err = runCLI(t, srv, token, "activity", task)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	for _, want := range []string{"COMMENT_DELETED", "COMMENT_UPDATED", "(user 21)"} {
		if !strings.Contains(out, want) {
			t.Errorf("activity output missing %q:\n%s", want, out)
		}
	}
}

func TestCommandErrors(t *testing.T) {
	ts, srv, token := newAPI(t)
	taskID := ts.CreateTestTask(t, "CLI")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "bad task id", args: []string{"comments", "list", "abc"}, want: "invalid task id"},
		{name: "bad sort", args: []string{"comments", "list", fmt.Sprint(taskID), "--sort", "random"}, want: "unknown sort order"},
		{name: "zero size", args: []string{"comments", "list", fmt.Sprint(taskID), "--size", "0"}, want: "page size must be positive"},
		{name: "negative size", args: []string{"comments", "list", fmt.Sprint(taskID), "--size=-3"}, want: "page size must be positive"},
		{name: "oversized page", args: []string{"comments", "list", fmt.Sprint(taskID), "--size", "500"}, want: "page size must be at most 100"},
		{name: "unknown task", args: []string{"comments", "list", "999"}, want: "not found"},
		{name: "blank content", args: []string{"comments", "add", fmt.Sprint(taskID), " "}, want: "content is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, srv, token, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestTokenCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--user-id", "9", "--secret", "s3cret"})
	if err := root.Execute(); err != nil {
		t.Fatalf("token: %v", err)
	}

	claims, err := auth.ValidateToken(strings.TrimSpace(out.String()), "s3cret")
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 9 {
		t.Errorf("user id = %d, want 9", claims.UserID)
	}

	t.Setenv("THREADCTL_JWT_SECRET", "from-env")
	root = newRootCmd()
	out.Reset()
	root.SetOut(&out)
	root.SetArgs([]string{"token"})
	if err := root.Execute(); err != nil {
		t.Fatalf("token from env: %v", err)
	}
	if _, err := auth.ValidateToken(strings.TrimSpace(out.String()), "from-env"); err != nil {
		t.Errorf("env secret not used: %v", err)
	}
}
