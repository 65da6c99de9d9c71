package db

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"taskthread/internal/thread"
)

func TestCopy(t *testing.T) {
	ctx := context.Background()
	src, taskID := newTestStore(t)

	var roots []*thread.Comment
	for i := 0; i < 5; i++ {
		roots = append(roots, addComment(t, src, taskID, nil, "root"))
	}
	addComment(t, src, taskID, &roots[0].ID, "reply")
	addComment(t, src, taskID, &roots[3].ID, "reply")
	if _, err := src.DeleteComment(ctx, taskID, roots[4].ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}

	dest := newTestDB(t, "./migrations")
	counts, err := Copy(ctx, src.db, dest, 2, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}

	want := []TableCount{{"tasks", 1}, {"comments", 6}, {"activity", 8}}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("copied counts mismatch (-want +got):\n%s", diff)
	}

	copied := NewCommentStore(dest, zaptest.NewLogger(t), WithClock(tick()))
	req := thread.PageRequest{PageSize: 10, Sort: thread.SortOldest}
	wantPage, err := src.GetPage(ctx, taskID, req)
	if err != nil {
		t.Fatalf("GetPage source: %v", err)
	}
	gotPage, err := copied.GetPage(ctx, taskID, req)
	if err != nil {
		t.Fatalf("GetPage dest: %v", err)
	}
	if diff := cmp.Diff(wantPage, gotPage); diff != "" {
		t.Errorf("copied page mismatch (-want +got):\n%s", diff)
	}

	// ids keep growing past the copied ones
	fresh := addComment(t, copied, taskID, nil, "after copy")
	if fresh.ID <= roots[4].ID {
		t.Errorf("new id %d reuses copied range (max %d)", fresh.ID, roots[4].ID)
	}
}

func TestCopy_RejectsNonEmptyDestination(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestStore(t)
	dest, _ := newTestStore(t)

	_, err := Copy(ctx, src.db, dest.db, 0, zaptest.NewLogger(t))
	if err == nil || !strings.Contains(err.Error(), "not empty") {
		t.Fatalf("err = %v, want a non-empty destination error", err)
	}
}

func TestCountRows(t *testing.T) {
	s, taskID := newTestStore(t)
	addComment(t, s, taskID, nil, "one")

	counts, err := CountRows(context.Background(), s.db)
	if err != nil {
		t.Fatalf("CountRows: %v", err)
	}
	want := []TableCount{{"tasks", 1}, {"comments", 1}, {"activity", 1}}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertWithID(t *testing.T) {
	query, args := insertWithID("postgres", "tasks", []string{"id", "title"}, []any{int64(4), "x"})
	if !strings.Contains(query, "OVERRIDING SYSTEM VALUE VALUES ($1, $2)") {
		t.Errorf("postgres query = %s", query)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}

	query, _ = insertWithID("sqlite3", "tasks", []string{"id", "title"}, []any{int64(4), "x"})
	if strings.Contains(query, "OVERRIDING") || !strings.Contains(query, "VALUES (?, ?)") {
		t.Errorf("sqlite query = %s", query)
	}
}
