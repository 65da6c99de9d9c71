package cursor

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"taskthread/internal/thread"
)

func comments(idList ...int64) []thread.Comment {
	out := make([]thread.Comment, 0, len(idList))
	for _, id := range idList {
		out = append(out, thread.Comment{ID: id, Content: "c"})
	}
	return out
}

func TestDedup(t *testing.T) {
	tests := []struct {
		name string
		in   []thread.Comment
		want []int64
	}{
		{"empty", nil, []int64{}},
		{"no duplicates", comments(1, 2, 3), []int64{1, 2, 3}},
		{"keeps first occurrence", comments(3, 1, 3, 2, 1), []int64{3, 1, 2}},
		{"same page appended twice", append(comments(5, 6, 7), comments(5, 6, 7)...), []int64{5, 6, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := Dedup(tt.in)
			if diff := cmp.Diff(tt.want, ids(once)); diff != "" {
				t.Errorf("Dedup mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(ids(once), ids(Dedup(once))); diff != "" {
				t.Errorf("Dedup not idempotent (-once +twice):\n%s", diff)
			}
		})
	}
}

func TestDedupKeepsFirstVersion(t *testing.T) {
	in := []thread.Comment{{ID: 1, Content: "first"}, {ID: 1, Content: "second"}}
	got := Dedup(in)
	if len(got) != 1 || got[0].Content != "first" {
		t.Errorf("Dedup = %+v, want the first copy only", got)
	}
}

func TestViewportReached(t *testing.T) {
	tests := []struct {
		name string
		v    Viewport
		want bool
	}{
		{"top of page", Viewport{ScrollTop: 0, ClientHeight: 400, ScrollHeight: 2000}, false},
		{"just below threshold", Viewport{ScrollTop: 1190, ClientHeight: 400, ScrollHeight: 2000}, false},
		{"exactly at threshold", Viewport{ScrollTop: 1200, ClientHeight: 400, ScrollHeight: 2000}, true},
		{"bottom", Viewport{ScrollTop: 1600, ClientHeight: 400, ScrollHeight: 2000}, true},
		{"short document", Viewport{ScrollTop: 0, ClientHeight: 800, ScrollHeight: 600}, true},
		{"no document", Viewport{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Reached(); got != tt.want {
				t.Errorf("Reached() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		Idle:             "idle",
		LoadingFirstPage: "loading_first_page",
		LoadingMore:      "loading_more",
		Exhausted:        "exhausted",
		Error:            "error",
		State(42):        "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
