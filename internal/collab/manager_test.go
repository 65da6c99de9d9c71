package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"taskthread/internal/thread"
)

func newHub(t *testing.T, opts ...Option) (*Manager, *httptest.Server, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(ctx, zaptest.NewLogger(t), opts...)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		taskID := int64(1)
		if r.URL.Query().Get("task") == "2" {
			taskID = 2
		}
		if err := m.ServeWS(w, r, taskID, 99); err != nil {
			t.Logf("upgrade: %v", err)
		}
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return m, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server, query string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForRoom(t *testing.T, m *Manager, taskID int64, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.RoomSize(taskID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("RoomSize(%d) = %d, want %d", taskID, m.RoomSize(taskID), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManager_PublishReachesTaskSubscribers(t *testing.T) {
	m, srv, _ := newHub(t)

	watcher := dial(t, srv, "task=1", nil)
	other := dial(t, srv, "task=2", nil)
	waitForRoom(t, m, 1, 1)
	waitForRoom(t, m, 2, 1)

	comment := &thread.Comment{ID: 5, TaskID: 1, AuthorID: 3, Content: "hello"}
	m.Publish(thread.Event{Type: thread.EventCommentCreated, TaskID: 1, CommentID: 5, Comment: comment})

	watcher.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := watcher.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if msg.Type != "comment.created" {
		t.Errorf("Type = %q, want comment.created", msg.Type)
	}
	var ev thread.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if ev.CommentID != 5 || ev.Comment == nil || ev.Comment.Content != "hello" {
		t.Errorf("event = %+v", ev)
	}

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("subscriber of another task received the event")
	}
}

func TestManager_UnsubscribeOnClose(t *testing.T) {
	m, srv, _ := newHub(t)

	conn := dial(t, srv, "task=1", nil)
	waitForRoom(t, m, 1, 1)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	waitForRoom(t, m, 1, 0)
}

func TestManager_ShutdownClosesClients(t *testing.T) {
	m, srv, cancel := newHub(t)

	conn := dial(t, srv, "task=1", nil)
	waitForRoom(t, m, 1, 1)

	cancel()
	waitForRoom(t, m, 1, 0)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}

	// Publishing after shutdown must not block.
	done := make(chan struct{})
	go func() {
		m.Publish(thread.Event{Type: thread.EventCommentDeleted, TaskID: 1})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after shutdown")
	}
}

func TestManager_AllowedOrigins(t *testing.T) {
	_, srv, _ := newHub(t, WithAllowedOrigins([]string{"http://app.example"}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?task=1"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	if err == nil {
		t.Fatal("expected a foreign origin to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	dial(t, srv, "task=1", http.Header{"Origin": []string{"http://app.example"}})
}
