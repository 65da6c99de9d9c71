package thread

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-process mock backend. Each instance is an
// independent session; nothing is shared between instances.
type MemoryStore struct {
	mu    sync.RWMutex
	clock *MonotonicClock

	nextTaskID     int64
	nextCommentID  int64
	nextActivityID int64

	tasks    map[int64]Task
	comments map[int64]Comment
	activity []Activity
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.clock = NewMonotonicClock(now)
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		clock:    NewMonotonicClock(nil),
		tasks:    make(map[int64]Task),
		comments: make(map[int64]Comment),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Store = (*MemoryStore)(nil)

// GetPage implements Store.
func (m *MemoryStore) GetPage(ctx context.Context, taskID int64, req PageRequest) (*Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tasks[taskID]; !ok {
		return nil, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	return BuildPage(m.taskComments(taskID), req), nil
}

// GetComment implements Store.
func (m *MemoryStore) GetComment(ctx context.Context, commentID int64) (*Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.comments[commentID]
	if !ok {
		return nil, fmt.Errorf("comment %d: %w", commentID, ErrNotFound)
	}
	return &c, nil
}

// CreateComment implements Store.
func (m *MemoryStore) CreateComment(ctx context.Context, in NewComment) (*Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertComment(ctx, in, m.clock.Now())
}

// ImportComment inserts a comment with a caller-chosen creation time. It
// applies the same checks as CreateComment and is meant for fixtures.
func (m *MemoryStore) ImportComment(ctx context.Context, in NewComment, createdAt time.Time) (*Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertComment(ctx, in, createdAt.UTC())
}

func (m *MemoryStore) insertComment(ctx context.Context, in NewComment, now time.Time) (*Comment, error) {
	if _, ok := m.tasks[in.TaskID]; !ok {
		return nil, fmt.Errorf("task %d: %w", in.TaskID, ErrNotFound)
	}
	if in.ParentCommentID != nil {
		parent, ok := m.comments[*in.ParentCommentID]
		if !ok || parent.TaskID != in.TaskID || !parent.IsRoot() {
			return nil, fmt.Errorf("parent comment %d on task %d: %w", *in.ParentCommentID, in.TaskID, ErrNotFound)
		}
	}

	m.nextCommentID++
	c := Comment{
		ID:        m.nextCommentID,
		TaskID:    in.TaskID,
		AuthorID:  in.AuthorID,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.ParentCommentID != nil {
		parentID := *in.ParentCommentID
		c.ParentCommentID = &parentID
	}
	m.comments[c.ID] = c
	m.appendActivity(CreatedActivity(&c, ActorOr(ctx, c.AuthorID), now))

	return &c, nil
}

// UpdateComment implements Store.
func (m *MemoryStore) UpdateComment(ctx context.Context, commentID int64, content string) (*Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[commentID]
	if !ok {
		return nil, fmt.Errorf("comment %d: %w", commentID, ErrNotFound)
	}

	c.Content = content
	c.UpdatedAt = m.clock.After(c.UpdatedAt)
	m.comments[commentID] = c
	m.appendActivity(UpdatedActivity(&c, ActorOr(ctx, c.AuthorID), c.UpdatedAt))

	return &c, nil
}

// DeleteComment implements Store. Descendants are collected with a
// worklist so the cascade does not assume a fixed depth.
func (m *MemoryStore) DeleteComment(ctx context.Context, taskID, commentID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.comments[commentID]
	if !ok || target.TaskID != taskID {
		return 0, fmt.Errorf("comment %d on task %d: %w", commentID, taskID, ErrNotFound)
	}

	children := make(map[int64][]int64)
	for _, c := range m.comments {
		if c.TaskID == taskID && c.ParentCommentID != nil {
			children[*c.ParentCommentID] = append(children[*c.ParentCommentID], c.ID)
		}
	}

	doomed := []int64{commentID}
	for queue := []int64{commentID}; len(queue) > 0; {
		id := queue[0]
		queue = queue[1:]
		for _, child := range children[id] {
			doomed = append(doomed, child)
			queue = append(queue, child)
		}
	}

	for _, id := range doomed {
		delete(m.comments, id)
	}
	m.appendActivity(DeletedActivity(taskID, commentID, ActorOr(ctx, target.AuthorID), len(doomed), m.clock.Now()))

	return len(doomed), nil
}

// CreateTask implements Store.
func (m *MemoryStore) CreateTask(ctx context.Context, title string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTaskID++
	t := Task{ID: m.nextTaskID, Title: title, CreatedAt: m.clock.Now()}
	m.tasks[t.ID] = t
	return &t, nil
}

// GetTask implements Store.
func (m *MemoryStore) GetTask(ctx context.Context, taskID int64) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	return &t, nil
}

// DeleteTask implements Store.
func (m *MemoryStore) DeleteTask(ctx context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[taskID]; !ok {
		return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	delete(m.tasks, taskID)
	for id, c := range m.comments {
		if c.TaskID == taskID {
			delete(m.comments, id)
		}
	}
	kept := m.activity[:0]
	for _, a := range m.activity {
		if a.TaskID != taskID {
			kept = append(kept, a)
		}
	}
	clear(m.activity[len(kept):])
	m.activity = kept
	return nil
}

// ListActivity implements Store.
func (m *MemoryStore) ListActivity(ctx context.Context, taskID int64, limit int) ([]Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tasks[taskID]; !ok {
		return nil, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}

	out := make([]Activity, 0)
	for i := len(m.activity) - 1; i >= 0; i-- {
		if m.activity[i].TaskID != taskID {
			continue
		}
		out = append(out, m.activity[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored comments across all tasks.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.comments)
}

// taskComments returns the comments of one task ordered by id. Callers
// hold the lock.
func (m *MemoryStore) taskComments(taskID int64) []Comment {
	var out []Comment
	for _, c := range m.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) appendActivity(a Activity) {
	m.nextActivityID++
	a.ID = m.nextActivityID
	m.activity = append(m.activity, a)
}
