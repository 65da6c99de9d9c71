package thread

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EventType names a change to a thread.
type EventType string

const (
	EventCommentCreated EventType = "comment.created"
	EventCommentUpdated EventType = "comment.updated"
	EventCommentDeleted EventType = "comment.deleted"
)

// Event is published after a successful mutation.
type Event struct {
	Type      EventType `json:"type"`
	TaskID    int64     `json:"taskId"`
	CommentID int64     `json:"commentId"`
	Comment   *Comment  `json:"comment,omitempty"`
	Removed   int       `json:"removed,omitempty"`
}

// Publisher receives thread events, for example to fan them out to
// connected clients.
type Publisher interface {
	Publish(ev Event)
}

// Service fronts a Store. Content is validated here, before any store is
// touched, and every successful mutation is logged and published.
type Service struct {
	store     Store
	logger    *zap.Logger
	publisher Publisher
	mutations metric.Int64Counter
}

// NewService wraps store. publisher may be nil.
func NewService(store Store, logger *zap.Logger, publisher Publisher) *Service {
	counter, err := otel.Meter("taskthread/thread").Int64Counter(
		"thread.comment.mutations",
		metric.WithDescription("Comment mutations applied to a store"),
	)
	if err != nil {
		logger.Warn("Failed to create mutation counter", zap.Error(err))
	}
	return &Service{
		store:     store,
		logger:    logger,
		publisher: publisher,
		mutations: counter,
	}
}

// Store returns the wrapped store.
func (s *Service) Store() Store {
	return s.store
}

// GetPage returns one page of a task's thread.
func (s *Service) GetPage(ctx context.Context, taskID int64, req PageRequest) (*Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.store.GetPage(ctx, taskID, req)
}

// GetComment returns a single comment.
func (s *Service) GetComment(ctx context.Context, commentID int64) (*Comment, error) {
	return s.store.GetComment(ctx, commentID)
}

// CreateComment validates and stores a new root comment or reply.
func (s *Service) CreateComment(ctx context.Context, in NewComment) (*Comment, error) {
	if err := ValidateContent(in.Content); err != nil {
		return nil, err
	}

	c, err := s.store.CreateComment(ctx, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Comment created",
		zap.Int64("task_id", c.TaskID),
		zap.Int64("comment_id", c.ID),
		zap.Int64("author_id", c.AuthorID),
		zap.Bool("reply", !c.IsRoot()),
	)
	s.record(ctx, EventCommentCreated)
	s.publish(Event{Type: EventCommentCreated, TaskID: c.TaskID, CommentID: c.ID, Comment: c})
	return c, nil
}

// UpdateComment validates and applies an edit.
func (s *Service) UpdateComment(ctx context.Context, commentID int64, content string) (*Comment, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}

	c, err := s.store.UpdateComment(ctx, commentID, content)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Comment updated",
		zap.Int64("task_id", c.TaskID),
		zap.Int64("comment_id", c.ID),
	)
	s.record(ctx, EventCommentUpdated)
	s.publish(Event{Type: EventCommentUpdated, TaskID: c.TaskID, CommentID: c.ID, Comment: c})
	return c, nil
}

// DeleteComment removes a comment and its descendants.
func (s *Service) DeleteComment(ctx context.Context, taskID, commentID int64) (int, error) {
	removed, err := s.store.DeleteComment(ctx, taskID, commentID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Comment deleted",
		zap.Int64("task_id", taskID),
		zap.Int64("comment_id", commentID),
		zap.Int("removed", removed),
	)
	s.record(ctx, EventCommentDeleted)
	s.publish(Event{Type: EventCommentDeleted, TaskID: taskID, CommentID: commentID, Removed: removed})
	return removed, nil
}

// CreateTask creates an empty thread owner.
func (s *Service) CreateTask(ctx context.Context, title string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(title) > MaxTitleLength {
		return nil, fmt.Errorf("%w: title is too long (max %d characters)", ErrValidation, MaxTitleLength)
	}

	t, err := s.store.CreateTask(ctx, title)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Task created", zap.Int64("task_id", t.ID))
	return t, nil
}

// GetTask returns a task.
func (s *Service) GetTask(ctx context.Context, taskID int64) (*Task, error) {
	return s.store.GetTask(ctx, taskID)
}

// DeleteTask removes a task and its whole thread.
func (s *Service) DeleteTask(ctx context.Context, taskID int64) error {
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	s.logger.Info("Task deleted", zap.Int64("task_id", taskID))
	return nil
}

// ListActivity returns a task's activity log, newest first.
func (s *Service) ListActivity(ctx context.Context, taskID int64, limit int) ([]Activity, error) {
	return s.store.ListActivity(ctx, taskID, limit)
}

func (s *Service) record(ctx context.Context, ev EventType) {
	if s.mutations == nil {
		return
	}
	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(ev))))
}

func (s *Service) publish(ev Event) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
}
