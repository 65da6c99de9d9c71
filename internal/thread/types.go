package thread

import (
	"fmt"
	"time"
)

// SortOrder controls how root comments are ordered within a page.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// ParseSortOrder converts a query value into a SortOrder. An empty value
// falls back to newest-first.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest:
		return SortOrder(s), nil
	default:
		return "", fmt.Errorf("%w: unknown sort order %q", ErrValidation, s)
	}
}

const (
	// DefaultPageSize is used when a caller does not ask for a size.
	DefaultPageSize = 10
	// MaxPageSize bounds a single page request.
	MaxPageSize = 100
	// MaxContentLength bounds a comment body, in bytes.
	MaxContentLength = 5000
	// MaxTitleLength bounds a task title, in bytes.
	MaxTitleLength = 200
)

// Comment is a single entry in a task's thread. Root comments have no
// ParentCommentID; replies point at a root comment of the same task.
type Comment struct {
	ID              int64     `json:"id"`
	TaskID          int64     `json:"taskId"`
	AuthorID        int64     `json:"authorId"`
	Content         string    `json:"content"`
	ParentCommentID *int64    `json:"parentId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// IsRoot reports whether c is a root comment.
func (c Comment) IsRoot() bool {
	return c.ParentCommentID == nil
}

// NewComment carries the caller-supplied fields of a comment to create.
type NewComment struct {
	TaskID          int64
	AuthorID        int64
	Content         string
	ParentCommentID *int64
}

// PageRequest selects one page of root comments.
type PageRequest struct {
	PageIndex int
	PageSize  int
	Sort      SortOrder
}

// Validate checks the request bounds.
func (r PageRequest) Validate() error {
	if r.PageIndex < 0 {
		return fmt.Errorf("%w: page index must not be negative", ErrValidation)
	}
	if r.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be positive", ErrValidation)
	}
	if r.PageSize > MaxPageSize {
		return fmt.Errorf("%w: page size must be at most %d", ErrValidation, MaxPageSize)
	}
	if r.Sort != SortNewest && r.Sort != SortOldest {
		return fmt.Errorf("%w: unknown sort order %q", ErrValidation, r.Sort)
	}
	return nil
}

// Page is a slice of root comments with their replies inlined directly
// after each root.
//
// TotalElements counts every comment of the task (roots and replies) while
// TotalPages is derived from the root count only. Cursors rely on
// TotalPages for exhaustion and on TotalElements for the displayed count.
type Page struct {
	Content       []Comment `json:"content"`
	TotalElements int       `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
	PageSize      int       `json:"size"`
	PageIndex     int       `json:"number"`
}

// Task is the parent resource a thread hangs off.
type Task struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// ActivityType names a recorded thread mutation.
type ActivityType string

const (
	ActivityCommentCreated ActivityType = "COMMENT_CREATED"
	ActivityCommentUpdated ActivityType = "COMMENT_UPDATED"
	ActivityCommentDeleted ActivityType = "COMMENT_DELETED"
)

// Activity is an entry in a task's activity log.
type Activity struct {
	ID          int64        `json:"id"`
	Type        ActivityType `json:"type"`
	TaskID      int64        `json:"taskId"`
	CommentID   int64        `json:"commentId"`
	UserID      int64        `json:"userId"`
	Description string       `json:"description"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Descriptions shared by every store implementation.

func createdDescription(taskID int64, reply bool) string {
	if reply {
		return fmt.Sprintf("replied to a comment on task #%d", taskID)
	}
	return fmt.Sprintf("commented on task #%d", taskID)
}

func updatedDescription(taskID int64) string {
	return fmt.Sprintf("edited a comment on task #%d", taskID)
}

func deletedDescription(taskID int64, removed int) string {
	if removed > 1 {
		return fmt.Sprintf("deleted a comment and %d replies on task #%d", removed-1, taskID)
	}
	return fmt.Sprintf("deleted a comment on task #%d", taskID)
}

// CreatedActivity builds the log entry for a new comment.
func CreatedActivity(c *Comment, actorID int64, at time.Time) Activity {
	return Activity{
		Type:        ActivityCommentCreated,
		TaskID:      c.TaskID,
		CommentID:   c.ID,
		UserID:      actorID,
		Description: createdDescription(c.TaskID, !c.IsRoot()),
		Timestamp:   at,
	}
}

// UpdatedActivity builds the log entry for an edited comment.
func UpdatedActivity(c *Comment, actorID int64, at time.Time) Activity {
	return Activity{
		Type:        ActivityCommentUpdated,
		TaskID:      c.TaskID,
		CommentID:   c.ID,
		UserID:      actorID,
		Description: updatedDescription(c.TaskID),
		Timestamp:   at,
	}
}

// DeletedActivity builds the log entry for a cascade delete that removed
// the given number of comments.
func DeletedActivity(taskID, commentID, actorID int64, removed int, at time.Time) Activity {
	return Activity{
		Type:        ActivityCommentDeleted,
		TaskID:      taskID,
		CommentID:   commentID,
		UserID:      actorID,
		Description: deletedDescription(taskID, removed),
		Timestamp:   at,
	}
}
