package thread

import "context"

// Store owns the authoritative comments of every task and answers paged
// queries over root comments.
type Store interface {
	// GetPage returns one page of root comments of a task, each followed
	// by its replies.
	GetPage(ctx context.Context, taskID int64, req PageRequest) (*Page, error)
	// GetComment returns a single comment by id.
	GetComment(ctx context.Context, commentID int64) (*Comment, error)
	// CreateComment appends a root comment or a reply to a root comment.
	CreateComment(ctx context.Context, in NewComment) (*Comment, error)
	// UpdateComment replaces the content of a comment.
	UpdateComment(ctx context.Context, commentID int64, content string) (*Comment, error)
	// DeleteComment removes a comment and everything parented by it and
	// reports how many comments were removed.
	DeleteComment(ctx context.Context, taskID, commentID int64) (int, error)

	CreateTask(ctx context.Context, title string) (*Task, error)
	GetTask(ctx context.Context, taskID int64) (*Task, error)
	// DeleteTask removes a task together with its thread.
	DeleteTask(ctx context.Context, taskID int64) error

	// ListActivity returns the newest activity entries of a task first.
	ListActivity(ctx context.Context, taskID int64, limit int) ([]Activity, error)
}
