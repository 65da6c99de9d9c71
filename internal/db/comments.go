package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"go.uber.org/zap"

	"taskthread/internal/thread"
)

const (
	tasksTable    = "tasks"
	commentsTable = "comments"
	activityTable = "activity"
)

var (
	taskColumns     = []string{"id", "title", "created_at"}
	commentColumns  = []string{"id", "task_id", "author_id", "parent_id", "content", "created_at", "updated_at"}
	activityColumns = []string{"id", "task_id", "comment_id", "user_id", "type", "description", "created_at"}
)

// CommentStore is a thread.Store kept in the tasks, comments and activity
// tables. Timestamps are stored as microseconds since the Unix epoch.
type CommentStore struct {
	db      *DB
	clock   *thread.MonotonicClock
	timeout time.Duration
	logger  *zap.Logger
}

// StoreOption configures a CommentStore.
type StoreOption func(*CommentStore)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *CommentStore) {
		s.clock = thread.NewMonotonicClock(now)
	}
}

// WithQueryTimeout bounds every store operation.
func WithQueryTimeout(d time.Duration) StoreOption {
	return func(s *CommentStore) {
		s.timeout = d
	}
}

// NewCommentStore creates a store over an open, migrated database.
func NewCommentStore(db *DB, logger *zap.Logger, opts ...StoreOption) *CommentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CommentStore{
		db:     db,
		clock:  thread.NewMonotonicClock(nil),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ thread.Store = (*CommentStore)(nil)

// GetPage implements thread.Store.
func (s *CommentStore) GetPage(ctx context.Context, taskID int64, req thread.PageRequest) (*thread.Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var page *thread.Page
	err := s.withTx(ctx, func(tx dialect.Tx) error {
		if err := s.requireTask(ctx, tx, taskID); err != nil {
			return err
		}

		b := s.builder()
		total, err := s.count(ctx, tx, entsql.EQ("task_id", taskID))
		if err != nil {
			return err
		}
		rootCount, err := s.count(ctx, tx, entsql.And(entsql.EQ("task_id", taskID), entsql.IsNull("parent_id")))
		if err != nil {
			return err
		}

		order := []string{entsql.Desc("created_at"), entsql.Desc("id")}
		if req.Sort == thread.SortOldest {
			order = []string{entsql.Asc("created_at"), entsql.Asc("id")}
		}
		roots, err := s.selectComments(ctx, tx, b.Select(commentColumns...).
			From(b.Table(commentsTable)).
			Where(entsql.And(entsql.EQ("task_id", taskID), entsql.IsNull("parent_id"))).
			OrderBy(order...).
			Limit(req.PageSize).
			Offset(req.PageIndex*req.PageSize))
		if err != nil {
			return err
		}

		var replies []thread.Comment
		if len(roots) > 0 {
			parentIDs := make([]any, 0, len(roots))
			for _, r := range roots {
				parentIDs = append(parentIDs, r.ID)
			}
			replies, err = s.selectComments(ctx, tx, b.Select(commentColumns...).
				From(b.Table(commentsTable)).
				Where(entsql.And(entsql.EQ("task_id", taskID), entsql.In("parent_id", parentIDs...))).
				OrderBy(entsql.Asc("created_at"), entsql.Asc("id")))
			if err != nil {
				return err
			}
		}

		page = &thread.Page{
			Content:       thread.Flatten(roots, replies),
			TotalElements: total,
			TotalPages:    thread.TotalPages(rootCount, req.PageSize),
			PageSize:      req.PageSize,
			PageIndex:     req.PageIndex,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// GetComment implements thread.Store.
func (s *CommentStore) GetComment(ctx context.Context, commentID int64) (*thread.Comment, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.getComment(ctx, s.db.Driver, commentID)
}

// CreateComment implements thread.Store.
func (s *CommentStore) CreateComment(ctx context.Context, in thread.NewComment) (*thread.Comment, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var created *thread.Comment
	err := s.withTx(ctx, func(tx dialect.Tx) error {
		if err := s.requireTask(ctx, tx, in.TaskID); err != nil {
			return err
		}
		if in.ParentCommentID != nil {
			parent, err := s.getComment(ctx, tx, *in.ParentCommentID)
			if err != nil && !errors.Is(err, thread.ErrNotFound) {
				return err
			}
			if err != nil || parent.TaskID != in.TaskID || !parent.IsRoot() {
				return fmt.Errorf("parent comment %d on task %d: %w", *in.ParentCommentID, in.TaskID, thread.ErrNotFound)
			}
		}

		now := s.clock.Now()
		c := thread.Comment{
			TaskID:    in.TaskID,
			AuthorID:  in.AuthorID,
			Content:   in.Content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		var parent any
		if in.ParentCommentID != nil {
			parentID := *in.ParentCommentID
			c.ParentCommentID = &parentID
			parent = parentID
		}

		id, err := s.insert(ctx, tx, s.builder().Insert(commentsTable).
			Columns("task_id", "author_id", "parent_id", "content", "created_at", "updated_at").
			Values(c.TaskID, c.AuthorID, parent, c.Content, toMicros(now), toMicros(now)))
		if err != nil {
			return fmt.Errorf("failed to insert comment: %w", err)
		}
		c.ID = id

		if err := s.insertActivity(ctx, tx, thread.CreatedActivity(&c, thread.ActorOr(ctx, c.AuthorID), now)); err != nil {
			return err
		}
		created = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateComment implements thread.Store.
func (s *CommentStore) UpdateComment(ctx context.Context, commentID int64, content string) (*thread.Comment, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var updated *thread.Comment
	err := s.withTx(ctx, func(tx dialect.Tx) error {
		c, err := s.getComment(ctx, tx, commentID)
		if err != nil {
			return err
		}

		c.Content = content
		c.UpdatedAt = s.clock.After(c.UpdatedAt)
		if _, err := s.exec(ctx, tx, s.builder().Update(commentsTable).
			Set("content", c.Content).
			Set("updated_at", toMicros(c.UpdatedAt)).
			Where(entsql.EQ("id", commentID))); err != nil {
			return fmt.Errorf("failed to update comment %d: %w", commentID, err)
		}

		if err := s.insertActivity(ctx, tx, thread.UpdatedActivity(c, thread.ActorOr(ctx, c.AuthorID), c.UpdatedAt)); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteComment implements thread.Store. Descendants are collected level
// by level inside the transaction, so any depth is removed.
func (s *CommentStore) DeleteComment(ctx context.Context, taskID, commentID int64) (int, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var removed int
	err := s.withTx(ctx, func(tx dialect.Tx) error {
		target, err := s.getComment(ctx, tx, commentID)
		if err != nil && !errors.Is(err, thread.ErrNotFound) {
			return err
		}
		if err != nil || target.TaskID != taskID {
			return fmt.Errorf("comment %d on task %d: %w", commentID, taskID, thread.ErrNotFound)
		}

		doomed := []any{commentID}
		for frontier := []any{commentID}; len(frontier) > 0; {
			var next []any
			b := s.builder()
			err := s.query(ctx, tx, b.Select("id").
				From(b.Table(commentsTable)).
				Where(entsql.In("parent_id", frontier...)), func(rows *entsql.Rows) error {
				var id int64
				if err := rows.Scan(&id); err != nil {
					return err
				}
				next = append(next, id)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to collect replies of comment %d: %w", commentID, err)
			}
			doomed = append(doomed, next...)
			frontier = next
		}

		if _, err := s.exec(ctx, tx, s.builder().Delete(commentsTable).
			Where(entsql.In("id", doomed...))); err != nil {
			return fmt.Errorf("failed to delete comment %d: %w", commentID, err)
		}

		removed = len(doomed)
		return s.insertActivity(ctx, tx,
			thread.DeletedActivity(taskID, commentID, thread.ActorOr(ctx, target.AuthorID), removed, s.clock.Now()))
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("Cascade delete committed",
		zap.Int64("task_id", taskID),
		zap.Int64("comment_id", commentID),
		zap.Int("removed", removed))
	return removed, nil
}

// CreateTask implements thread.Store.
func (s *CommentStore) CreateTask(ctx context.Context, title string) (*thread.Task, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	now := s.clock.Now()
	id, err := s.insert(ctx, s.db.Driver, s.builder().Insert(tasksTable).
		Columns("title", "created_at").
		Values(title, toMicros(now)))
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}
	return &thread.Task{ID: id, Title: title, CreatedAt: now}, nil
}

// GetTask implements thread.Store.
func (s *CommentStore) GetTask(ctx context.Context, taskID int64) (*thread.Task, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var task *thread.Task
	b := s.builder()
	err := s.query(ctx, s.db.Driver, b.Select(taskColumns...).
		From(b.Table(tasksTable)).
		Where(entsql.EQ("id", taskID)), func(rows *entsql.Rows) error {
		var (
			t       thread.Task
			created int64
		)
		if err := rows.Scan(&t.ID, &t.Title, &created); err != nil {
			return err
		}
		t.CreatedAt = fromMicros(created)
		task = &t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}
	if task == nil {
		return nil, fmt.Errorf("task %d: %w", taskID, thread.ErrNotFound)
	}
	return task, nil
}

// DeleteTask implements thread.Store.
func (s *CommentStore) DeleteTask(ctx context.Context, taskID int64) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.withTx(ctx, func(tx dialect.Tx) error {
		if err := s.requireTask(ctx, tx, taskID); err != nil {
			return err
		}
		for _, table := range []string{activityTable, commentsTable} {
			if _, err := s.exec(ctx, tx, s.builder().Delete(table).Where(entsql.EQ("task_id", taskID))); err != nil {
				return fmt.Errorf("failed to delete %s of task %d: %w", table, taskID, err)
			}
		}
		if _, err := s.exec(ctx, tx, s.builder().Delete(tasksTable).Where(entsql.EQ("id", taskID))); err != nil {
			return fmt.Errorf("failed to delete task %d: %w", taskID, err)
		}
		return nil
	})
}

// ListActivity implements thread.Store.
func (s *CommentStore) ListActivity(ctx context.Context, taskID int64, limit int) ([]thread.Activity, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.requireTask(ctx, s.db.Driver, taskID); err != nil {
		return nil, err
	}

	b := s.builder()
	sel := b.Select(activityColumns...).
		From(b.Table(activityTable)).
		Where(entsql.EQ("task_id", taskID)).
		OrderBy(entsql.Desc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}

	out := make([]thread.Activity, 0)
	err := s.query(ctx, s.db.Driver, sel, func(rows *entsql.Rows) error {
		var (
			a       thread.Activity
			kind    string
			created int64
		)
		if err := rows.Scan(&a.ID, &a.TaskID, &a.CommentID, &a.UserID, &kind, &a.Description, &created); err != nil {
			return err
		}
		a.Type = thread.ActivityType(kind)
		a.Timestamp = fromMicros(created)
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list activity of task %d: %w", taskID, err)
	}
	return out, nil
}

func (s *CommentStore) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.db.dialect)
}

func (s *CommentStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *CommentStore) withTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	tx, err := s.db.Driver.Tx(ctx)
	if err != nil {
		return storageError("failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			s.logger.Warn("Failed to roll back transaction", zap.Error(rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageError("failed to commit transaction", err)
	}
	return nil
}

func (s *CommentStore) query(ctx context.Context, q dialect.ExecQuerier, b entsql.Querier, scan func(*entsql.Rows) error) error {
	query, args := b.Query()
	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return storageError("query failed", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return storageError("scan failed", err)
		}
	}
	if err := rows.Err(); err != nil {
		return storageError("reading rows failed", err)
	}
	return nil
}

func (s *CommentStore) exec(ctx context.Context, q dialect.ExecQuerier, b entsql.Querier) (sql.Result, error) {
	query, args := b.Query()
	var res sql.Result
	if err := q.Exec(ctx, query, args, &res); err != nil {
		return nil, storageError("exec failed", err)
	}
	return res, nil
}

// storageError marks a failed call to the database as thread.ErrTransport
// while keeping the driver error reachable through errors.Is.
func storageError(op string, err error) error {
	if errors.Is(err, thread.ErrTransport) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, thread.ErrTransport, err)
}

// insert runs an INSERT and returns the generated id. Postgres reports it
// through RETURNING, SQLite through the driver result.
func (s *CommentStore) insert(ctx context.Context, q dialect.ExecQuerier, b *entsql.InsertBuilder) (int64, error) {
	if s.db.dialect == dialect.Postgres {
		var id int64
		err := s.query(ctx, q, b.Returning("id"), func(rows *entsql.Rows) error {
			return rows.Scan(&id)
		})
		return id, err
	}

	res, err := s.exec(ctx, q, b)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageError("reading inserted id failed", err)
	}
	return id, nil
}

func (s *CommentStore) insertActivity(ctx context.Context, q dialect.ExecQuerier, a thread.Activity) error {
	_, err := s.insert(ctx, q, s.builder().Insert(activityTable).
		Columns("task_id", "comment_id", "user_id", "type", "description", "created_at").
		Values(a.TaskID, a.CommentID, a.UserID, string(a.Type), a.Description, toMicros(a.Timestamp)))
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

func (s *CommentStore) requireTask(ctx context.Context, q dialect.ExecQuerier, taskID int64) error {
	b := s.builder()
	found := false
	err := s.query(ctx, q, b.Select("id").
		From(b.Table(tasksTable)).
		Where(entsql.EQ("id", taskID)), func(*entsql.Rows) error {
		found = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to look up task %d: %w", taskID, err)
	}
	if !found {
		return fmt.Errorf("task %d: %w", taskID, thread.ErrNotFound)
	}
	return nil
}

func (s *CommentStore) count(ctx context.Context, q dialect.ExecQuerier, where *entsql.Predicate) (int, error) {
	b := s.builder()
	var n int
	err := s.query(ctx, q, b.Select(entsql.Count("*")).
		From(b.Table(commentsTable)).
		Where(where), func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return n, nil
}

func (s *CommentStore) getComment(ctx context.Context, q dialect.ExecQuerier, commentID int64) (*thread.Comment, error) {
	b := s.builder()
	found, err := s.selectComments(ctx, q, b.Select(commentColumns...).
		From(b.Table(commentsTable)).
		Where(entsql.EQ("id", commentID)))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("comment %d: %w", commentID, thread.ErrNotFound)
	}
	return &found[0], nil
}

func (s *CommentStore) selectComments(ctx context.Context, q dialect.ExecQuerier, sel *entsql.Selector) ([]thread.Comment, error) {
	var out []thread.Comment
	err := s.query(ctx, q, sel, func(rows *entsql.Rows) error {
		var (
			c                thread.Comment
			parent           sql.NullInt64
			created, updated int64
		)
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &parent, &c.Content, &created, &updated); err != nil {
			return err
		}
		if parent.Valid {
			parentID := parent.Int64
			c.ParentCommentID = &parentID
		}
		c.CreatedAt = fromMicros(created)
		c.UpdatedAt = fromMicros(updated)
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	return out, nil
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
