// Package cursor drives incremental retrieval of a task's comment thread.
//
// A Cursor loads root-comment pages one at a time, appends them to an
// accumulated list and exposes that list with duplicate ids removed. At most
// one fetch is in flight per Cursor; triggers that arrive while a fetch is
// running are dropped.
package cursor

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"taskthread/internal/thread"
)

// ErrNotMounted is returned by triggers that need a task before Mount.
var ErrNotMounted = errors.New("cursor: not mounted")

// State is the position of a Cursor in its load cycle.
type State int

const (
	Idle State = iota
	LoadingFirstPage
	LoadingMore
	Exhausted
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoadingFirstPage:
		return "loading_first_page"
	case LoadingMore:
		return "loading_more"
	case Exhausted:
		return "exhausted"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Fetcher returns one page of a task's thread. thread.Service, every
// thread.Store and client.Client satisfy it.
type Fetcher interface {
	GetPage(ctx context.Context, taskID int64, req thread.PageRequest) (*thread.Page, error)
}

// Snapshot is what a Cursor exposes to the rendering layer.
type Snapshot struct {
	TaskID        int64
	Sort          thread.SortOrder
	Items         []thread.Comment
	State         State
	PageIndex     int
	TotalPages    int
	TotalElements int
	HasMore       bool
	Err           error
}

// Cursor is the client-side page controller for one task and sort order.
type Cursor struct {
	fetcher  Fetcher
	logger   *zap.Logger
	pageSize int

	mu      sync.Mutex
	mounted bool
	taskID  int64
	sort    thread.SortOrder
	state   State

	inFlight bool
	// generation is bumped by every reset; results of fetches issued under
	// an older generation are dropped.
	generation    uint64
	reloadPending bool
	// reloadCtx is the context of the request that deferred the reload.
	reloadCtx context.Context

	items         []thread.Comment
	visible       []thread.Comment
	pageIndex     int
	totalPages    int
	totalElements int
	failedPage    int
	err           error
}

// Option configures a Cursor.
type Option func(*Cursor)

// WithPageSize sets the number of root comments per page.
func WithPageSize(n int) Option {
	return func(c *Cursor) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the logger used for load tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cursor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an unmounted Cursor.
func New(fetcher Fetcher, opts ...Option) *Cursor {
	c := &Cursor{
		fetcher:  fetcher,
		logger:   zap.NewNop(),
		pageSize: thread.DefaultPageSize,
		sort:     thread.SortNewest,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type job struct {
	gen    uint64
	taskID int64
	req    thread.PageRequest
}

// Mount binds the cursor to a task and sort order, discards anything
// accumulated so far and loads the first page.
func (c *Cursor) Mount(ctx context.Context, taskID int64, sort thread.SortOrder) error {
	c.mu.Lock()
	c.mounted = true
	c.resetLocked(taskID, sort)
	return c.reloadLocked(ctx)
}

// SetSortOrder switches the root order. The visible list, page index and
// totals are cleared before the first page of the new order is requested.
// Setting the current order again is a no-op.
func (c *Cursor) SetSortOrder(ctx context.Context, sort thread.SortOrder) error {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return ErrNotMounted
	}
	if sort == c.sort {
		c.mu.Unlock()
		return nil
	}
	c.resetLocked(c.taskID, sort)
	return c.reloadLocked(ctx)
}

// Refresh reloads the first page and replaces the accumulated list with
// it, keeping the current list visible until the page arrives. Callers use
// it after creating or deleting a comment.
func (c *Cursor) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return ErrNotMounted
	}
	c.generation++
	return c.reloadLocked(ctx)
}

// LoadMore requests the next page. It reports whether a fetch was issued:
// nothing is fetched while another fetch is in flight or once the thread is
// exhausted. In the Error state it re-issues the failed fetch.
func (c *Cursor) LoadMore(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return false, ErrNotMounted
	}
	if c.inFlight {
		taskID := c.taskID
		c.mu.Unlock()
		c.logger.Debug("Load dropped, fetch in flight", zap.Int64("task_id", taskID))
		return false, nil
	}

	var page int
	switch c.state {
	case Error:
		page = c.failedPage
	case Idle:
		if !c.hasMoreLocked() {
			c.mu.Unlock()
			return false, nil
		}
		page = c.pageIndex + 1
	default:
		c.mu.Unlock()
		return false, nil
	}

	j := c.startLocked(page)
	c.mu.Unlock()
	return true, c.run(ctx, j)
}

// ScrollThresholdReached is the scroll trigger; it behaves like LoadMore.
func (c *Cursor) ScrollThresholdReached(ctx context.Context) (bool, error) {
	return c.LoadMore(ctx)
}

// OnScroll fires the scroll trigger when the viewport has passed the
// threshold.
func (c *Cursor) OnScroll(ctx context.Context, v Viewport) (bool, error) {
	if !v.Reached() {
		return false, nil
	}
	return c.ScrollThresholdReached(ctx)
}

// Retry re-issues the fetch that moved the cursor into the Error state.
func (c *Cursor) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Error || c.inFlight {
		c.mu.Unlock()
		return nil
	}
	j := c.startLocked(c.failedPage)
	c.mu.Unlock()
	return c.run(ctx, j)
}

// Apply replaces an already visible comment with an edited copy, so an
// edit shows up without reloading. It reports whether the comment was
// present.
func (c *Cursor) Apply(updated thread.Comment) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for i := range c.items {
		if c.items[i].ID == updated.ID {
			c.items[i] = updated
			found = true
		}
	}
	if found {
		c.visible = Dedup(c.items)
	}
	return found
}

// Snapshot returns a copy of the cursor's visible state.
func (c *Cursor) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]thread.Comment, len(c.visible))
	copy(items, c.visible)
	return Snapshot{
		TaskID:        c.taskID,
		Sort:          c.sort,
		Items:         items,
		State:         c.state,
		PageIndex:     c.pageIndex,
		TotalPages:    c.totalPages,
		TotalElements: c.totalElements,
		HasMore:       c.hasMoreLocked(),
		Err:           c.err,
	}
}

// resetLocked clears everything accumulated for the previous task or sort
// order. Callers hold mu.
func (c *Cursor) resetLocked(taskID int64, sort thread.SortOrder) {
	c.generation++
	c.taskID = taskID
	c.sort = sort
	c.state = Idle
	c.items = nil
	c.visible = nil
	c.pageIndex = 0
	c.totalPages = 0
	c.totalElements = 0
	c.failedPage = 0
	c.err = nil
}

// reloadLocked loads page 0 for the current generation and releases mu.
// With a fetch already in flight the load is deferred until that fetch
// resolves, so only one fetch ever runs. The deferred load runs under ctx,
// not under the context of the fetch it waited for.
func (c *Cursor) reloadLocked(ctx context.Context) error {
	if c.inFlight {
		c.reloadPending = true
		c.reloadCtx = ctx
		c.state = LoadingFirstPage
		c.mu.Unlock()
		return nil
	}
	j := c.startLocked(0)
	c.mu.Unlock()
	return c.run(ctx, j)
}

func (c *Cursor) startLocked(page int) job {
	c.inFlight = true
	if page == 0 {
		c.state = LoadingFirstPage
	} else {
		c.state = LoadingMore
	}
	return job{
		gen:    c.generation,
		taskID: c.taskID,
		req: thread.PageRequest{
			PageIndex: page,
			PageSize:  c.pageSize,
			Sort:      c.sort,
		},
	}
}

// run executes j and any reload deferred behind it. Only a failure of the
// caller's own fetch is returned; a failed deferred reload is reported
// through the Error state.
func (c *Cursor) run(ctx context.Context, j job) error {
	own := true
	for {
		page, err := c.fetcher.GetPage(ctx, j.taskID, j.req)

		c.mu.Lock()
		c.inFlight = false

		if j.gen != c.generation {
			c.logger.Debug("Dropping stale comment page",
				zap.Int64("task_id", j.taskID),
				zap.Int("page", j.req.PageIndex),
			)
			if !c.reloadPending {
				c.mu.Unlock()
				return nil
			}
			c.reloadPending = false
			ctx, c.reloadCtx = c.reloadCtx, nil
			own = false
			j = c.startLocked(0)
			c.mu.Unlock()
			continue
		}

		if err != nil {
			c.state = Error
			c.err = err
			c.failedPage = j.req.PageIndex
			c.mu.Unlock()
			c.logger.Warn("Failed to load comment page",
				zap.Int64("task_id", j.taskID),
				zap.Int("page", j.req.PageIndex),
				zap.Error(err),
			)
			if !own {
				return nil
			}
			return err
		}

		c.applyLocked(j.req.PageIndex, page)
		state := c.state
		visible := len(c.visible)
		c.mu.Unlock()

		c.logger.Debug("Loaded comment page",
			zap.Int64("task_id", j.taskID),
			zap.Int("page", j.req.PageIndex),
			zap.Int("total_pages", page.TotalPages),
			zap.Int("visible", visible),
			zap.Stringer("state", state),
		)
		return nil
	}
}

// applyLocked merges a fetched page. Page 0 replaces the accumulated list;
// any later page is appended. Callers hold mu.
func (c *Cursor) applyLocked(index int, page *thread.Page) {
	if index == 0 {
		c.items = append([]thread.Comment(nil), page.Content...)
	} else {
		c.items = append(c.items, page.Content...)
	}
	c.visible = Dedup(c.items)
	c.pageIndex = index
	c.totalPages = page.TotalPages
	c.totalElements = page.TotalElements
	c.err = nil

	if index >= page.TotalPages-1 {
		c.state = Exhausted
	} else {
		c.state = Idle
	}
}

func (c *Cursor) hasMoreLocked() bool {
	return c.state != Exhausted && c.pageIndex < c.totalPages-1
}
