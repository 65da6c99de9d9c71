package thread

import (
	"fmt"
	"sort"
	"strings"
)

// ValidateContent rejects blank or oversized comment bodies.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if len(content) > MaxContentLength {
		return fmt.Errorf("%w: content is too long (max %d characters)", ErrValidation, MaxContentLength)
	}
	return nil
}

// TotalPages is the number of root-comment pages of the given size.
func TotalPages(rootCount, pageSize int) int {
	if pageSize <= 0 || rootCount <= 0 {
		return 0
	}
	return (rootCount + pageSize - 1) / pageSize
}

// Partition splits comments into roots and replies, preserving input order.
func Partition(comments []Comment) (roots, replies []Comment) {
	for _, c := range comments {
		if c.IsRoot() {
			roots = append(roots, c)
		} else {
			replies = append(replies, c)
		}
	}
	return roots, replies
}

// SortRoots orders root comments by creation time. Equal timestamps fall
// back to id in the same direction so the order is total.
func SortRoots(roots []Comment, order SortOrder) {
	sort.SliceStable(roots, func(i, j int) bool {
		a, b := roots[i], roots[j]
		if order == SortOldest {
			return olderThan(a, b)
		}
		return olderThan(b, a)
	})
}

// Flatten places each root immediately before its replies. Replies are
// always oldest-first whatever the root order. Replies whose parent is not
// among roots are dropped.
func Flatten(roots, replies []Comment) []Comment {
	byParent := make(map[int64][]Comment, len(roots))
	for _, r := range replies {
		if r.ParentCommentID == nil {
			continue
		}
		byParent[*r.ParentCommentID] = append(byParent[*r.ParentCommentID], r)
	}

	out := make([]Comment, 0, len(roots)+len(replies))
	for _, root := range roots {
		out = append(out, root)
		children := byParent[root.ID]
		sort.SliceStable(children, func(i, j int) bool {
			return olderThan(children[i], children[j])
		})
		out = append(out, children...)
	}
	return out
}

// BuildPage computes one page over every comment of a single task. The
// caller filters by task; BuildPage partitions, sorts, slices the roots and
// attaches replies.
func BuildPage(all []Comment, req PageRequest) *Page {
	roots, replies := Partition(all)
	SortRoots(roots, req.Sort)

	start := req.PageIndex * req.PageSize
	var slice []Comment
	if start < len(roots) {
		end := start + req.PageSize
		if end > len(roots) {
			end = len(roots)
		}
		slice = roots[start:end]
	}

	return &Page{
		Content:       Flatten(slice, replies),
		TotalElements: len(all),
		TotalPages:    TotalPages(len(roots), req.PageSize),
		PageSize:      req.PageSize,
		PageIndex:     req.PageIndex,
	}
}

func olderThan(a, b Comment) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
