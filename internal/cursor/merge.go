package cursor

import "taskthread/internal/thread"

// Dedup drops every comment whose id already appeared earlier in items,
// keeping the first occurrence. Applying it twice gives the same result as
// applying it once.
func Dedup(items []thread.Comment) []thread.Comment {
	seen := make(map[int64]struct{}, len(items))
	out := make([]thread.Comment, 0, len(items))
	for _, c := range items {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
