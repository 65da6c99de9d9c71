package api

import (
	"context"
	"net/http"
	"time"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// HandleListActivity returns the newest activity entries of a task
func (s *Server) HandleListActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	taskID, ok := idParam(r, "taskId")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid task ID", "invalid_input")
		return
	}
	limit, ok := queryInt(r, "limit", defaultActivityLimit)
	if !ok || limit <= 0 {
		respondError(w, http.StatusBadRequest, "invalid limit", "invalid_input")
		return
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	entries, err := s.service.ListActivity(ctx, taskID, limit)
	if err != nil {
		s.respondServiceError(w, r, err, "failed to fetch activity")
		return
	}

	respondJSON(w, http.StatusOK, entries)
}
