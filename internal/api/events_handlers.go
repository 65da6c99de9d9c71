package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HandleCommentEvents upgrades to a WebSocket that streams every comment
// event of a task. Browsers cannot set headers on a WebSocket handshake, so
// the token may also be passed as the token query parameter.
func (s *Server) HandleCommentEvents(w http.ResponseWriter, r *http.Request) {
	if s.collabManager == nil {
		respondError(w, http.StatusServiceUnavailable, "event stream unavailable", "unavailable")
		return
	}

	taskID, ok := idParam(r, "taskId")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid task ID", "invalid_input")
		return
	}

	userID, ok := GetUserID(r)
	if !ok {
		token, found := bearerToken(r.Header.Get("Authorization"))
		if !found {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing token", "unauthorized")
			return
		}
		claims, err := s.auth.ValidateToken(token)
		if err != nil {
			s.logger.Warn("Invalid WebSocket token", zap.Error(err))
			respondError(w, http.StatusUnauthorized, "invalid or expired token", "unauthorized")
			return
		}
		userID = claims.UserID
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if _, err := s.service.GetTask(ctx, taskID); err != nil {
		s.respondServiceError(w, r, err, "failed to get task")
		return
	}

	if err := s.collabManager.ServeWS(w, r, taskID, userID); err != nil {
		s.logger.Warn("Failed to upgrade WebSocket",
			zap.Int64("task_id", taskID),
			zap.Error(err),
		)
	}
}
