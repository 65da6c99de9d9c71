package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"taskthread/internal/thread"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondServiceError maps thread errors onto HTTP statuses. Anything that
// is neither a validation nor a lookup failure is logged and reported with
// the generic message.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, thread.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error(), "invalid_input")
	case errors.Is(err, thread.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error(), "not_found")
	default:
		s.logger.Error(message,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, message, "internal_error")
	}
}
