package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"taskthread/internal/version"
)

// HandleHealth reports whether the store is reachable
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.db.HealthCheck(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "error",
				"message": "database unavailable",
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"store":  s.storeBackend(),
	})
}

// HandleVersion returns version information about the API, store and build
func (s *Server) HandleVersion(w http.ResponseWriter, r *http.Request) {
	dbVersion := 0
	if s.db != nil {
		v, err := s.db.GetMigrationVersion(r.Context())
		if err != nil {
			s.logger.Warn("Failed to get database version", zap.Error(err))
		}
		dbVersion = v
	}

	respondJSON(w, http.StatusOK, version.Get(s.config.Env, s.storeBackend(), dbVersion))
}
