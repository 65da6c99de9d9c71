package api

import (
	"go.uber.org/zap"

	"taskthread/internal/auth"
	"taskthread/internal/collab"
	"taskthread/internal/config"
	"taskthread/internal/db"
	"taskthread/internal/thread"
)

// Server holds the application dependencies
type Server struct {
	service       *thread.Service
	db            *db.DB // nil when the thread lives in memory
	config        *config.Config
	logger        *zap.Logger
	auth          *auth.Service
	collabManager *collab.Manager
}

// NewServer creates a new API server
func NewServer(service *thread.Service, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		service: service,
		config:  cfg,
		logger:  logger,
		auth:    auth.NewService(cfg.JWTSecret, cfg.JWTExpiry()),
	}
}

// SetAuthService sets the auth service
func (s *Server) SetAuthService(authService *auth.Service) {
	s.auth = authService
}

// SetCollabManager sets the manager that streams comment events
func (s *Server) SetCollabManager(manager *collab.Manager) {
	s.collabManager = manager
}

// SetDatabase attaches the SQL database backing the store, used for health
// and version reporting
func (s *Server) SetDatabase(database *db.DB) {
	s.db = database
}

func (s *Server) storeBackend() string {
	if s.db != nil {
		return "sql"
	}
	return "memory"
}
