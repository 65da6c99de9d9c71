package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxBodyBytes bounds every request body
const maxBodyBytes = 1 << 20

// Routes builds the router with the full middleware stack
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Request size limit (1MB)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			next.ServeHTTP(w, r)
		})
	})

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", s.HandleVersion)

		// Authenticates itself so the token can ride on the query string
		r.Get("/tasks/{taskId}/comments/events", s.HandleCommentEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.JWTAuth)
			r.Use(RateLimitMiddleware(s.config.RateLimitRequests))

			r.Post("/tasks", s.HandleCreateTask)
			r.Get("/tasks/{taskId}", s.HandleGetTask)
			r.Delete("/tasks/{taskId}", s.HandleDeleteTask)

			r.Get("/tasks/{taskId}/comments", s.HandleListComments)
			r.Post("/tasks/{taskId}/comments", s.HandleCreateComment)
			r.Get("/tasks/{taskId}/comments/{commentId}", s.HandleGetComment)
			r.Put("/tasks/{taskId}/comments/{commentId}", s.HandleUpdateComment)
			r.Delete("/tasks/{taskId}/comments/{commentId}", s.HandleDeleteComment)

			r.Get("/tasks/{taskId}/activity", s.HandleListActivity)
		})
	})

	serviceName := s.config.ServiceName
	if serviceName == "" {
		serviceName = "taskthread-api"
	}
	return otelhttp.NewHandler(r, serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
