package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taskthread/internal/api"
	"taskthread/internal/collab"
	"taskthread/internal/config"
	"taskthread/internal/db"
	"taskthread/internal/seed"
	"taskthread/internal/telemetry"
	"taskthread/internal/thread"
	"taskthread/internal/version"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger := config.MustInitLogger(cfg.Env, cfg.LogLevel)
	defer logger.Sync() // Flush any buffered log entries

	logger.Info("Starting taskthread API",
		zap.String("env", cfg.Env),
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreBackend),
		zap.String("version", version.Version),
	)

	// Create background context with cancel for graceful shutdown
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	shutdownTelemetry, err := telemetry.Setup(bgCtx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version.Version,
		Environment:    cfg.Env,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("Failed to flush telemetry", zap.Error(err))
		}
	}()

	// Initialize the thread store
	var (
		store    thread.Store
		database *db.DB
	)
	if cfg.UseSQLStore() {
		database, err = db.New(db.Config{
			Driver:         cfg.DBDriver,
			DBPath:         cfg.DBPath,
			DSN:            cfg.DBDSN,
			MigrationsPath: cfg.MigrationsPath,
			Debug:          cfg.EnableSQLLog,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer database.Close()

		store = db.NewCommentStore(database, logger, db.WithQueryTimeout(cfg.DBQueryTimeout))
	} else {
		memory := thread.NewMemoryStore()
		if _, err := seed.LoadFile(bgCtx, memory, cfg.SeedPath, time.Now(), logger); err != nil {
			logger.Fatal("Failed to seed thread store", zap.Error(err))
		}
		store = memory
	}

	// Initialize collaboration manager for WebSocket connections
	collabManager := collab.NewManager(bgCtx, logger, collab.WithAllowedOrigins(cfg.CORSAllowedOrigins))

	service := thread.NewService(store, logger, collabManager)

	// Create server with logger
	server := api.NewServer(service, cfg, logger)
	server.SetCollabManager(collabManager)
	if database != nil {
		server.SetDatabase(database)
	}

	// Create HTTP server
	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for server errors
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive shutdown signal or server error
	select {
	case err := <-serverErrors:
		logger.Fatal("Server error", zap.Error(err))
	case sig := <-shutdown:
		logger.Info("Received shutdown signal, starting graceful shutdown", zap.String("signal", sig.String()))

		// Closing the background context drops every event subscriber
		bgCancel()

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Gracefully shutdown server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
			if err := srv.Close(); err != nil {
				logger.Fatal("Failed to close server", zap.Error(err))
			}
		}

		logger.Info("Server stopped gracefully")
	}
}
