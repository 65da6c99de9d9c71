package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Thread store: "memory" serves seeded mock data, "sql" uses the database
	StoreBackend string
	SeedPath     string

	// Database
	DBDriver       string
	DBPath         string
	DBDSN          string
	MigrationsPath string
	DBQueryTimeout time.Duration

	// JWT
	JWTSecret      string
	JWTExpiryHours int

	// CORS
	CORSAllowedOrigins []string

	// Rate Limiting
	RateLimitRequests int

	// Logging
	LogLevel     string
	EnableSQLLog bool

	// Telemetry
	OTLPEndpoint string
	OTLPInsecure bool
	ServiceName  string
}

const defaultJWTSecret = "change-this-to-a-secure-random-string-in-production"

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		StoreBackend:       getEnv("STORE_BACKEND", "memory"),
		SeedPath:           getEnv("SEED_PATH", ""),
		DBDriver:           getEnv("DB_DRIVER", "sqlite"),
		DBPath:             getEnv("DB_PATH", "./data/taskthread.db"),
		DBDSN:              getEnv("DB_DSN", ""),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", "./internal/db/migrations"),
		DBQueryTimeout:     time.Duration(getEnvAsInt("DB_QUERY_TIMEOUT_SECONDS", 5)) * time.Second,
		JWTSecret:          getEnv("JWT_SECRET", defaultJWTSecret),
		JWTExpiryHours:     getEnvAsInt("JWT_EXPIRY_HOURS", 24),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		RateLimitRequests:  getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		EnableSQLLog:       getEnv("ENV", "development") == "development" || getEnvAsBool("ENABLE_SQL_LOG", false),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:       getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		ServiceName:        getEnv("OTEL_SERVICE_NAME", "taskthread-api"),
	}

	// Validate critical configuration
	if cfg.Env == "production" && cfg.JWTSecret == defaultJWTSecret {
		logger := MustInitLogger(cfg.Env, cfg.LogLevel)
		logger.Fatal("JWT_SECRET must be set in production environment")
	}

	return cfg
}

// JWTExpiry returns the JWT expiry duration
func (c *Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpiryHours) * time.Hour
}

// UseSQLStore reports whether threads are persisted in the database
func (c *Config) UseSQLStore() bool {
	return c.StoreBackend == "sql"
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Silently use default - logger not available yet during config load
		return defaultValue
	}
	return value
}

// getEnvAsBool reads an environment variable as bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated values
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}
