package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zapcore"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sql")
	t.Setenv("SEED_PATH", "")
	t.Setenv("DB_QUERY_TIMEOUT_SECONDS", "12")
	t.Setenv("RATE_LIMIT_REQUESTS", "-1")
	t.Setenv("JWT_EXPIRY_HOURS", "a day")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("ENABLE_SQL_LOG", "sometimes")

	strs := []struct {
		key, def, want string
	}{
		{key: "STORE_BACKEND", def: "memory", want: "sql"},
		{key: "SEED_PATH", def: "fixtures.yaml", want: "fixtures.yaml"},
		{key: "OTEL_SERVICE_NAME_UNSET", def: "taskthread-api", want: "taskthread-api"},
	}
	for _, tt := range strs {
		if got := getEnv(tt.key, tt.def); got != tt.want {
			t.Errorf("getEnv(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}

	ints := []struct {
		key       string
		def, want int
	}{
		{key: "DB_QUERY_TIMEOUT_SECONDS", def: 5, want: 12},
		{key: "RATE_LIMIT_REQUESTS", def: 100, want: -1},
		{key: "JWT_EXPIRY_HOURS", def: 24, want: 24},
		{key: "DB_QUERY_TIMEOUT_UNSET", def: 5, want: 5},
	}
	for _, tt := range ints {
		if got := getEnvAsInt(tt.key, tt.def); got != tt.want {
			t.Errorf("getEnvAsInt(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}

	bools := []struct {
		key       string
		def, want bool
	}{
		{key: "OTEL_EXPORTER_OTLP_INSECURE", def: true, want: false},
		{key: "ENABLE_SQL_LOG", def: true, want: true},
		{key: "ENABLE_SQL_LOG_UNSET", def: false, want: false},
	}
	for _, tt := range bools {
		if got := getEnvAsBool(tt.key, tt.def); got != tt.want {
			t.Errorf("getEnvAsBool(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestGetEnvAsSlice(t *testing.T) {
	def := []string{"http://localhost:5173"}
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{name: "unset", value: "", want: def},
		{name: "single origin", value: "https://threads.example.com", want: []string{"https://threads.example.com"}},
		{name: "trims and drops blanks", value: " https://a.example.com , ,https://b.example.com ", want: []string{"https://a.example.com", "https://b.example.com"}},
		{name: "only separators", value: " , ,", want: def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CORS_ALLOWED_ORIGINS", tt.value)
			got := getEnvAsSlice("CORS_ALLOWED_ORIGINS", def)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("getEnvAsSlice mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJWTExpiry(t *testing.T) {
	for hours, want := range map[int]time.Duration{0: 0, 1: time.Hour, 24: 24 * time.Hour} {
		cfg := &Config{JWTExpiryHours: hours}
		if got := cfg.JWTExpiry(); got != want {
			t.Errorf("JWTExpiry(%d h) = %v, want %v", hours, got, want)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults serve seeded memory threads", func(t *testing.T) {
		for _, key := range []string{
			"PORT", "STORE_BACKEND", "SEED_PATH", "DB_DRIVER", "DB_PATH", "DB_DSN",
			"MIGRATIONS_PATH", "DB_QUERY_TIMEOUT_SECONDS", "JWT_SECRET", "JWT_EXPIRY_HOURS",
			"CORS_ALLOWED_ORIGINS", "RATE_LIMIT_REQUESTS", "LOG_LEVEL", "ENABLE_SQL_LOG",
			"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "OTEL_SERVICE_NAME",
		} {
			t.Setenv(key, "")
		}
		t.Setenv("ENV", "development")

		want := &Config{
			Port:               "8080",
			Env:                "development",
			StoreBackend:       "memory",
			DBDriver:           "sqlite",
			DBPath:             "./data/taskthread.db",
			MigrationsPath:     "./internal/db/migrations",
			DBQueryTimeout:     5 * time.Second,
			JWTSecret:          defaultJWTSecret,
			JWTExpiryHours:     24,
			CORSAllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
			RateLimitRequests:  100,
			LogLevel:           "info",
			EnableSQLLog:       true,
			OTLPInsecure:       true,
			ServiceName:        "taskthread-api",
		}
		got := Load()
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Load() mismatch (-want +got):\n%s", diff)
		}
		if got.UseSQLStore() {
			t.Error("UseSQLStore() = true for the memory backend")
		}
	})

	t.Run("sql backend on postgres with telemetry", func(t *testing.T) {
		t.Setenv("ENV", "staging")
		t.Setenv("STORE_BACKEND", "sql")
		t.Setenv("DB_DRIVER", "postgres")
		t.Setenv("DB_DSN", "postgres://u:p@db:5432/threads")
		t.Setenv("DB_QUERY_TIMEOUT_SECONDS", "10")
		t.Setenv("SEED_PATH", "/etc/taskthread/seed.yaml")
		t.Setenv("RATE_LIMIT_REQUESTS", "0")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
		t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
		t.Setenv("OTEL_SERVICE_NAME", "threads-staging")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://threads.example.com")
		t.Setenv("ENABLE_SQL_LOG", "")

		cfg := Load()

		if !cfg.UseSQLStore() {
			t.Errorf("UseSQLStore() = false for STORE_BACKEND=%q", cfg.StoreBackend)
		}
		if cfg.DBDriver != "postgres" || cfg.DBDSN != "postgres://u:p@db:5432/threads" {
			t.Errorf("DBDriver/DBDSN = %q/%q", cfg.DBDriver, cfg.DBDSN)
		}
		if cfg.DBQueryTimeout != 10*time.Second {
			t.Errorf("DBQueryTimeout = %v, want 10s", cfg.DBQueryTimeout)
		}
		if cfg.SeedPath != "/etc/taskthread/seed.yaml" {
			t.Errorf("SeedPath = %q", cfg.SeedPath)
		}
		if cfg.RateLimitRequests != 0 {
			t.Errorf("RateLimitRequests = %d, want 0 (limiter off)", cfg.RateLimitRequests)
		}
		if cfg.OTLPEndpoint != "collector:4317" || cfg.OTLPInsecure || cfg.ServiceName != "threads-staging" {
			t.Errorf("telemetry = %q insecure=%v name=%q", cfg.OTLPEndpoint, cfg.OTLPInsecure, cfg.ServiceName)
		}
		if diff := cmp.Diff([]string{"https://threads.example.com"}, cfg.CORSAllowedOrigins); diff != "" {
			t.Errorf("CORSAllowedOrigins mismatch (-want +got):\n%s", diff)
		}
		if cfg.EnableSQLLog {
			t.Error("EnableSQLLog should be off outside development")
		}
	})

	t.Run("sql logging can be forced outside development", func(t *testing.T) {
		t.Setenv("ENV", "staging")
		t.Setenv("ENABLE_SQL_LOG", "true")

		if !Load().EnableSQLLog {
			t.Error("EnableSQLLog should follow ENABLE_SQL_LOG=true")
		}
	})
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		env, level string
		enabled    zapcore.Level
		disabled   zapcore.Level
	}{
		{env: "development", level: "debug", enabled: zapcore.DebugLevel, disabled: zapcore.DebugLevel},
		{env: "production", level: "warn", enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel},
		{env: "production", level: "not-a-level", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			logger, err := InitLogger(tt.env, tt.level)
			if err != nil {
				t.Fatalf("InitLogger: %v", err)
			}
			core := logger.Core()
			if !core.Enabled(tt.enabled) {
				t.Errorf("level %s not enabled", tt.enabled)
			}
			if tt.disabled != tt.enabled && core.Enabled(tt.disabled) {
				t.Errorf("level %s enabled, want it filtered", tt.disabled)
			}
		})
	}

	if MustInitLogger("development", "info") == nil {
		t.Fatal("MustInitLogger returned nil")
	}
}
