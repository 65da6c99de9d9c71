package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DB wraps the database connection and the Ent SQL driver
type DB struct {
	*sql.DB                // Raw SQL connection for migrations
	Driver  dialect.Driver // Ent driver used by the stores
	dialect string
	logger  *zap.Logger
}

// Config holds database configuration
type Config struct {
	Driver         string // "sqlite" or "pgx" (postgres)
	DBPath         string // For SQLite
	DSN            string // For Postgres
	MigrationsPath string
	Debug          bool // Log every statement sent through the Ent driver
}

// New creates a new database connection and runs migrations
func New(cfg Config, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var sqlDB *sql.DB
	var err error

	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		if cfg.DBPath != ":memory:" {
			dataDir := filepath.Dir(cfg.DBPath)
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}

		sqlDB, err = otelsql.Open("sqlite", cfg.DBPath,
			otelsql.WithAttributes(attribute.String("db.system", "sqlite")))
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}

		// SQLite supports only one writer; a single connection also keeps
		// an in-memory database alive for the lifetime of the pool.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)

		pragmas := []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA busy_timeout = 5000",
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, pragma := range pragmas {
			if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
				sqlDB.Close()
				return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
			}
		}

	case "postgres", "pgx":
		sqlDB, err = otelsql.Open("pgx", cfg.DSN,
			otelsql.WithAttributes(attribute.String("db.system", "postgresql")))
		if err != nil {
			return nil, fmt.Errorf("failed to open Postgres database: %w", err)
		}

		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Minute)

	default:
		return nil, fmt.Errorf("unsupported database driver: %s (expected 'sqlite' or 'postgres')", driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	entDialect := dialect.SQLite
	if driver == "postgres" || driver == "pgx" {
		entDialect = dialect.Postgres
	}

	var entDriver dialect.Driver = entsql.OpenDB(entDialect, sqlDB)
	if cfg.Debug {
		sugar := logger.Sugar()
		entDriver = dialect.Debug(entDriver, func(v ...any) { sugar.Debug(v...) })
	}

	db := &DB{
		DB:      sqlDB,
		Driver:  entDriver,
		dialect: entDialect,
		logger:  logger,
	}

	if cfg.MigrationsPath != "" {
		if err := db.runMigrations(ctx, cfg.MigrationsPath, driver); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	logger.Info("Database initialized",
		zap.String("driver", driver),
		zap.String("dialect", entDialect),
		zap.String("path", cfg.DBPath),
		zap.String("dsn_host", maskDSN(cfg.DSN)))
	return db, nil
}

// Dialect returns the Ent dialect name of the connection
func (db *DB) Dialect() string {
	return db.dialect
}

// maskDSN returns a masked version of the DSN for logging (hides password)
func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if strings.Contains(dsn, "@") {
		parts := strings.Split(dsn, "@")
		if len(parts) > 1 {
			return "***@" + parts[1]
		}
	}
	return "***"
}

// runMigrations executes all pending SQL migration files
func (db *DB) runMigrations(ctx context.Context, migrationsPath string, driver string) error {
	if driver == "postgres" || driver == "pgx" {
		migrationsPath = filepath.Join(migrationsPath, "postgres")
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		db.logger.Warn("Migrations directory does not exist, skipping migrations",
			zap.String("path", migrationsPath))
		return nil
	}

	files, err := os.ReadDir(migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}
	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		version := strings.TrimSuffix(filename, ".sql")
		if applied[version] {
			continue
		}

		db.logger.Info("Applying migration", zap.String("file", filename))

		content, err := os.ReadFile(filepath.Join(migrationsPath, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for %s: %w", filename, err)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		query, args := entsql.Dialect(db.dialect).
			Insert("schema_migrations").
			Columns("version").
			Values(version).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", filename, err)
		}

		db.logger.Info("Migration applied successfully", zap.String("file", filename))
	}

	return nil
}

func (db *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migrations: %w", err)
	}
	return applied, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// HealthCheck verifies database connectivity
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.PingContext(ctx)
}

// GetMigrationVersion returns the count of applied migrations
func (db *DB) GetMigrationVersion(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	return count, nil
}
