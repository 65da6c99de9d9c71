package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"go.uber.org/zap"
)

// copyTables lists the thread tables in foreign key order with the columns
// carried over. Ids are preserved so parent links and activity references
// stay valid.
var copyTables = []struct {
	name    string
	columns []string
}{
	{"tasks", []string{"id", "title", "created_at"}},
	{"comments", []string{"id", "task_id", "author_id", "parent_id", "content", "created_at", "updated_at"}},
	{"activity", []string{"id", "task_id", "comment_id", "user_id", "type", "description", "created_at"}},
}

// DefaultCopyBatchSize is the number of rows committed per transaction
const DefaultCopyBatchSize = 1000

// TableCount is the row count of one table
type TableCount struct {
	Table string
	Rows  int
}

// CountRows reports how many rows each thread table holds
func CountRows(ctx context.Context, db *DB) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(copyTables))
	for _, t := range copyTables {
		n, err := countTable(ctx, db, t.name)
		if err != nil {
			return nil, err
		}
		counts = append(counts, TableCount{Table: t.name, Rows: n})
	}
	return counts, nil
}

// Copy moves every task, comment and activity row from src into dest.
// dest must be migrated and empty. Rows are committed in batches of
// batchSize and the copied counts are verified afterwards.
func Copy(ctx context.Context, src, dest *DB, batchSize int, logger *zap.Logger) ([]TableCount, error) {
	if batchSize <= 0 {
		batchSize = DefaultCopyBatchSize
	}

	for _, t := range copyTables {
		n, err := countTable(ctx, dest, t.name)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("destination table %s is not empty (%d rows)", t.name, n)
		}
	}

	var copied []TableCount
	for _, t := range copyTables {
		logger.Info("Copying table", zap.String("table", t.name))

		count, err := countTable(ctx, src, t.name)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			logger.Info("Table is empty, skipping", zap.String("table", t.name))
			copied = append(copied, TableCount{Table: t.name})
			continue
		}

		if err := copyTable(ctx, src, dest, t.name, t.columns, batchSize, logger); err != nil {
			return nil, fmt.Errorf("failed to copy table %s: %w", t.name, err)
		}

		if err := resetIdentity(ctx, dest, t.name); err != nil {
			logger.Warn("Failed to update sequence", zap.String("table", t.name), zap.Error(err))
		}

		destCount, err := countTable(ctx, dest, t.name)
		if err != nil {
			return nil, err
		}
		if count != destCount {
			return nil, fmt.Errorf("row count mismatch for %s: source=%d, dest=%d", t.name, count, destCount)
		}

		logger.Info("Table copied successfully",
			zap.String("table", t.name),
			zap.Int("rows", count))
		copied = append(copied, TableCount{Table: t.name, Rows: count})
	}

	return copied, nil
}

func copyTable(ctx context.Context, src, dest *DB, table string, columns []string, batchSize int, logger *zap.Logger) error {
	selectQuery, selectArgs := entsql.Dialect(src.dialect).
		Select(columns...).
		From(entsql.Table(table)).
		OrderBy("id").
		Query()
	rows, err := src.QueryContext(ctx, selectQuery, selectArgs...)
	if err != nil {
		return fmt.Errorf("failed to query source table: %w", err)
	}
	defer rows.Close()

	tx, err := dest.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	count, batch := 0, 0
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to scan row: %w", err)
		}

		query, args := insertWithID(dest.dialect, table, columns, values)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert row: %w", err)
		}
		count++

		if count%batchSize == 0 {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit batch: %w", err)
			}
			batch++
			logger.Info("Batch committed",
				zap.String("table", table),
				zap.Int("batch", batch),
				zap.Int("rows", count))

			tx, err = dest.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("failed to begin new transaction: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// insertWithID builds an insert that keeps the source id. Postgres identity
// columns reject explicit ids unless the system value is overridden.
func insertWithID(d, table string, columns []string, values []any) (string, []any) {
	query, args := entsql.Dialect(d).
		Insert(table).
		Columns(columns...).
		Values(values...).
		Query()
	if d == dialect.Postgres {
		query = strings.Replace(query, ") VALUES (", ") OVERRIDING SYSTEM VALUE VALUES (", 1)
	}
	return query, args
}

// resetIdentity moves the postgres identity of table past the copied ids.
// SQLite AUTOINCREMENT tracks the largest id on its own.
func resetIdentity(ctx context.Context, db *DB, table string) error {
	if db.dialect != dialect.Postgres {
		return nil
	}

	var maxID sql.NullInt64
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT MAX(id) FROM %s", table)).Scan(&maxID); err != nil {
		return err
	}
	if !maxID.Valid || maxID.Int64 == 0 {
		return nil
	}

	_, err := db.ExecContext(ctx, "SELECT setval(pg_get_serial_sequence($1, 'id'), $2)", table, maxID.Int64)
	return err
}

func countTable(ctx context.Context, db *DB, table string) (int, error) {
	query, args := entsql.Dialect(db.dialect).
		Select(entsql.Count("*")).
		From(entsql.Table(table)).
		Query()
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}
