package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Execer is the subset of *sql.DB and *sql.Conn used by the tuning hook.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Tuning holds the storage engine parameters applied around a bulk import.
type Tuning struct {
	PageSize int
	// CacheSizeKiB is passed as a negative cache_size, i.e. in KiB rather than pages.
	CacheSizeKiB int
	// Synchronous is the durability level used during the import.
	Synchronous string
	// Vacuum compacts the database file after the import.
	Vacuum bool
	Logger *slog.Logger
}

// DefaultTuning returns the parameters found to be fastest for large imports.
func DefaultTuning() Tuning {
	return Tuning{
		PageSize:     4096,
		CacheSizeKiB: 256 * 1024,
		Synchronous:  "OFF",
	}
}

func (t Tuning) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.Logger
}

// BeforeBulkImport applies the pragmas. It must run outside of a transaction.
func BeforeBulkImport(ctx context.Context, db Execer, t Tuning) error {
	t.logger().Info("applying performance tweaks")

	stmts := []string{
		fmt.Sprintf("PRAGMA cache_size = %d", -t.CacheSizeKiB),
		fmt.Sprintf("PRAGMA page_size = %d", t.PageSize),
		fmt.Sprintf("PRAGMA synchronous = %s", t.Synchronous),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply %q: %w", stmt, err)
		}
	}
	return nil
}

// AfterBulkImport restores durability and refreshes planner statistics,
// optionally compacting the database first.
func AfterBulkImport(ctx context.Context, db Execer, t Tuning) error {
	logger := t.logger()
	logger.Info("resetting performance tweaks")

	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL"); err != nil {
		return fmt.Errorf("failed to reset synchronous: %w", err)
	}

	ops := []string{"ANALYZE"}
	if t.Vacuum {
		ops = []string{"VACUUM", "ANALYZE"}
	}
	for _, op := range ops {
		start := time.Now()
		logger.Info("executing maintenance", slog.String("op", op))
		if _, err := db.ExecContext(ctx, op); err != nil {
			return fmt.Errorf("failed to execute %s: %w", op, err)
		}
		logger.Debug("maintenance finished", slog.String("op", op), slog.Duration("took", time.Since(start)))
	}
	return nil
}
