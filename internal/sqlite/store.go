// Package sqlite provides the relational store backing sysmlsql: connection
// management, schema initialization, column introspection and the bulk
// import tuning hook.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// sqlite driver registration
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver used for all stores.
const DriverName = "sqlite"

// Store wraps a single-connection SQLite database.
//
// Connection-scoped state (PRAGMA foreign_keys, temporary tables, in-memory
// databases) must be seen by every statement, so the pool is pinned to one
// connection.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewStore creates a new store instance. A nil logger discards output.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *Store) Open(ctx context.Context, path string) error {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened database", slog.String("path", path))
	return nil
}

// OpenReadOnly opens an existing database file without write access.
func (s *Store) OpenReadOnly(ctx context.Context, path string) error {
	return s.Open(ctx, "file:"+path+"?mode=ro")
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// InitSchema executes a DDL script. The script is not idempotent: running it
// against an initialized database fails.
func (s *Store) InitSchema(ctx context.Context, ddl string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	s.logger.Info("running CREATE TABLE statements in db")
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema (are there pre-existing tables in the db?): %w", err)
	}
	return nil
}
