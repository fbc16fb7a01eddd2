// Package sqlite implements the entity, lease and content-matching stores on
// an embedded SQLite database. It backs local runs and the store tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"dgsync/internal/domain/entity"

	_ "modernc.org/sqlite"
)

// Config configures the SQLite database.
type Config struct {
	// Path is the database file. ":memory:" opens a private in-memory database.
	Path        string
	BusyTimeout int // milliseconds
}

// Store holds the database handle shared by the SQLite adapters.
type Store struct {
	db      *sql.DB
	catalog *entity.Catalog
}

// Open opens the database with foreign keys enforced.
func Open(config Config, catalog *entity.Catalog) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5000
	}

	dsn := config.Path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += fmt.Sprintf("%s_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", sep, config.BusyTimeout)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases from splitting across connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return &Store{db: db, catalog: catalog}, nil
}

// Migrate creates every table the stores use.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range SchemaStatements(s.catalog) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for tests and tools.
func (s *Store) DB() *sql.DB {
	return s.db
}
