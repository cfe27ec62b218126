// Package history persists a durable record of every worker session's
// output for post-mortem review, backed by SQLite (§4.4 "output capture",
// SPEC_FULL.md DOMAIN STACK: ncruces/go-sqlite3 + golang-migrate).
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // statically links the sqlite3 library
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the HistoryStore implementation: a small SQLite-backed log of
// session lifecycles and their output lines.
type Store struct {
	db *sql.DB
}

// Open creates (or reopens) the history database at path, applying any
// pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer.

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("history: creating migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("history: reading embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("history: building migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("history: applying migrations: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession records the beginning of a worker's multiplexer session.
func (s *Store) StartSession(ctx context.Context, sessionID, workerID, label string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, worker_id, label, started_at) VALUES (?, ?, ?, ?)`,
		sessionID, workerID, label, time.Now())
	if err != nil {
		return fmt.Errorf("history: starting session %s: %w", sessionID, err)
	}
	return nil
}

// StoreOutput appends a captured output line to sessionID's record.
func (s *Store) StoreOutput(ctx context.Context, sessionID, line string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_output (session_id, line, written_at) VALUES (?, ?, ?)`,
		sessionID, line, time.Now())
	if err != nil {
		return fmt.Errorf("history: storing output for session %s: %w", sessionID, err)
	}
	return nil
}

// EndSession marks sessionID as finished.
func (s *Store) EndSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`, time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("history: ending session %s: %w", sessionID, err)
	}
	return nil
}

// OutputSince returns every output line recorded for sessionID at or after
// since, oldest first, used to rehydrate a worker's history view.
func (s *Store) OutputSince(ctx context.Context, sessionID string, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT line FROM session_output WHERE session_id = ? AND written_at >= ? ORDER BY id ASC`,
		sessionID, since)
	if err != nil {
		return nil, fmt.Errorf("history: querying output for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("history: scanning output row: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
