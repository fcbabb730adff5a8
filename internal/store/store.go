// Package store provides the crash-durable local cache backing the sync
// engine: entities, attachments, the pending-action queue, recorded
// conflicts, and sync metadata. All state lives in a single SQLite file so
// multi-table operations (enqueue + cache update, ClearAll) are atomic.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const dbFile = ".satchel/planner.db"

// Store wraps the SQLite connection. Every write that returns nil has been
// committed; reads never touch the network.
type Store struct {
	conn    *sql.DB
	baseDir string
}

// Open opens an existing store and runs any pending migrations.
func Open(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("store not found: run 'satchel init' first")
	}

	return open(dbPath, baseDir)
}

// Initialize creates the store, its schema, and runs migrations.
func Initialize(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s, err := open(dbPath, baseDir)
	if err != nil {
		return nil, err
	}

	if _, err := s.conn.Exec(schema); err != nil {
		s.conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if err := s.setSchemaVersion(SchemaVersion); err != nil {
		s.conn.Close()
		return nil, fmt.Errorf("set schema version: %w", err)
	}

	return s, nil
}

func open(dbPath, baseDir string) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// WAL: concurrent readers while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")
	conn.Exec("PRAGMA foreign_keys=ON")

	s := &Store{conn: conn, baseDir: baseDir}

	if err := s.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

// Conn exposes the underlying connection for tests and transactions.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// Close releases the connection. Safe to call once per process teardown.
func (s *Store) Close() error {
	return s.conn.Close()
}

// ClearAll wipes every table in a single transaction so no orphaned
// attachments or dangling queue rows can survive a partial wipe. Used on
// logout.
func (s *Store) ClearAll() error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"entities", "attachments", "pending_actions", "sync_conflicts", "metadata"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return mapStorageErr(fmt.Errorf("clear %s: %w", table, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return mapStorageErr(fmt.Errorf("commit clear: %w", err))
	}
	return nil
}
