package store

import (
	"database/sql"
	"fmt"
)

// columnExists checks whether a column exists on a table.
func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.conn.Query(fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// tableExists checks whether a table exists in the database.
func (s *Store) tableExists(table string) (bool, error) {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetSchemaVersion returns the schema version recorded in the database.
func (s *Store) GetSchemaVersion() (int, error) {
	var version string
	err := s.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&version)
	if err != nil {
		// Table missing or row absent: pre-migration store
		return 0, nil
	}
	var v int
	fmt.Sscanf(version, "%d", &v)
	return v, nil
}

func (s *Store) setSchemaVersion(version int) error {
	_, err := s.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", version))
	return err
}

// RunMigrations brings the store up to SchemaVersion. Every step is
// additive: missing tables and indexes are created, existing rows are left
// alone. Unsynced pending_actions must survive any upgrade.
func (s *Store) RunMigrations() error {
	current, _ := s.GetSchemaVersion()
	if current >= SchemaVersion {
		return nil
	}

	// A store that predates schema_info gets the full schema; CREATE IF
	// NOT EXISTS makes this safe to run over partial layouts.
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("apply base schema: %w", err)
	}

	if current < 2 {
		if err := s.migrateV2(); err != nil {
			return fmt.Errorf("migrate v2: %w", err)
		}
	}
	if current < 3 {
		if err := s.migrateV3(); err != nil {
			return fmt.Errorf("migrate v3: %w", err)
		}
	}

	return s.setSchemaVersion(SchemaVersion)
}

// migrateV2 adds durable backoff scheduling to the queue.
func (s *Store) migrateV2() error {
	exists, err := s.columnExists("pending_actions", "next_attempt_at")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := s.conn.Exec(`ALTER TABLE pending_actions ADD COLUMN next_attempt_at DATETIME`); err != nil {
			return err
		}
	}
	return nil
}

// migrateV3 adds the baseline column used by conflict detection.
func (s *Store) migrateV3() error {
	exists, err := s.columnExists("entities", "baseline")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := s.conn.Exec(`ALTER TABLE entities ADD COLUMN baseline JSON`); err != nil {
			return err
		}
	}
	return nil
}
