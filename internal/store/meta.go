package store

import (
	"database/sql"
	"fmt"
)

// Well-known metadata keys used by the sync manager.
const (
	MetaLastSyncAt    = "last_sync_at"
	MetaLastSyncError = "last_sync_error"
)

// SetMeta stores a small bookkeeping value.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.conn.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return mapStorageErr(fmt.Errorf("set meta %q: %w", key, err))
	}
	return nil
}

// GetMeta returns a bookkeeping value, or "" when the key is unset.
func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta %q: %w", key, err)
	}
	return value, nil
}

// DeleteMeta removes a bookkeeping key. Missing keys are not an error.
func (s *Store) DeleteMeta(key string) error {
	if _, err := s.conn.Exec(`DELETE FROM metadata WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete meta %q: %w", key, err)
	}
	return nil
}
