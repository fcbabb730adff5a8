package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/satchel-app/satchel/internal/models"
)

// Conflict is a recorded version conflict awaiting user resolution,
// keyed back to the pending action the server rejected.
type Conflict struct {
	ID            int64
	ActionID      int64
	EntityKind    models.EntityKind
	EntityID      string
	ClientVersion int64
	ServerVersion int64
	ClientPayload json.RawMessage
	ServerPayload json.RawMessage
	Baseline      json.RawMessage
	DetectedAt    time.Time
}

// RecordConflict stores a version conflict. Re-detecting the same action's
// conflict (e.g. after a duplicate sync trigger) replaces the old record.
func (s *Store) RecordConflict(c *Conflict) (int64, error) {
	res, err := s.conn.Exec(`
		INSERT OR REPLACE INTO sync_conflicts
		(action_id, entity_kind, entity_id, client_version, server_version, client_payload, server_payload, baseline, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ActionID, string(c.EntityKind), c.EntityID, c.ClientVersion, c.ServerVersion,
		string(c.ClientPayload), string(c.ServerPayload), nullableJSON(c.Baseline),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, mapStorageErr(fmt.Errorf("record conflict for action %d: %w", c.ActionID, err))
	}
	return res.LastInsertId()
}

// GetConflict returns one recorded conflict, or ErrNotFound.
func (s *Store) GetConflict(id int64) (*Conflict, error) {
	row := s.conn.QueryRow(`
		SELECT id, action_id, entity_kind, entity_id, client_version, server_version, client_payload, server_payload, baseline, detected_at
		FROM sync_conflicts WHERE id = ?`, id)
	c, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conflict %d: %w", id, ErrNotFound)
	}
	return c, err
}

// ListConflicts returns recorded conflicts, most recent first.
func (s *Store) ListConflicts() ([]Conflict, error) {
	rows, err := s.conn.Query(`
		SELECT id, action_id, entity_kind, entity_id, client_version, server_version, client_payload, server_payload, baseline, detected_at
		FROM sync_conflicts ORDER BY detected_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		conflicts = append(conflicts, *c)
	}
	return conflicts, rows.Err()
}

// DeleteConflict removes a resolved conflict record.
func (s *Store) DeleteConflict(id int64) error {
	if _, err := s.conn.Exec(`DELETE FROM sync_conflicts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete conflict %d: %w", id, err)
	}
	return nil
}

func scanConflict(row rowScanner) (*Conflict, error) {
	var (
		c             Conflict
		kind          string
		clientPayload string
		serverPayload string
		baseline      sql.NullString
		detectedAt    string
	)
	if err := row.Scan(&c.ID, &c.ActionID, &kind, &c.EntityID, &c.ClientVersion, &c.ServerVersion,
		&clientPayload, &serverPayload, &baseline, &detectedAt); err != nil {
		return nil, err
	}
	c.EntityKind = models.EntityKind(kind)
	c.ClientPayload = json.RawMessage(clientPayload)
	c.ServerPayload = json.RawMessage(serverPayload)
	if baseline.Valid {
		c.Baseline = json.RawMessage(baseline.String)
	}

	ts, err := parseTimestamp(detectedAt)
	if err != nil {
		return nil, fmt.Errorf("parse detected_at for conflict %d: %w", c.ID, err)
	}
	c.DetectedAt = ts
	return &c, nil
}
