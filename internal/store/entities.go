package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/satchel-app/satchel/internal/models"
)

// Put writes a locally mutated entity snapshot. The row is marked unsynced
// and its baseline is preserved; the version must echo the last one the
// server returned, never a fabricated value. A write that would move the
// version backwards is refused.
func (s *Store) Put(e *models.CachedEntity) error {
	return s.put(e, false)
}

// PutSynced writes a server-confirmed snapshot: payload and baseline are
// both set to the server payload and the row is marked synced.
func (s *Store) PutSynced(e *models.CachedEntity) error {
	return s.put(e, true)
}

func (s *Store) put(e *models.CachedEntity, synced bool) error {
	if !models.ValidKind(e.Kind) {
		return fmt.Errorf("put entity %s: unknown kind %q", e.ID, e.Kind)
	}

	var existing int64
	err := s.conn.QueryRow(`SELECT version FROM entities WHERE id = ?`, e.ID).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("check entity %s: %w", e.ID, err)
	}
	if err == nil && e.Version < existing {
		return fmt.Errorf("put entity %s: %w: %d < %d", e.ID, ErrVersionRegression, e.Version, existing)
	}

	dueDate, dayOfWeek := indexFields(e.Kind, e.Payload)

	baseline := e.Baseline
	if synced {
		baseline = e.Payload
	}

	cachedAt := e.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now().UTC()
	}

	_, err = s.conn.Exec(`
		INSERT OR REPLACE INTO entities (id, kind, payload, baseline, version, cached_at, synced, due_date, day_of_week)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), string(e.Payload), nullableJSON(baseline),
		e.Version, cachedAt.Format(time.RFC3339Nano), boolToInt(synced),
		dueDate, dayOfWeek,
	)
	if err != nil {
		return mapStorageErr(fmt.Errorf("put entity %s: %w", e.ID, err))
	}
	return nil
}

// GetByID returns one cached entity, or ErrNotFound.
func (s *Store) GetByID(id string) (*models.CachedEntity, error) {
	row := s.conn.QueryRow(`
		SELECT id, kind, payload, baseline, version, cached_at, synced
		FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return e, err
}

// GetByKind returns all cached entities of one kind, most recently cached
// first. Served entirely from the kind index.
func (s *Store) GetByKind(kind models.EntityKind) ([]models.CachedEntity, error) {
	rows, err := s.conn.Query(`
		SELECT id, kind, payload, baseline, version, cached_at, synced
		FROM entities WHERE kind = ? ORDER BY cached_at DESC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// GetDueBetween returns assignments whose due date falls in [from, to],
// using the due_date index. Dates are YYYY-MM-DD.
func (s *Store) GetDueBetween(from, to string) ([]models.CachedEntity, error) {
	rows, err := s.conn.Query(`
		SELECT id, kind, payload, baseline, version, cached_at, synced
		FROM entities
		WHERE kind = ? AND due_date >= ? AND due_date <= ?
		ORDER BY due_date ASC`, string(models.KindAssignments), from, to)
	if err != nil {
		return nil, fmt.Errorf("query due range: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// GetByDay returns schedule slots for a day of week (1=Monday..7=Sunday).
func (s *Store) GetByDay(day int) ([]models.CachedEntity, error) {
	rows, err := s.conn.Query(`
		SELECT id, kind, payload, baseline, version, cached_at, synced
		FROM entities
		WHERE kind = ? AND day_of_week = ?
		ORDER BY json_extract(payload, '$.start_time') ASC`, string(models.KindScheduleSlots), day)
	if err != nil {
		return nil, fmt.Errorf("query day %d: %w", day, err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// Delete removes an entity and, in the same transaction, every attachment
// it owns.
func (s *Store) Delete(id string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM attachments WHERE entity_id = ?`, id); err != nil {
		return fmt.Errorf("delete attachments for %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM entities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entity %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return mapStorageErr(fmt.Errorf("commit delete %s: %w", id, err))
	}
	return nil
}

// RenameEntity rewrites a locally assigned id to the server-assigned one
// after a confirmed create, carrying attachments and later queued actions
// along so FIFO replay keeps referring to the right record.
func (s *Store) RenameEntity(oldID, newID string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin rename: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE entities SET id = ? WHERE id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("rename entity %s: %w", oldID, err)
	}
	if _, err := tx.Exec(`UPDATE attachments SET entity_id = ? WHERE entity_id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("rename attachments %s: %w", oldID, err)
	}
	if _, err := tx.Exec(`UPDATE pending_actions SET entity_id = ? WHERE entity_id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("rename pending actions %s: %w", oldID, err)
	}

	if err := tx.Commit(); err != nil {
		return mapStorageErr(fmt.Errorf("commit rename %s: %w", oldID, err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*models.CachedEntity, error) {
	var (
		e        models.CachedEntity
		kind     string
		payload  string
		baseline sql.NullString
		cachedAt string
		synced   int
	)
	if err := row.Scan(&e.ID, &kind, &payload, &baseline, &e.Version, &cachedAt, &synced); err != nil {
		return nil, err
	}
	e.Kind = models.EntityKind(kind)
	e.Payload = json.RawMessage(payload)
	if baseline.Valid {
		e.Baseline = json.RawMessage(baseline.String)
	}
	e.Synced = synced != 0

	ts, err := parseTimestamp(cachedAt)
	if err != nil {
		return nil, fmt.Errorf("parse cached_at for %s: %w", e.ID, err)
	}
	e.CachedAt = ts
	return &e, nil
}

func scanEntities(rows *sql.Rows) ([]models.CachedEntity, error) {
	var entities []models.CachedEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

// indexFields extracts the kind-specific secondary index values from a
// payload. Missing or malformed fields leave the index NULL.
func indexFields(kind models.EntityKind, payload json.RawMessage) (dueDate any, dayOfWeek any) {
	fields, err := models.FieldMap(payload)
	if err != nil {
		return nil, nil
	}
	switch kind {
	case models.KindAssignments:
		if v, ok := fields["due_date"].(string); ok && v != "" {
			dueDate = v
		}
	case models.KindScheduleSlots:
		if v, ok := fields["day_of_week"].(float64); ok {
			dayOfWeek = int(v)
		}
	}
	return dueDate, dayOfWeek
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// parseTimestamp tries the timestamp formats SQLite hands back.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
