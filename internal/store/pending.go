package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/satchel-app/satchel/internal/models"
)

// EnqueueAction appends a mutation intent to the pending queue and returns
// the locally assigned id. The insert is a single statement: a crash either
// leaves the full row or nothing.
func (s *Store) EnqueueAction(action models.ActionType, kind models.EntityKind, entityID string, payload json.RawMessage, baseVersion int64) (int64, error) {
	if !models.ValidAction(action) {
		return 0, fmt.Errorf("enqueue: unknown action %q", action)
	}
	if !models.ValidKind(kind) {
		return 0, fmt.Errorf("enqueue: unknown entity kind %q", kind)
	}
	if entityID == "" {
		return 0, fmt.Errorf("enqueue: empty entity id")
	}

	res, err := s.conn.Exec(`
		INSERT INTO pending_actions (action, entity_kind, entity_id, payload, base_version, created_at, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(action), string(kind), entityID, string(payload), baseVersion,
		time.Now().UTC().Format(time.RFC3339Nano), string(models.StateQueued),
	)
	if err != nil {
		return 0, mapStorageErr(fmt.Errorf("enqueue %s %s: %w", action, kind, err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue: last insert id: %w", err)
	}
	return id, nil
}

// ListPendingActions returns the whole queue in FIFO order, including
// terminal and conflicted actions.
func (s *Store) ListPendingActions() ([]models.PendingAction, error) {
	return s.queryActions(`
		SELECT id, action, entity_kind, entity_id, payload, base_version, created_at, retries, state, last_error, next_attempt_at
		FROM pending_actions ORDER BY id ASC`)
}

// ListReplayable returns queued actions whose backoff window has elapsed,
// in FIFO order. Terminal and conflicted actions are excluded: both need
// explicit user intervention first.
func (s *Store) ListReplayable(now time.Time) ([]models.PendingAction, error) {
	return s.queryActions(`
		SELECT id, action, entity_kind, entity_id, payload, base_version, created_at, retries, state, last_error, next_attempt_at
		FROM pending_actions
		WHERE state = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY id ASC`,
		string(models.StateQueued), now.UTC().Format(time.RFC3339Nano))
}

// GetPendingAction returns one queued action, or ErrNotFound.
func (s *Store) GetPendingAction(id int64) (*models.PendingAction, error) {
	actions, err := s.queryActions(`
		SELECT id, action, entity_kind, entity_id, payload, base_version, created_at, retries, state, last_error, next_attempt_at
		FROM pending_actions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("pending action %d: %w", id, ErrNotFound)
	}
	return &actions[0], nil
}

// RemovePendingAction deletes a confirmed (or explicitly discarded) action.
func (s *Store) RemovePendingAction(id int64) error {
	if _, err := s.conn.Exec(`DELETE FROM pending_actions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove pending action %d: %w", id, err)
	}
	return nil
}

// BumpRetry increments the retry count after a transient failure and
// schedules the next attempt. The action itself is never otherwise mutated.
func (s *Store) BumpRetry(id int64, lastError string, nextAttempt time.Time) error {
	res, err := s.conn.Exec(`
		UPDATE pending_actions
		SET retries = retries + 1, last_error = ?, next_attempt_at = ?
		WHERE id = ?`,
		lastError, nextAttempt.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("bump retry %d: %w", id, err)
	}
	return requireRowAffected(res, id)
}

// MarkTerminal flags an action that exhausted its retry budget. It stays in
// the queue: discarding it would silently destroy the user's edit.
func (s *Store) MarkTerminal(id int64, lastError string) error {
	res, err := s.conn.Exec(`
		UPDATE pending_actions SET state = ?, last_error = ? WHERE id = ?`,
		string(models.StateTerminal), lastError, id)
	if err != nil {
		return fmt.Errorf("mark terminal %d: %w", id, err)
	}
	return requireRowAffected(res, id)
}

// MarkConflicted parks an action whose version the server rejected, keeping
// it out of automatic replay until its conflict is resolved.
func (s *Store) MarkConflicted(id int64, lastError string) error {
	res, err := s.conn.Exec(`
		UPDATE pending_actions SET state = ?, last_error = ? WHERE id = ?`,
		string(models.StateConflicted), lastError, id)
	if err != nil {
		return fmt.Errorf("mark conflicted %d: %w", id, err)
	}
	return requireRowAffected(res, id)
}

// ResetRetry re-arms a terminal action for manual retry. Resetting the
// retry counter is deliberate and only happens through this explicit call.
func (s *Store) ResetRetry(id int64) error {
	res, err := s.conn.Exec(`
		UPDATE pending_actions
		SET retries = 0, state = ?, last_error = '', next_attempt_at = NULL
		WHERE id = ?`,
		string(models.StateQueued), id)
	if err != nil {
		return fmt.Errorf("reset retry %d: %w", id, err)
	}
	return requireRowAffected(res, id)
}

// RearmAction replaces a conflicted action's payload and base version with
// the output of conflict resolution and requeues it.
func (s *Store) RearmAction(id int64, payload json.RawMessage, baseVersion int64) error {
	res, err := s.conn.Exec(`
		UPDATE pending_actions
		SET payload = ?, base_version = ?, retries = 0, state = ?, last_error = '', next_attempt_at = NULL
		WHERE id = ?`,
		string(payload), baseVersion, string(models.StateQueued), id)
	if err != nil {
		return mapStorageErr(fmt.Errorf("rearm action %d: %w", id, err))
	}
	return requireRowAffected(res, id)
}

// RebaseActions advances the base version of the remaining queued actions
// for an entity after an earlier action confirmed. Queued actions form a
// causal chain per entity: each was made on top of the previous local
// state, so once the head lands at the server's version the rest write
// forward from it.
func (s *Store) RebaseActions(entityID string, baseVersion int64) error {
	_, err := s.conn.Exec(`
		UPDATE pending_actions SET base_version = ?
		WHERE entity_id = ? AND state = ?`,
		baseVersion, entityID, string(models.StateQueued))
	if err != nil {
		return fmt.Errorf("rebase actions for %s: %w", entityID, err)
	}
	return nil
}

// QueueStats summarises the pending queue for status displays.
type QueueStats struct {
	Queued     int
	Terminal   int
	Conflicted int
}

// GetQueueStats counts queue rows by state.
func (s *Store) GetQueueStats() (QueueStats, error) {
	var stats QueueStats
	rows, err := s.conn.Query(`SELECT state, COUNT(*) FROM pending_actions GROUP BY state`)
	if err != nil {
		return stats, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return stats, fmt.Errorf("scan queue stats: %w", err)
		}
		switch models.ActionState(state) {
		case models.StateQueued:
			stats.Queued = count
		case models.StateTerminal:
			stats.Terminal = count
		case models.StateConflicted:
			stats.Conflicted = count
		}
	}
	return stats, rows.Err()
}

func (s *Store) queryActions(query string, args ...any) ([]models.PendingAction, error) {
	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending actions: %w", err)
	}
	defer rows.Close()

	var actions []models.PendingAction
	for rows.Next() {
		var (
			a           models.PendingAction
			action      string
			kind        string
			payload     string
			createdAt   string
			state       string
			lastError   sql.NullString
			nextAttempt sql.NullString
		)
		if err := rows.Scan(&a.ID, &action, &kind, &a.EntityID, &payload, &a.BaseVersion,
			&createdAt, &a.Retries, &state, &lastError, &nextAttempt); err != nil {
			return nil, fmt.Errorf("scan pending action: %w", err)
		}
		a.Action = models.ActionType(action)
		a.EntityKind = models.EntityKind(kind)
		a.Payload = json.RawMessage(payload)
		a.State = models.ActionState(state)
		if lastError.Valid {
			a.LastError = lastError.String
		}

		ts, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for action %d: %w", a.ID, err)
		}
		a.CreatedAt = ts

		if nextAttempt.Valid && nextAttempt.String != "" {
			na, err := parseTimestamp(nextAttempt.String)
			if err != nil {
				return nil, fmt.Errorf("parse next_attempt_at for action %d: %w", a.ID, err)
			}
			a.NextAttemptAt = na
		}

		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func requireRowAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("pending action %d: %w", id, ErrNotFound)
	}
	return nil
}
