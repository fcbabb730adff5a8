package syncer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/satchel-app/satchel/internal/conflict"
	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/store"
)

// ConflictView is a recorded conflict joined with its computed diff, ready
// for the presentation layer.
type ConflictView struct {
	Conflict store.Conflict
	Diff     []conflict.FieldDiff
	Summary  conflict.Summary
}

// Report renders the conflict as the human-readable markdown report.
func (v *ConflictView) Report() string {
	return conflict.Report(string(v.Conflict.EntityKind), v.Conflict.EntityID,
		v.Conflict.ClientVersion, v.Conflict.ServerVersion, v.Diff)
}

// ListConflicts returns every recorded conflict with its diff.
func (s *Syncer) ListConflicts() ([]ConflictView, error) {
	conflicts, err := s.store.ListConflicts()
	if err != nil {
		return nil, err
	}

	views := make([]ConflictView, 0, len(conflicts))
	for _, c := range conflicts {
		v, err := s.buildView(c)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// GetConflict returns one recorded conflict with its diff.
func (s *Syncer) GetConflict(id int64) (*ConflictView, error) {
	c, err := s.store.GetConflict(id)
	if err != nil {
		return nil, err
	}
	return s.buildView(*c)
}

func (s *Syncer) buildView(c store.Conflict) (*ConflictView, error) {
	diffs, err := diffPayloads(c.ClientPayload, c.ServerPayload, c.Baseline)
	if err != nil {
		return nil, fmt.Errorf("diff conflict %d: %w", c.ID, err)
	}

	fields, err := models.FieldMap(c.ServerPayload)
	if err != nil {
		return nil, err
	}

	return &ConflictView{
		Conflict: c,
		Diff:     diffs,
		Summary:  conflict.Summarize(diffs, len(fields)),
	}, nil
}

// Resolve applies a strategy to a recorded conflict. Automatic strategies
// complete synchronously; Manual requires a selection for every conflicted
// field and is rejected otherwise with the fields still open.
//
// On success the parked action is re-armed with the reconciled payload and
// the server's version, the cached entity is updated, and the conflict
// record is removed. The next sync pass writes forward from the server's
// version.
func (s *Syncer) Resolve(conflictID int64, strategy conflict.Strategy, selections map[string]conflict.Side) (*conflict.Resolution, error) {
	view, err := s.GetConflict(conflictID)
	if err != nil {
		return nil, err
	}
	c := view.Conflict

	clientFields, err := models.FieldMap(c.ClientPayload)
	if err != nil {
		return nil, err
	}
	serverFields, err := models.FieldMap(c.ServerPayload)
	if err != nil {
		return nil, err
	}

	res, err := s.resolver.Resolve(strategy, clientFields, serverFields, view.Diff, c.ServerVersion, selections)
	if err != nil {
		return res, err
	}

	payload, err := json.Marshal(res.ResolvedData)
	if err != nil {
		return nil, fmt.Errorf("marshal resolved payload: %w", err)
	}

	// The re-armed write targets the server's authoritative version; the
	// server payload becomes the new baseline for any later divergence.
	if err := s.store.RearmAction(c.ActionID, payload, c.ServerVersion); err != nil {
		return nil, fmt.Errorf("rearm action: %w", err)
	}

	err = s.store.Put(&models.CachedEntity{
		ID:       c.EntityID,
		Kind:     c.EntityKind,
		Payload:  payload,
		Baseline: c.ServerPayload,
		Version:  c.ServerVersion,
		CachedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("cache resolved entity: %w", err)
	}

	if err := s.store.DeleteConflict(c.ID); err != nil {
		return nil, fmt.Errorf("clear conflict record: %w", err)
	}

	slog.Info("conflict resolved", "entity", c.EntityID, "strategy", strategy,
		"new_version", res.NewVersion)
	return res, nil
}

// RetryTerminal re-arms a terminal action for replay. The retry counter
// reset is explicit and deliberate; nothing resets it automatically.
func (s *Syncer) RetryTerminal(actionID int64) error {
	action, err := s.store.GetPendingAction(actionID)
	if err != nil {
		return err
	}
	if action.State != models.StateTerminal {
		return fmt.Errorf("action %d is %s, not terminal", actionID, action.State)
	}
	return s.store.ResetRetry(actionID)
}

// Discard drops a pending action and any conflict recorded for it. This is
// the only path that deletes an unconfirmed mutation, and it is always an
// explicit user decision.
func (s *Syncer) Discard(actionID int64) error {
	conflicts, err := s.store.ListConflicts()
	if err != nil {
		return err
	}
	for _, c := range conflicts {
		if c.ActionID == actionID {
			if err := s.store.DeleteConflict(c.ID); err != nil {
				return err
			}
		}
	}
	return s.store.RemovePendingAction(actionID)
}
