// Package syncer drains the pending-action queue against the remote entity
// service: one pass at a time, FIFO per entity, bounded retries with
// durable backoff, and version rejections routed into the conflict
// pipeline instead of the retry loop.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/satchel-app/satchel/internal/conflict"
	"github.com/satchel-app/satchel/internal/connectivity"
	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/remote"
	"github.com/satchel-app/satchel/internal/store"
)

// ErrOffline is returned when a sync pass is requested while the monitor
// reports the service unreachable.
var ErrOffline = errors.New("offline")

// Config tunes a Syncer. Zero values fall back to the defaults below.
type Config struct {
	MaxRetries int           // retry ceiling before an action goes terminal
	BackoffMin time.Duration // first retry delay
	BackoffMax time.Duration // backoff cap
	TieBreak   conflict.Side // smart-merge tie-break side
}

// DefaultConfig returns the standard tuning: 5 retries, 2s..5m backoff,
// server-wins tie-break.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 5,
		BackoffMin: 2 * time.Second,
		BackoffMax: 5 * time.Minute,
		TieBreak:   conflict.SideServer,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = d.BackoffMin
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.TieBreak == "" {
		c.TieBreak = d.TieBreak
	}
	return c
}

// Syncer owns the pending queue: it is the only component that removes or
// reorders queue rows. The UI layer appends through the mutation intents
// and reads summaries, nothing more.
type Syncer struct {
	store    *store.Store
	client   *remote.Client
	monitor  connectivity.Monitor
	events   *Hub
	resolver *conflict.Resolver
	cfg      Config

	inFlight atomic.Bool
}

// New creates a Syncer. monitor may be nil, in which case passes always
// attempt the network.
func New(st *store.Store, client *remote.Client, monitor connectivity.Monitor, events *Hub, cfg Config) *Syncer {
	cfg = cfg.withDefaults()
	if events == nil {
		events = NewHub()
	}
	return &Syncer{
		store:    st,
		client:   client,
		monitor:  monitor,
		events:   events,
		resolver: &conflict.Resolver{TieBreak: cfg.TieBreak},
		cfg:      cfg,
	}
}

// Events exposes the UI-facing event hub.
func (s *Syncer) Events() *Hub {
	return s.events
}

// Sync runs one pass over the pending queue. Only one pass runs at a time;
// a pass requested while another is in flight returns immediately with
// Skipped set; the trigger is idempotent, not queued.
//
// Cancelling ctx stops the pass before the next action; an action whose
// network call is already in flight runs to completion or failure.
func (s *Syncer) Sync(ctx context.Context) (models.SyncSummary, error) {
	summary := models.SyncSummary{Started: time.Now().UTC()}

	if !s.inFlight.CompareAndSwap(false, true) {
		summary.Skipped = true
		return summary, nil
	}
	defer s.inFlight.Store(false)

	if s.monitor != nil && !s.monitor.Online() {
		return summary, ErrOffline
	}

	s.events.Publish(Event{Type: EventSyncStarted})
	slog.Debug("sync pass started")

	actions, err := s.store.ListReplayable(time.Now().UTC())
	if err != nil {
		return summary, fmt.Errorf("list replayable actions: %w", err)
	}

	// Actions for the same entity replay strictly in enqueue order: once
	// one fails, later ones for that entity wait for the next pass.
	blocked := make(map[string]bool)

	for i := range actions {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, ctx.Err())
			break
		}

		// Earlier confirmations in this pass may have renamed the entity or
		// rebased the chain; replay the row as it is now, not as listed.
		action, err := s.store.GetPendingAction(actions[i].ID)
		if err != nil {
			summary.Errors = append(summary.Errors, err)
			continue
		}
		if blocked[action.EntityID] {
			continue
		}

		if err := s.replay(action); err != nil {
			blocked[action.EntityID] = true
			summary.Failed++
			s.recordFailure(action, err, &summary)
			continue
		}
		summary.Succeeded++
	}

	if err := s.store.SetMeta(store.MetaLastSyncAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("record last sync time", "err", err)
	}
	lastErr := ""
	if len(summary.Errors) > 0 {
		lastErr = summary.Errors[len(summary.Errors)-1].Error()
	}
	if err := s.store.SetMeta(store.MetaLastSyncError, lastErr); err != nil {
		slog.Warn("record last sync error", "err", err)
	}

	slog.Info("sync pass complete",
		"succeeded", summary.Succeeded, "failed", summary.Failed, "conflicts", summary.Conflicts)
	s.events.Publish(Event{Type: EventSyncComplete, Summary: &summary})
	return summary, nil
}

// replay submits one action to the remote service and, on confirmation,
// removes it from the queue and advances the cached entity. Removal only
// ever happens after the server confirms: a crash in between leaves the
// action queued and replaying it again is safe at the service boundary
// (stable client id for create, version precondition for update/delete).
func (s *Syncer) replay(action *models.PendingAction) error {
	slog.Debug("replay action", "id", action.ID, "action", action.Action,
		"kind", action.EntityKind, "entity", action.EntityID, "retries", action.Retries)

	switch action.Action {
	case models.ActionCreate:
		return s.replayCreate(action)
	case models.ActionUpdate:
		return s.replayUpdate(action)
	case models.ActionDelete:
		return s.replayDelete(action)
	case models.ActionUpload:
		return s.replayUpload(action)
	default:
		// Unknown actions cannot succeed on any retry; park immediately.
		return &permanentError{fmt.Errorf("unknown action type %q", action.Action)}
	}
}

func (s *Syncer) replayCreate(action *models.PendingAction) error {
	resp, err := s.client.CreateEntity(action.EntityKind, action.EntityID, action.Payload)
	if err != nil {
		return err
	}

	id := action.EntityID
	if resp.ID != "" && resp.ID != id {
		if err := s.store.RenameEntity(id, resp.ID); err != nil {
			return fmt.Errorf("adopt server id: %w", err)
		}
		id = resp.ID
	}

	return s.confirm(action, id, resp.Version, serverPayload(resp.Payload, action.Payload))
}

func (s *Syncer) replayUpdate(action *models.PendingAction) error {
	resp, err := s.client.UpdateEntity(action.EntityKind, action.EntityID, action.Payload, action.BaseVersion)
	if err != nil {
		var mismatch *remote.VersionMismatchError
		if errors.As(err, &mismatch) {
			return s.handleConflict(action, mismatch)
		}
		return err
	}
	return s.confirm(action, action.EntityID, resp.Version, serverPayload(resp.Payload, action.Payload))
}

func (s *Syncer) replayDelete(action *models.PendingAction) error {
	err := s.client.DeleteEntity(action.EntityKind, action.EntityID, action.BaseVersion)
	if err != nil {
		var mismatch *remote.VersionMismatchError
		if errors.As(err, &mismatch) {
			return s.handleConflict(action, mismatch)
		}
		// Deleting something the server no longer has is a confirmed
		// outcome, not a failure to retry.
		if !errors.Is(err, remote.ErrNotFound) {
			return err
		}
	}

	if err := s.store.Delete(action.EntityID); err != nil {
		return fmt.Errorf("remove cached entity: %w", err)
	}
	if err := s.store.RemovePendingAction(action.ID); err != nil {
		return fmt.Errorf("remove confirmed action: %w", err)
	}
	return nil
}

func (s *Syncer) replayUpload(action *models.PendingAction) error {
	var body struct {
		AttachmentID string `json:"attachment_id"`
		Filename     string `json:"filename"`
	}
	if err := json.Unmarshal(action.Payload, &body); err != nil {
		return &permanentError{fmt.Errorf("decode upload payload: %w", err)}
	}

	att, err := s.store.GetAttachment(body.AttachmentID)
	if err != nil {
		// The blob is gone locally; the upload can never succeed.
		return &permanentError{fmt.Errorf("load attachment: %w", err)}
	}

	if _, err := s.client.UploadAttachment(att.EntityID, body.Filename, att.MimeType, att.Data); err != nil {
		return err
	}

	if err := s.store.RemovePendingAction(action.ID); err != nil {
		return fmt.Errorf("remove confirmed action: %w", err)
	}
	return nil
}

// confirm applies a server-confirmed write: cached entity advances to the
// server's payload and version, then the action leaves the queue.
func (s *Syncer) confirm(action *models.PendingAction, entityID string, version int64, payload json.RawMessage) error {
	err := s.store.PutSynced(&models.CachedEntity{
		ID:      entityID,
		Kind:    action.EntityKind,
		Payload: payload,
		Version: version,
		Synced:  true,
	})
	if err != nil {
		return fmt.Errorf("cache confirmed entity: %w", err)
	}

	if err := s.store.RemovePendingAction(action.ID); err != nil {
		return fmt.Errorf("remove confirmed action: %w", err)
	}

	// The rest of the entity's queued chain was built on top of this write;
	// it replays against the version the server just confirmed.
	if err := s.store.RebaseActions(entityID, version); err != nil {
		return fmt.Errorf("rebase queued chain: %w", err)
	}
	return nil
}

// handleConflict records a version conflict, parks the action, and emits
// conflict-detected. The returned error is the structured conflict so the
// pass summary carries it to the UI.
func (s *Syncer) handleConflict(action *models.PendingAction, mismatch *remote.VersionMismatchError) error {
	var baseline json.RawMessage
	if entity, err := s.store.GetByID(action.EntityID); err == nil {
		baseline = entity.Baseline
	}

	diffs, err := diffPayloads(action.Payload, mismatch.ServerPayload, baseline)
	if err != nil {
		return fmt.Errorf("diff conflicting payloads: %w", err)
	}

	vce := &conflict.VersionConflictError{
		EntityKind:    string(action.EntityKind),
		EntityID:      action.EntityID,
		ClientVersion: action.BaseVersion,
		ServerVersion: mismatch.ServerVersion,
		Diff:          diffs,
	}

	_, err = s.store.RecordConflict(&store.Conflict{
		ActionID:      action.ID,
		EntityKind:    action.EntityKind,
		EntityID:      action.EntityID,
		ClientVersion: action.BaseVersion,
		ServerVersion: mismatch.ServerVersion,
		ClientPayload: action.Payload,
		ServerPayload: mismatch.ServerPayload,
		Baseline:      baseline,
	})
	if err != nil {
		return fmt.Errorf("record conflict: %w", err)
	}

	if err := s.store.MarkConflicted(action.ID, vce.Error()); err != nil {
		return fmt.Errorf("park conflicted action: %w", err)
	}

	slog.Warn("version conflict detected", "entity", action.EntityID,
		"client_version", action.BaseVersion, "server_version", mismatch.ServerVersion)
	s.events.Publish(Event{Type: EventConflictDetected, EntityID: action.EntityID, Diff: diffs})
	return vce
}

// recordFailure classifies a replay error: conflicts were already parked
// by handleConflict, permanent errors go terminal immediately, everything
// else retries with exponential backoff until the ceiling.
func (s *Syncer) recordFailure(action *models.PendingAction, err error, summary *models.SyncSummary) {
	summary.Errors = append(summary.Errors, err)

	var vce *conflict.VersionConflictError
	if errors.As(err, &vce) {
		summary.Conflicts++
		return
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		if markErr := s.store.MarkTerminal(action.ID, err.Error()); markErr != nil {
			slog.Error("mark terminal", "action", action.ID, "err", markErr)
		}
		return
	}

	retries := action.Retries + 1
	if retries >= s.cfg.MaxRetries {
		slog.Warn("action exhausted retries", "action", action.ID, "retries", retries)
		if markErr := s.store.MarkTerminal(action.ID, err.Error()); markErr != nil {
			slog.Error("mark terminal", "action", action.ID, "err", markErr)
		}
		return
	}

	next := time.Now().UTC().Add(s.backoff(retries))
	if bumpErr := s.store.BumpRetry(action.ID, err.Error(), next); bumpErr != nil {
		slog.Error("bump retry", "action", action.ID, "err", bumpErr)
	}
}

// backoff returns the delay before retry n (1-based): BackoffMin doubled
// per failure, capped at BackoffMax.
func (s *Syncer) backoff(retries int) time.Duration {
	d := s.cfg.BackoffMin
	for i := 1; i < retries; i++ {
		d *= 2
		if d >= s.cfg.BackoffMax {
			return s.cfg.BackoffMax
		}
	}
	if d > s.cfg.BackoffMax {
		return s.cfg.BackoffMax
	}
	return d
}

// permanentError wraps failures no retry can fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// serverPayload prefers the server's echoed payload, falling back to what
// the client submitted when the server omits it.
func serverPayload(server, submitted json.RawMessage) json.RawMessage {
	if len(server) > 0 && string(server) != "null" {
		return server
	}
	return submitted
}

func diffPayloads(client, server, baseline json.RawMessage) ([]conflict.FieldDiff, error) {
	clientFields, err := models.FieldMap(client)
	if err != nil {
		return nil, err
	}
	serverFields, err := models.FieldMap(server)
	if err != nil {
		return nil, err
	}
	baseFields, err := models.FieldMap(baseline)
	if err != nil {
		return nil, err
	}
	return conflict.Diff(clientFields, serverFields, baseFields), nil
}
