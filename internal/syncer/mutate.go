package syncer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/satchel-app/satchel/internal/models"
)

// Mutation intents: the only way the UI layer touches the pending queue.
// Each intent applies the optimistic local write and appends the queue row
// whether online or offline, so there is exactly one mutation code path;
// the next sync pass replays it.

// Create caches a new entity under a locally generated stable id and
// queues its creation. The id doubles as the idempotency key for replay;
// the server's id replaces it on confirmation.
func (s *Syncer) Create(kind models.EntityKind, payload models.Payload) (*models.CachedEntity, int64, error) {
	if payload.EntityKind() != kind {
		return nil, 0, fmt.Errorf("create: payload kind %q does not match %q", payload.EntityKind(), kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("create: marshal payload: %w", err)
	}

	entity := &models.CachedEntity{
		ID:       uuid.NewString(),
		Kind:     kind,
		Payload:  raw,
		Version:  0, // no server version yet; never fabricated
		CachedAt: time.Now().UTC(),
	}
	if err := s.store.Put(entity); err != nil {
		return nil, 0, fmt.Errorf("create: cache entity: %w", err)
	}

	actionID, err := s.store.EnqueueAction(models.ActionCreate, kind, entity.ID, raw, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("create: %w", err)
	}
	return entity, actionID, nil
}

// Update overwrites the cached payload and queues an update carrying the
// last server version the client saw.
func (s *Syncer) Update(id string, payload models.Payload) (int64, error) {
	entity, err := s.store.GetByID(id)
	if err != nil {
		return 0, fmt.Errorf("update: %w", err)
	}
	if payload.EntityKind() != entity.Kind {
		return 0, fmt.Errorf("update: payload kind %q does not match %q", payload.EntityKind(), entity.Kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("update: marshal payload: %w", err)
	}

	entity.Payload = raw
	entity.Synced = false
	entity.CachedAt = time.Now().UTC()
	if err := s.store.Put(entity); err != nil {
		return 0, fmt.Errorf("update: cache entity: %w", err)
	}

	actionID, err := s.store.EnqueueAction(models.ActionUpdate, entity.Kind, id, raw, entity.Version)
	if err != nil {
		return 0, fmt.Errorf("update: %w", err)
	}
	return actionID, nil
}

// Delete removes the cached entity (and its attachments) and queues the
// deletion under the last-known version.
func (s *Syncer) Delete(id string) (int64, error) {
	entity, err := s.store.GetByID(id)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}

	actionID, err := s.store.EnqueueAction(models.ActionDelete, entity.Kind, id, json.RawMessage(`{}`), entity.Version)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}

	if err := s.store.Delete(id); err != nil {
		return 0, fmt.Errorf("delete: remove cached entity: %w", err)
	}
	return actionID, nil
}

// Attach stores a blob owned by an entity and queues its upload.
func (s *Syncer) Attach(entityID, filename, mimeType string, data []byte) (*models.Attachment, int64, error) {
	entity, err := s.store.GetByID(entityID)
	if err != nil {
		return nil, 0, fmt.Errorf("attach: %w", err)
	}

	att := &models.Attachment{
		ID:       uuid.NewString(),
		EntityID: entityID,
		MimeType: mimeType,
		FileSize: int64(len(data)),
		Data:     data,
	}
	if err := s.store.PutAttachment(att); err != nil {
		return nil, 0, fmt.Errorf("attach: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"attachment_id": att.ID,
		"filename":      filename,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("attach: marshal payload: %w", err)
	}

	actionID, err := s.store.EnqueueAction(models.ActionUpload, entity.Kind, entityID, payload, entity.Version)
	if err != nil {
		return nil, 0, fmt.Errorf("attach: %w", err)
	}
	return att, actionID, nil
}
