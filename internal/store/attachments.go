package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/satchel-app/satchel/internal/models"
)

// PutAttachment stores a binary blob owned by an entity. The write is a
// single insert: either the whole attachment is durable or none of it is.
func (s *Store) PutAttachment(a *models.Attachment) error {
	if a.EntityID == "" {
		return fmt.Errorf("put attachment %s: empty owner entity id", a.ID)
	}

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.conn.Exec(`
		INSERT OR REPLACE INTO attachments (id, entity_id, mime_type, file_size, data, thumbnail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EntityID, a.MimeType, int64(len(a.Data)), a.Data, a.Thumbnail,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return mapStorageErr(fmt.Errorf("put attachment %s: %w", a.ID, err))
	}
	return nil
}

// GetAttachment returns one attachment including its blob, or ErrNotFound.
func (s *Store) GetAttachment(id string) (*models.Attachment, error) {
	row := s.conn.QueryRow(`
		SELECT id, entity_id, mime_type, file_size, data, thumbnail, created_at
		FROM attachments WHERE id = ?`, id)

	a, err := scanAttachment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("attachment %s: %w", id, ErrNotFound)
	}
	return a, err
}

// GetAttachmentsForEntity returns all attachments owned by an entity,
// served from the entity_id index.
func (s *Store) GetAttachmentsForEntity(entityID string) ([]models.Attachment, error) {
	rows, err := s.conn.Query(`
		SELECT id, entity_id, mime_type, file_size, data, thumbnail, created_at
		FROM attachments WHERE entity_id = ? ORDER BY created_at ASC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("query attachments for %s: %w", entityID, err)
	}
	defer rows.Close()

	var attachments []models.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, *a)
	}
	return attachments, rows.Err()
}

// DeleteAttachment removes a single attachment.
func (s *Store) DeleteAttachment(id string) error {
	if _, err := s.conn.Exec(`DELETE FROM attachments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete attachment %s: %w", id, err)
	}
	return nil
}

func scanAttachment(row rowScanner) (*models.Attachment, error) {
	var (
		a         models.Attachment
		thumbnail []byte
		createdAt string
	)
	if err := row.Scan(&a.ID, &a.EntityID, &a.MimeType, &a.FileSize, &a.Data, &thumbnail, &createdAt); err != nil {
		return nil, err
	}
	a.Thumbnail = thumbnail

	ts, err := parseTimestamp(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", a.ID, err)
	}
	a.CreatedAt = ts
	return &a, nil
}
