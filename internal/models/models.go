package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityKind identifies a server-owned entity type. The set is closed:
// the store, sync manager, and conflict pipeline only operate on these.
type EntityKind string

const (
	KindAssignments   EntityKind = "assignments"
	KindScheduleSlots EntityKind = "schedule_slots"
	KindGrades        EntityKind = "grades"
)

// AllEntityKinds returns the set of valid entity kinds.
func AllEntityKinds() map[EntityKind]bool {
	return map[EntityKind]bool{
		KindAssignments:   true,
		KindScheduleSlots: true,
		KindGrades:        true,
	}
}

// ValidKind reports whether kind is part of the closed entity set.
func ValidKind(kind EntityKind) bool {
	return AllEntityKinds()[kind]
}

// ActionType is the kind of mutation held in the pending queue.
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionUpdate ActionType = "update"
	ActionDelete ActionType = "delete"
	ActionUpload ActionType = "upload"
)

// ValidAction reports whether a is a known action type.
func ValidAction(a ActionType) bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionUpload:
		return true
	}
	return false
}

// ActionState is the replay state of a pending action.
type ActionState string

const (
	// StateQueued means the action is eligible for the next sync pass.
	StateQueued ActionState = "queued"
	// StateTerminal means the retry ceiling was hit; the action stays in
	// the queue until the user retries or discards it explicitly.
	StateTerminal ActionState = "terminal"
	// StateConflicted means the server rejected the action's version; the
	// action is parked until its conflict is resolved.
	StateConflicted ActionState = "conflicted"
)

// Payload is the typed body of an entity, discriminated by kind.
type Payload interface {
	EntityKind() EntityKind
}

// Assignment is a homework item with a due date.
type Assignment struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Subject     string `json:"subject"`
	DueDate     string `json:"due_date,omitempty"` // YYYY-MM-DD
	Completed   bool   `json:"completed"`
}

func (Assignment) EntityKind() EntityKind { return KindAssignments }

// ScheduleSlot is a recurring lesson in the weekly timetable.
type ScheduleSlot struct {
	Subject   string `json:"subject"`
	DayOfWeek int    `json:"day_of_week"` // 1=Monday .. 7=Sunday
	StartTime string `json:"start_time"`  // HH:MM
	EndTime   string `json:"end_time"`    // HH:MM
	Room      string `json:"room,omitempty"`
}

func (ScheduleSlot) EntityKind() EntityKind { return KindScheduleSlots }

// Grade is a single graded result for a subject.
type Grade struct {
	Subject  string  `json:"subject"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Weight   float64 `json:"weight,omitempty"`
	GradedAt string  `json:"graded_at,omitempty"` // YYYY-MM-DD
}

func (Grade) EntityKind() EntityKind { return KindGrades }

// DecodePayload unmarshals raw JSON into the typed payload for kind.
func DecodePayload(kind EntityKind, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch kind {
	case KindAssignments:
		p = &Assignment{}
	case KindScheduleSlots:
		p = &ScheduleSlot{}
	case KindGrades:
		p = &Grade{}
	default:
		return nil, fmt.Errorf("unknown entity kind: %q", kind)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

// FieldMap flattens raw payload JSON into a field map for the conflict
// detector. Returns an empty map for nil input.
func FieldMap(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("flatten payload: %w", err)
	}
	return fields, nil
}

// CachedEntity is the locally cached snapshot of a server-owned record.
// Baseline holds the payload as of the last confirmed sync and is what the
// conflict detector diffs against; it only advances on confirmed writes.
type CachedEntity struct {
	ID       string          `json:"id"`
	Kind     EntityKind      `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Baseline json.RawMessage `json:"baseline,omitempty"`
	Version  int64           `json:"version"`
	CachedAt time.Time       `json:"cached_at"`
	Synced   bool            `json:"synced"`
}

// DecodedPayload returns the entity payload as its typed form.
func (e *CachedEntity) DecodedPayload() (Payload, error) {
	return DecodePayload(e.Kind, e.Payload)
}

// Attachment is a binary blob owned by one entity.
type Attachment struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entity_id"`
	MimeType  string    `json:"mime_type"`
	FileSize  int64     `json:"file_size"`
	Data      []byte    `json:"-"`
	Thumbnail []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingAction is a durably queued, not-yet-confirmed mutation intent.
// ID is assigned locally and never leaves the device.
type PendingAction struct {
	ID            int64           `json:"id"`
	Action        ActionType      `json:"action"`
	EntityKind    EntityKind      `json:"entity_kind"`
	EntityID      string          `json:"entity_id"`
	Payload       json.RawMessage `json:"payload"`
	BaseVersion   int64           `json:"base_version"` // last-known server version, update/delete only
	CreatedAt     time.Time       `json:"created_at"`
	Retries       int             `json:"retries"`
	State         ActionState     `json:"state"`
	LastError     string          `json:"last_error,omitempty"`
	NextAttemptAt time.Time       `json:"next_attempt_at,omitempty"`
}

// SyncSummary is the outcome of one sync pass, consumed by the UI layer.
type SyncSummary struct {
	Started   time.Time
	Succeeded int
	Failed    int
	Conflicts int
	Skipped   bool // another pass was already in flight
	Errors    []error
}
