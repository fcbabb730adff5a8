package store

import (
	"errors"
	"testing"

	"github.com/satchel-app/satchel/internal/models"
)

func TestRecordAndGetConflict(t *testing.T) {
	s := newTestStore(t)
	actionID := enqueue(t, s, "a1")

	id, err := s.RecordConflict(&Conflict{
		ActionID:      actionID,
		EntityKind:    models.KindAssignments,
		EntityID:      "a1",
		ClientVersion: 3,
		ServerVersion: 5,
		ClientPayload: assignmentPayload(t, "local title", ""),
		ServerPayload: assignmentPayload(t, "server title", ""),
		Baseline:      assignmentPayload(t, "old title", ""),
	})
	if err != nil {
		t.Fatalf("RecordConflict failed: %v", err)
	}

	c, err := s.GetConflict(id)
	if err != nil {
		t.Fatalf("GetConflict failed: %v", err)
	}
	if c.ActionID != actionID {
		t.Errorf("action id = %d, want %d", c.ActionID, actionID)
	}
	if c.ClientVersion != 3 || c.ServerVersion != 5 {
		t.Errorf("versions = %d/%d, want 3/5", c.ClientVersion, c.ServerVersion)
	}
	if len(c.Baseline) == 0 {
		t.Error("baseline not stored")
	}
}

func TestRecordConflictReplacesPerAction(t *testing.T) {
	s := newTestStore(t)
	actionID := enqueue(t, s, "a1")

	c := &Conflict{
		ActionID:      actionID,
		EntityKind:    models.KindAssignments,
		EntityID:      "a1",
		ClientVersion: 3,
		ServerVersion: 5,
		ClientPayload: assignmentPayload(t, "local", ""),
		ServerPayload: assignmentPayload(t, "server v5", ""),
	}
	if _, err := s.RecordConflict(c); err != nil {
		t.Fatalf("RecordConflict failed: %v", err)
	}

	// Same action conflicts again with a newer server version
	c.ServerVersion = 6
	c.ServerPayload = assignmentPayload(t, "server v6", "")
	if _, err := s.RecordConflict(c); err != nil {
		t.Fatalf("RecordConflict replace failed: %v", err)
	}

	conflicts, err := s.ListConflicts()
	if err != nil {
		t.Fatalf("ListConflicts failed: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	if conflicts[0].ServerVersion != 6 {
		t.Errorf("server version = %d, want 6", conflicts[0].ServerVersion)
	}
}

func TestDeleteConflict(t *testing.T) {
	s := newTestStore(t)
	actionID := enqueue(t, s, "a1")

	id, err := s.RecordConflict(&Conflict{
		ActionID:      actionID,
		EntityKind:    models.KindAssignments,
		EntityID:      "a1",
		ClientVersion: 1,
		ServerVersion: 2,
		ClientPayload: assignmentPayload(t, "local", ""),
		ServerPayload: assignmentPayload(t, "server", ""),
	})
	if err != nil {
		t.Fatalf("RecordConflict failed: %v", err)
	}

	if err := s.DeleteConflict(id); err != nil {
		t.Fatalf("DeleteConflict failed: %v", err)
	}
	if _, err := s.GetConflict(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("conflict still present: %v", err)
	}
}
