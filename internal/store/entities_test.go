package store

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/satchel-app/satchel/internal/models"
)

func slotPayload(t *testing.T, subject string, day int, start string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(models.ScheduleSlot{
		Subject: subject, DayOfWeek: day, StartTime: start, EndTime: "23:59",
	})
	if err != nil {
		t.Fatalf("marshal slot: %v", err)
	}
	return raw
}

func TestPutAndGetByID(t *testing.T) {
	s := newTestStore(t)

	mustPut(t, s, &models.CachedEntity{
		ID:      "a1",
		Kind:    models.KindAssignments,
		Payload: assignmentPayload(t, "essay", "2026-09-10"),
		Version: 3,
	})

	e, err := s.GetByID("a1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if e.Version != 3 {
		t.Errorf("version = %d, want 3", e.Version)
	}
	if e.Synced {
		t.Error("locally written entity marked synced")
	}

	var a models.Assignment
	if err := json.Unmarshal(e.Payload, &a); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if a.Title != "essay" {
		t.Errorf("title = %q, want %q", a.Title, "essay")
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetByID("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPutRejectsVersionRegression(t *testing.T) {
	s := newTestStore(t)

	mustPut(t, s, &models.CachedEntity{
		ID:      "a1",
		Kind:    models.KindAssignments,
		Payload: assignmentPayload(t, "essay", ""),
		Version: 5,
	})

	err := s.Put(&models.CachedEntity{
		ID:      "a1",
		Kind:    models.KindAssignments,
		Payload: assignmentPayload(t, "older", ""),
		Version: 4,
	})
	if !errors.Is(err, ErrVersionRegression) {
		t.Errorf("expected ErrVersionRegression, got %v", err)
	}

	// The stored snapshot must be untouched
	e, err := s.GetByID("a1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if e.Version != 5 {
		t.Errorf("version = %d, want 5", e.Version)
	}
}

func TestPutSyncedAdvancesBaseline(t *testing.T) {
	s := newTestStore(t)

	payload := assignmentPayload(t, "essay", "2026-09-10")
	if err := s.PutSynced(&models.CachedEntity{
		ID:      "a1",
		Kind:    models.KindAssignments,
		Payload: payload,
		Version: 1,
	}); err != nil {
		t.Fatalf("PutSynced failed: %v", err)
	}

	e, err := s.GetByID("a1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !e.Synced {
		t.Error("confirmed entity not marked synced")
	}
	if string(e.Baseline) != string(payload) {
		t.Errorf("baseline = %s, want payload", e.Baseline)
	}

	// A local edit keeps the old baseline while replacing the payload
	edited := assignmentPayload(t, "essay v2", "2026-09-10")
	mustPut(t, s, &models.CachedEntity{
		ID:       "a1",
		Kind:     models.KindAssignments,
		Payload:  edited,
		Baseline: e.Baseline,
		Version:  1,
	})

	e, err = s.GetByID("a1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if e.Synced {
		t.Error("edited entity still marked synced")
	}
	if string(e.Baseline) != string(payload) {
		t.Errorf("baseline moved on local edit: %s", e.Baseline)
	}
}

func TestGetDueBetween(t *testing.T) {
	s := newTestStore(t)

	mustPut(t, s, &models.CachedEntity{ID: "a1", Kind: models.KindAssignments, Payload: assignmentPayload(t, "early", "2026-09-05"), Version: 1})
	mustPut(t, s, &models.CachedEntity{ID: "a2", Kind: models.KindAssignments, Payload: assignmentPayload(t, "late", "2026-09-20"), Version: 1})
	mustPut(t, s, &models.CachedEntity{ID: "a3", Kind: models.KindAssignments, Payload: assignmentPayload(t, "mid", "2026-09-10"), Version: 1})
	mustPut(t, s, &models.CachedEntity{ID: "a4", Kind: models.KindAssignments, Payload: assignmentPayload(t, "undated", ""), Version: 1})

	entities, err := s.GetDueBetween("2026-09-01", "2026-09-15")
	if err != nil {
		t.Fatalf("GetDueBetween failed: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("got %d entities, want 2", len(entities))
	}
	if entities[0].ID != "a1" || entities[1].ID != "a3" {
		t.Errorf("wrong order: %s, %s", entities[0].ID, entities[1].ID)
	}
}

func TestGetByDayOrdersByStartTime(t *testing.T) {
	s := newTestStore(t)

	mustPut(t, s, &models.CachedEntity{ID: "s1", Kind: models.KindScheduleSlots, Payload: slotPayload(t, "physics", 2, "11:00"), Version: 1})
	mustPut(t, s, &models.CachedEntity{ID: "s2", Kind: models.KindScheduleSlots, Payload: slotPayload(t, "math", 2, "08:30"), Version: 1})
	mustPut(t, s, &models.CachedEntity{ID: "s3", Kind: models.KindScheduleSlots, Payload: slotPayload(t, "art", 3, "09:00"), Version: 1})

	entities, err := s.GetByDay(2)
	if err != nil {
		t.Fatalf("GetByDay failed: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("got %d slots, want 2", len(entities))
	}
	if entities[0].ID != "s2" || entities[1].ID != "s1" {
		t.Errorf("wrong order: %s, %s", entities[0].ID, entities[1].ID)
	}
}

func TestDeleteCascadesAttachments(t *testing.T) {
	s := newTestStore(t)

	mustPut(t, s, &models.CachedEntity{ID: "a1", Kind: models.KindAssignments, Payload: assignmentPayload(t, "essay", ""), Version: 1})
	if err := s.PutAttachment(&models.Attachment{ID: "att1", EntityID: "a1", MimeType: "image/png", Data: []byte{1}}); err != nil {
		t.Fatalf("PutAttachment failed: %v", err)
	}

	if err := s.Delete("a1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := s.GetByID("a1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("entity still present: %v", err)
	}
	if _, err := s.GetAttachment("att1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("attachment survived entity delete: %v", err)
	}
}

func TestRenameEntity(t *testing.T) {
	s := newTestStore(t)

	mustPut(t, s, &models.CachedEntity{ID: "local-1", Kind: models.KindAssignments, Payload: assignmentPayload(t, "essay", ""), Version: 0})
	if err := s.PutAttachment(&models.Attachment{ID: "att1", EntityID: "local-1", MimeType: "image/png", Data: []byte{1}}); err != nil {
		t.Fatalf("PutAttachment failed: %v", err)
	}
	if _, err := s.EnqueueAction(models.ActionUpdate, models.KindAssignments, "local-1", assignmentPayload(t, "essay v2", ""), 0); err != nil {
		t.Fatalf("EnqueueAction failed: %v", err)
	}

	if err := s.RenameEntity("local-1", "srv-9"); err != nil {
		t.Fatalf("RenameEntity failed: %v", err)
	}

	if _, err := s.GetByID("srv-9"); err != nil {
		t.Errorf("entity not reachable under new id: %v", err)
	}
	atts, err := s.GetAttachmentsForEntity("srv-9")
	if err != nil || len(atts) != 1 {
		t.Errorf("attachments did not follow rename: %v (%d)", err, len(atts))
	}
	actions, err := s.ListPendingActions()
	if err != nil {
		t.Fatalf("ListPendingActions failed: %v", err)
	}
	if len(actions) != 1 || actions[0].EntityID != "srv-9" {
		t.Errorf("queued actions did not follow rename: %+v", actions)
	}
}
