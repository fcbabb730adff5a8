package store

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/satchel-app/satchel/internal/models"
)

func enqueue(t *testing.T, s *Store, entityID string) int64 {
	t.Helper()
	id, err := s.EnqueueAction(models.ActionUpdate, models.KindAssignments, entityID,
		assignmentPayload(t, "essay", ""), 1)
	if err != nil {
		t.Fatalf("EnqueueAction failed: %v", err)
	}
	return id
}

func TestEnqueueValidation(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.EnqueueAction("rename", models.KindAssignments, "a1", nil, 0); err == nil {
		t.Error("accepted unknown action type")
	}
	if _, err := s.EnqueueAction(models.ActionCreate, "notes", "a1", nil, 0); err == nil {
		t.Error("accepted unknown entity kind")
	}
	if _, err := s.EnqueueAction(models.ActionCreate, models.KindAssignments, "", nil, 0); err == nil {
		t.Error("accepted empty entity id")
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	s := newTestStore(t)

	first := enqueue(t, s, "a1")
	second := enqueue(t, s, "a2")
	third := enqueue(t, s, "a1")

	actions, err := s.ListReplayable(time.Now())
	if err != nil {
		t.Fatalf("ListReplayable failed: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3", len(actions))
	}
	if actions[0].ID != first || actions[1].ID != second || actions[2].ID != third {
		t.Errorf("wrong order: %d, %d, %d", actions[0].ID, actions[1].ID, actions[2].ID)
	}
}

func TestListReplayableRespectsBackoff(t *testing.T) {
	s := newTestStore(t)

	ready := enqueue(t, s, "a1")
	waiting := enqueue(t, s, "a2")

	if err := s.BumpRetry(waiting, "connection refused", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("BumpRetry failed: %v", err)
	}

	actions, err := s.ListReplayable(time.Now())
	if err != nil {
		t.Fatalf("ListReplayable failed: %v", err)
	}
	if len(actions) != 1 || actions[0].ID != ready {
		t.Fatalf("backoff window ignored: %+v", actions)
	}

	// After the window the action is replayable again
	actions, err = s.ListReplayable(time.Now().Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("ListReplayable failed: %v", err)
	}
	if len(actions) != 2 {
		t.Errorf("got %d actions after window, want 2", len(actions))
	}
}

func TestListReplayableExcludesParkedStates(t *testing.T) {
	s := newTestStore(t)

	enqueue(t, s, "a1")
	terminal := enqueue(t, s, "a2")
	conflicted := enqueue(t, s, "a3")

	if err := s.MarkTerminal(terminal, "server error"); err != nil {
		t.Fatalf("MarkTerminal failed: %v", err)
	}
	if err := s.MarkConflicted(conflicted, "version mismatch"); err != nil {
		t.Fatalf("MarkConflicted failed: %v", err)
	}

	actions, err := s.ListReplayable(time.Now())
	if err != nil {
		t.Fatalf("ListReplayable failed: %v", err)
	}
	if len(actions) != 1 {
		t.Errorf("got %d replayable actions, want 1", len(actions))
	}

	stats, err := s.GetQueueStats()
	if err != nil {
		t.Fatalf("GetQueueStats failed: %v", err)
	}
	if stats.Queued != 1 || stats.Terminal != 1 || stats.Conflicted != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestBumpRetryIncrements(t *testing.T) {
	s := newTestStore(t)
	id := enqueue(t, s, "a1")

	next := time.Now().Add(time.Minute)
	if err := s.BumpRetry(id, "timeout", next); err != nil {
		t.Fatalf("BumpRetry failed: %v", err)
	}
	if err := s.BumpRetry(id, "timeout again", next); err != nil {
		t.Fatalf("BumpRetry failed: %v", err)
	}

	a, err := s.GetPendingAction(id)
	if err != nil {
		t.Fatalf("GetPendingAction failed: %v", err)
	}
	if a.Retries != 2 {
		t.Errorf("retries = %d, want 2", a.Retries)
	}
	if a.LastError != "timeout again" {
		t.Errorf("last error = %q", a.LastError)
	}
	if a.NextAttemptAt.IsZero() {
		t.Error("next attempt not persisted")
	}
}

func TestResetRetryRequeues(t *testing.T) {
	s := newTestStore(t)
	id := enqueue(t, s, "a1")

	if err := s.BumpRetry(id, "timeout", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("BumpRetry failed: %v", err)
	}
	if err := s.MarkTerminal(id, "gave up"); err != nil {
		t.Fatalf("MarkTerminal failed: %v", err)
	}

	if err := s.ResetRetry(id); err != nil {
		t.Fatalf("ResetRetry failed: %v", err)
	}

	a, err := s.GetPendingAction(id)
	if err != nil {
		t.Fatalf("GetPendingAction failed: %v", err)
	}
	if a.Retries != 0 || a.State != models.StateQueued {
		t.Errorf("retries = %d state = %s after reset", a.Retries, a.State)
	}

	actions, err := s.ListReplayable(time.Now())
	if err != nil {
		t.Fatalf("ListReplayable failed: %v", err)
	}
	if len(actions) != 1 {
		t.Errorf("reset action not replayable")
	}
}

func TestRearmAction(t *testing.T) {
	s := newTestStore(t)
	id := enqueue(t, s, "a1")

	if err := s.MarkConflicted(id, "version mismatch"); err != nil {
		t.Fatalf("MarkConflicted failed: %v", err)
	}

	resolved := assignmentPayload(t, "merged title", "")
	if err := s.RearmAction(id, resolved, 7); err != nil {
		t.Fatalf("RearmAction failed: %v", err)
	}

	a, err := s.GetPendingAction(id)
	if err != nil {
		t.Fatalf("GetPendingAction failed: %v", err)
	}
	if a.State != models.StateQueued {
		t.Errorf("state = %s, want queued", a.State)
	}
	if a.BaseVersion != 7 {
		t.Errorf("base version = %d, want 7", a.BaseVersion)
	}
	if string(a.Payload) != string(resolved) {
		t.Errorf("payload not replaced: %s", a.Payload)
	}
}

func TestRebaseActionsAdvancesQueuedChain(t *testing.T) {
	s := newTestStore(t)

	a1First := enqueue(t, s, "a1")
	a1Second := enqueue(t, s, "a1")
	other := enqueue(t, s, "b1")
	parked := enqueue(t, s, "a1")
	if err := s.MarkConflicted(parked, "version mismatch"); err != nil {
		t.Fatalf("MarkConflicted failed: %v", err)
	}

	if err := s.RebaseActions("a1", 9); err != nil {
		t.Fatalf("RebaseActions failed: %v", err)
	}

	for _, tc := range []struct {
		id   int64
		want int64
	}{
		{a1First, 9},
		{a1Second, 9},
		{other, 1},  // different entity untouched
		{parked, 1}, // parked action untouched
	} {
		a, err := s.GetPendingAction(tc.id)
		if err != nil {
			t.Fatalf("GetPendingAction failed: %v", err)
		}
		if a.BaseVersion != tc.want {
			t.Errorf("action %d base version = %d, want %d", tc.id, a.BaseVersion, tc.want)
		}
	}
}

func TestModifyMissingAction(t *testing.T) {
	s := newTestStore(t)

	if err := s.MarkTerminal(99, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkTerminal on missing row: %v", err)
	}
	if err := s.ResetRetry(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("ResetRetry on missing row: %v", err)
	}
}

func TestEnqueueOnFullDatabase(t *testing.T) {
	s := newTestStore(t)

	// Cap the database at a handful of pages so the oversized insert trips
	// SQLITE_FULL instead of filling the disk.
	if _, err := s.Conn().Exec("PRAGMA max_page_count = 8"); err != nil {
		t.Fatalf("set max_page_count: %v", err)
	}

	payload := json.RawMessage(`{"title":"` + strings.Repeat("x", 64<<10) + `"}`)
	_, err := s.EnqueueAction(models.ActionUpdate, models.KindAssignments, "a1", payload, 1)
	if err == nil {
		t.Fatal("enqueue succeeded on a full database")
	}
	if !errors.Is(err, ErrStorageExhausted) {
		t.Fatalf("got %v, want ErrStorageExhausted", err)
	}

	// The failed insert must not leave a partial row behind.
	actions, err := s.ListPendingActions()
	if err != nil {
		t.Fatalf("ListPendingActions failed: %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("queue has %d rows after failed enqueue, want 0", len(actions))
	}
}
