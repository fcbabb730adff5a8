package conflict

import (
	"testing"
)

func findDiff(diffs []FieldDiff, field string) *FieldDiff {
	for i := range diffs {
		if diffs[i].Field == field {
			return &diffs[i]
		}
	}
	return nil
}

func TestDiffOneSidedChangesAreNotConflicts(t *testing.T) {
	baseline := map[string]any{"title": "essay", "description": "draft"}
	// Client edited the title, the server edited the description
	client := map[string]any{"title": "final essay", "description": "draft"}
	server := map[string]any{"title": "essay", "description": "reviewed"}

	diffs := Diff(client, server, baseline)
	if len(diffs) != 2 {
		t.Fatalf("got %d diffs, want 2", len(diffs))
	}

	title := findDiff(diffs, "title")
	if title == nil || title.IsConflict {
		t.Errorf("title should be a one-sided client change: %+v", title)
	}
	if !title.ClientChanged || title.ServerChanged {
		t.Errorf("title change attribution wrong: %+v", title)
	}

	desc := findDiff(diffs, "description")
	if desc == nil || desc.IsConflict {
		t.Errorf("description should be a one-sided server change: %+v", desc)
	}
	if desc.ClientChanged || !desc.ServerChanged {
		t.Errorf("description change attribution wrong: %+v", desc)
	}
}

func TestDiffBothSidesDivergedIsConflict(t *testing.T) {
	baseline := map[string]any{"title": "essay"}
	client := map[string]any{"title": "my essay"}
	server := map[string]any{"title": "the essay"}

	diffs := Diff(client, server, baseline)
	if len(diffs) != 1 {
		t.Fatalf("got %d diffs, want 1", len(diffs))
	}
	if !diffs[0].IsConflict {
		t.Errorf("two-sided divergence not flagged: %+v", diffs[0])
	}
}

func TestDiffConvergentChangeIsNotReported(t *testing.T) {
	baseline := map[string]any{"completed": false}
	// Both sides flipped the flag to the same value
	client := map[string]any{"completed": true}
	server := map[string]any{"completed": true}

	diffs := Diff(client, server, baseline)
	if len(diffs) != 0 {
		t.Errorf("convergent change reported: %+v", diffs)
	}
}

func TestDiffFieldRemoval(t *testing.T) {
	baseline := map[string]any{"title": "essay", "due_date": "2026-09-10"}
	client := map[string]any{"title": "essay"} // client dropped the due date
	server := map[string]any{"title": "essay", "due_date": "2026-09-12"}

	diffs := Diff(client, server, baseline)
	if len(diffs) != 1 {
		t.Fatalf("got %d diffs, want 1", len(diffs))
	}
	d := diffs[0]
	if d.Field != "due_date" || !d.IsConflict {
		t.Errorf("removal vs edit should conflict: %+v", d)
	}
}

func TestDiffWithoutBaselineTreatsDivergenceAsConflict(t *testing.T) {
	client := map[string]any{"title": "mine"}
	server := map[string]any{"title": "theirs"}

	diffs := Diff(client, server, nil)
	if len(diffs) != 1 || !diffs[0].IsConflict {
		t.Errorf("divergence without baseline should conflict: %+v", diffs)
	}
}

func TestDiffDeterministicOrder(t *testing.T) {
	baseline := map[string]any{}
	client := map[string]any{"z": 1.0, "a": 2.0, "m": 3.0}
	server := map[string]any{"z": 9.0, "a": 8.0, "m": 7.0}

	diffs := Diff(client, server, baseline)
	if len(diffs) != 3 {
		t.Fatalf("got %d diffs, want 3", len(diffs))
	}
	if diffs[0].Field != "a" || diffs[1].Field != "m" || diffs[2].Field != "z" {
		t.Errorf("fields not sorted: %s, %s, %s", diffs[0].Field, diffs[1].Field, diffs[2].Field)
	}
}

func TestSummarizeSeverity(t *testing.T) {
	tests := []struct {
		name      string
		conflicts int
		changed   int
		want      Severity
	}{
		{"no conflicts", 0, 3, SeverityLow},
		{"few conflicts", 2, 4, SeverityMedium},
		{"many conflicts", 3, 3, SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var diffs []FieldDiff
			for i := 0; i < tt.changed; i++ {
				diffs = append(diffs, FieldDiff{IsConflict: i < tt.conflicts})
			}
			got := Summarize(diffs, 10)
			if got.Severity != tt.want {
				t.Errorf("severity = %s, want %s", got.Severity, tt.want)
			}
			if got.ConflictedFields != tt.conflicts {
				t.Errorf("conflicted = %d, want %d", got.ConflictedFields, tt.conflicts)
			}
		})
	}
}
