package conflict

import (
	"strings"
	"testing"
)

func TestReportMarksConflicts(t *testing.T) {
	client, server, baseline := fixture()
	diffs := Diff(client, server, baseline)

	md := Report("assignments", "a1", 3, 5, diffs)

	if !strings.Contains(md, "## Conflict: assignments/a1") {
		t.Errorf("missing heading:\n%s", md)
	}
	if !strings.Contains(md, "**title** ⚠ conflict") {
		t.Errorf("conflicted field not marked:\n%s", md)
	}
	if !strings.Contains(md, "my essay") || !strings.Contains(md, "the essay") {
		t.Errorf("missing side values:\n%s", md)
	}
	if !strings.Contains(md, "1 in true conflict") {
		t.Errorf("missing summary line:\n%s", md)
	}
}

func TestReportEmptyDiff(t *testing.T) {
	md := Report("grades", "g1", 1, 2, nil)
	if !strings.Contains(md, "No field-level changes") {
		t.Errorf("empty diff report wrong:\n%s", md)
	}
}

func TestVersionConflictErrorMessage(t *testing.T) {
	err := &VersionConflictError{
		EntityKind:    "assignments",
		EntityID:      "a1",
		ClientVersion: 3,
		ServerVersion: 5,
		Diff:          []FieldDiff{{Field: "title", IsConflict: true}},
	}
	msg := err.Error()
	if !strings.Contains(msg, "assignments/a1") || !strings.Contains(msg, "v3") || !strings.Contains(msg, "v5") {
		t.Errorf("message = %q", msg)
	}
}
