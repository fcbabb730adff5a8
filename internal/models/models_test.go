package models

import (
	"encoding/json"
	"testing"
)

func TestDecodePayloadDispatch(t *testing.T) {
	tests := []struct {
		kind EntityKind
		raw  string
	}{
		{KindAssignments, `{"title":"essay","subject":"english"}`},
		{KindScheduleSlots, `{"subject":"math","day_of_week":2,"start_time":"09:00","end_time":"10:00"}`},
		{KindGrades, `{"subject":"math","score":42,"max_score":50}`},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			p, err := DecodePayload(tt.kind, json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("DecodePayload failed: %v", err)
			}
			if p.EntityKind() != tt.kind {
				t.Errorf("kind = %s, want %s", p.EntityKind(), tt.kind)
			}
		})
	}
}

func TestDecodePayloadUnknownKind(t *testing.T) {
	if _, err := DecodePayload("notes", json.RawMessage(`{}`)); err == nil {
		t.Error("accepted unknown kind")
	}
}

func TestFieldMap(t *testing.T) {
	fields, err := FieldMap(json.RawMessage(`{"title":"essay","completed":false}`))
	if err != nil {
		t.Fatalf("FieldMap failed: %v", err)
	}
	if fields["title"] != "essay" {
		t.Errorf("title = %v", fields["title"])
	}
	if fields["completed"] != false {
		t.Errorf("completed = %v", fields["completed"])
	}

	empty, err := FieldMap(nil)
	if err != nil {
		t.Fatalf("FieldMap(nil) failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("nil payload produced fields: %v", empty)
	}
}

func TestValidators(t *testing.T) {
	if !ValidKind(KindAssignments) || ValidKind("notes") {
		t.Error("ValidKind wrong")
	}
	if !ValidAction(ActionCreate) || ValidAction("rename") {
		t.Error("ValidAction wrong")
	}
}
