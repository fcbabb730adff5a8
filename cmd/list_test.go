package cmd

import (
	"encoding/json"
	"testing"

	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/store"
)

func TestShortID(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"srv-1", "srv-1"},
		{"e2e-7", "e2e-7"},
		{"12345678", "12345678"},
		{"3f2b1c9a-8d6e-4f01-9a2b-0c7d5e4f3a21", "3f2b1c9a"},
		{"", ""},
	}
	for _, c := range cases {
		if got := shortID(c.id); got != c.want {
			t.Errorf("shortID(%q) = %q, want %q", c.id, got, c.want)
		}
	}
}

// After a confirmed create the local uuid is renamed to the server's id,
// which can be shorter than the displayed abbreviation. Listing must not
// choke on those rows.
func TestListShowsServerAssignedIDs(t *testing.T) {
	baseDir = t.TempDir()

	st, err := store.Initialize(baseDir)
	if err != nil {
		t.Fatalf("initialize store: %v", err)
	}

	payload, err := json.Marshal(models.Assignment{Title: "essay", DueDate: "2026-09-10"})
	if err != nil {
		t.Fatalf("marshal assignment: %v", err)
	}
	if err := st.PutSynced(&models.CachedEntity{
		ID:      "srv-1",
		Kind:    models.KindAssignments,
		Payload: payload,
		Version: 1,
	}); err != nil {
		t.Fatalf("put synced entity: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	if err := listCmd.Flags().Set("all", "true"); err != nil {
		t.Fatalf("set --all: %v", err)
	}
	defer listCmd.Flags().Set("all", "false")

	if err := listCmd.RunE(listCmd, nil); err != nil {
		t.Fatalf("list with server-assigned id: %v", err)
	}
}
