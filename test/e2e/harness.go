// Package e2e exercises the full offline-first journey through the public
// surfaces: mutation intents, the sync pass, and conflict resolution. Raw
// SQL assertions go through a second SQLite driver to make sure nothing in
// the on-disk state depends on driver quirks.
package e2e

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/satchel-app/satchel/internal/connectivity"
	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/remote"
	"github.com/satchel-app/satchel/internal/store"
	"github.com/satchel-app/satchel/internal/syncer"
)

// Harness wires a real store, a real syncer, and an in-memory entity
// service behind httptest.
type Harness struct {
	T       *testing.T
	BaseDir string
	Store   *store.Store
	Syncer  *syncer.Syncer
	Monitor *connectivity.Manual
	Service *Service
}

// Service is the in-memory remote, enforcing the same version
// preconditions as the production server.
type Service struct {
	mu       sync.Mutex
	entities map[string]*serviceEntity
	nextID   int
}

type serviceEntity struct {
	version int64
	payload json.RawMessage
}

// NewHarness builds a harness starting online.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	baseDir := t.TempDir()
	st, err := store.Initialize(baseDir)
	if err != nil {
		t.Fatalf("initialize store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := &Service{entities: make(map[string]*serviceEntity)}
	ts := httptest.NewServer(svc.handler())
	t.Cleanup(ts.Close)

	monitor := connectivity.NewManual(true)
	client := remote.New(ts.URL, "e2e-key", "e2e-device")
	s := syncer.New(st, client, monitor, syncer.NewHub(), syncer.Config{})

	return &Harness{T: t, BaseDir: baseDir, Store: st, Syncer: s, Monitor: monitor, Service: svc}
}

// SetEntity writes directly into the service, bypassing the client. Used
// to simulate another device's edit.
func (s *Service) SetEntity(id string, version int64, payload json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[id] = &serviceEntity{version: version, payload: payload}
}

// Entity returns the service's current version and payload for id.
func (s *Service) Entity(id string) (int64, json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return 0, nil, false
	}
	return e.version, e.payload, true
}

func (s *Service) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remote.HealthResponse{Status: "ok"})
	})

	mux.HandleFunc("POST /entities/{kind}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		var req struct {
			ClientID string          `json:"client_id"`
			Payload  json.RawMessage `json:"payload"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		s.nextID++
		id := fmt.Sprintf("e2e-%d", s.nextID)
		s.entities[id] = &serviceEntity{version: 1, payload: req.Payload}
		json.NewEncoder(w).Encode(remote.EntityResponse{ID: id, Version: 1, Payload: req.Payload})
	})

	mux.HandleFunc("PUT /entities/{kind}/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		var req struct {
			Payload         json.RawMessage `json:"payload"`
			ExpectedVersion int64           `json:"expected_version"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		e, ok := s.entities[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"code": "not_found", "message": "no such entity"})
			return
		}
		if req.ExpectedVersion != e.version {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(remote.VersionMismatchError{ServerVersion: e.version, ServerPayload: e.payload})
			return
		}

		e.version++
		e.payload = req.Payload
		json.NewEncoder(w).Encode(remote.EntityResponse{ID: r.PathValue("id"), Version: e.version, Payload: e.payload})
	})

	mux.HandleFunc("DELETE /entities/{kind}/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		var req struct {
			ExpectedVersion int64 `json:"expected_version"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		e, ok := s.entities[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"code": "not_found", "message": "no such entity"})
			return
		}
		if req.ExpectedVersion != e.version {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(remote.VersionMismatchError{ServerVersion: e.version, ServerPayload: e.payload})
			return
		}
		delete(s.entities, r.PathValue("id"))
	})

	return mux
}

// OpenRaw opens the store file with the cgo SQLite driver for direct SQL
// assertions on the on-disk state.
func (h *Harness) OpenRaw() *sql.DB {
	h.T.Helper()

	db, err := sql.Open("sqlite", filepath.Join(h.BaseDir, ".satchel", "planner.db"))
	if err != nil {
		h.T.Fatalf("open raw db: %v", err)
	}
	h.T.Cleanup(func() { db.Close() })
	return db
}

// CountRows counts rows in a table through the raw connection.
func (h *Harness) CountRows(table string) int {
	h.T.Helper()

	var n int
	if err := h.OpenRaw().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		h.T.Fatalf("count %s: %v", table, err)
	}
	return n
}

// AssignmentPayload marshals a minimal assignment.
func AssignmentPayload(t *testing.T, title, due string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(models.Assignment{Title: title, Subject: "history", DueDate: due})
	if err != nil {
		t.Fatalf("marshal assignment: %v", err)
	}
	return raw
}
