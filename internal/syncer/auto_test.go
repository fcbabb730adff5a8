package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/satchel-app/satchel/internal/connectivity"
	"github.com/satchel-app/satchel/internal/models"
	"github.com/satchel-app/satchel/internal/remote"
	"github.com/satchel-app/satchel/internal/store"
)

func TestRunAutoRequiresMonitor(t *testing.T) {
	st, err := store.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer st.Close()

	s := New(st, remote.New("http://127.0.0.1:0", "", ""), nil, NewHub(), Config{})
	if err := s.RunAuto(context.Background(), AutoConfig{}); err == nil {
		t.Error("RunAuto accepted a nil monitor")
	}
}

func TestRunAutoSyncsOnReconnect(t *testing.T) {
	st, err := store.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer st.Close()

	var creates atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creates.Add(1)
		json.NewEncoder(w).Encode(remote.EntityResponse{ID: "srv-1", Version: 1})
	}))
	defer ts.Close()

	monitor := connectivity.NewManual(false)
	s := New(st, remote.New(ts.URL, "key", "device"), monitor, NewHub(), Config{})

	if _, _, err := s.Create(models.KindAssignments, &models.Assignment{Title: "offline edit", Subject: "math"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	events, cancel := s.Events().Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	done := make(chan struct{})
	go func() {
		s.RunAuto(ctx, AutoConfig{Debounce: 10 * time.Millisecond})
		close(done)
	}()

	// Let the loop subscribe before flipping the state
	time.Sleep(20 * time.Millisecond)
	monitor.SetOnline(true)

	deadline := time.After(2 * time.Second)
	sawOnline, sawComplete := false, false
	for !sawComplete {
		select {
		case ev := <-events:
			switch ev.Type {
			case EventOnline:
				sawOnline = true
			case EventSyncComplete:
				sawComplete = true
			}
		case <-deadline:
			t.Fatal("reconnect never triggered a sync pass")
		}
	}
	if !sawOnline {
		t.Error("online event not forwarded")
	}
	if creates.Load() != 1 {
		t.Errorf("creates = %d, want 1", creates.Load())
	}

	stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("RunAuto did not stop on cancel")
	}
}

func TestRunAutoOfflineCancelsDebounce(t *testing.T) {
	st, err := store.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer st.Close()

	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		json.NewEncoder(w).Encode(remote.EntityResponse{ID: "srv-1", Version: 1})
	}))
	defer ts.Close()

	monitor := connectivity.NewManual(false)
	s := New(st, remote.New(ts.URL, "key", "device"), monitor, NewHub(), Config{})

	if _, _, err := s.Create(models.KindAssignments, &models.Assignment{Title: "edit", Subject: "math"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go s.RunAuto(ctx, AutoConfig{Debounce: 100 * time.Millisecond})

	time.Sleep(20 * time.Millisecond)
	monitor.SetOnline(true)
	time.Sleep(20 * time.Millisecond) // inside the debounce window
	monitor.SetOnline(false)

	time.Sleep(200 * time.Millisecond)
	if requests.Load() != 0 {
		t.Errorf("flap triggered a pass: %d requests", requests.Load())
	}
}
