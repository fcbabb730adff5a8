package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestManualTransitions(t *testing.T) {
	m := NewManual(false)
	if m.Online() {
		t.Fatal("initial state wrong")
	}

	ch, cancel := m.Subscribe()
	defer cancel()

	m.SetOnline(true)
	select {
	case state := <-ch:
		if state != Online {
			t.Errorf("state = %s, want online", state)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification on transition")
	}
	if !m.Online() {
		t.Error("Online() disagrees with notification")
	}
}

func TestManualNoNotificationWithoutTransition(t *testing.T) {
	m := NewManual(true)
	ch, cancel := m.Subscribe()
	defer cancel()

	m.SetOnline(true) // no change

	select {
	case state := <-ch:
		t.Errorf("unexpected notification: %s", state)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := NewManual(false)
	ch, cancel := m.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel not closed after unsubscribe")
	}

	// A transition after unsubscribe must not panic
	m.SetOnline(true)
}

func TestProbeDetectsHealthyServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := NewProbe(ts.URL, time.Hour)
	if p.Online() {
		t.Fatal("probe should start pessimistic")
	}

	ch, cancel := p.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go p.Run(ctx)

	select {
	case state := <-ch:
		if state != Online {
			t.Errorf("state = %s, want online", state)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("probe never reported online")
	}
}

func TestProbeTreatsServerErrorAsOffline(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	p := NewProbe(ts.URL, 10*time.Millisecond)
	ch, cancel := p.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go p.Run(ctx)

	waitState(t, ch, Online)
	healthy.Store(false)
	waitState(t, ch, Offline)
}

func waitState(t *testing.T, ch <-chan State, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case state := <-ch:
			if state == want {
				return
			}
		case <-deadline:
			t.Fatalf("never reached state %s", want)
		}
	}
}
