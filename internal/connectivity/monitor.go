// Package connectivity tracks whether the remote entity service is
// reachable and notifies subscribers on transitions. The Monitor interface
// keeps the sync manager independent of any platform event API.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// State is the connectivity state.
type State string

const (
	Online  State = "online"
	Offline State = "offline"
)

// Monitor reports the current connectivity state and notifies subscribers
// when it changes.
type Monitor interface {
	// Online returns the current state without blocking.
	Online() bool
	// Subscribe registers for transition notifications. The returned
	// cancel func must be called to unsubscribe; after it returns the
	// channel receives nothing further.
	Subscribe() (<-chan State, func())
}

// hub implements subscriber bookkeeping shared by monitor implementations.
type hub struct {
	mu     sync.Mutex
	subs   map[int]chan State
	nextID int
	online bool
}

func newHub(initial bool) *hub {
	return &hub{subs: make(map[int]chan State), online: initial}
}

func (h *hub) Online() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online
}

func (h *hub) Subscribe() (<-chan State, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	// Buffered so a slow subscriber never blocks the prober; a missed
	// intermediate flap collapses into the latest state.
	ch := make(chan State, 4)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// set updates the state and notifies subscribers on transition. Returns
// true if the state changed.
func (h *hub) set(online bool) bool {
	h.mu.Lock()
	if h.online == online {
		h.mu.Unlock()
		return false
	}
	h.online = online

	state := Offline
	if online {
		state = Online
	}
	for _, ch := range h.subs {
		select {
		case ch <- state:
		default: // subscriber buffer full, it will see the latest state on next read
		}
	}
	h.mu.Unlock()
	return true
}

// Probe is a Monitor that polls the remote health endpoint at a fixed
// interval.
type Probe struct {
	*hub
	url      string
	interval time.Duration
	client   *http.Client
}

// NewProbe creates a probe monitor for the service's health URL. The probe
// starts pessimistic (offline) until the first successful check.
func NewProbe(healthURL string, interval time.Duration) *Probe {
	return &Probe{
		hub:      newHub(false),
		url:      healthURL,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Run polls until ctx is cancelled. An immediate check runs before the
// first tick so callers learn the state promptly.
func (p *Probe) Run(ctx context.Context) {
	p.check(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

func (p *Probe) check(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.url, nil)
	if err != nil {
		p.set(false)
		return
	}
	resp, err := p.client.Do(req)
	online := err == nil && resp.StatusCode < 500
	if resp != nil {
		resp.Body.Close()
	}
	if p.set(online) {
		slog.Info("connectivity changed", "online", online)
	}
}

// Manual is a Monitor whose state is set explicitly. Used by tests and by
// the CLI's forced-offline mode.
type Manual struct {
	*hub
}

// NewManual creates a manual monitor with the given initial state.
func NewManual(online bool) *Manual {
	return &Manual{hub: newHub(online)}
}

// SetOnline flips the state, notifying subscribers on transition.
func (m *Manual) SetOnline(online bool) {
	m.set(online)
}
