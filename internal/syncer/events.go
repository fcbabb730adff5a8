package syncer

import (
	"sync"
	"time"

	"github.com/satchel-app/satchel/internal/conflict"
	"github.com/satchel-app/satchel/internal/models"
)

// EventType names the signals the presentation layer may depend on.
// Nothing else about sync internals is observable.
type EventType string

const (
	EventSyncStarted      EventType = "sync-started"
	EventSyncComplete     EventType = "sync-complete"
	EventConflictDetected EventType = "conflict-detected"
	EventOffline          EventType = "offline"
	EventOnline           EventType = "online"
)

// Event is a single UI-facing notification.
type Event struct {
	Type     EventType
	Time     time.Time
	Summary  *models.SyncSummary  // sync-complete only
	EntityID string               // conflict-detected only
	Diff     []conflict.FieldDiff // conflict-detected only
}

// Hub fans events out to subscribers. Publishing never blocks: a
// subscriber that falls behind misses intermediate events, not the stream.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The cancel func unsubscribes and closes
// the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, 16)
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

// Publish delivers an event to every subscriber that has buffer room.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
