// Package events provides a small in-process pub/sub bus. Sync runs publish
// progress events; the websocket endpoint streams them to clients.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types published by the sync pipeline.
const (
	TypeSyncStarted   = "sync_started"
	TypeSyncCompleted = "sync_completed"
	TypeSyncFailed    = "sync_failed"
	TypeBackupDone    = "backup_completed"
)

// Event is one bus message.
type Event struct {
	Type    string      `json:"type"`
	Owner   string      `json:"owner,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// that stops draining its channel loses events rather than stalling the
// publisher.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	log    zerolog.Logger
}

// NewBus creates an event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
		log:  log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a new subscriber. The caller must Unsubscribe with the
// returned id when done.
func (b *Bus) Subscribe() (int, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 16)
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers an event to all current subscribers.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.log.Debug().Int("subscriber", id).Str("type", e.Type).Msg("Subscriber full, dropping event")
		}
	}
}
