package session

import (
	"sync"

	"github.com/vbonduro/plantdoc/internal/domain"
)

type EventType string

const (
	EventUserMessage      EventType = "user_message"
	EventChunk            EventType = "chunk"
	EventAssistantMessage EventType = "assistant_message"
	EventReset            EventType = "reset"
	EventError            EventType = "error"
)

// Event is a progress notification for one slot.
type Event struct {
	Type    EventType       `json:"type"`
	Stage   domain.Stage    `json:"stage,omitempty"`
	Text    string          `json:"text,omitempty"`
	Message *domain.Message `json:"message,omitempty"`
}

// Hub fans events out to subscribers. A subscriber that falls more than its
// buffer behind is dropped rather than stalling the turn.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and a func that ends the
// subscription. The channel is closed when the subscription ends, when the
// subscriber is dropped, or when the hub closes.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.remove(ch)
	}
}

func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.remove(ch)
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		h.remove(ch)
	}
	h.closed = true
}

// remove must be called with mu held.
func (h *Hub) remove(ch chan Event) {
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}
