package session

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of live client slots.
const DefaultCacheSize = 256

// Registry maps client ids to slots. The least recently used slot is evicted
// once the cache is full; its watchers are disconnected.
type Registry struct {
	mu     sync.Mutex
	slots  *lru.Cache[string, *Slot]
	logger *slog.Logger
}

func NewRegistry(size int, logger *slog.Logger) (*Registry, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.NewWithEvict(size, func(id string, slot *Slot) {
		logger.Info("session evicted", "client_id", id)
		slot.Store.Reset()
		slot.Hub.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &Registry{slots: cache, logger: logger}, nil
}

// Slot returns the slot for id, creating an empty one on first use.
func (r *Registry) Slot(id string) *Slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot, ok := r.slots.Get(id); ok {
		return slot
	}
	slot := NewSlot(id)
	r.slots.Add(id, slot)
	r.logger.Debug("session created", "client_id", id)
	return slot
}

// Peek returns the slot for id without creating it or refreshing its age.
func (r *Registry) Peek(id string) (*Slot, bool) {
	return r.slots.Peek(id)
}

func (r *Registry) Len() int {
	return r.slots.Len()
}
