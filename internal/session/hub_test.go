package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversInOrder(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(8)
	defer cancel()

	h.Publish(Event{Type: EventChunk, Text: "a"})
	h.Publish(Event{Type: EventChunk, Text: "b"})

	assert.Equal(t, "a", (<-ch).Text)
	assert.Equal(t, "b", (<-ch).Text)
}

func TestHubFansOut(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe(1)
	defer cancelA()
	b, cancelB := h.Subscribe(1)
	defer cancelB()

	h.Publish(Event{Type: EventReset})

	assert.Equal(t, EventReset, (<-a).Type)
	assert.Equal(t, EventReset, (<-b).Type)
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub()
	slow, cancel := h.Subscribe(1)
	defer cancel()

	h.Publish(Event{Type: EventChunk, Text: "1"})
	h.Publish(Event{Type: EventChunk, Text: "2"})

	assert.Equal(t, 0, h.Subscribers())
	ev, ok := <-slow
	require.True(t, ok)
	assert.Equal(t, "1", ev.Text)
	_, ok = <-slow
	assert.False(t, ok)
}

func TestHubCancelClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())
}

func TestHubClose(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	h.Close()
	_, ok := <-ch
	assert.False(t, ok)

	late, _ := h.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)

	h.Publish(Event{Type: EventChunk})
}
