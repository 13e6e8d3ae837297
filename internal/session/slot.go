package session

import (
	"golang.org/x/sync/semaphore"
)

// Slot is one client's conversation: its session, the gate that keeps turns
// from overlapping, and the hub that reports their progress.
type Slot struct {
	ID    string
	Store *Store
	Hub   *Hub

	turn *semaphore.Weighted
}

func NewSlot(id string) *Slot {
	return &Slot{
		ID:    id,
		Store: NewStore(),
		Hub:   NewHub(),
		turn:  semaphore.NewWeighted(1),
	}
}

// TryBegin claims the slot for one turn. It never waits: false means another
// turn is still running. A successful claim must be followed by End.
func (s *Slot) TryBegin() bool {
	return s.turn.TryAcquire(1)
}

func (s *Slot) End() {
	s.turn.Release(1)
}
