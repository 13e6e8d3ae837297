// Package session holds conversation state between turns and fans turn
// progress out to watchers.
package session

import (
	"sync"

	"github.com/vbonduro/plantdoc/internal/domain"
)

// Store is a single conversation slot. Get and Set exchange copies, so a
// caller can never change the stored session in place.
type Store struct {
	mu sync.Mutex
	s  domain.Session
}

func NewStore() *Store {
	return &Store{s: domain.NewSession()}
}

func (st *Store) Get() domain.Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.Clone()
}

func (st *Store) Set(s domain.Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = s.Clone()
}

// Reset replaces every field with its empty value in one step.
func (st *Store) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = domain.NewSession()
}
