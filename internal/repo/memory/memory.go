package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/pingmonitor/internal/repo"
)

// Store keeps the persisted state in process memory.
type Store struct {
	mu    sync.RWMutex
	state repo.State
	saves int
}

func New() *Store {
	return &Store{}
}

// NewWithState returns a store preloaded with st.
func NewWithState(st repo.State) *Store {
	s := &Store{}
	s.state = clone(st)
	return s
}

func (m *Store) Load(ctx context.Context) (repo.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.state), nil
}

func (m *Store) Save(ctx context.Context, st repo.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = clone(st)
	m.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (m *Store) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func clone(st repo.State) repo.State {
	out := repo.State{IntervalSeconds: st.IntervalSeconds}
	if st.Records != nil {
		out.Records = append([]string(nil), st.Records...)
	}
	return out
}
