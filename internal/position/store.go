package position

import (
	"context"
	"sync"
)

// Store persists State across restarts.
type Store interface {
	// Load returns the saved state for symbol. ok is false when none exists.
	Load(ctx context.Context, symbol string) (st *State, ok bool, err error)
	Save(ctx context.Context, st *State) error
}

// MemoryStore is a process-local Store. It is the default when no
// database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, symbol string) (*State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[symbol]
	if !ok {
		return nil, false, nil
	}
	return &st, true, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, st *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[st.Symbol] = *st
	return nil
}
