package session

import (
	"context"
	"sync"

	"github.com/chamarodfai/pos-api/internal/cart"
	"github.com/google/uuid"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[uuid.UUID]cart.State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[uuid.UUID]cart.State)}
}

func (s *MemoryStore) Save(_ context.Context, id uuid.UUID, st cart.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[id] = copyState(st)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id uuid.UUID) (cart.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[id]
	if !ok {
		return cart.State{}, ErrNotFound
	}
	return copyState(st), nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[id]; !ok {
		return ErrNotFound
	}
	delete(s.states, id)
	return nil
}

func copyState(st cart.State) cart.State {
	e := cart.New()
	e.Restore(st)
	return e.Snapshot().State
}
