// Package session keeps one cart engine per POS terminal session.
//
// A Manager serialises every operation on a session behind that session's
// mutex and writes the resulting cart state to a Store, so a restarted
// process can pick a session up where it left off when the store is durable.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chamarodfai/pos-api/internal/cart"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Store persists cart state by session id.
type Store interface {
	Save(ctx context.Context, id uuid.UUID, st cart.State) error
	Load(ctx context.Context, id uuid.UUID) (cart.State, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type session struct {
	mu     sync.Mutex
	engine *cart.Engine
	closed bool
}

// Manager owns the live cart sessions.
type Manager struct {
	store  Store
	logger *zap.Logger
	opts   []cart.Option

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// NewManager creates a Manager backed by store. opts are applied to every
// cart engine the manager creates.
func NewManager(store Store, logger *zap.Logger, opts ...cart.Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		logger:   logger,
		opts:     opts,
		sessions: make(map[uuid.UUID]*session),
	}
}

// Open starts a new empty session and returns its id.
func (m *Manager) Open(ctx context.Context) (uuid.UUID, error) {
	id := uuid.New()
	s := &session{engine: cart.New(m.opts...)}

	if err := m.store.Save(ctx, id, cart.State{}); err != nil {
		return uuid.Nil, fmt.Errorf("save session: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return id, nil
}

// Get returns a snapshot of the session's cart.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (cart.Snapshot, error) {
	s, err := m.lookup(ctx, id)
	if err != nil {
		return cart.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cart.Snapshot{}, ErrNotFound
	}
	return s.engine.Snapshot(), nil
}

// Do runs fn against the session's cart while holding the session lock,
// persists the resulting state and returns it. The error from fn is returned
// unchanged alongside the snapshot.
func (m *Manager) Do(ctx context.Context, id uuid.UUID, fn func(e *cart.Engine) error) (cart.Snapshot, error) {
	s, err := m.lookup(ctx, id)
	if err != nil {
		return cart.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cart.Snapshot{}, ErrNotFound
	}

	fnErr := fn(s.engine)
	snap := s.engine.Snapshot()

	if err := m.store.Save(ctx, id, snap.State); err != nil {
		// The in-memory engine stays authoritative for this process.
		m.logger.Warn("persist cart session",
			zap.String("session_id", id.String()),
			zap.Error(err))
	}
	return snap, fnErr
}

// Close discards a session. It waits for an in-flight Do on the same
// session to finish, so that Do's write cannot outlive the delete.
func (m *Manager) Close(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, live := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !live {
		return m.store.Delete(ctx, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	err := m.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// lookup returns the live session for id, restoring it from the store on a
// miss. The store is read without holding m.mu.
func (m *Manager) lookup(ctx context.Context, id uuid.UUID) (*session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	st, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	e := cart.New(m.opts...)
	e.Restore(st)

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have restored the same session meanwhile.
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s = &session{engine: e}
	m.sessions[id] = s
	return s, nil
}
