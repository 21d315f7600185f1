package wizard

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("wizard: session not found")

// SessionStore keeps wizard state per session id.
type SessionStore interface {
	Create(ctx context.Context) (*State, error)
	Get(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, s *State) error
	Delete(ctx context.Context, id string) error
}

// MemorySessionStore lives as long as the process, like a browser tab's
// session storage.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*State)}
}

func (m *MemorySessionStore) Create(_ context.Context) (*State, error) {
	s := &State{SessionID: uuid.NewString(), Step: StepEventView}

	m.mu.Lock()
	m.sessions[s.SessionID] = s.clone()
	m.mu.Unlock()

	return s, nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.clone(), nil
}

func (m *MemorySessionStore) Save(_ context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.SessionID]; !ok {
		return ErrSessionNotFound
	}
	m.sessions[s.SessionID] = s.clone()
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}
