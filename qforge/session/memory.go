package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memoryStore keeps sessions in a map. It is the default driver for tests
// and single-process runs; everything is lost on restart.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ Store = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]*Session)}
}

func (m *memoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Clone(), nil
}

func (m *memoryStore) Patch(_ context.Context, id string, p Patch) error {
	if p.IsZero() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.apply(s, time.Now().UTC())
	return nil
}

func (m *memoryStore) TransitionStatus(_ context.Context, id string, from, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := checkTransition(s.Status, from, to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	s.Status = to
	s.LastActivity = time.Now().UTC()
	s.Version++
	return nil
}

func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
	return nil
}
