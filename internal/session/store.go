package session

import (
	"context"
	"errors"
	"sync"

	"waitroom-intake/pkg"
)

// ErrNotFound is returned when no session exists for a key.
var ErrNotFound = errors.New("session: not found")

// Store keeps live sessions addressed by session key.  Implementations
// must not share answer maps with callers.
type Store interface {
	Load(ctx context.Context, key string) (*pkg.Session, error)
	Save(ctx context.Context, s *pkg.Session) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is a process-local Store.  Sessions do not survive restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*pkg.Session
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*pkg.Session)}
}

func (m *MemoryStore) Load(ctx context.Context, key string) (*pkg.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *pkg.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Key] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

// Len reports how many sessions are live.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
