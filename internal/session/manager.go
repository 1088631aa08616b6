package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrLimit    = errors.New("max concurrent sessions reached")
)

type Info struct {
	ID         string
	RemoteAddr string
	OpenedAt   time.Time
}

// Manager tracks the sessions of connection-oriented transports. Each session
// is still driven by exactly one connection goroutine; the manager only guards
// its own registry.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]Info
	maxActive int
}

func NewManager(maxActive int) *Manager {
	return &Manager{
		sessions:  map[string]Info{},
		maxActive: maxActive,
	}
}

func (m *Manager) Open(remoteAddr string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxActive > 0 && len(m.sessions) >= m.maxActive {
		return nil, ErrLimit
	}
	id := "s_" + uuid.New().String()
	m.sessions[id] = Info{
		ID:         id,
		RemoteAddr: remoteAddr,
		OpenedAt:   time.Now().UTC(),
	}
	return New(id), nil
}

func (m *Manager) Get(id string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.sessions[id]
	if !ok {
		return Info{}, ErrNotFound
	}
	return info, nil
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
