package session

import (
	"errors"
	"sync"

	"github.com/HitoniYori/ijime-support-ai/internal/llm"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Manager keeps the sessions of a multi-client surface apart. Sessions share
// nothing but the backend.
type Manager struct {
	backend llm.Backend
	opts    Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(backend llm.Backend, opts Options) *Manager {
	return &Manager{backend: backend, opts: opts, sessions: make(map[string]*Session)}
}

func (m *Manager) Create() *Session {
	s := New(m.backend, m.opts)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// CloseAll ends every session; used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
