package session

import (
	"sync"
)

// Manager guarantees at most one live session. Opening a new session
// closes the previous one, and waits for its socket and reader to be gone,
// before the new one exists.
type Manager struct {
	cfg   Config
	creds CredentialSource

	mu      sync.Mutex
	current *Session
}

func NewManager(cfg Config, creds CredentialSource) *Manager {
	return &Manager{cfg: cfg, creds: creds}
}

// Open closes the current session, if any, and returns a new idle one.
func (m *Manager) Open(p Params) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.log.Info("replacing session")
		m.current.Close()
	}
	m.current = New(m.cfg, m.creds, p)
	return m.current
}

// Current returns the most recently opened session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close closes the current session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
}
