package entityassist

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultSessionName is the name Sessions().SetDefault registers under.
const DefaultSessionName = "default"

var (
	once     sync.Once
	instance *SessionManager
	// ErrSessionNotFound is returned when no session is registered under a
	// name.
	ErrSessionNotFound = NewError(ErrorTypeConnection, "session not found")
)

// SessionManager holds the named sessions of the process. Entities that
// were never loaded through a session fall back to the default one.
type SessionManager struct {
	mutex    sync.RWMutex
	sessions map[string]*Session
}

// Sessions returns the singleton instance of SessionManager
func Sessions() *SessionManager {
	once.Do(func() {
		instance = &SessionManager{
			sessions: make(map[string]*Session),
		}
	})
	return instance
}

// SetDefault sets the given session as default
func (m *SessionManager) SetDefault(s *Session) {
	m.Add(DefaultSessionName, s)
}

// Add registers a session under name, replacing any previous one
func (m *SessionManager) Add(name string, s *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[name] = s
}

// Get retrieves a session from the manager
func (m *SessionManager) Get(name ...string) (*Session, bool) {
	sessionName := DefaultSessionName
	if len(name) > 0 {
		sessionName = name[0]
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, found := m.sessions[sessionName]
	return s, found
}

// Remove closes and removes a session from the manager
func (m *SessionManager) Remove(name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	s, found := m.sessions[name]
	if !found {
		return NewErrorWithCause(ErrorTypeConnection, name, ErrSessionNotFound)
	}

	if err := s.Close(); err != nil {
		return NewErrorWithCause(ErrorTypeConnection, fmt.Sprintf("cannot close session %q", name), err)
	}

	delete(m.sessions, name)
	return nil
}

// Forget removes a session without closing it
func (m *SessionManager) Forget(name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, name)
}

// Names returns the registered session names, sorted
func (m *SessionManager) Names() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	names := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveAll closes and removes all the registered sessions
func (m *SessionManager) RemoveAll() error {
	for _, name := range m.Names() {
		if err := m.Remove(name); err != nil {
			return err
		}
	}
	return nil
}

// DefaultSession returns the default session, or ErrNoSession when none is
// registered.
func DefaultSession() (*Session, error) {
	s, found := Sessions().Get()
	if !found || s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}
