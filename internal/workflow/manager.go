package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/observability"
)

// Manager owns the live sessions and expires idle ones.
type Manager struct {
	deps    Deps
	set     Settings
	idleTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(deps Deps, set Settings, idleTTL time.Duration) *Manager {
	return &Manager{
		deps:     deps,
		set:      set.withDefaults(),
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session with its panel already open.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.deps, m.set)
	s.BeginSelection()

	m.mu.Lock()
	m.sessions[s.id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	observability.SetActiveSessions(n)
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete ends the session's selection and forgets it.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.EndSelection()
	observability.SetActiveSessions(n)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL. Sessions with a
// chain in flight are kept.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	now := m.set.Now()

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		idle, busy := s.idleSince(now)
		if busy || idle < m.idleTTL {
			continue
		}
		expired = append(expired, s)
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.EndSelection()
	}
	if len(expired) > 0 {
		observability.SetActiveSessions(n)
	}
	return len(expired)
}

// Run sweeps on every tick until ctx is done.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 && m.deps.Log != nil {
				m.deps.Log.Debug("expired idle sessions", "count", n)
			}
		}
	}
}

// Close ends every session; used on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.EndSelection()
	}
	observability.SetActiveSessions(0)
}
