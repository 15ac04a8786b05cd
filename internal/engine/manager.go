package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/dharmasatrya/flightoffers/internal/clock"
)

var ErrSessionNotFound = errors.New("session not found")

// Manager owns the live sessions of the process.
type Manager struct {
	deps     Deps
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Currency == "" {
		deps.Currency = "USD"
	}

	return &Manager{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session. With restore set, the last persisted search is
// loaded into it when one is available.
func (m *Manager) Create(ctx context.Context, restore bool) *Session {
	s := newSession(m.deps.NewID(), m.deps)
	if restore {
		s.Restore(ctx)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
}
