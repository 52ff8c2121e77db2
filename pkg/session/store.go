package session

import (
	stderrors "errors"
	"sort"
	"sync"
	"time"

	coderrors "github.com/coderloop/coderloop/pkg/errors"
)

// Store is the Session Store contract (spec §4.2): durable keyed
// storage for SessionState plus its append-only artifact log. Every
// method is safe for concurrent use.
type Store interface {
	// Create persists a brand-new session. On a backend failure it
	// returns a coderrors.KindStorageUnavailable *coderrors.Error that
	// wraps a *coderrors.TransientError.
	Create(state *SessionState) error

	// Load returns the current state of a session, or
	// coderrors.ErrNotFound if no such session exists.
	Load(sessionID string) (*SessionState, error)

	// Persist overwrites the stored state for an existing session.
	Persist(state *SessionState) error

	// AppendArtifact appends a to the session's artifact log and updates
	// the session's in-store state to match (equivalent to Load,
	// s.AppendArtifact(a), Persist, done atomically by the
	// implementation).
	AppendArtifact(sessionID string, a Artifact) error

	// List returns every known session ordered by StartTimeMs ascending.
	List() ([]*SessionState, error)

	// EvictOlderThan removes sessions whose StartTimeMs is older than
	// cutoff and whose State is terminal (CONVERGED, ESCALATED, FAILED)
	// or IDLE, returning the count evicted. In-progress sessions
	// (GENERATING, REVIEWING, REVISING) are never evicted regardless of
	// age.
	EvictOlderThan(cutoff time.Time) (int, error)
}

// InMemoryStore is a sync.RWMutex-guarded Store, the implementation
// the tests run against. The daemon does not use it: config.Load
// requires CODELOOP_DATABASE_URL.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState
}

// NewInMemoryStore returns an empty in-memory Store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*SessionState)}
}

func (m *InMemoryStore) Create(state *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[state.SessionID]; exists {
		return coderrors.Wrap(coderrors.KindValidation, "session already exists", stderrors.New(state.SessionID))
	}
	m.sessions[state.SessionID] = state.Clone()
	return nil
}

func (m *InMemoryStore) Load(sessionID string) (*SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, coderrors.Wrap(coderrors.KindNotFound, "session not found", coderrors.ErrNotFound)
	}
	return s.Clone(), nil
}

func (m *InMemoryStore) Persist(state *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[state.SessionID]; !ok {
		return coderrors.Wrap(coderrors.KindNotFound, "session not found", coderrors.ErrNotFound)
	}
	m.sessions[state.SessionID] = state.Clone()
	return nil
}

func (m *InMemoryStore) AppendArtifact(sessionID string, a Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return coderrors.Wrap(coderrors.KindNotFound, "session not found", coderrors.ErrNotFound)
	}
	s.AppendArtifact(a)
	return nil
}

func (m *InMemoryStore) List() ([]*SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*SessionState, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTimeMs < out[j].StartTimeMs })
	return out, nil
}

func (m *InMemoryStore) EvictOlderThan(cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoffMs := cutoff.UnixMilli()
	evicted := 0
	for id, s := range m.sessions {
		if !isEvictable(s.State) {
			continue
		}
		if s.StartTimeMs < cutoffMs {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted, nil
}

func isEvictable(st State) bool {
	switch st {
	case StateIdle, StateConverged, StateEscalated, StateFailed:
		return true
	default:
		return false
	}
}
