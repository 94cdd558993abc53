package smpp

import (
	"sync"

	"github.com/google/uuid"
)

// SessionRegistry tracks every live Session a Server accepted, indexed
// both by a generated session-id and by the peer's bound system_id, so
// a handler can look a session up either way without holding a direct
// reference to it — the cyclic-reference-avoidance approach spec.md
// §9's Design Notes call for (generalized from the teacher's
// InMemoryConnectionManager, keyed on the rewritten Session type).
type SessionRegistry struct {
	mu        sync.RWMutex
	byID      map[string]*Session
	bySystem  map[string]map[string]*Session // system_id -> session-id -> Session
	logger    Logger
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry(logger Logger) *SessionRegistry {
	return &SessionRegistry{
		byID:     make(map[string]*Session),
		bySystem: make(map[string]map[string]*Session),
		logger:   logger,
	}
}

// NewSessionID generates a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Add registers session under id, unindexed by system_id until Bind is
// called once the bind handshake completes.
func (r *SessionRegistry) Add(id string, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id] = session
}

// Bind indexes an already-registered session by its peer's system_id,
// called once a bind_* succeeds and PeerSystemID is known.
func (r *SessionRegistry) Bind(id, systemID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.byID[id]
	if !ok {
		return
	}
	byID, ok := r.bySystem[systemID]
	if !ok {
		byID = make(map[string]*Session)
		r.bySystem[systemID] = byID
	}
	byID[id] = session
}

// Remove drops session id from both indexes.
func (r *SessionRegistry) Remove(id, systemID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	if systemID == "" {
		return
	}
	if byID, ok := r.bySystem[systemID]; ok {
		delete(byID, id)
		if len(byID) == 0 {
			delete(r.bySystem, systemID)
		}
	}
}

// Get retrieves a session by its registry id.
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// BySystemID returns every currently bound session for a system_id
// (a system_id may hold several simultaneous binds, e.g. one Tx and
// one Rx — spec.md places no 1:1 constraint on this).
func (r *SessionRegistry) BySystemID(systemID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byID, ok := r.bySystem[systemID]
	if !ok {
		return nil
	}
	sessions := make([]*Session, 0, len(byID))
	for _, s := range byID {
		sessions = append(sessions, s)
	}
	return sessions
}

// All returns a snapshot of every registered session.
func (r *SessionRegistry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	return sessions
}

// Count returns the number of registered sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
