// Package probes manages the live probe fleet: shared-secret credentials
// with hot reload, and the registry of authenticated sessions.
package probes

import (
	"sync"

	"github.com/minescope/minescope/internal/logger"
)

// Registry maps probe IDs to their live sessions. At most one session per
// ID exists at any time; registering a duplicate displaces the old session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// Register inserts the session, then closes any displaced session with the
// same ID outside the lock. The new session is canonical the moment the map
// is swapped, regardless of how long the old socket takes to die.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	old := r.sessions[s.ID]
	r.sessions[s.ID] = s
	r.mu.Unlock()

	if old != nil {
		r.log.Warn("probe reconnected, displacing previous session",
			logger.String("probe", s.ID))
		old.Close()
	}
	r.log.Info("probe registered",
		logger.String("probe", s.ID),
		logger.String("region", s.Region))
}

// Unregister removes the session if it is still the current entry for its
// ID. Idempotent; a session displaced by a newer one is a no-op here.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	current, ok := r.sessions[s.ID]
	if ok && current == s {
		delete(r.sessions, s.ID)
		r.mu.Unlock()
		r.log.Info("probe unregistered", logger.String("probe", s.ID))
		return
	}
	r.mu.Unlock()
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Snapshot copies the current session set so callers can fan out without
// holding the lock across I/O.
func (r *Registry) Snapshot() map[string]*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Session, len(r.sessions))
	for id, s := range r.sessions {
		out[id] = s
	}
	return out
}

// Count returns the number of connected probes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
