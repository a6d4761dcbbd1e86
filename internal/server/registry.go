package server

import "sync"

// Registry maps client name to its live Session. At any moment each name
// resolves to at most one active Session. Inserting a new Session for an
// already-registered name displaces the prior one, so a reconnecting
// client always wins over its stale predecessor.
type Registry struct {
	mu   sync.Mutex
	byName map[string]*Session
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Session)}
}

// Register installs s under name, evicting and returning any Session
// previously registered under the same name so the caller can close it.
func (r *Registry) Register(name string, s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior := r.byName[name]
	r.byName[name] = s
	return prior
}

// Get returns the Session registered under name, if any.
func (r *Registry) Get(name string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byName[name]
	return s, ok
}

// Remove deregisters name, but only if the currently-registered session is
// exactly s (guards against a displaced-then-reconnected session removing
// its successor out from under it).
func (r *Registry) Remove(name string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byName[name]; ok && cur == s {
		delete(r.byName, name)
	}
}

// Range calls fn for every registered session, stopping early if fn
// returns false. A stable snapshot is taken under lock so fn can run
// without holding the registry mutex.
func (r *Registry) Range(fn func(name string, s *Session) bool) {
	r.mu.Lock()
	snapshot := make(map[string]*Session, len(r.byName))
	for k, v := range r.byName {
		snapshot[k] = v
	}
	r.mu.Unlock()

	for name, s := range snapshot {
		if !fn(name, s) {
			return
		}
	}
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}
