// Package credentials provides the name↔secret mapping used to authenticate
// inbound connections. It is an injectable collaborator: the server depends
// only on the Store interface, not on any particular backing map.
package credentials

import "sync"

// Store maps an opaque token to the canonical client name it authenticates.
// Adding a record for an existing token replaces it.
type Store interface {
	// Lookup returns the canonical name for a token, and whether it exists.
	Lookup(token string) (name string, ok bool)

	// NameMatches reports whether token is on file and its stored name
	// equals name. An unknown token, or an empty name, does not match.
	NameMatches(token, name string) bool

	// Set registers (or replaces) the name for a token.
	Set(name, token string)

	// Remove deletes a token's record, if any.
	Remove(token string)
}

// MemoryStore is the default in-memory Store, backed by a sync.Map keyed by
// token.
type MemoryStore struct {
	byToken sync.Map // map[string]string: token -> name
}

// NewMemoryStore returns an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(token string) (string, bool) {
	v, ok := s.byToken.Load(token)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// NameMatches implements Store.
func (s *MemoryStore) NameMatches(token, name string) bool {
	stored, ok := s.Lookup(token)
	if !ok {
		return false
	}
	return stored == name
}

// Set implements Store. Calling Set twice with identical arguments is a
// no-op after the first call.
func (s *MemoryStore) Set(name, token string) {
	s.byToken.Store(token, name)
}

// Remove implements Store.
func (s *MemoryStore) Remove(token string) {
	s.byToken.Delete(token)
}
