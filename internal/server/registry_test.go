package server

import "testing"

func newBareSession() *Session {
	s := &Session{}
	s.name.Store("")
	return s
}

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	s := newBareSession()

	if prior := r.Register("alice", s); prior != nil {
		t.Fatalf("Register() prior = %v, want nil", prior)
	}

	got, ok := r.Get("alice")
	if !ok || got != s {
		t.Fatalf("Get() = (%v, %v), want (%v, true)", got, ok, s)
	}
}

func TestRegistryRegisterDisplacesPrior(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := newBareSession()
	second := newBareSession()

	r.Register("alice", first)
	prior := r.Register("alice", second)

	if prior != first {
		t.Fatalf("Register() prior = %v, want %v", prior, first)
	}

	got, ok := r.Get("alice")
	if !ok || got != second {
		t.Fatalf("Get() = (%v, %v), want (%v, true)", got, ok, second)
	}
}

func TestRegistryRemoveOnlyIfCurrent(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := newBareSession()
	second := newBareSession()

	r.Register("alice", first)
	r.Register("alice", second) // displaces first

	// first is stale now; removing it must not evict second.
	r.Remove("alice", first)
	if got, ok := r.Get("alice"); !ok || got != second {
		t.Fatalf("Remove() with stale session evicted current: got (%v, %v)", got, ok)
	}

	r.Remove("alice", second)
	if _, ok := r.Get("alice"); ok {
		t.Fatal("Remove() with current session left an entry behind")
	}
}

func TestRegistryCountAndRange(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("alice", newBareSession())
	r.Register("bob", newBareSession())

	if n := r.Count(); n != 2 {
		t.Fatalf("Count() = %d, want 2", n)
	}

	seen := make(map[string]bool)
	r.Range(func(name string, s *Session) bool {
		seen[name] = true
		return true
	})
	if !seen["alice"] || !seen["bob"] {
		t.Fatalf("Range() saw %v, want alice and bob", seen)
	}
}

func TestRegistryRangeStopsEarly(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("alice", newBareSession())
	r.Register("bob", newBareSession())

	count := 0
	r.Range(func(name string, s *Session) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("Range() visited %d entries, want 1 (stop after false)", count)
	}
}
