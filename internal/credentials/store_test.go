package credentials

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMemoryStoreLookup tests basic Set/Lookup round trips.
func TestMemoryStoreLookup(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.Set("alice", "T1")

	name, ok := s.Lookup("T1")
	require.True(t, ok)
	require.Equal(t, "alice", name)

	_, ok = s.Lookup("unknown")
	require.False(t, ok)
}

// TestMemoryStoreReplace verifies that adding a record for an existing
// token replaces its name.
func TestMemoryStoreReplace(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.Set("alice", "T1")
	s.Set("alice-renamed", "T1")

	name, ok := s.Lookup("T1")
	require.True(t, ok)
	require.Equal(t, "alice-renamed", name)
}

// TestMemoryStoreSetIdempotent asserts Set(name, token) twice with the
// same arguments is a no-op after the first.
func TestMemoryStoreSetIdempotent(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.Set("alice", "T1")
	s.Set("alice", "T1")

	name, ok := s.Lookup("T1")
	require.True(t, ok)
	require.Equal(t, "alice", name)
}

// TestMemoryStoreNameMatches covers NameMatches for a matching name, a
// mismatched name, and an unknown token.
func TestMemoryStoreNameMatches(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.Set("alice", "T1")

	tests := []struct {
		name  string
		token string
		want  string
		match bool
	}{
		{name: "matching name", token: "T1", want: "alice", match: true},
		{name: "mismatched name", token: "T1", want: "bob", match: false},
		{name: "unknown token", token: "T2", want: "alice", match: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.match, s.NameMatches(tt.token, tt.want))
		})
	}
}

// TestMemoryStoreRemove tests that Remove drops a token's record.
func TestMemoryStoreRemove(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	s.Set("alice", "T1")
	s.Remove("T1")

	_, ok := s.Lookup("T1")
	require.False(t, ok)
}

// TestMemoryStoreConcurrency exercises Set/Lookup from many goroutines to
// catch data races under -race.
func TestMemoryStoreConcurrency(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	done := make(chan bool)

	for i := 0; i < 20; i++ {
		go func(i int) {
			s.Set("user", "token")
			_, _ = s.Lookup("token")
			done <- true
		}(i)
	}

	for i := 0; i < 20; i++ {
		<-done
	}
}
