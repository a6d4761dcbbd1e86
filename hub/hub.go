// Package hub is the public facade: type aliases and constructors over
// internal/server and internal/client, so application code never imports
// the internal packages directly.
package hub

import (
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/doggyhole/doggyhole-go/internal/client"
	"github.com/doggyhole/doggyhole-go/internal/credentials"
	"github.com/doggyhole/doggyhole-go/internal/server"
)

type (
	// ServerConfig is the server's enumerated configuration.
	ServerConfig = server.Config
	// ClientConfig is the client's enumerated configuration.
	ClientConfig = client.Config
	// RateLimitConfig is the per-session inbound frame rate limit.
	RateLimitConfig = server.RateLimitConfig
	// CheckOriginFunc validates the origin of an inbound WebSocket upgrade.
	CheckOriginFunc = server.CheckOriginFunc
	// CredentialStore maps tokens to client names.
	CredentialStore = credentials.Store
)

// NewServer builds a hub server from cfg. Call Start to begin listening.
func NewServer(cfg *ServerConfig) *server.Server {
	return server.New(cfg)
}

// NewClient builds a hub client from cfg. Call Connect to dial.
func NewClient(cfg *ClientConfig) *client.Client {
	return client.New(cfg)
}

// DefaultServerConfig returns a ServerConfig with every documented default
// filled in, listening on addr and authenticating against store.
func DefaultServerConfig(addr string, store CredentialStore) *ServerConfig {
	return server.DefaultConfig(addr, store)
}

// DefaultClientConfig returns a ClientConfig with every documented default
// filled in, dialing url and authenticating with token.
func DefaultClientConfig(url, token string) *ClientConfig {
	return client.DefaultConfig(url, token)
}

// NewMemoryCredentialStore returns an empty in-memory credential store,
// suitable for development and tests.
func NewMemoryCredentialStore() *credentials.MemoryStore {
	return credentials.NewMemoryStore()
}

// NewMongoCredentialStore returns a credential store backed by coll, for
// deployments that keep tokens in MongoDB instead of process memory.
func NewMongoCredentialStore(coll *mongo.Collection) *credentials.MongoStore {
	return credentials.NewMongoStore(coll)
}

// DefaultRateLimitConfig allows 100 messages/second with a burst of 200.
func DefaultRateLimitConfig() *RateLimitConfig {
	return server.DefaultRateLimitConfig()
}

// NoRateLimit disables per-session rate limiting.
func NoRateLimit() *RateLimitConfig {
	return server.NoRateLimit()
}

// AllOrigins allows every WebSocket upgrade origin. Development only: it
// disables the cross-site WebSocket hijacking protection CheckOrigin
// exists for.
func AllOrigins() CheckOriginFunc {
	return func(r *http.Request) bool { return true }
}
