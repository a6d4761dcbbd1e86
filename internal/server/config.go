package server

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/doggyhole/doggyhole-go"
	"github.com/doggyhole/doggyhole-go/internal/credentials"
)

// CheckOriginFunc validates the origin of a WebSocket connection request.
type CheckOriginFunc = func(r *http.Request) bool

// RateLimitConfig is the per-session inbound frame rate limit (token
// bucket).
type RateLimitConfig struct {
	MessagesPerSecond rate.Limit
	Burst             int
	Enabled           bool
}

// DefaultRateLimitConfig allows 100 messages/second with a burst of 200.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{MessagesPerSecond: 100, Burst: 200, Enabled: true}
}

// NoRateLimit disables per-session rate limiting.
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{Enabled: false}
}

// Config is the server's enumerated configuration options.
type Config struct {
	Addr  string
	Store credentials.Store

	HeartbeatInterval       time.Duration
	HeartbeatTimeout        time.Duration
	MaxConnections          int
	GracefulShutdownTimeout time.Duration
	LogLevel                string

	RateLimit   *RateLimitConfig
	CheckOrigin CheckOriginFunc

	Notifier doggyhole.LifecycleNotifier
}

// DefaultConfig returns a Config with every documented default filled in,
// listening on addr and authenticating against store.
func DefaultConfig(addr string, store credentials.Store) *Config {
	return &Config{
		Addr:                    addr,
		Store:                   store,
		HeartbeatInterval:       doggyhole.DefaultHeartbeatInterval * time.Millisecond,
		HeartbeatTimeout:        doggyhole.DefaultHeartbeatTimeout * time.Millisecond,
		MaxConnections:          doggyhole.DefaultMaxConnections,
		GracefulShutdownTimeout: doggyhole.DefaultGracefulShutdownTimeout * time.Millisecond,
		LogLevel:                "info",
		RateLimit:               DefaultRateLimitConfig(),
		CheckOrigin:             func(r *http.Request) bool { return false },
	}
}
