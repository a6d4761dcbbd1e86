// Package client implements the client-side half of the hub: connect and
// authenticate, send/receive frames, the in-flight request table, the
// local handler table, and the reconnect controller.
package client

import (
	"time"

	"github.com/doggyhole/doggyhole-go"
)

// Config is the client's enumerated configuration.
type Config struct {
	URL   string
	Token string
	Name  string // optional; defaults to the token's canonical name after auth

	MaxReconnectAttempts      int
	HeartbeatInterval         time.Duration
	RequestTimeout            time.Duration
	ReconnectBackoffMultiplier float64
	LogLevel                  string
}

// DefaultConfig returns a Config with every documented default filled in.
func DefaultConfig(url, token string) *Config {
	return &Config{
		URL:                        url,
		Token:                      token,
		MaxReconnectAttempts:       doggyhole.DefaultMaxReconnectAttempts,
		HeartbeatInterval:          doggyhole.DefaultHeartbeatInterval * time.Millisecond,
		RequestTimeout:             doggyhole.DefaultRequestTimeout * time.Millisecond,
		ReconnectBackoffMultiplier: doggyhole.DefaultReconnectBackoffMult,
		LogLevel:                   "info",
	}
}
