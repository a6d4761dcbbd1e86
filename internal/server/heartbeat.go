package server

import (
	"context"
	"time"

	"github.com/doggyhole/doggyhole-go/internal/logging"
	"github.com/doggyhole/doggyhole-go/internal/protocol"
)

// HeartbeatSupervisor runs the periodic liveness sweep: one ticker on the
// server, checking every authenticated session's monotonic lastHeartbeat
// against heartbeatTimeout.
type HeartbeatSupervisor struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	log      *logging.Logger

	onTimeout func(name string)
}

// NewHeartbeatSupervisor builds a supervisor over registry. onTimeout is
// invoked (on the sweep goroutine, synchronously per evicted session)
// after a session has been closed for exceeding timeout.
func NewHeartbeatSupervisor(registry *Registry, interval, timeout time.Duration, log *logging.Logger, onTimeout func(name string)) *HeartbeatSupervisor {
	return &HeartbeatSupervisor{
		registry:  registry,
		interval:  interval,
		timeout:   timeout,
		log:       log,
		onTimeout: onTimeout,
	}
}

// Run ticks until ctx is cancelled. Call it in its own goroutine.
func (h *HeartbeatSupervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *HeartbeatSupervisor) sweep() {
	h.registry.Range(func(name string, s *Session) bool {
		if !s.IsAuthenticated() {
			return true
		}
		if s.SinceLastHeartbeat() > h.timeout {
			h.evict(name, s)
			return true
		}
		s.SendFrame(protocol.Frame{Type: protocol.Heartbeat})
		return true
	})
}

func (h *HeartbeatSupervisor) evict(name string, s *Session) {
	s.CloseWithCode(errCodeHeartbeatTimeout, "Heartbeat timeout")
	h.registry.Remove(name, s)
	h.log.Warn("evicted %s: heartbeat timeout", name)
	if h.onTimeout != nil {
		h.onTimeout(name)
	}
}

// errCodeHeartbeatTimeout is websocket.CloseNormalClosure (1000): heartbeat
// eviction reuses the clean-disconnect close code.
const errCodeHeartbeatTimeout = 1000
