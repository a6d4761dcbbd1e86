package server

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/doggyhole/doggyhole-go/internal/logging"
	"github.com/doggyhole/doggyhole-go/internal/protocol"
)

// Orchestrator runs the graceful-shutdown sequence: broadcast a shutdown
// frame, wait the grace period, then hard-close every
// remaining transport. It is idempotent — concurrent callers share one
// pending completion.
type Orchestrator struct {
	registry *Registry
	log      *logging.Logger

	mu      sync.Mutex
	started bool
	done    chan struct{}
	err     error
}

// NewOrchestrator builds an Orchestrator over registry.
func NewOrchestrator(registry *Registry, log *logging.Logger) *Orchestrator {
	return &Orchestrator{registry: registry, log: log}
}

// Shutdown runs (or joins an already-running) graceful shutdown. reason is
// carried on the shutdown frame; gracePeriod bounds how long clients have
// to react before their transports are force-closed.
func (o *Orchestrator) Shutdown(ctx context.Context, reason string, gracePeriod time.Duration) error {
	o.mu.Lock()
	if o.started {
		done := o.done
		o.mu.Unlock()
		<-done
		return o.err
	}
	o.started = true
	o.done = make(chan struct{})
	o.mu.Unlock()

	o.err = o.run(ctx, reason, gracePeriod)
	close(o.done)
	return o.err
}

func (o *Orchestrator) run(ctx context.Context, reason string, gracePeriod time.Duration) error {
	frame := protocol.Frame{
		Type:        protocol.Shutdown,
		Reason:      reason,
		GracePeriod: gracePeriod.Milliseconds(),
	}
	o.registry.Range(func(_ string, s *Session) bool {
		if s.IsAuthenticated() && s.IsOpen() {
			s.SendFrame(frame)
		}
		return true
	})

	select {
	case <-time.After(gracePeriod):
	case <-ctx.Done():
	}

	var result *multierror.Error
	o.registry.Range(func(_ string, s *Session) bool {
		if err := s.CloseWithCode(1001, reason); err != nil {
			result = multierror.Append(result, err)
		}
		return true
	})
	if result != nil {
		o.log.Warn("graceful shutdown: %d session(s) closed with errors", len(result.Errors))
		return result.ErrorOrNil()
	}
	return nil
}
