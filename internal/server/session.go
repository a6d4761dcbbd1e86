// Package server implements the router's side of the hub: sessions, the
// session registry, the request/event router, the heartbeat supervisor,
// and the graceful-shutdown orchestrator.
package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/doggyhole/doggyhole-go/internal/protocol"
)

const sendBuffer = 256

// Session is one server-side record bound to one live transport and, after
// authentication, one client name. It holds no application state beyond
// the transport handle, the name, and the liveness timestamp.
type Session struct {
	preAuthID string // assigned at connect, before a name exists
	conn      *websocket.Conn

	name          atomic.Value // string
	authenticated atomic.Bool
	lastHeartbeat atomic.Int64 // monotonic nanoseconds since session start

	ctx    context.Context
	cancel context.CancelFunc

	sendCh chan []byte
	mu     sync.Mutex
	closed bool

	startedAt time.Time
}

// NewSession wraps an upgraded connection in a pre-auth Session and starts
// its single outbound writer.
func NewSession(conn *websocket.Conn) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		preAuthID: uuid.New().String(),
		conn:      conn,
		ctx:       ctx,
		cancel:    cancel,
		sendCh:    make(chan []byte, sendBuffer),
		startedAt: time.Now(),
	}
	s.name.Store("")
	s.lastHeartbeat.Store(s.monotonicNow())
	go s.writePump()
	return s
}

func (s *Session) monotonicNow() int64 {
	return time.Since(s.startedAt).Nanoseconds()
}

// ID returns the pre-auth identifier, stable for the session's lifetime
// regardless of the name it's later authenticated under.
func (s *Session) ID() string { return s.preAuthID }

// Name returns the assigned client name, or "" before authentication.
func (s *Session) Name() string { return s.name.Load().(string) }

// Authenticate promotes the session to active under name.
func (s *Session) Authenticate(name string) {
	s.name.Store(name)
	s.authenticated.Store(true)
	s.TouchHeartbeat()
}

// IsAuthenticated reports whether Authenticate has been called.
func (s *Session) IsAuthenticated() bool { return s.authenticated.Load() }

// TouchHeartbeat refreshes the liveness timestamp. The router calls this on
// a heartbeat_response and Authenticate calls it once — normal frames do
// not refresh it.
func (s *Session) TouchHeartbeat() {
	s.lastHeartbeat.Store(s.monotonicNow())
}

// SinceLastHeartbeat returns the monotonic duration since the last refresh.
func (s *Session) SinceLastHeartbeat() time.Duration {
	last := s.lastHeartbeat.Load()
	return time.Duration(s.monotonicNow()-last) * time.Nanosecond
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// IsOpen reports whether the transport is still considered open.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// SendFrame encodes and queues a frame on this session's single writer.
// Returns errClosed if the session is closed and errBackpressure if its send
// buffer is full.
func (s *Session) SendFrame(f protocol.Frame) error {
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	select {
	case s.sendCh <- data:
		return nil
	default:
		// Buffer full: a wedged client. Treat as closed rather than block
		// the router goroutine serving every other session.
		return errBackpressure
	}
}

// Close closes the session with the normal closure code.
func (s *Session) Close() error {
	return s.CloseWithCode(websocket.CloseNormalClosure, "")
}

// CloseWithCode closes the transport with a specific close code and reason.
func (s *Session) CloseWithCode(code int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()

	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(code, reason)
	s.conn.WriteControl(websocket.CloseMessage, msg, deadline)

	close(s.sendCh)
	return s.conn.Close()
}

// writePump is the session's single writer, serializing all outbound
// frame kinds (request replies, forwarded client_requests, events,
// heartbeats, shutdown) onto the wire in the order they were queued.
func (s *Session) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.sendCh:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.ctx.Done():
			return
		}
	}
}
