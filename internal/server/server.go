package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/doggyhole/doggyhole-go"
	"github.com/doggyhole/doggyhole-go/internal/bus"
	"github.com/doggyhole/doggyhole-go/internal/logging"
	"github.com/doggyhole/doggyhole-go/internal/protocol"
)

// Server implements doggyhole.Server: the WebSocket listener, the session
// registry, the router, the heartbeat supervisor, and the graceful
// shutdown orchestrator, wired together behind one upgrader.
type Server struct {
	cfg *Config

	httpServer *http.Server
	upgrader   websocket.Upgrader

	registry     *Registry
	router       *Router
	heartbeat    *HeartbeatSupervisor
	orchestrator *Orchestrator
	eventBus     *bus.Bus
	log          *logging.Logger
	registerer   prometheus.Registerer
	metrics      *metrics

	mu              sync.Mutex
	running         bool
	shuttingDown    bool
	cancelHeartbeat context.CancelFunc
}

// New builds a Server from cfg. Call Start to begin listening.
func New(cfg *Config) *Server {
	if cfg.RateLimit == nil {
		cfg.RateLimit = DefaultRateLimitConfig()
	}

	log := logging.New(logging.ParseLevel(cfg.LogLevel), "server")
	registry := NewRegistry()
	eventBus := bus.New()

	reg := prometheus.NewRegistry()
	m := newMetrics(reg)
	router := NewRouter(registry, eventBus, log, m)

	s := &Server{
		cfg:          cfg,
		registry:     registry,
		router:       router,
		eventBus:     eventBus,
		log:          log,
		registerer:   reg,
		metrics:      m,
		orchestrator: NewOrchestrator(registry, log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
	s.heartbeat = NewHeartbeatSupervisor(registry, cfg.HeartbeatInterval, cfg.HeartbeatTimeout, log, s.onHeartbeatTimeout)
	return s
}

// RegisterHandler implements doggyhole.Server.
func (s *Server) RegisterHandler(functionName string, fn doggyhole.ServerHandlerFunc) {
	s.router.RegisterHandler(functionName, fn)
}

// OnEvent implements doggyhole.Server.
func (s *Server) OnEvent(eventName string, fn doggyhole.EventHandlerFunc) {
	s.eventBus.On(eventName, func(data json.RawMessage, from string) { fn(data, from) })
}

// Broadcast implements doggyhole.Server: a server-originated event sent to
// every authenticated session, unlike a client event's fan-out.
func (s *Server) Broadcast(eventName string, data any) error {
	s.router.Broadcast(eventName, data)
	return nil
}

// ClientCount implements doggyhole.Server.
func (s *Server) ClientCount() int {
	return s.registry.Count()
}

// Start implements doggyhole.Server: it listens in the background and
// returns once the listener is up or ctx is cancelled first.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	mux := chi.NewRouter()
	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.Recoverer)
	mux.Use(s.requestLogger)
	mux.Get("/ws", s.handleWebSocket)
	mux.Handle("/metrics", s.MetricsHandler())
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	s.httpServer = &http.Server{Addr: s.cfg.Addr, Handler: mux}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(context.Background())
	go s.heartbeat.Run(heartbeatCtx)
	s.cancelHeartbeat = cancelHeartbeat

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case <-time.After(100 * time.Millisecond):
		s.log.Info("listening on %s", s.cfg.Addr)
		return nil
	}
}

// Stop implements doggyhole.Server via a graceful shutdown with reason
// "server stopping" followed by listener teardown. The configured Notifier
// receives Error for a shutdown error and Closed once teardown is done.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if err := s.GracefulShutdown(ctx, "server stopping"); err != nil {
		s.log.Warn("graceful shutdown returned error: %v", err)
		if s.cfg.Notifier != nil {
			s.cfg.Notifier.Error(err)
		}
	}
	if s.cancelHeartbeat != nil {
		s.cancelHeartbeat()
	}
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.Closed()
	}
	return err
}

// GracefulShutdown implements doggyhole.Server.
func (s *Server) GracefulShutdown(ctx context.Context, reason string) error {
	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()
	return s.orchestrator.Shutdown(ctx, reason, s.cfg.GracefulShutdownTimeout)
}

func (s *Server) isShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

func (s *Server) onHeartbeatTimeout(name string) {
	s.metrics.heartbeatEvicted.Inc()
	s.metrics.connectedClients.Set(float64(s.registry.Count()))
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.ClientTimeout(name)
	}
}

// closeWithCode sends a close frame on a just-upgraded connection that the
// server is about to refuse, then tears it down. There's no Session yet to
// own the write, so this writes directly.
func closeWithCode(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	conn.Close()
}

// requestLogger is chi request-logging middleware that reports each HTTP
// hit at debug level, keyed by chi's per-request ID.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("%s %s %d %s reqid=%s", r.Method, r.URL.Path, ww.Status(), time.Since(start), chimiddleware.GetReqID(r.Context()))
	})
}

// handleWebSocket upgrades the connection and runs its pre-auth then
// authenticated frame loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "failed to upgrade connection", http.StatusBadRequest)
		return
	}

	// The handshake already happened, so rejections past this point are
	// close codes on the new connection, not HTTP statuses.
	if s.isShuttingDown() {
		closeWithCode(conn, doggyhole.CloseTryAgainLater, "server shutting down")
		return
	}
	if s.cfg.MaxConnections > 0 && s.registry.Count() >= s.cfg.MaxConnections {
		closeWithCode(conn, doggyhole.CloseTryAgainLater, "too many connections")
		return
	}

	session := NewSession(conn)

	var limiter *rate.Limiter
	if s.cfg.RateLimit.Enabled {
		limiter = rate.NewLimiter(s.cfg.RateLimit.MessagesPerSecond, s.cfg.RateLimit.Burst)
	}

	go s.serveSession(session, limiter)
}

// serveSession runs the pre-auth then authenticated read loop for one
// connection.
func (s *Server) serveSession(session *Session, limiter *rate.Limiter) {
	var name string
	defer func() {
		if name != "" {
			s.registry.Remove(name, session)
			s.metrics.connectedClients.Set(float64(s.registry.Count()))
			if s.cfg.Notifier != nil {
				s.cfg.Notifier.ClientDisconnected(name)
			}
		}
		session.Close()
	}()

	session.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	session.conn.SetPongHandler(func(string) error {
		session.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	authenticatedName, err := s.authenticate(session)
	if err != nil {
		s.log.Debug("authentication failed for %s: %v", session.ID(), err)
		return
	}
	name = authenticatedName

	if evicted := s.registry.Register(name, session); evicted != nil {
		evicted.CloseWithCode(websocket.CloseNormalClosure, "displaced by reconnect")
	}
	session.Authenticate(name)
	s.metrics.connectedClients.Set(float64(s.registry.Count()))
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.ClientConnected(name)
	}

	ctx := context.Background()
	for {
		select {
		case <-session.Context().Done():
			return
		default:
		}

		_, data, err := session.conn.ReadMessage()
		if err != nil {
			return
		}
		session.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if limiter != nil && !limiter.Allow() {
			session.CloseWithCode(websocket.ClosePolicyViolation, "Rate limit exceeded")
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			session.CloseWithCode(websocket.CloseProtocolError, "Invalid message format")
			return
		}

		s.router.Dispatch(ctx, session, frame)
	}
}

// authenticate requires the first frame on the connection to be `auth`;
// any other frame closes with 1008. Token-only auth resolves the
// canonical name from the credential store; a supplied name must match it.
func (s *Server) authenticate(session *Session) (string, error) {
	_, data, err := session.conn.ReadMessage()
	if err != nil {
		return "", err
	}

	frame, err := protocol.Decode(data)
	if err != nil || frame.Type != protocol.Auth {
		session.CloseWithCode(websocket.ClosePolicyViolation, doggyhole.MsgAuthenticationRequired)
		return "", doggyhole.NewAuthenticationError("first frame was not auth")
	}

	name, ok := s.cfg.Store.Lookup(frame.Token)
	if !ok {
		session.CloseWithCode(websocket.ClosePolicyViolation, "invalid credentials")
		return "", doggyhole.NewAuthenticationError("unknown token")
	}
	if frame.Name != "" && frame.Name != name {
		session.CloseWithCode(websocket.ClosePolicyViolation, "invalid credentials")
		return "", doggyhole.NewAuthenticationError("name does not match token")
	}

	if err := session.SendFrame(protocol.Frame{Type: protocol.AuthSuccess, Name: name}); err != nil {
		return "", err
	}
	return name, nil
}
