package server

import (
	"context"
	"sync"
	"time"

	"github.com/doggyhole/doggyhole-go"
	"github.com/doggyhole/doggyhole-go/internal/bus"
	"github.com/doggyhole/doggyhole-go/internal/logging"
	"github.com/doggyhole/doggyhole-go/internal/protocol"
)

// Router is the dispatcher for the frame kinds an authenticated Session
// can send. Per-source-Session outbound ordering is guaranteed by
// Session's own single writer; across sessions no ordering is promised.
type Router struct {
	registry *Registry
	bus      *bus.Bus
	log      *logging.Logger
	metrics  *metrics

	handlers sync.Map // map[string]doggyhole.ServerHandlerFunc
}

// NewRouter builds a Router over registry, delivering client-originated
// events to eventBus in addition to fanning them out.
func NewRouter(registry *Registry, eventBus *bus.Bus, log *logging.Logger, m *metrics) *Router {
	return &Router{registry: registry, bus: eventBus, log: log, metrics: m}
}

// RegisterHandler installs (or replaces) the server-RPC handler for
// functionName. Handler tables are last-writer-wins.
func (r *Router) RegisterHandler(functionName string, fn doggyhole.ServerHandlerFunc) {
	r.handlers.Store(functionName, fn)
}

// Dispatch handles one inbound frame from an authenticated session.
func (rt *Router) Dispatch(ctx context.Context, s *Session, f protocol.Frame) {
	switch f.Type {
	case protocol.Request:
		rt.handleRequest(ctx, s, f)
	case protocol.ClientRequest:
		rt.handleClientRequest(s, f)
	case protocol.Response:
		rt.handlePeerResponse(f)
	case protocol.Event:
		rt.handleEvent(s, f)
	case protocol.HeartbeatResponse:
		s.TouchHeartbeat()
	default:
		rt.log.Warn("dropping frame of unexpected type %q from %s", f.Type, s.Name())
	}
}

// handleRequest implements: for every request with id i, emit exactly one
// response with id i on the caller's transport.
func (rt *Router) handleRequest(ctx context.Context, s *Session, f protocol.Frame) {
	handlerVal, ok := rt.handlers.Load(f.FunctionName)
	if !ok {
		rt.reply(s, f.ID, false, nil, doggyhole.MsgHandlerNotFound)
		return
	}
	handler := handlerVal.(doggyhole.ServerHandlerFunc)

	// Handlers may be asynchronous; run off the read loop so one slow
	// handler never blocks this session's other traffic.
	go func() {
		start := time.Now()
		result, err := handler(ctx, s.Name(), f.Data)
		rt.metrics.requestsTotal.Inc()
		rt.metrics.requestDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			rt.reply(s, f.ID, false, nil, err.Error())
			return
		}
		rt.reply(s, f.ID, true, result, "")
	}()
}

func (rt *Router) reply(s *Session, id string, success bool, data any, errMsg string) {
	frame := protocol.Frame{
		Type:    protocol.Response,
		ID:      id,
		Success: protocol.Bool(success),
		Error:   errMsg,
	}
	if success {
		frame.Data = marshalData(data)
	}
	s.SendFrame(frame)
}

// handleClientRequest forwards a peer-RPC invocation to its target,
// stamping fromClient with the caller's authenticated name regardless of
// anything the caller supplied.
func (rt *Router) handleClientRequest(s *Session, f protocol.Frame) {
	f.FromClient = s.Name()

	target, ok := rt.registry.Get(f.TargetClient)
	if !ok {
		rt.reply(s, f.ID, false, nil, doggyhole.MsgTargetClientNotFound)
		return
	}
	if !target.IsOpen() {
		rt.reply(s, f.ID, false, nil, doggyhole.MsgTargetClientUnavail)
		return
	}

	if err := target.SendFrame(f); err != nil {
		rt.reply(s, f.ID, false, nil, doggyhole.MsgTargetClientUnavail)
	}
}

// handlePeerResponse relays a callee's response back to the original
// caller. The router does not inspect success/data; it only routes.
func (rt *Router) handlePeerResponse(f protocol.Frame) {
	if f.OriginalFromClient == "" {
		return
	}
	caller, ok := rt.registry.Get(f.OriginalFromClient)
	if !ok || !caller.IsOpen() {
		return
	}
	caller.SendFrame(f)
}

// handleEvent delivers to the server event bus and re-broadcasts to every
// other authenticated, open session.
func (rt *Router) handleEvent(s *Session, f protocol.Frame) {
	from := s.Name()
	rt.bus.Emit(f.EventName, f.Data, from)

	outFrame := protocol.Frame{
		Type:      protocol.Event,
		EventName: f.EventName,
		Data:      f.Data,
		FromClient: from,
	}

	rt.registry.Range(func(name string, other *Session) bool {
		if name == from {
			return true
		}
		if other.IsAuthenticated() && other.IsOpen() {
			other.SendFrame(outFrame)
		}
		return true
	})
}

// Broadcast sends a server-originated event to every authenticated
// session, unlike a client event's fan-out, which excludes its originator.
func (rt *Router) Broadcast(eventName string, data any) {
	frame := protocol.Frame{
		Type:       protocol.Event,
		EventName:  eventName,
		Data:       marshalData(data),
		FromClient: "server",
	}
	rt.registry.Range(func(_ string, s *Session) bool {
		if s.IsAuthenticated() && s.IsOpen() {
			s.SendFrame(frame)
		}
		return true
	})
}
