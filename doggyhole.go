package doggyhole

import "context"

// ConnectionState is one of the five states a Client instance can be in.
// Transitions are serialized per client instance.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
	Disconnecting
)

// String renders the state the way the client logs it.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Client is the subset of the client-side session's public surface that
// application code outside this module depends on. The concrete
// implementation lives in internal/client; callers obtain one via
// hub.NewClient.
type Client interface {
	// Connect opens the WebSocket, authenticates, and starts the heartbeat
	// and reconnect machinery.
	Connect(ctx context.Context) error

	// Disconnect is the cancellation primitive: it transitions through
	// Disconnecting to Disconnected, rejecting every pending request with
	// ConnectionError and suppressing reconnection.
	Disconnect(ctx context.Context) error

	// Request invokes a named function on the server and awaits one reply.
	Request(ctx context.Context, functionName string, data any) (Result, error)

	// RequestClient invokes a named function on another named client,
	// transparently routed through the server.
	RequestClient(ctx context.Context, target, functionName string, data any) (Result, error)

	// SendEvent publishes a named event for server-side listeners and
	// every other connected client. Fire-and-forget.
	SendEvent(eventName string, data any) error

	// AddHandler registers a local handler consulted when an inbound
	// client_request names functionName.
	AddHandler(functionName string, fn LocalHandlerFunc)

	// RemoveHandler deregisters a local handler.
	RemoveHandler(functionName string)

	// State returns the current ConnectionState.
	State() ConnectionState

	// Name returns the client's assigned name (set after auth_success).
	Name() string
}

// Result is the opaque payload carried by a response frame's data field.
// Application code unmarshals it into whatever shape it expects.
type Result = []byte

// LocalHandlerFunc answers an inbound client_request. An error return is
// stringified into the response's error field.
type LocalHandlerFunc func(data []byte) (any, error)

// ServerHandlerFunc answers an inbound server request. Handlers may run
// asynchronously; the router waits for exactly one resolve or reject per
// request id.
type ServerHandlerFunc func(ctx context.Context, from string, data []byte) (any, error)

// EventHandlerFunc is a server-side or client-side event subscriber.
type EventHandlerFunc func(data []byte, from string)

// Server is the router's public surface. The concrete implementation lives
// in internal/server; callers obtain one via hub.NewServer.
type Server interface {
	// Start begins listening for connections in the background and returns
	// once the listener is up; the server then runs until Stop is called.
	// Cancelling ctx stops the server only if it happens before Start returns.
	Start(ctx context.Context) error

	// Stop runs gracefulShutdown and tears down the listener.
	Stop(ctx context.Context) error

	// RegisterHandler registers a server-RPC handler for functionName.
	RegisterHandler(functionName string, fn ServerHandlerFunc)

	// Broadcast fans a server-originated event out to every authenticated
	// session (distinct from a client-originated event, which excludes its
	// originator).
	Broadcast(eventName string, data any) error

	// OnEvent subscribes a server-side listener to client-originated events.
	OnEvent(eventName string, fn EventHandlerFunc)

	// ClientCount returns the number of currently authenticated sessions.
	ClientCount() int

	// GracefulShutdown broadcasts a shutdown frame, waits the grace period,
	// then hard-closes every remaining session. Idempotent: concurrent
	// callers share one pending completion.
	GracefulShutdown(ctx context.Context, reason string) error
}

// LifecycleNotifier receives the server's lifecycle notifications:
// clientConnected, clientDisconnected, clientTimeout, error, closed. Each
// method is optional to implement meaningfully; a no-op embedding is fine.
type LifecycleNotifier interface {
	ClientConnected(name string)
	ClientDisconnected(name string)
	ClientTimeout(name string)
	Error(err error)
	Closed()
}
