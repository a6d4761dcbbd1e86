package doggyhole

import "fmt"

// ErrorKind is the distinct taxonomy of errors this module raises.
// Every *Error carries exactly one Kind.
type ErrorKind string

const (
	AuthenticationError ErrorKind = "AuthenticationError"
	ConnectionError     ErrorKind = "ConnectionError"
	TimeoutError        ErrorKind = "TimeoutError"
	HandlerNotFoundErr  ErrorKind = "HandlerNotFoundError"
	ClientNotFoundErr   ErrorKind = "ClientNotFoundError"
	ProtocolErr         ErrorKind = "ProtocolError"
	NetworkErr          ErrorKind = "NetworkError"
)

// Well-known messages used verbatim on the wire.
const (
	MsgHandlerNotFound       = "Handler not found"
	MsgTargetClientNotFound  = "Target client not found"
	MsgTargetClientUnavail   = "Target client not available"
	MsgAuthenticationRequired = "Authentication required"
	MsgConnectionClosed      = "client connection is closed"
)

// Default timing configuration, carried here so both internal/server and
// internal/client can share one set of defaults.
const (
	DefaultHeartbeatInterval       = 1000 // ms
	DefaultHeartbeatTimeout        = 3000 // ms
	DefaultMaxConnections          = 1000
	DefaultGracefulShutdownTimeout = 5000 // ms
	DefaultMaxReconnectAttempts    = 5
	DefaultRequestTimeout          = 10000 // ms
	DefaultReconnectBackoffMult    = 1.5
	MaxReconnectBackoff            = 30000 // ms
)

// WebSocket close codes used by the core.
const (
	CloseNormal            = 1000 // clean client disconnect OR heartbeat timeout
	CloseGoingAway         = 1001 // server shutdown hard close
	CloseProtocolError     = 1002 // protocol error detected by server
	ClosePolicyViolation   = 1008 // authentication required / invalid credentials
	CloseTryAgainLater     = 1013 // server overloaded / shutting down
)

// Error is the typed error every public API returns. Details carries
// optional structured context (e.g. the functionName that had no handler).
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

// Unwrap lets callers use errors.Is/errors.As against a wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// newError builds an *Error, optionally wrapping cause.
func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func NewAuthenticationError(message string) *Error {
	return newError(AuthenticationError, message, nil)
}

func NewConnectionError(message string) *Error {
	return newError(ConnectionError, message, nil)
}

func NewTimeoutError(message string) *Error {
	return newError(TimeoutError, message, nil)
}

func NewHandlerNotFoundError(functionName string) *Error {
	e := newError(HandlerNotFoundErr, MsgHandlerNotFound, nil)
	e.Details = functionName
	return e
}

func NewClientNotFoundError(target string) *Error {
	e := newError(ClientNotFoundErr, MsgTargetClientNotFound, nil)
	e.Details = target
	return e
}

func NewProtocolError(message string, cause error) *Error {
	return newError(ProtocolErr, message, cause)
}

func NewNetworkError(message string, cause error) *Error {
	return newError(NetworkErr, message, cause)
}
