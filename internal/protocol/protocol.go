// Package protocol implements the wire codec: tagged JSON frames exchanged
// between the hub server and its clients.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Type is the `type` discriminator carried by every frame.
type Type string

const (
	Auth              Type = "auth"
	AuthSuccess       Type = "auth_success"
	Request           Type = "request"
	ClientRequest     Type = "client_request"
	Response          Type = "response"
	Event             Type = "event"
	Heartbeat         Type = "heartbeat"
	HeartbeatResponse Type = "heartbeat_response"
	Shutdown          Type = "shutdown"
)

const maxFrameSize = 1 * 1024 * 1024 // 1 MiB, per wire protocol convention

// Frame is the single wire envelope for all nine frame types. Unused fields
// are omitted on encode; Data stays opaque end-to-end (json.RawMessage) so
// neither hop needs to know the application's payload shape.
type Frame struct {
	Type Type `json:"type"`

	// auth
	Token string `json:"token,omitempty"`
	Name  string `json:"name,omitempty"`

	// request / client_request
	ID           string          `json:"id,omitempty"`
	FunctionName string          `json:"functionName,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	TargetClient string          `json:"targetClient,omitempty"`
	FromClient   string          `json:"fromClient,omitempty"`

	// response
	Success            *bool  `json:"success,omitempty"`
	Error              string `json:"error,omitempty"`
	OriginalFromClient string `json:"originalFromClient,omitempty"`

	// event
	EventName string `json:"eventName,omitempty"`

	// shutdown
	Reason      string `json:"reason,omitempty"`
	GracePeriod int64  `json:"gracePeriod,omitempty"`
}

// Error reports a malformed or unrecognized frame.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func protoErr(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// Encode marshals a Frame to its JSON wire form.
func Encode(f Frame) ([]byte, error) {
	out, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if len(out) > maxFrameSize {
		return nil, protoErr("encoded frame size %d exceeds maximum %d bytes", len(out), maxFrameSize)
	}
	return out, nil
}

// Decode unmarshals raw JSON into a Frame and validates that the required
// fields for its type are present.
func Decode(data []byte) (Frame, error) {
	if len(data) > maxFrameSize {
		return Frame{}, protoErr("frame size %d exceeds maximum %d bytes", len(data), maxFrameSize)
	}

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, protoErr("malformed frame: %v", err)
	}
	if err := validate(f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// validate checks the required fields for each frame type.
func validate(f Frame) error {
	switch f.Type {
	case Auth:
		if f.Token == "" {
			return protoErr("auth: missing token")
		}
	case AuthSuccess:
		if f.Name == "" {
			return protoErr("auth_success: missing name")
		}
	case Request:
		if f.ID == "" || f.FunctionName == "" || f.Data == nil {
			return protoErr("request: missing id, functionName or data")
		}
	case ClientRequest:
		if f.ID == "" || f.FunctionName == "" || f.Data == nil || f.TargetClient == "" {
			return protoErr("client_request: missing id, functionName, data or targetClient")
		}
	case Response:
		if f.ID == "" || f.Success == nil {
			return protoErr("response: missing id or success")
		}
	case Event:
		if f.EventName == "" || f.Data == nil {
			return protoErr("event: missing eventName or data")
		}
	case Heartbeat, HeartbeatResponse, Shutdown:
		// no required fields beyond the discriminator
	default:
		return protoErr("unknown frame type: %q", f.Type)
	}
	return nil
}

// Bool is a small helper for constructing the *bool Success field.
func Bool(b bool) *bool { return &b }
