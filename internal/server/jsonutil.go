package server

import "encoding/json"

// marshalData converts an arbitrary handler result (or nil) into the
// opaque json.RawMessage a response/event frame carries. Marshal failures
// collapse to a JSON null rather than propagating.
func marshalData(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	if raw, ok := v.([]byte); ok {
		return raw
	}
	out, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return out
}
