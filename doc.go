// Package doggyhole provides a WebSocket messaging hub: a central Server
// that authenticates and routes, many Clients, and a uniform JSON wire
// protocol multiplexing four interaction patterns over one connection per
// client — server RPC, peer RPC, events, and heartbeat liveness.
//
// # Architecture
//
// Every frame on the wire is a JSON object with a `type` discriminator
// (internal/protocol). A Client authenticates with a token, optionally a
// name; the Server assigns the canonical name from its credential store
// and registers a Session under it. From there the Router dispatches:
//
//   - request       -> invoke a server-registered handler, reply once
//   - client_request -> forward to another named client, relay its reply
//   - event         -> fan out to every other authenticated session, and
//     to server-side subscribers
//   - heartbeat / heartbeat_response -> liveness, evicting silent peers
//
// # Quick Start
//
//	import (
//	    "github.com/doggyhole/doggyhole-go/hub"
//	)
//
//	// Create a server with default heartbeat and rate-limit settings.
//	store := hub.NewMemoryCredentialStore()
//	store.Set("alice", "T")
//	server := hub.NewServer(hub.DefaultServerConfig(":8080", store))
//
//	server.RegisterHandler("add", func(ctx context.Context, from string, data []byte) (any, error) {
//	    var args struct{ A, B int }
//	    json.Unmarshal(data, &args)
//	    return args.A + args.B, nil
//	})
//
//	server.Start(ctx)
//
//	// Connect a client.
//	client := hub.NewClient(hub.DefaultClientConfig("ws://localhost:8080/ws", "T"))
//	client.Connect(ctx)
//	result, err := client.Request(ctx, "add", map[string]int{"a": 2, "b": 3})
//
// # Protocol Format
//
// Frames are tagged JSON objects (internal/protocol.Frame). Application
// payloads travel as opaque json.RawMessage end-to-end: neither hop
// unmarshals `data` into a concrete type, so any JSON-serializable value
// can be exchanged without a schema.
//
// # Reliability
//
//   - Per-session outbound writes are serialized by a single writer
//     (channel-backed send pump), so frame kinds never interleave on one
//     connection's wire.
//   - Heartbeat eviction uses a monotonic clock, never wall-clock time.
//   - Session registry displaces the prior session on a name collision,
//     so a stale reconnect never leaves two live sessions under one name.
//   - The client's reconnect controller uses exponential backoff with a
//     cap, and treats close codes 1000/1001 as intentional (no retry).
//
// # Non-goals
//
//   - Message persistence across disconnects.
//   - Guaranteed delivery of events to disconnected subscribers.
//   - Cross-client message ordering.
//   - Horizontal scaling across multiple server instances.
package doggyhole
