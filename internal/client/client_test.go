package client_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/doggyhole/doggyhole-go/internal/client"
	"github.com/doggyhole/doggyhole-go/internal/credentials"
	"github.com/doggyhole/doggyhole-go/internal/server"
)

func newTestServer(t *testing.T, addr string) *server.Server {
	t.Helper()

	store := credentials.NewMemoryStore()
	store.Set("alice", "tok-alice")
	store.Set("bob", "tok-bob")

	cfg := server.DefaultConfig(addr, store)
	cfg.LogLevel = "error"
	cfg.HeartbeatInterval = 200 * time.Millisecond
	cfg.HeartbeatTimeout = time.Second

	srv := server.New(cfg)

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(stopCtx)
	})
	return srv
}

func dialClient(t *testing.T, url, token string) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig(url, token)
	cfg.LogLevel = "error"
	cfg.HeartbeatInterval = 200 * time.Millisecond
	c := client.New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		c.Disconnect(ctx)
	})
	return c
}

func TestServerRequest(t *testing.T) {
	t.Parallel()

	const addr = "127.0.0.1:19201"
	srv := newTestServer(t, addr)
	srv.RegisterHandler("add", func(ctx context.Context, from string, data []byte) (any, error) {
		var req struct{ A, B int }
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, err
		}
		return map[string]int{"sum": req.A + req.B}, nil
	})

	alice := dialClient(t, "ws://"+addr+"/ws", "tok-alice")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	result, err := alice.Request(ctx, "add", map[string]int{"A": 2, "B": 3})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	var got struct{ Sum int }
	if err := json.Unmarshal(result, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Sum != 5 {
		t.Errorf("sum = %d, want 5", got.Sum)
	}
}

func TestServerRequestMissingHandler(t *testing.T) {
	t.Parallel()

	const addr = "127.0.0.1:19202"
	newTestServer(t, addr)
	alice := dialClient(t, "ws://"+addr+"/ws", "tok-alice")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := alice.Request(ctx, "nope", nil); err == nil {
		t.Fatal("Request() error = nil, want Handler not found")
	}
}

func TestPeerRequestClient(t *testing.T) {
	t.Parallel()

	const addr = "127.0.0.1:19203"
	newTestServer(t, addr)

	alice := dialClient(t, "ws://"+addr+"/ws", "tok-alice")
	bob := dialClient(t, "ws://"+addr+"/ws", "tok-bob")

	bob.AddHandler("ping", func(data []byte) (any, error) {
		var req struct{ X int }
		json.Unmarshal(data, &req)
		return map[string]any{"pong": true, "echo": req.X}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	result, err := alice.RequestClient(ctx, "bob", "ping", map[string]int{"X": 1})
	if err != nil {
		t.Fatalf("RequestClient() error = %v", err)
	}

	var got struct {
		Pong bool
		Echo int
	}
	if err := json.Unmarshal(result, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !got.Pong || got.Echo != 1 {
		t.Errorf("got = %+v, want pong=true echo=1", got)
	}
}

func TestPeerRequestClientMissingTarget(t *testing.T) {
	t.Parallel()

	const addr = "127.0.0.1:19204"
	newTestServer(t, addr)
	alice := dialClient(t, "ws://"+addr+"/ws", "tok-alice")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := alice.RequestClient(ctx, "nobody", "ping", nil); err == nil {
		t.Fatal("RequestClient() error = nil, want Target client not found")
	}
}

func TestEventFanOutExcludesOriginator(t *testing.T) {
	t.Parallel()

	const addr = "127.0.0.1:19205"
	newTestServer(t, addr)

	alice := dialClient(t, "ws://"+addr+"/ws", "tok-alice")
	bob := dialClient(t, "ws://"+addr+"/ws", "tok-bob")

	received := make(chan string, 1)
	bob.OnEvent("hi", func(data []byte, from string) {
		received <- from
	})
	aliceGotOwnEvent := make(chan struct{}, 1)
	alice.OnEvent("hi", func(data []byte, from string) {
		aliceGotOwnEvent <- struct{}{}
	})

	time.Sleep(100 * time.Millisecond) // let both sessions finish authenticating
	if err := alice.SendEvent("hi", map[string]int{"n": 1}); err != nil {
		t.Fatalf("SendEvent() error = %v", err)
	}

	select {
	case from := <-received:
		if from != "alice" {
			t.Errorf("from = %q, want alice", from)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bob never received the event")
	}

	select {
	case <-aliceGotOwnEvent:
		t.Fatal("alice received her own event, want excluded")
	case <-time.After(300 * time.Millisecond):
	}
}
