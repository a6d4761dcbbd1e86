package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/doggyhole/doggyhole-go"
	"github.com/doggyhole/doggyhole-go/internal/bus"
	"github.com/doggyhole/doggyhole-go/internal/logging"
	"github.com/doggyhole/doggyhole-go/internal/protocol"
)

// Client implements doggyhole.Client: dial, authenticate, run the
// read/write pumps, and expose Request/RequestClient/SendEvent/handler
// registration, with automatic reconnect on unexpected close.
//
// The transport write path is a buffered send channel drained by one
// writePump goroutine, so every outbound frame on a connection is
// serialized through a single writer.
type Client struct {
	cfg *Config
	log *logging.Logger

	stateMu sync.Mutex
	state   atomic.Int32
	name    atomic.Value // string

	connMu sync.RWMutex
	conn   *websocket.Conn
	sendCh chan []byte
	connID uint64 // bumped each reconnect so a stale writePump/readLoop exits cleanly

	pending      *pendingTable
	localHandler *handlerTable
	eventBus     *bus.Bus
	reconnect    *reconnectPolicy

	shuttingDown atomic.Bool
	runCtx       context.Context
	runCancel    context.CancelFunc
}

// New builds a Client from cfg. Call Connect to dial.
func New(cfg *Config) *Client {
	c := &Client{
		cfg:          cfg,
		log:          logging.New(logging.ParseLevel(cfg.LogLevel), "client"),
		pending:      newPendingTable(),
		localHandler: newHandlerTable(),
		eventBus:     bus.New(),
		reconnect:    newReconnectPolicy(cfg.MaxReconnectAttempts, cfg.ReconnectBackoffMultiplier),
	}
	c.name.Store(cfg.Name)
	c.state.Store(int32(doggyhole.Disconnected))
	return c
}

// OnEvent subscribes a local listener to a server- or peer-originated
// event, mirroring the Java client's addEventListener.
func (c *Client) OnEvent(eventName string, fn doggyhole.EventHandlerFunc) {
	c.eventBus.On(eventName, func(data json.RawMessage, from string) { fn(data, from) })
}

// State implements doggyhole.Client.
func (c *Client) State() doggyhole.ConnectionState {
	return doggyhole.ConnectionState(c.state.Load())
}

// Name implements doggyhole.Client.
func (c *Client) Name() string {
	n, _ := c.name.Load().(string)
	return n
}

func (c *Client) setState(s doggyhole.ConnectionState) {
	old := doggyhole.ConnectionState(c.state.Swap(int32(s)))
	if old != s {
		c.log.Debug("state: %s -> %s", old, s)
	}
}

// AddHandler implements doggyhole.Client.
func (c *Client) AddHandler(functionName string, fn doggyhole.LocalHandlerFunc) {
	c.localHandler.set(functionName, fn)
}

// RemoveHandler implements doggyhole.Client.
func (c *Client) RemoveHandler(functionName string) {
	c.localHandler.remove(functionName)
}

// Connect implements doggyhole.Client: dial, authenticate, then start the
// read pump and heartbeat sender. Serialized against concurrent callers by
// stateMu, matching the Java client's CONNECTING guard.
func (c *Client) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	switch c.State() {
	case doggyhole.Connected:
		c.log.Warn("already connected")
		return nil
	case doggyhole.Connecting:
		c.log.Warn("connection already in progress")
		return nil
	}

	c.setState(doggyhole.Connecting)
	if err := c.dialAndAuth(ctx); err != nil {
		c.setState(doggyhole.Disconnected)
		return err
	}

	c.runCtx, c.runCancel = context.WithCancel(context.Background())
	c.reconnect.reset()
	c.setState(doggyhole.Connected)

	connID := c.currentConnID()
	go c.readLoop(c.runCtx, connID)
	go c.heartbeatLoop(c.runCtx, connID)

	return nil
}

func (c *Client) currentConnID() uint64 {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connID
}

func (c *Client) dialAndAuth(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return doggyhole.NewConnectionError("dial failed: " + err.Error())
	}

	authFrame := protocol.Frame{Type: protocol.Auth, Token: c.cfg.Token}
	if c.cfg.Name != "" && c.cfg.Name != c.cfg.Token {
		authFrame.Name = c.cfg.Name
	}
	data, err := protocol.Encode(authFrame)
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		return doggyhole.NewConnectionError("auth send failed: " + err.Error())
	}

	_, reply, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return doggyhole.NewConnectionError("auth response failed: " + err.Error())
	}
	frame, err := protocol.Decode(reply)
	if err != nil || frame.Type != protocol.AuthSuccess {
		conn.Close()
		return doggyhole.NewAuthenticationError("authentication rejected")
	}
	c.name.Store(frame.Name)

	c.connMu.Lock()
	c.conn = conn
	c.sendCh = make(chan []byte, 256)
	c.connID++
	connID := c.connID
	c.connMu.Unlock()

	go c.writePump(conn, c.sendCh, connID)
	return nil
}

// writePump is the connection's single writer: one goroutine per
// connection drains sendCh and owns every WriteMessage call.
func (c *Client) writePump(conn *websocket.Conn, sendCh chan []byte, connID uint64) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sendCh:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
		if !c.isCurrentConn(connID) {
			return
		}
	}
}

func (c *Client) isCurrentConn(connID uint64) bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connID == connID
}

func (c *Client) send(f protocol.Frame) error {
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}
	c.connMu.RLock()
	sendCh := c.sendCh
	c.connMu.RUnlock()
	if sendCh == nil {
		return doggyhole.NewConnectionError("not connected")
	}
	select {
	case sendCh <- data:
		return nil
	default:
		return doggyhole.NewConnectionError("send buffer full")
	}
}

// heartbeatLoop proactively sends heartbeat_response on an interval
// timer, independent of the server's own probe.
func (c *Client) heartbeatLoop(ctx context.Context, connID uint64) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !c.isCurrentConn(connID) {
				return
			}
			c.send(protocol.Frame{Type: protocol.HeartbeatResponse})
		case <-ctx.Done():
			return
		}
	}
}

// readLoop is the inbound dispatch loop: response/client_request/event/
// heartbeat/shutdown.
func (c *Client) readLoop(ctx context.Context, connID uint64) {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.onDisconnect(connID, closeCodeOf(err), err)
			return
		}
		frame, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn("discarding malformed frame: %v", err)
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(f protocol.Frame) {
	switch f.Type {
	case protocol.Response:
		if f.Success != nil && *f.Success {
			c.pending.resolve(f.ID, f.Data, nil)
		} else {
			c.pending.resolve(f.ID, nil, fmt.Errorf("%s", f.Error))
		}
	case protocol.ClientRequest:
		c.handleInboundClientRequest(f)
	case protocol.Event:
		c.eventBus.Emit(f.EventName, f.Data, f.FromClient)
	case protocol.Heartbeat:
		c.send(protocol.Frame{Type: protocol.HeartbeatResponse})
	case protocol.Shutdown:
		c.handleShutdown(f)
	default:
		c.log.Warn("unknown frame type: %s", f.Type)
	}
}

// handleInboundClientRequest answers a peer RPC call using the local
// handler table, replying with originalFromClient so the server can route
// the response back to the caller.
func (c *Client) handleInboundClientRequest(f protocol.Frame) {
	fn, ok := c.localHandler.get(f.FunctionName)
	if !ok {
		c.send(protocol.Frame{
			Type:                protocol.Response,
			ID:                  f.ID,
			Success:             protocol.Bool(false),
			Error:               doggyhole.MsgHandlerNotFound,
			OriginalFromClient:  f.FromClient,
		})
		return
	}

	go func() {
		result, err := fn(f.Data)
		resp := protocol.Frame{Type: protocol.Response, ID: f.ID, OriginalFromClient: f.FromClient}
		if err != nil {
			resp.Success = protocol.Bool(false)
			resp.Error = err.Error()
		} else {
			resp.Success = protocol.Bool(true)
			resp.Data = marshalData(result)
		}
		c.send(resp)
	}()
}

func (c *Client) handleShutdown(f protocol.Frame) {
	grace := time.Duration(f.GracePeriod) * time.Millisecond
	if grace > 5*time.Second {
		grace = 5 * time.Second
	}
	c.log.Warn("server shutdown: %s (grace %s)", f.Reason, grace)
	time.AfterFunc(grace, func() {
		if c.State() == doggyhole.Connected {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c.Disconnect(ctx)
		}
	})
}

// closeCodeOf extracts the WebSocket close code a read error carries, or 0
// if err isn't a *websocket.CloseError (e.g. a network failure with no
// close frame at all).
func closeCodeOf(err error) int {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code
	}
	return 0
}

// isIntentionalClose reports whether closeCode marks a clean, expected
// teardown rather than a failure: 1000 (normal closure, also reused by the
// server's heartbeat-timeout eviction) and 1001 (going away, the server's
// shutdown close) both suppress reconnection regardless of local state.
func isIntentionalClose(closeCode int) bool {
	return closeCode == websocket.CloseNormalClosure || closeCode == websocket.CloseGoingAway
}

// onDisconnect runs cleanup and, unless shutting down, the connection is
// stale, or closeCode marks an intentional close, schedules a reconnect
// attempt per the Java reference client's onClose handler.
func (c *Client) onDisconnect(connID uint64, closeCode int, cause error) {
	if !c.isCurrentConn(connID) {
		return
	}
	c.cleanupPending()
	if c.shuttingDown.Load() || isIntentionalClose(closeCode) {
		c.setState(doggyhole.Disconnected)
		return
	}

	c.setState(doggyhole.Reconnecting)
	delay, ok := c.reconnect.next()
	if !ok {
		c.log.Error("reconnect attempts exhausted: %v", cause)
		c.setState(doggyhole.Disconnected)
		return
	}
	c.log.Info("reconnecting in %s", delay)
	time.AfterFunc(delay, func() {
		if c.shuttingDown.Load() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.reconnectOnce(ctx); err != nil {
			c.log.Error("reconnect attempt failed: %v", err)
			c.onDisconnect(connID, 0, err)
		}
	})
}

func (c *Client) reconnectOnce(ctx context.Context) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if err := c.dialAndAuth(ctx); err != nil {
		return err
	}
	c.runCtx, c.runCancel = context.WithCancel(context.Background())
	c.reconnect.reset()
	c.setState(doggyhole.Connected)

	connID := c.currentConnID()
	go c.readLoop(c.runCtx, connID)
	go c.heartbeatLoop(c.runCtx, connID)
	return nil
}

func (c *Client) cleanupPending() {
	c.pending.rejectAll(doggyhole.NewConnectionError("connection closed"))
}

// Disconnect implements doggyhole.Client.
func (c *Client) Disconnect(ctx context.Context) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	c.shuttingDown.Store(true)
	c.setState(doggyhole.Disconnecting)
	c.cleanupPending()

	if c.runCancel != nil {
		c.runCancel()
	}

	c.connMu.Lock()
	conn := c.conn
	sendCh := c.sendCh
	c.conn = nil
	c.sendCh = nil
	c.connMu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnecting")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
	}
	if sendCh != nil {
		close(sendCh)
	}

	c.setState(doggyhole.Disconnected)
	return nil
}

// Request implements doggyhole.Client.
func (c *Client) Request(ctx context.Context, functionName string, data any) (doggyhole.Result, error) {
	return c.doRequest(ctx, protocol.Frame{
		Type:         protocol.Request,
		FunctionName: functionName,
		Data:         marshalData(data),
	}, functionName)
}

// RequestClient implements doggyhole.Client.
func (c *Client) RequestClient(ctx context.Context, target, functionName string, data any) (doggyhole.Result, error) {
	return c.doRequest(ctx, protocol.Frame{
		Type:         protocol.ClientRequest,
		TargetClient: target,
		FunctionName: functionName,
		Data:         marshalData(data),
		FromClient:   c.Name(),
	}, target+"."+functionName)
}

func (c *Client) doRequest(ctx context.Context, frame protocol.Frame, label string) (doggyhole.Result, error) {
	if c.State() != doggyhole.Connected {
		return nil, doggyhole.NewConnectionError("client not connected")
	}

	id := c.pending.nextRequestID()
	frame.ID = id
	p := c.pending.register(id, c.cfg.RequestTimeout, label)

	if err := c.send(frame); err != nil {
		c.pending.resolve(id, nil, err)
	}

	select {
	case res := <-p.resultCh:
		return res.data, res.err
	case <-ctx.Done():
		c.pending.resolve(id, nil, ctx.Err())
		return nil, ctx.Err()
	}
}

// SendEvent implements doggyhole.Client.
func (c *Client) SendEvent(eventName string, data any) error {
	if c.State() != doggyhole.Connected {
		return doggyhole.NewConnectionError("cannot send event: not connected")
	}
	return c.send(protocol.Frame{
		Type:      protocol.Event,
		EventName: eventName,
		Data:      marshalData(data),
	})
}

func marshalData(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	if b, ok := v.([]byte); ok {
		return json.RawMessage(b)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
