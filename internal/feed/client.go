// Package feed streams finished aggregation responses to a websocket
// subscriber as protobuf Struct envelopes.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ConnectionState of the feed socket
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReady // server acknowledged the session
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

// ErrNotConnected is returned by Send while the socket is down
var ErrNotConnected = errors.New("feed not connected")

// MessageHandler handles one inbound envelope
type MessageHandler func(msg *structpb.Struct) error

// Client is a reconnecting websocket that speaks binary structpb envelopes
type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Send(msg *structpb.Struct) error
	SetMessageHandler(handler MessageHandler)
	SetReconnectedHandler(handler func())
	IsConnected() bool
	State() ConnectionState
	SetState(state ConnectionState)
	TriggerReconnect()
}

// Config of the feed connection
type Config struct {
	URL                  string
	Token                string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int // 0 = unlimited
	HeartbeatInterval    time.Duration
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
}

// DefaultConfig returns the connection defaults
func DefaultConfig() Config {
	return Config{
		ReconnectInterval: 5 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = d.ReconnectInterval
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
}

// errClosed aborts a dial that lost the race against Close
var errClosed = errors.New("feed closed")

type wsClient struct {
	cfg    Config
	state  atomic.Int32
	logger *slog.Logger

	// mu guards the session fields below; goroutines are only added to wg
	// while holding it with a live ctx, so Close can Wait safely
	mu            sync.RWMutex
	conn          *websocket.Conn
	onMessage     MessageHandler
	onReconnected func()
	ctx           context.Context
	cancel        context.CancelFunc
	hbCancel      context.CancelFunc
	writeMu       sync.Mutex

	wg          sync.WaitGroup
	reconnectCh chan struct{}
	backoff     *Backoff
}

// NewClient creates a disconnected feed client
func NewClient(cfg Config, logger *slog.Logger) Client {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	c := &wsClient{
		cfg:         cfg,
		logger:      logger.With("component", "FeedClient"),
		reconnectCh: make(chan struct{}, 1),
		backoff:     NewBackoff(cfg.ReconnectInterval, cfg.MaxReconnectAttempts),
	}
	c.state.Store(int32(StateDisconnected))
	return c
}

func (c *wsClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	// a failed Connect keeps its session for TriggerReconnect until Close
	if c.State() != StateDisconnected || c.cancel != nil {
		c.mu.Unlock()
		return errors.New("feed already connected or connecting")
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	session := c.ctx
	c.mu.Unlock()

	return c.dial(session, false)
}

// session returns the context of the current connection, nil before Connect
func (c *wsClient) session() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ctx
}

func (c *wsClient) dial(ctx context.Context, reconnected bool) error {
	if err := ctx.Err(); err != nil {
		return errClosed
	}
	c.SetState(StateConnecting)

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		c.SetState(StateDisconnected)
		attrs := []any{"url", c.cfg.URL, "error", err}
		if resp != nil {
			attrs = append(attrs, "status", resp.StatusCode)
		}
		c.logger.Error("Feed dial failed", attrs...)
		return fmt.Errorf("feed dial: %w", err)
	}

	c.stopHeartbeat()
	hb := newHeartbeat(c, c.cfg.HeartbeatInterval, c.cfg.ReadTimeout, c.logger)
	hbCtx, hbCancel := context.WithCancel(ctx)

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		hbCancel()
		_ = conn.Close()
		c.SetState(StateDisconnected)
		return errClosed
	}
	c.conn = conn
	c.hbCancel = hbCancel
	c.wg.Add(2)
	fn := c.onReconnected
	c.mu.Unlock()

	c.SetState(StateConnected)
	c.logger.Info("Feed connected", "url", c.cfg.URL)
	c.backoff.Reset()

	// the new socket may fail at once and must be able to trigger again
	if reconnected {
		c.releaseReconnect()
	}
	go c.readLoop(ctx, conn, hb)
	go hb.run(hbCtx, &c.wg)

	if reconnected && fn != nil {
		go fn()
	}
	return nil
}

func (c *wsClient) Close() error {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return nil
	}
	// cancelling under mu stops any dial from adding to wg
	c.cancel()
	c.cancel = nil
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.stopHeartbeat()
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
	c.wg.Wait()

	c.SetState(StateDisconnected)
	c.logger.Info("Feed closed")
	return nil
}

func (c *wsClient) Send(msg *structpb.Struct) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		c.TriggerReconnect()
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		c.TriggerReconnect()
		return fmt.Errorf("write envelope: %w", err)
	}
	c.logger.Debug("Envelope sent", "type", TypeOf(msg))
	return nil
}

func (c *wsClient) SetMessageHandler(handler MessageHandler) {
	c.mu.Lock()
	c.onMessage = handler
	c.mu.Unlock()
}

func (c *wsClient) SetReconnectedHandler(handler func()) {
	c.mu.Lock()
	c.onReconnected = handler
	c.mu.Unlock()
}

func (c *wsClient) IsConnected() bool {
	s := c.State()
	return s == StateConnected || s == StateReady
}

func (c *wsClient) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *wsClient) SetState(state ConnectionState) {
	if prev := ConnectionState(c.state.Swap(int32(state))); prev != state {
		c.logger.Info("Feed state changed", "from", prev.String(), "to", state.String())
	}
}

func (c *wsClient) readLoop(ctx context.Context, conn *websocket.Conn, hb *heartbeat) {
	defer c.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			c.logger.Error("Failed to set read deadline", "error", err)
			c.TriggerReconnect()
			return
		}
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("Feed closed by server")
			} else {
				c.logger.Error("Feed read error", "error", err)
			}
			c.TriggerReconnect()
			return
		}
		if kind != websocket.BinaryMessage {
			c.logger.Warn("Ignoring non-binary frame", "kind", kind)
			continue
		}

		msg := &structpb.Struct{}
		if err := proto.Unmarshal(data, msg); err != nil {
			c.logger.Error("Failed to decode envelope", "error", err)
			continue
		}
		hb.touch()

		c.mu.RLock()
		handle := c.onMessage
		c.mu.RUnlock()
		if handle != nil {
			if err := handle(msg); err != nil {
				c.logger.Error("Envelope handler failed", "type", TypeOf(msg), "error", err)
			}
		}
	}
}

func (c *wsClient) TriggerReconnect() {
	select {
	case c.reconnectCh <- struct{}{}:
		go c.reconnect()
	default:
	}
}

func (c *wsClient) releaseReconnect() {
	select {
	case <-c.reconnectCh:
	default:
	}
}

func (c *wsClient) reconnect() {
	dialed := false
	defer func() {
		if !dialed {
			c.releaseReconnect()
		}
	}()

	ctx := c.session()
	if ctx == nil {
		return
	}

	c.stopHeartbeat()
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	c.SetState(StateDisconnected)

	for {
		if ctx.Err() != nil {
			return
		}
		if c.backoff.Exhausted() {
			c.logger.Error("Feed reconnect attempts exhausted")
			return
		}

		wait := c.backoff.Next()
		c.logger.Info("Feed reconnecting", "in", wait, "attempt", c.backoff.Attempts())
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}

		if err := c.dial(ctx, true); err != nil {
			if errors.Is(err, errClosed) {
				return
			}
			continue
		}
		dialed = true
		return
	}
}

func (c *wsClient) stopHeartbeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hbCancel != nil {
		c.hbCancel()
		c.hbCancel = nil
	}
}
