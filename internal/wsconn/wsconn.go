// Package wsconn provides a WebSocket client with automatic reconnection.
package wsconn

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/retry"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string
	DialTimeout    time.Duration
	PingInterval   time.Duration // 0 disables pings
	PongTimeout    time.Duration
	MaxMessageSize int64
	Reconnect      bool
	MaxReconnects  int // 0 = unlimited
	Backoff        retry.Backoff
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		DialTimeout:    10 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
		MaxMessageSize: 1 << 20,
		Reconnect:      true,
		Backoff: retry.Backoff{
			Base:       time.Second,
			Max:        30 * time.Second,
			Multiplier: 2,
			Jitter:     true,
		},
	}
}

// MessageHandler receives every inbound message.
type MessageHandler func(ctx context.Context, msg []byte)

// Client is a WebSocket client that redials after read failures.
type Client struct {
	cfg Config
	log logger.LoggerInterface

	mu        sync.RWMutex
	conn      *websocket.Conn
	state     State
	onMessage MessageHandler
	onConnect func(ctx context.Context) error

	writeMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(log logger.LoggerInterface) Option {
	return func(c *Client) { c.log = log }
}

// New creates a client. It does not dial.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("wsconn: empty url"))
	}
	if cfg.Name == "" {
		cfg.Name = "ws"
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:    cfg,
		state:  StateDisconnected,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OnMessage registers the inbound message handler. Set it before Connect.
func (c *Client) OnMessage(h MessageHandler) {
	c.mu.Lock()
	c.onMessage = h
	c.mu.Unlock()
}

// OnConnect registers a hook run after every successful dial, e.g. to resubscribe.
func (c *Client) OnConnect(fn func(ctx context.Context) error) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// Connect dials once and starts the read loop. Later failures are handled by
// reconnection when enabled.
func (c *Client) Connect(ctx context.Context) error {
	if c.State() == StateClosed {
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.cfg.Name))
	}

	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.wg.Add(1)
	go c.run()
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	c.setState(StateConnecting)

	dialCtx := ctx
	if c.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext(c.cfg.Name))
	}
	if c.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(c.cfg.MaxMessageSize)
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.cfg.Name))
	}
	c.conn = conn
	c.state = StateConnected
	hook := c.onConnect
	c.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			conn.Close(websocket.StatusInternalError, "on connect failed")
			return err
		}
	}

	c.logInfo("websocket connected", "url", c.cfg.URL)
	return nil
}

func (c *Client) run() {
	defer c.wg.Done()

	for {
		err := c.readLoop()
		if c.ctx.Err() != nil {
			return
		}

		c.setState(StateDisconnected)
		c.logWarn("websocket read failed", "error", err)

		if !c.cfg.Reconnect || !c.reconnect() {
			return
		}
	}
}

func (c *Client) readLoop() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	readCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()

	if c.cfg.PingInterval > 0 {
		go c.pingLoop(readCtx, conn)
	}

	for {
		_, data, err := conn.Read(readCtx)
		if err != nil {
			conn.Close(websocket.StatusGoingAway, "read failed")
			return err
		}

		c.mu.RLock()
		h := c.onMessage
		c.mu.RUnlock()
		if h != nil {
			h(readCtx, data)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.cfg.PongTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				conn.Close(websocket.StatusGoingAway, "pong timeout")
				return
			}
		}
	}
}

// reconnect redials with backoff. It returns false when the client was
// closed or the attempt budget ran out.
func (c *Client) reconnect() bool {
	for attempt := 0; c.cfg.MaxReconnects == 0 || attempt < c.cfg.MaxReconnects; attempt++ {
		c.setState(StateReconnecting)

		delay := c.cfg.Backoff.Jittered(attempt, rand.Float64())
		select {
		case <-c.ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := c.dial(c.ctx); err != nil {
			if c.ctx.Err() != nil {
				return false
			}
			c.logWarn("websocket reconnect failed", "attempt", attempt+1, "error", err)
			continue
		}
		return true
	}

	c.setState(StateDisconnected)
	return false
}

// Send writes a text message.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.mu.RLock()
	conn, state := c.conn, c.state
	c.mu.RUnlock()

	if conn == nil || state != StateConnected {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithContext(c.cfg.Name+": not connected"))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.cfg.Name))
	}
	return nil
}

// SendJSON encodes v and sends it.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperror.New(apperror.CodeInvalidFormat, apperror.WithCause(err))
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close stops reconnection and closes the connection. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.state = StateClosed
		c.mu.Unlock()

		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}
		c.cancel()
		c.wg.Wait()
	})
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state != StateClosed {
		c.state = s
	}
	c.mu.Unlock()
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.log != nil {
		c.log.Info(c.ctx, msg, append([]any{"name", c.cfg.Name}, args...)...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.log != nil {
		c.log.Warn(c.ctx, msg, append([]any{"name", c.cfg.Name}, args...)...)
	}
}
