package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/chatbird/chatbird-bridge/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024

	sendBufferSize = 256
)

var (
	ErrNotConnected = errors.New("socket: not connected")
	ErrClosed       = errors.New("socket: client closed")
	ErrSendBackoff  = errors.New("socket: send buffer full")
)

// Handler receives the raw data of a named inbound event. Handlers for
// a single connection run serially in delivery order; they must not
// block.
type Handler func(data json.RawMessage)

type Config struct {
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// Client maintains exactly one live event connection to the ChatBird
// socket server. Lost connections are redialed a bounded number of
// times with a fixed delay; after that the client stays disconnected
// until Connect is called again.
type Client struct {
	cfg Config
	log zerolog.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	state        domain.ConnectionState
	send         chan Envelope
	closed       bool
	reconnecting bool

	handlersMu      sync.RWMutex
	handlers        map[string][]Handler
	connectHooks    []func()
	disconnectHooks []func(reason string)
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		cfg:      cfg,
		log:      log,
		state:    domain.StateDisconnected,
		handlers: make(map[string][]Handler),
	}
}

// On registers a handler for a named inbound event. All registrations
// must happen before Connect.
func (c *Client) On(event string, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// OnConnect registers a hook fired after every successful dial,
// including redials. Identity registration and join replay hang off
// this.
func (c *Client) OnConnect(fn func()) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.connectHooks = append(c.connectHooks, fn)
}

// OnDisconnect registers a hook fired whenever the connection drops or
// is closed.
func (c *Client) OnDisconnect(fn func(reason string)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.disconnectHooks = append(c.disconnectHooks, fn)
}

func (c *Client) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the server and starts the read/write pumps. It returns
// once the connection is established or the first dial fails.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.state = domain.StateConnecting
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.mu.Lock()
		c.state = domain.StateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("failed to dial %s: %w", c.cfg.URL, err)
	}

	c.attach(conn)
	return nil
}

// Close tears the connection down for good and suppresses any further
// reconnect attempts. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
	c.state = domain.StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Emit sends a named event to the server. It fails fast when the
// connection is down; callers decide how to surface that.
func (c *Client) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event, err)
	}

	c.mu.Lock()
	send := c.send
	state := c.state
	c.mu.Unlock()

	if state != domain.StateConnected || send == nil {
		return ErrNotConnected
	}

	select {
	case send <- Envelope{Event: event, Data: data}:
		return nil
	default:
		return ErrSendBackoff
	}
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.send = make(chan Envelope, sendBufferSize)
	c.state = domain.StateConnected
	send := c.send
	c.mu.Unlock()

	go c.writePump(conn, send)
	go c.readPump(conn)

	c.log.Info().Str("url", c.cfg.URL).Msg("connected")

	c.handlersMu.RLock()
	hooks := c.connectHooks
	c.handlersMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Client) readPump(conn *websocket.Conn) {
	defer c.handleDrop(conn)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("read failed")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		c.dispatch(env)
	}
}

// dispatch runs handlers serially on the read goroutine so inbound
// events are observed in transport delivery order.
func (c *Client) dispatch(env Envelope) {
	c.handlersMu.RLock()
	handlers := c.handlers[env.Event]
	c.handlersMu.RUnlock()

	if len(handlers) == 0 {
		c.log.Debug().Str("event", env.Event).Msg("no handler for event")
		return
	}
	for _, h := range handlers {
		h(env.Data)
	}
}

func (c *Client) writePump(conn *websocket.Conn, send <-chan Envelope) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				c.log.Warn().Err(err).Str("event", env.Event).Msg("write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleDrop is called when the read pump exits. Unless the drop came
// from an explicit Close, it fires disconnect hooks and kicks off the
// bounded redial loop.
func (c *Client) handleDrop(conn *websocket.Conn) {
	conn.Close()

	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
	c.state = domain.StateDisconnected
	alreadyReconnecting := c.reconnecting
	c.reconnecting = true
	c.mu.Unlock()

	c.fireDisconnect("connection lost")

	if !alreadyReconnecting {
		go c.reconnectLoop()
	}
}

func (c *Client) fireDisconnect(reason string) {
	c.handlersMu.RLock()
	hooks := c.disconnectHooks
	c.handlersMu.RUnlock()
	for _, fn := range hooks {
		fn(reason)
	}
}

func (c *Client) reconnectLoop() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		time.Sleep(c.cfg.ReconnectDelay)

		c.mu.Lock()
		if c.closed || c.conn != nil {
			c.mu.Unlock()
			return
		}
		c.state = domain.StateConnecting
		c.mu.Unlock()

		conn, _, err := websocket.DefaultDialer.Dial(c.cfg.URL, nil)
		if err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Int("max", c.cfg.ReconnectAttempts).Msg("reconnect failed")
			c.mu.Lock()
			c.state = domain.StateDisconnected
			c.mu.Unlock()
			continue
		}

		c.attach(conn)
		return
	}

	c.log.Error().Int("attempts", c.cfg.ReconnectAttempts).Msg("giving up on reconnect")
}
