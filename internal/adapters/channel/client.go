package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
)

const (
	clientEventBuffer   = 256
	maxReconnectBackoff = 5 * time.Second
)

// ErrNotConnected is returned by Send while the client is reconnecting
var ErrNotConnected = errors.New("not connected")

// Client is a WebSocket client for the session channel. After a dropped
// connection it reconnects and replays subscribe for every active
// subscription.
type Client struct {
	cancel         context.CancelFunc
	codec          Codec
	conn           *websocket.Conn
	ctx            context.Context
	dialer         *websocket.Dialer
	done           chan struct{}
	events         chan domain.Event
	mu             sync.Mutex
	reconnectDelay time.Duration
	subscriptions  map[string]bool
	url            string
	writeMu        sync.Mutex
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithReconnectDelay sets the initial reconnect backoff
func WithReconnectDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.reconnectDelay = d }
}

// Dial connects to url, asking for the codec's subprotocol. If the server
// does not agree to it the client falls back to JSON.
func Dial(ctx context.Context, url string, codec Codec, opts ...ClientOption) (*Client, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cancel: cancel,
		codec:  codec,
		ctx:    runCtx,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			Subprotocols:     []string{codec.Subprotocol()},
		},
		done:           make(chan struct{}),
		events:         make(chan domain.Event, clientEventBuffer),
		reconnectDelay: 200 * time.Millisecond,
		subscriptions:  make(map[string]bool),
		url:            url,
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	c.setConn(conn)

	go c.run(conn)
	return c, nil
}

// Events returns decoded events in arrival order. It is closed by Close.
func (c *Client) Events() <-chan domain.Event {
	return c.events
}

// Subscribe subscribes to a session and remembers it for reconnects
func (c *Client) Subscribe(sessionID string) error {
	c.mu.Lock()
	c.subscriptions[sessionID] = true
	c.mu.Unlock()
	return c.Send(domain.Command{Type: domain.CommandSubscribe, SessionID: sessionID})
}

// Unsubscribe drops a session subscription
func (c *Client) Unsubscribe(sessionID string) error {
	c.mu.Lock()
	delete(c.subscriptions, sessionID)
	c.mu.Unlock()
	return c.Send(domain.Command{Type: domain.CommandUnsubscribe, SessionID: sessionID})
}

// Send writes one command
func (c *Client) Send(cmd domain.Command) error {
	c.mu.Lock()
	conn, codec := c.conn, c.codec
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := codec.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(codec.MessageType(), data); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd.Type, err)
	}
	return nil
}

// Close stops reconnecting and closes the connection
func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
	<-c.done
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	if conn != nil {
		c.codec = CodecFor(conn.Subprotocol())
	}
}

func (c *Client) run(conn *websocket.Conn) {
	defer close(c.done)
	defer close(c.events)

	for {
		c.readLoop(conn)
		c.setConn(nil)
		_ = conn.Close()

		conn = c.reconnect()
		if conn == nil {
			return
		}
		c.setConn(conn)
		c.replaySubscriptions()
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				logging.Logger.Debug("Channel connection lost", "url", c.url, "error", err)
			}
			return
		}

		c.mu.Lock()
		codec := c.codec
		c.mu.Unlock()

		ev, err := codec.DecodeEvent(data)
		if err != nil {
			logging.Logger.Warn("Ignoring undecodable event", "error", err)
			continue
		}

		select {
		case c.events <- ev:
		case <-c.ctx.Done():
			return
		}
	}
}

// reconnect dials with exponential backoff until it succeeds or the client is closed
func (c *Client) reconnect() *websocket.Conn {
	delay := c.reconnectDelay
	for {
		select {
		case <-c.ctx.Done():
			return nil
		case <-time.After(delay):
		}

		conn, err := c.dial(c.ctx)
		if err == nil {
			logging.Logger.Info("Channel reconnected", "url", c.url)
			return conn
		}
		logging.Logger.Debug("Reconnect failed", "url", c.url, "error", err, "retry_in", delay)

		delay *= 2
		if delay > maxReconnectBackoff {
			delay = maxReconnectBackoff
		}
	}
}

func (c *Client) replaySubscriptions() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.subscriptions))
	for id := range c.subscriptions {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		if err := c.Send(domain.Command{Type: domain.CommandSubscribe, SessionID: id}); err != nil {
			logging.Logger.Warn("Failed to resubscribe", "session_id", id, "error", err)
		}
	}
}
