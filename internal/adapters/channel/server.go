package channel

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
	"github.com/renato0307/sessiond/internal/ports"
)

const (
	connOutboxSize = 256
	maxFrameSize   = 16 << 20
	pingPeriod     = (pongWait * 9) / 10
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
)

// Server exposes a SessionChannel over WebSocket
type Server struct {
	channel  ports.SessionChannel
	upgrader websocket.Upgrader
}

// NewServer creates a new Server
func NewServer(channel ports.SessionChannel) *Server {
	return &Server{
		channel: channel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			Subprotocols:    Subprotocols,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the HTTP routes: /ws and /healthz
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ServeWS upgrades the request and serves one connection until it closes
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &serverConn{
		cancel:  cancel,
		channel: s.channel,
		codec:   CodecFor(ws.Subprotocol()),
		ctx:     ctx,
		outbox:  make(chan domain.Event, connOutboxSize),
		remote:  r.RemoteAddr,
		subs:    make(map[string]ports.Subscriber),
		ws:      ws,
	}

	logging.Logger.Info("Client connected", "remote", c.remote, "codec", c.codec.Subprotocol())
	c.serve()
	logging.Logger.Info("Client disconnected", "remote", c.remote)
}

// serverConn is one client connection. Reads happen on the serving
// goroutine, writes on writeLoop.
type serverConn struct {
	cancel  context.CancelFunc
	channel ports.SessionChannel
	codec   Codec
	ctx     context.Context
	mu      sync.Mutex
	outbox  chan domain.Event
	remote  string
	subs    map[string]ports.Subscriber
	wg      sync.WaitGroup
	ws      *websocket.Conn
}

func (c *serverConn) serve() {
	c.wg.Add(1)
	go c.writeLoop()

	c.readLoop()

	c.cancel()
	c.mu.Lock()
	for id, sub := range c.subs {
		sub.Close()
		delete(c.subs, id)
	}
	c.mu.Unlock()
	c.wg.Wait()
	_ = c.ws.Close()
}

func (c *serverConn) readLoop() {
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Logger.Debug("WebSocket read failed", "remote", c.remote, "error", err)
			}
			return
		}
		if c.ctx.Err() != nil {
			return
		}

		cmd, err := c.codec.DecodeCommand(data)
		if err != nil {
			c.enqueue(domain.ErrorEvent("", "invalid frame", err.Error()))
			continue
		}
		c.dispatch(cmd)
	}
}

func (c *serverConn) dispatch(cmd domain.Command) {
	switch cmd.Type {
	case domain.CommandSubscribe:
		c.subscribe(cmd.SessionID)
	case domain.CommandUnsubscribe:
		c.unsubscribe(cmd.SessionID)
	default:
		c.channel.Handle(c.ctx, cmd, c.enqueue)
	}
}

func (c *serverConn) subscribe(sessionID string) {
	sub, ack, err := c.channel.Subscribe(c.ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.enqueue(domain.ErrorEvent(sessionID, domain.ErrSessionNotFound.Error(), ""))
			return
		}
		c.enqueue(domain.ErrorEvent(sessionID, "subscribe failed", err.Error()))
		return
	}

	c.mu.Lock()
	if old, ok := c.subs[sessionID]; ok {
		old.Close()
	}
	c.subs[sessionID] = sub
	c.mu.Unlock()

	c.enqueue(ack)

	c.wg.Add(1)
	go c.forward(sessionID, sub)
}

func (c *serverConn) unsubscribe(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, ok := c.subs[sessionID]; ok {
		sub.Close()
		delete(c.subs, sessionID)
	}
}

// forward copies hub events to the connection until the subscription ends
func (c *serverConn) forward(sessionID string, sub ports.Subscriber) {
	defer c.wg.Done()
	for ev := range sub.Events() {
		c.enqueue(ev)
	}

	c.mu.Lock()
	current, ok := c.subs[sessionID]
	dropped := ok && current == sub
	if dropped {
		delete(c.subs, sessionID)
	}
	c.mu.Unlock()

	// The hub dropped us for falling behind; the client resubscribes on reconnect
	if dropped && c.ctx.Err() == nil {
		logging.Logger.Warn("Subscription dropped, closing connection", "remote", c.remote, "session_id", sessionID)
		c.cancel()
	}
}

// enqueue queues an event for writing. A client that cannot keep up is disconnected.
func (c *serverConn) enqueue(ev domain.Event) {
	if c.ctx.Err() != nil {
		return
	}
	select {
	case c.outbox <- ev:
	default:
		logging.Logger.Warn("Client outbox full, closing connection", "remote", c.remote)
		c.cancel()
	}
}

func (c *serverConn) writeLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			// Unblock readLoop
			_ = c.ws.SetReadDeadline(time.Now())
			return
		case ev := <-c.outbox:
			data, err := c.codec.EncodeEvent(ev)
			if err != nil {
				logging.Logger.Error("Failed to encode event", "type", ev.Type, "error", err)
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(c.codec.MessageType(), data); err != nil {
				logging.Logger.Debug("WebSocket write failed", "remote", c.remote, "error", err)
				c.cancel()
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
			}
		}
	}
}
