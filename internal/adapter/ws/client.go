package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/drivewatch/sensor-hub/internal/pipeline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Subscribers never send application data; anything beyond control
	// frames is noise.
	maxMessageSize = 512

	sendQueueSize = 256
)

// Client is one subscriber connection. It implements pipeline.Subscriber.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	clock     clockwork.Clock
	logger    *slog.Logger
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, clock clockwork.Clock, logger *slog.Logger) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		clock:  clock,
		logger: logger,
	}
}

// Enqueue offers a frame to the outbound queue without blocking. A full
// queue means the subscriber is too slow to keep up; the frame is dropped
// for this subscriber only.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close shuts the outbound queue, letting writePump drain and exit.
// Idempotent; called by the hub on unregister.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump discards inbound frames, keeps the read deadline fresh via pongs,
// and invokes onClose when the connection drops.
func (c *Client) readPump(onClose func()) {
	defer func() {
		onClose()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Debug("subscriber read error", "error", err)
			}
			return
		}
	}
}

// writePump drains the outbound queue onto the wire and pings on an
// interval to detect dead peers.
func (c *Client) writePump() {
	ticker := c.clock.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.Chan():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Core is what the push channel needs from the ingestion pipeline.
type Core interface {
	Attach(sub pipeline.Subscriber) error
	Detach(sub pipeline.Subscriber)
}

// Handler upgrades HTTP requests to push-channel subscriptions.
type Handler struct {
	core   Core
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewHandler creates the websocket upgrade handler.
func NewHandler(core Core, clock clockwork.Clock, logger *slog.Logger) *Handler {
	return &Handler{core: core, clock: clock, logger: logger}
}

// ServeHTTP runs the subscription handshake: upgrade, send the backlog,
// register for live broadcasts, then pump until the connection closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(conn, h.clock, h.logger)
	if err := h.core.Attach(client); err != nil {
		h.logger.Error("subscriber handshake failed", "error", err)
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(func() { h.core.Detach(client) })
}
