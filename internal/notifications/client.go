package notifications

import (
	"sync"
	"time"

	"vibefeed/internal/middleware"
	"vibefeed/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeTimeout = 10 * time.Second
	// A peer that has not answered a ping within idleTimeout is dropped.
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10

	// Peers only send control frames, so inbound frames stay small.
	maxInboundFrame = 4096
	outboxSize      = 64
)

// Client is one websocket connection registered with a Hub.
type Client struct {
	UserID uint

	hub    *Hub
	conn   *websocket.Conn
	outbox chan []byte

	mu     sync.Mutex
	closed bool
	// done is closed when writeLoop has stopped touching conn.
	done chan struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		UserID: userID,
		hub:    hub,
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
}

// Serve writes queued events to the peer until the peer disconnects or the
// hub drops the client. It blocks for the life of the connection and
// returns only after the write loop has let go of conn: the upgrader
// recycles conn once its handler returns.
func (c *Client) Serve() {
	go c.writeLoop()
	c.readLoop()

	c.hub.UnregisterClient(c)
	c.close()
	<-c.done
	_ = c.conn.Close()
}

func (c *Client) readLoop() {
	c.conn.SetReadLimit(maxInboundFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("websocket read failed", "user_id", c.UserID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writeLoop() {
	keepalive := time.NewTicker(pingInterval)
	defer func() {
		keepalive.Stop()
		// unblocks readLoop when the writer stops first
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case frame, open := <-c.outbox:
			if !open {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-keepalive.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(kind, data)
}

// deliver queues frame without blocking. A slow peer loses the frame and
// catches up by re-fetching its conversations.
func (c *Client) deliver(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.outbox <- frame:
		return true
	default:
		observability.WebSocketDrops.Inc()
		middleware.Logger.Warn("websocket outbox full, dropped event", "user_id", c.UserID)
		return false
	}
}

// close ends the outbox once; the write loop then says goodbye to the peer.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.outbox)
	}
}
