package hub

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Murmur/internal/event"
)

var (
	// tuning parameters
	writeWait         = 10 * time.Second    // time allowed to write a frame to the peer
	pongWait          = 20 * time.Second    // time allowed to read the next pong
	pingInterval      = (pongWait * 9) / 10 // ping period, must be under pongWait
	maxMessageSize    = 64 * 1024           // max inbound frame size
	sendBufSize       = 256                 // per-connection outbound buffer
	sendTimeout       = 2 * time.Second     // timeout for enqueuing outbound frames
	registerTimeout   = 5 * time.Second
	unregisterTimeout = 5 * time.Second
)

// Client is one live, authenticated connection. Its identity is fixed at
// handshake time and never changes; the set of joined conversations grows as
// the client opens chats. The hub owns the client; the presence registry only
// references its connection id.
type Client struct {
	ID     string
	userID string

	conn   *websocket.Conn
	hub    *Hub
	egress chan event.WsEvent

	joinedMu sync.RWMutex
	joined   map[string]struct{} // conversation ids this connection subscribed to

	ctx            context.Context
	cancel         context.CancelFunc
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	closed         bool
	closedMu       sync.RWMutex
}

// newClient wires a client for an already-authenticated connection and hands
// it to the hub's register loop. Returns nil if registration times out.
func newClient(userID string, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		ID:         uuid.New().String(),
		userID:     userID,
		conn:       conn,
		hub:        h,
		egress:     make(chan event.WsEvent, sendBufSize),
		joined:     make(map[string]struct{}),
		ctx:        ctx,
		cancel:     cancel,
		connClosed: make(chan struct{}),
	}

	select {
	case h.register <- c:
		go c.readLoop()
		go c.writeLoop()
		return c
	case <-time.After(registerTimeout):
		h.logger.Warn("client registration timed out",
			zap.String("connection_id", c.ID),
			zap.String("user_id", userID),
		)
		cancel()
		conn.Close()
		return nil
	}
}

// UserID returns the identity verified at handshake time.
func (c *Client) UserID() string { return c.userID }

func (c *Client) joinConversation(conversationID string) {
	c.joinedMu.Lock()
	c.joined[conversationID] = struct{}{}
	c.joinedMu.Unlock()
}

func (c *Client) joinedConversations() []string {
	c.joinedMu.RLock()
	defer c.joinedMu.RUnlock()
	out := make([]string, 0, len(c.joined))
	for id := range c.joined {
		out = append(out, id)
	}
	return out
}

// readLoop pumps inbound frames until the connection dies, then triggers
// unregistration. Dispatch happens on this goroutine so a connection's own
// commands keep their arrival order; anything slow is handed off inside the
// hub without blocking the next read.
func (c *Client) readLoop() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-time.After(unregisterTimeout):
			c.hub.logger.Warn("client unregistration timed out", zap.String("connection_id", c.ID))
		}
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			var ev event.WsEvent
			if err := c.conn.ReadJSON(&ev); err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					return
				}
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					c.hub.logger.Info("client timed out", zap.String("connection_id", c.ID))
					return
				}
				c.hub.logger.Warn("read error",
					zap.String("connection_id", c.ID),
					zap.Error(err),
				)
				return
			}

			c.hub.dispatch(c, ev)
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case ev := <-c.egress:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.hub.logger.Warn("write error",
					zap.String("connection_id", c.ID),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// SafeSend enqueues an outbound frame. It returns false when the client is
// closed or the egress buffer stays full past the timeout; a slow consumer
// never blocks the caller indefinitely.
func (c *Client) SafeSend(ev event.WsEvent, timeout time.Duration) bool {
	if c.IsClosed() {
		return false
	}
	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-time.After(timeout):
		return false
	}
}

// IsClosed reports whether Close has run.
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// Close shuts the client down exactly once. Shutdown travels through the
// context only; the egress channel is never closed, so a SafeSend racing
// Close can at worst enqueue a frame nobody drains, never hit a closed
// channel. The write loop closes the socket; a safety timeout force-closes
// if the loop is already gone.
func (c *Client) Close() {
	c.once.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		c.cancel()

		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
			}
		}()
	})
}
