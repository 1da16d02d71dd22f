// Package hub is the real-time coordination core: it owns every live
// connection, tracks presence, routes messages, propagates typing state, and
// records read receipts.
package hub

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Murmur/internal/errs"
	"Murmur/internal/event"
	"Murmur/internal/model"
)

const lookupTimeout = 5 * time.Second

// Gateway is the persistence contract the core depends on. The repository
// layer implements it over MongoDB; tests substitute fakes.
type Gateway interface {
	CreateMessage(ctx context.Context, conversationID, senderID, text string) (model.Message, error)
	ConversationParticipants(ctx context.Context, conversationID string) ([]string, error)
	UpdateConversationLastMessage(ctx context.Context, msg model.Message) error
	MarkMessageDelivered(ctx context.Context, messageID string) error
	MarkMessagesRead(ctx context.Context, conversationID, readerID string, messageIDs []string) ([]string, error)
	TouchLastSeen(ctx context.Context, userID string, at time.Time) error
}

// TokenVerifier resolves a credential token to a user identity, or fails.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// Delivery abstracts pushing one outbound frame to one connection, so the
// router, typing coordinator, and receipt tracker are testable without
// sockets. The hub is the production implementation.
type Delivery interface {
	Push(connID string, ev event.WsEvent) bool
}

// Hub is the connection lifecycle manager. Each connection is authenticated
// before registration; a connection that fails verification is closed without
// ever touching the presence registry. Deregistration is idempotent per
// connection id, so duplicate transport callbacks cannot double-fire the
// offline transition.
type Hub struct {
	gateway  Gateway
	verifier TokenVerifier
	logger   *zap.Logger

	presence *Registry
	typing   *TypingCoordinator
	router   *MessageRouter
	receipts *ReceiptTracker

	clientsMu sync.RWMutex
	clients   map[string]*Client // connection id -> client

	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub wires the core components and starts the lifecycle loop.
func NewHub(gateway Gateway, verifier TokenVerifier, typingTTL time.Duration, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		gateway:    gateway,
		verifier:   verifier,
		logger:     logger,
		presence:   NewRegistry(),
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		ctx:        ctx,
		cancel:     cancel,
	}
	h.typing = NewTypingCoordinator(typingTTL, h.onTypingExpired)
	h.router = NewMessageRouter(gateway, h.presence, h, logger)
	h.receipts = NewReceiptTracker(gateway, h.presence, h, logger)

	go h.run()
	return h
}

// Presence exposes the registry for read-side consumers (monitor, HTTP).
func (h *Hub) Presence() *Registry { return h.presence }

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

// addClient registers the connection, seeds it with the online snapshot, and
// broadcasts user:online if this is the user's first live connection.
func (h *Hub) addClient(c *Client) {
	h.clientsMu.Lock()
	h.clients[c.ID] = c
	h.clientsMu.Unlock()

	wentOnline := h.presence.Register(c.userID, c.ID)

	c.SafeSend(event.OnlineSnapshot(h.presence.OnlineUsers()), sendTimeout)

	if wentOnline {
		h.broadcastExcept(c.userID, event.UserOnline(c.userID))
	}

	h.logger.Info("client registered",
		zap.String("connection_id", c.ID),
		zap.String("user_id", c.userID),
		zap.Bool("went_online", wentOnline),
	)
}

// removeClient deregisters the connection. Safe to call more than once per
// connection: the clients map lookup deduplicates.
func (h *Hub) removeClient(c *Client) {
	h.clientsMu.Lock()
	if _, known := h.clients[c.ID]; !known {
		h.clientsMu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	h.clientsMu.Unlock()

	wentOffline := h.presence.Deregister(c.userID, c.ID)
	c.Close()

	if wentOffline {
		h.broadcastExcept(c.userID, event.UserOffline(c.userID))

		userID := c.userID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
			defer cancel()
			if err := h.gateway.TouchLastSeen(ctx, userID, time.Now()); err != nil {
				h.logger.Warn("failed to touch last seen", zap.String("user_id", userID), zap.Error(err))
			}
		}()
	}

	h.logger.Info("client removed",
		zap.String("connection_id", c.ID),
		zap.String("user_id", c.userID),
		zap.Bool("went_offline", wentOffline),
	)
}

// Push delivers one frame to one connection. Unknown connection ids are
// skipped; a full egress buffer drops the frame rather than blocking the core.
func (h *Hub) Push(connID string, ev event.WsEvent) bool {
	h.clientsMu.RLock()
	c := h.clients[connID]
	h.clientsMu.RUnlock()
	if c == nil {
		return false
	}
	return c.SafeSend(ev, sendTimeout)
}

// PushToUser fans one frame out to every live connection of a user.
func (h *Hub) PushToUser(userID string, ev event.WsEvent) int {
	delivered := 0
	for _, connID := range h.presence.LiveConnections(userID) {
		if h.Push(connID, ev) {
			delivered++
		}
	}
	return delivered
}

// broadcastExcept sends to every connection not owned by excludeUserID.
func (h *Hub) broadcastExcept(excludeUserID string, ev event.WsEvent) {
	h.clientsMu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.userID == excludeUserID {
			continue
		}
		targets = append(targets, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range targets {
		c.SafeSend(ev, sendTimeout)
	}
}

// dispatch decodes and routes one inbound frame. Every failure is contained
// to the originating connection; the loop serving other connections is never
// affected.
func (h *Hub) dispatch(c *Client, ev event.WsEvent) {
	cmd, err := event.DecodeCommand(ev)
	if err != nil {
		h.logger.Warn("rejected inbound event",
			zap.String("connection_id", c.ID),
			zap.String("event", ev.Event),
			zap.Error(err),
		)
		return
	}

	// Sends and typing transitions run on the connection's read goroutine so
	// they are processed in arrival order; a stop can never overtake the
	// start it follows. The remaining commands are order-insensitive and go
	// to goroutines.
	switch cmd := cmd.(type) {
	case event.JoinConversation:
		go h.handleJoin(c, cmd)
	case event.SendMessage:
		h.handleSend(c, cmd)
	case event.StartTyping:
		h.handleTypingStart(c, cmd)
	case event.StopTyping:
		h.handleTypingStop(c, cmd)
	case event.MarkRead:
		go h.handleMarkRead(c, cmd)
	}
}

func (h *Hub) handleJoin(c *Client, cmd event.JoinConversation) {
	if _, err := h.partnerOf(cmd.ConversationID, c.userID); err != nil {
		h.logger.Warn("join rejected",
			zap.String("connection_id", c.ID),
			zap.String("conversation_id", cmd.ConversationID),
			zap.Error(err),
		)
		return
	}
	c.joinConversation(cmd.ConversationID)
}

// handleSend runs on the client's read goroutine so sends from one connection
// enter the router in arrival order. The router takes it from there without
// blocking this connection on persistence.
func (h *Hub) handleSend(c *Client, cmd event.SendMessage) {
	h.router.Send(sendJob{
		originConnID:   c.ID,
		senderID:       c.userID,
		recipientID:    cmd.To,
		conversationID: cmd.ConversationID,
		text:           strings.TrimSpace(cmd.Text),
		tempID:         cmd.TempID,
	})
}

func (h *Hub) handleTypingStart(c *Client, cmd event.StartTyping) {
	partnerID, err := h.partnerOf(cmd.ConversationID, c.userID)
	if err != nil {
		h.logger.Warn("typing rejected",
			zap.String("connection_id", c.ID),
			zap.String("conversation_id", cmd.ConversationID),
			zap.Error(err),
		)
		return
	}
	h.typing.Start(c.userID, cmd.ConversationID, partnerID)
	h.PushToUser(partnerID, event.TypingStart(c.userID, cmd.ConversationID))
}

func (h *Hub) handleTypingStop(c *Client, cmd event.StopTyping) {
	partnerID, existed := h.typing.Stop(c.userID, cmd.ConversationID)
	if !existed {
		// Already expired or never started; the stop was delivered then.
		return
	}
	h.PushToUser(partnerID, event.TypingStop(c.userID, cmd.ConversationID))
}

func (h *Hub) handleMarkRead(c *Client, cmd event.MarkRead) {
	ctx, cancel := context.WithTimeout(h.ctx, lookupTimeout)
	defer cancel()
	h.receipts.MarkRead(ctx, c.userID, cmd.ConversationID, cmd.MessageIDs)
}

// onTypingExpired synthesizes the stop a crashed or silent client never sent.
func (h *Hub) onTypingExpired(userID, conversationID, partnerID string) {
	h.PushToUser(partnerID, event.TypingStop(userID, conversationID))
}

// partnerOf resolves the other participant of a two-party conversation, or
// fails with a routing error when userID is not a member.
func (h *Hub) partnerOf(conversationID, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(h.ctx, lookupTimeout)
	defer cancel()

	participants, err := h.gateway.ConversationParticipants(ctx, conversationID)
	if err != nil {
		return "", err
	}
	partnerID := ""
	isMember := false
	for _, p := range participants {
		if p == userID {
			isMember = true
		} else {
			partnerID = p
		}
	}
	if !isMember || partnerID == "" {
		return "", errs.ErrRouting
	}
	return partnerID, nil
}

// Stop shuts the hub down: no new registrations, all workers stopped, every
// client connection closed.
func (h *Hub) Stop() {
	h.cancel()
	h.router.Stop()
	h.typing.Shutdown()

	h.clientsMu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.clientsMu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The socket endpoint is token-authenticated; origins are not the
		// trust boundary for non-browser clients.
		return true
	},
}

// ServeWS authenticates the handshake and upgrades the connection. The token
// travels in the "token" query parameter or an Authorization bearer header;
// a missing or invalid token rejects the connection before any registration.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}

	userID, err := h.verifier.VerifyToken(token)
	if err != nil {
		h.logger.Warn("socket handshake rejected", zap.Error(err))
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	newClient(userID, conn, h)
}
