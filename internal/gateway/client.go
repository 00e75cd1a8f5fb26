package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/mbeoliero/kit/log"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
)

// Client represents one authenticated WebSocket connection. A user may hold
// several clients at once (multiple tabs, devices); each carries its own
// conversation subscription set.
type Client struct {
	mu        sync.Mutex
	conn      ClientConn
	UserId    string
	UserType  string
	ConnId    string
	server    *WsServer
	subs      map[string]struct{}
	subsMu    sync.RWMutex
	closed    atomic.Bool
	closedErr error
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a client for an upgraded connection.
func NewClient(conn ClientConn, identity entity.Identity, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:     conn,
		UserId:   identity.UserId,
		UserType: identity.UserType,
		ConnId:   connId,
		server:   server,
		subs:     make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Identity returns the authenticated identity behind the connection.
func (c *Client) Identity() entity.Identity {
	return entity.Identity{UserId: c.UserId, UserType: c.UserType}
}

// Start starts the client message handling
func (c *Client) Start() {
	go c.readLoop()
}

// readLoop continuously reads frames from the connection until it fails
// or the client is closed.
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			c.closedErr = ErrPanic
			log.CtxError(c.ctx, "client read loop panic: user_id=%s, error=%v", c.UserId, r)
		}
		c.close()
	}()

	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read frame error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}

		if c.closed.Load() {
			c.closedErr = ErrConnClosed
			return
		}

		c.handleFrame(data)
	}
}

// handleFrame dispatches a single inbound envelope. Malformed frames and
// unknown types are logged and ignored rather than killing the connection.
func (c *Client) handleFrame(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.CtxWarn(c.ctx, "invalid frame: user_id=%s, error=%v", c.UserId, err)
		return
	}

	log.CtxDebug(c.ctx, "received frame: type=%s, user_id=%s", env.Type, c.UserId)

	switch env.Type {
	case TypeSubscribe:
		var p SubscribePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.ConversationId == "" {
			log.CtxWarn(c.ctx, "invalid subscribe payload: user_id=%s", c.UserId)
			return
		}
		c.Subscribe(p.ConversationId)

	case TypeUnsubscribe:
		var p SubscribePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.ConversationId == "" {
			log.CtxWarn(c.ctx, "invalid unsubscribe payload: user_id=%s", c.UserId)
			return
		}
		c.Unsubscribe(p.ConversationId)

	case TypePing:
		c.Send(Envelope{Type: TypePong})

	default:
		log.CtxDebug(c.ctx, "ignoring unknown frame type: type=%s, user_id=%s", env.Type, c.UserId)
	}
}

// Subscribe adds a conversation to the client's live subscription set.
func (c *Client) Subscribe(conversationId string) {
	c.subsMu.Lock()
	c.subs[conversationId] = struct{}{}
	c.subsMu.Unlock()
}

// Unsubscribe removes a conversation from the subscription set.
func (c *Client) Unsubscribe(conversationId string) {
	c.subsMu.Lock()
	delete(c.subs, conversationId)
	c.subsMu.Unlock()
}

// SubscribedTo reports whether the client subscribed to the conversation.
func (c *Client) SubscribedTo(conversationId string) bool {
	c.subsMu.RLock()
	_, ok := c.subs[conversationId]
	c.subsMu.RUnlock()
	return ok
}

// Send writes an envelope to the connection. Sends to a closed client are
// silently skipped so broadcast loops never block on dead connections.
func (c *Client) Send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if err := c.conn.WriteMessage(data); err != nil {
		log.CtxDebug(c.ctx, "send frame dropped: user_id=%s, conn_id=%s, error=%v", c.UserId, c.ConnId, err)
		return nil
	}
	return nil
}

// Close closes the client connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	c.closed.Store(true)
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when connection is closed
func (c *Client) close() {
	c.Close()
	c.server.UnregisterClient(c)
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
