package gateway

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/config"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/event"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/jwt"
	"github.com/redis/go-redis/v9"
)

// WsServer owns the connection registry and pushes bus events out to live
// connections.
type WsServer struct {
	upgrader       *websocket.Upgrader
	cfg            *config.Config
	clients        *ClientMap
	registerChan   chan *Client
	unregisterChan chan *Client
	broadcastChan  chan broadcastTask
	bus            *event.Bus
	unsubs         []func()
	onlineUserNum  atomic.Int64
	onlineConnNum  atomic.Int64
	maxConnNum     int64
}

// broadcastTask is one queued outbound envelope plus its target selector.
// Exactly one of the selectors is set.
type broadcastTask struct {
	env Envelope

	// deliver to clients subscribed to this conversation
	conversationId string

	// deliver to every connection of one user
	userType string
	userId   string

	// deliver to every connection held by users of this type
	toUserType string
}

// NewWsServer creates a WebSocket server wired to the event bus.
func NewWsServer(cfg *config.Config, rdb *redis.Client, bus *event.Bus) *WsServer {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
	}

	return &WsServer{
		upgrader:       upgrader,
		cfg:            cfg,
		clients:        NewClientMap(rdb),
		registerChan:   make(chan *Client, 1000),
		unregisterChan: make(chan *Client, 1000),
		broadcastChan:  make(chan broadcastTask, cfg.WebSocket.BroadcastBuffer),
		bus:            bus,
		maxConnNum:     cfg.WebSocket.MaxConnNum,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Run starts the server loops and subscribes to the bus. Broadcasting uses a
// single loop so clients observe events in publish order.
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)
	go s.broadcastLoop(ctx)

	s.unsubs = append(s.unsubs,
		s.bus.Subscribe(event.NameMessageSent, s.onMessageSent),
		s.bus.Subscribe(event.NameConversationCreated, s.onConversationCreated),
		s.bus.Subscribe(event.NameMessageFlagged, s.onMessageFlagged),
	)

	log.Info("websocket server running: max_conns=%d, broadcast_buffer=%d",
		s.maxConnNum, s.cfg.WebSocket.BroadcastBuffer)
}

// Stop detaches the server from the bus and closes every live connection.
func (s *WsServer) Stop() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil

	for _, client := range s.clients.All() {
		client.Close()
	}
}

// eventLoop serializes registration and unregistration.
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// broadcastLoop drains queued envelopes one at a time, preserving the order
// tasks were enqueued in.
func (s *WsServer) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.broadcastChan:
			s.processBroadcast(ctx, task)
		}
	}
}

func (s *WsServer) processBroadcast(ctx context.Context, task broadcastTask) {
	var targets []*Client
	switch {
	case task.conversationId != "":
		for _, client := range s.clients.All() {
			if client.SubscribedTo(task.conversationId) {
				targets = append(targets, client)
			}
		}
	case task.userId != "":
		targets = s.clients.GetByUser(task.userType, task.userId)
	case task.toUserType != "":
		targets = s.clients.GetByUserType(task.toUserType)
	}

	for _, client := range targets {
		if err := client.Send(task.env); err != nil {
			log.CtxDebug(ctx, "broadcast to client failed: user_id=%s, conn_id=%s, error=%v",
				client.UserId, client.ConnId, err)
		}
	}
}

// ========== Bus listeners ==========

func (s *WsServer) onMessageSent(ctx context.Context, evt event.Event) {
	sent, ok := evt.(event.MessageSent)
	if !ok {
		return
	}

	env, err := NewEnvelope(TypeMessageReceived, MessageReceivedPayload{
		Message:        sent.Message.ToMessageInfo(),
		ConversationId: sent.ConversationId,
	})
	if err != nil {
		log.CtxError(ctx, "encode message_received failed: message_id=%s, error=%v", sent.Message.Id, err)
		return
	}

	s.enqueue(broadcastTask{env: env, conversationId: sent.ConversationId})
}

func (s *WsServer) onConversationCreated(ctx context.Context, evt event.Event) {
	created, ok := evt.(event.ConversationCreated)
	if !ok {
		return
	}

	env, err := NewEnvelope(TypeConversationUpdated, ConversationUpdatedPayload{
		Conversation: created.Conversation.ToConversationInfo(),
	})
	if err != nil {
		log.CtxError(ctx, "encode conversation_updated failed: conversation_id=%s, error=%v", created.Conversation.Id, err)
		return
	}

	s.enqueue(broadcastTask{env: env, userType: entity.UserTypeVendor, userId: created.Conversation.VendorId})
	s.enqueue(broadcastTask{env: env, userType: entity.UserTypeSpa, userId: created.Conversation.SpaId})
}

func (s *WsServer) onMessageFlagged(ctx context.Context, evt event.Event) {
	flagged, ok := evt.(event.MessageFlagged)
	if !ok {
		return
	}

	env, err := NewEnvelope(TypeMessageFlagged, MessageFlaggedPayload{
		MessageId: flagged.MessageId,
		Reason:    flagged.Reason,
		FlaggedBy: flagged.FlaggedBy,
	})
	if err != nil {
		log.CtxError(ctx, "encode message_flagged failed: message_id=%s, error=%v", flagged.MessageId, err)
		return
	}

	s.enqueue(broadcastTask{env: env, toUserType: entity.UserTypeAdmin})
}

// enqueue queues a broadcast, dropping it when the buffer is full so bus
// publishers are never blocked by slow delivery.
func (s *WsServer) enqueue(task broadcastTask) {
	select {
	case s.broadcastChan <- task:
	default:
		log.Warn("broadcast channel full, envelope dropped: type=%s", task.env.Type)
	}
}

// ========== Registration ==========

// registerClient registers a client and acknowledges the connection. The ack
// is sent here so it always follows registration.
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	wasOnline := s.clients.HasConnection(client.UserType, client.UserId)
	if !wasOnline {
		s.onlineUserNum.Add(1)
	}

	s.clients.Register(ctx, client)
	s.onlineConnNum.Add(1)

	log.CtxInfo(ctx, "client registered: user_id=%s, user_type=%s, conn_id=%s, online_users=%d, online_conns=%d",
		client.UserId, client.UserType, client.ConnId, s.onlineUserNum.Load(), s.onlineConnNum.Load())

	env, err := NewEnvelope(TypeConnectionAck, ConnectionAckPayload{
		ClientId: client.ConnId,
		UserId:   client.UserId,
		UserType: client.UserType,
	})
	if err != nil {
		log.CtxError(ctx, "encode connection_ack failed: conn_id=%s, error=%v", client.ConnId, err)
		return
	}
	client.Send(env)
}

func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	isUserOffline := s.clients.Unregister(ctx, client)
	s.onlineConnNum.Add(-1)

	if isUserOffline {
		s.onlineUserNum.Add(-1)
	}

	log.CtxInfo(ctx, "client unregistered: user_id=%s, user_type=%s, conn_id=%s, user_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.UserType, client.ConnId, isUserOffline, s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// UnregisterClient queues client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full: user_id=%s", client.UserId)
	}
}

// ========== Connection handling ==========

// HandleConnection upgrades a plain net/http request. Used when the gateway
// runs behind a standard library server.
func (s *WsServer) HandleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		http.Error(w, "connection limit exceeded", http.StatusServiceUnavailable)
		return
	}

	token := r.URL.Query().Get(QueryToken)
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	claims, err := jwt.ParseToken(token, s.cfg.JWT.Secret)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: error=%v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}

	identity := entity.Identity{UserId: claims.UserId, UserType: claims.UserType}
	connId := uuid.New().String()
	wsConn := NewGorillaClientConn(conn, s.cfg.WebSocket.MaxMessageSize, s.cfg.WebSocket.WriteChannelSize,
		s.cfg.WebSocket.PongWait, s.cfg.WebSocket.PingPeriod)
	client := NewClient(wsConn, identity, connId, s)

	s.registerChan <- client

	client.Start()
}

// GetOnlineUserCount returns online user count
func (s *WsServer) GetOnlineUserCount() int64 {
	return s.onlineUserNum.Load()
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}

// IsOnline reports whether any connection exists for the user, here or on
// another instance.
func (s *WsServer) IsOnline(ctx context.Context, userType, userId string) bool {
	return s.clients.IsOnline(ctx, userType, userId)
}
