package gateway

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/entity"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/jwt"
)

// HandleHertzConnection upgrades a Hertz request using hertz-contrib/websocket.
// The token rides a query parameter because browsers cannot set headers on
// WebSocket dials.
func (s *WsServer) HandleHertzConnection(ctx context.Context, c *app.RequestContext, upgrader *websocket.HertzUpgrader) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		c.String(503, "connection limit exceeded")
		return
	}

	token := string(c.Query(QueryToken))
	if token == "" {
		c.String(400, "missing token")
		return
	}

	claims, err := jwt.ParseToken(token, s.cfg.JWT.Secret)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: error=%v", err)
		c.String(401, "unauthorized")
		return
	}

	err = upgrader.Upgrade(c, func(conn *websocket.Conn) {
		identity := entity.Identity{UserId: claims.UserId, UserType: claims.UserType}
		connId := uuid.New().String()
		wsConn := NewHertzClientConn(conn, s.cfg.WebSocket.MaxMessageSize, s.cfg.WebSocket.WriteChannelSize,
			s.cfg.WebSocket.PongWait, s.cfg.WebSocket.PingPeriod)
		client := NewClient(wsConn, identity, connId, s)

		s.registerChan <- client

		// blocking; returns when the connection dies
		client.readLoop()
	})

	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}
}
