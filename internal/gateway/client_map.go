package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/constant"
)

// ClientMap is the connection registry. Clients are keyed by connection id,
// with a secondary index by user so fan-out to every connection of one
// participant stays cheap.
type ClientMap struct {
	mu      sync.RWMutex
	clients map[string]*Client            // connId -> client
	byUser  map[string]map[string]*Client // userKey -> connId -> client
	rdb     *redis.Client
}

func userKey(userType, userId string) string {
	return userType + ":" + userId
}

// NewClientMap creates an empty registry. rdb is optional; when present the
// registry mirrors presence into Redis for multi-instance awareness.
func NewClientMap(rdb *redis.Client) *ClientMap {
	return &ClientMap{
		clients: make(map[string]*Client),
		byUser:  make(map[string]map[string]*Client),
		rdb:     rdb,
	}
}

// Register adds a client to the registry.
func (m *ClientMap) Register(ctx context.Context, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[client.ConnId] = client

	key := userKey(client.UserType, client.UserId)
	conns, exists := m.byUser[key]
	if !exists {
		conns = make(map[string]*Client, 2)
		m.byUser[key] = conns
	}
	conns[client.ConnId] = client

	m.setOnline(ctx, client.UserType, client.UserId)
}

// Unregister removes a client. Returns true when this was the user's last
// connection on this instance.
func (m *ClientMap) Unregister(ctx context.Context, client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[client.ConnId]; !exists {
		return false
	}
	delete(m.clients, client.ConnId)

	key := userKey(client.UserType, client.UserId)
	conns := m.byUser[key]
	delete(conns, client.ConnId)
	if len(conns) == 0 {
		delete(m.byUser, key)
		m.setOffline(ctx, client.UserType, client.UserId)
		return true
	}
	return false
}

// Get returns the client for a connection id.
func (m *ClientMap) Get(connId string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[connId]
	return c, ok
}

// GetByUser returns a snapshot of all connections for one user.
func (m *ClientMap) GetByUser(userType, userId string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := m.byUser[userKey(userType, userId)]
	if len(conns) == 0 {
		return nil
	}
	clients := make([]*Client, 0, len(conns))
	for _, c := range conns {
		clients = append(clients, c)
	}
	return clients
}

// GetByUserType returns a snapshot of all connections held by users of the
// given type.
func (m *ClientMap) GetByUserType(userType string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var clients []*Client
	for _, c := range m.clients {
		if c.UserType == userType {
			clients = append(clients, c)
		}
	}
	return clients
}

// All returns a snapshot of every registered client.
func (m *ClientMap) All() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	return clients
}

// HasConnection checks whether the user holds any connection on this instance.
func (m *ClientMap) HasConnection(userType, userId string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userKey(userType, userId)]) > 0
}

// OnlineUserCount returns the number of distinct online users.
func (m *ClientMap) OnlineUserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser)
}

// OnlineConnCount returns the total number of connections.
func (m *ClientMap) OnlineConnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// IsOnline checks local connections first, then Redis so presence works
// across instances.
func (m *ClientMap) IsOnline(ctx context.Context, userType, userId string) bool {
	if m.HasConnection(userType, userId) {
		return true
	}

	if m.rdb != nil {
		key := fmt.Sprintf(constant.RedisKeyOnline(), userType, userId)
		exists, _ := m.rdb.Exists(ctx, key).Result()
		return exists > 0
	}

	return false
}

func (m *ClientMap) setOnline(ctx context.Context, userType, userId string) {
	if m.rdb == nil {
		return
	}

	key := fmt.Sprintf(constant.RedisKeyOnline(), userType, userId)
	m.rdb.Set(ctx, key, "1", 60*time.Second)
}

func (m *ClientMap) setOffline(ctx context.Context, userType, userId string) {
	if m.rdb == nil {
		return
	}

	key := fmt.Sprintf(constant.RedisKeyOnline(), userType, userId)
	m.rdb.Del(ctx, key)
}

// RefreshOnlineStatus extends the presence TTL for a still-connected user.
func (m *ClientMap) RefreshOnlineStatus(ctx context.Context, userType, userId string) {
	if m.rdb == nil {
		return
	}

	if m.HasConnection(userType, userId) {
		key := fmt.Sprintf(constant.RedisKeyOnline(), userType, userId)
		m.rdb.Expire(ctx, key, 60*time.Second)
	}
}
