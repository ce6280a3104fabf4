package notifications

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benevia/backend/internal/models"
)

// RedisPublisher publishes notification pushes for other instances.
type RedisPublisher interface {
	PublishUserNotification(userID uuid.UUID, payload []byte) error
}

// RedisSubscriber subscribes to a user's push channel and invokes the handler
// for incoming payloads.
type RedisSubscriber interface {
	SubscribeUser(userID uuid.UUID, handler func(payload []byte)) (cancel func(), err error)
}

// Hub maintains user_id -> set of live WebSocket connections and pushes
// notifications to them. Redis pub/sub carries pushes across instances: the
// dispatcher may run in the worker process while the connection lives on an
// API instance.
type Hub struct {
	users    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func()
	mu       sync.RWMutex
	logger   *zap.Logger
	redisPub RedisPublisher
	redisSub RedisSubscriber
}

// NewHub creates a notification push hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		users:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redisPub: redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client connection. The first connection for a user starts
// the Redis subscription for that user's channel.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.users[c.UserID] == nil {
		h.users[c.UserID] = make(map[string]*Client)
		if h.redisSub != nil {
			userID := c.UserID
			cancel, err := h.redisSub.SubscribeUser(userID, func(payload []byte) {
				h.deliverLocal(userID, payload)
			})
			if err == nil {
				h.subs[userID] = cancel
			} else {
				h.logger.Warn("user channel subscribe failed", zap.Error(err), zap.String("user_id", userID.String()))
			}
		}
	}
	h.users[c.UserID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// Unregister removes a client connection. The last connection for a user
// cancels the Redis subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.users[c.UserID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.users, c.UserID)
			if cancel, ok := h.subs[c.UserID]; ok {
				cancel()
				delete(h.subs, c.UserID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// Push delivers a notification to the user's live connections on this instance
// and publishes it for other instances. Best-effort on every leg.
func (h *Hub) Push(userID uuid.UUID, n *models.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	h.deliverLocal(userID, data)
	if h.redisPub != nil {
		if err := h.redisPub.PublishUserNotification(userID, data); err != nil {
			h.logger.Debug("publish notification failed", zap.Error(err), zap.String("user_id", userID.String()))
		}
	}
}

func (h *Hub) deliverLocal(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	clients := h.users[userID]
	h.mu.RUnlock()
	if clients == nil {
		return
	}
	msg := WSMessage{Event: "notification", Data: payload}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// ConnectedUsers returns the number of users with at least one live connection.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}
