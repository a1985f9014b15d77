package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"seatshare/internal/domain"
)

const writeWait = 10 * time.Second

// client serializes writes to one connection; gorilla connections support a
// single concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub manages active WebSocket connections keyed by user ID and delivers
// notification events to the recipients that are connected.
type Hub struct {
	log   *zap.Logger
	mu    sync.RWMutex
	conns map[string]map[*client]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:   log.Named("ws"),
		conns: make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) Name() string { return "ws" }

// Register adds a connection for the given user.
func (h *Hub) Register(userID string, conn *websocket.Conn) *client {
	c := &client{conn: conn}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*client]struct{})
	}
	h.conns[userID][c] = struct{}{}
	return c
}

// Unregister removes a connection for the given user.
func (h *Hub) Unregister(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[userID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.conns, userID)
		}
	}
}

// Online reports whether userID has at least one open connection.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// BroadcastToUsers sends the payload to all connections of the given users.
// Connections that fail are closed; their read loop unregisters them.
func (h *Hub) BroadcastToUsers(userIDs []string, payload any) {
	h.mu.RLock()
	var targets []*client
	for _, uid := range userIDs {
		for c := range h.conns[uid] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.writeJSON(payload); err != nil {
			h.log.Debug("write failed, closing connection", zap.Error(err))
			_ = c.conn.Close()
		}
	}
}

// Deliver pushes a domain event to the connected recipients.
func (h *Hub) Deliver(_ context.Context, e domain.Event) error {
	h.BroadcastToUsers(e.Recipients, map[string]any{
		"type":  "notification",
		"event": e,
	})
	return nil
}
