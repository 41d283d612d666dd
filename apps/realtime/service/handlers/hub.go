package handlers

import (
	"context"

	"github.com/chatmail/service-realtime/apps/realtime/service"
)

// Hub is the delivery surface the business layer pushes events
// through. It fronts the sharded connection pool.
type Hub struct {
	pool *connectionPool
}

func NewHub(maxConnections int32) *Hub {
	return &Hub{pool: newConnectionPool(maxConnections)}
}

// SendToConnection enqueues an event on one connection. Reports false
// when the connection is gone or cannot accept the event.
func (h *Hub) SendToConnection(_ context.Context, connectionID string, evt service.Event) bool {
	conn, ok := h.pool.get(connectionID)
	if !ok {
		return false
	}
	return conn.Enqueue(evt)
}

// Broadcast enqueues an event on every live connection except one.
func (h *Hub) Broadcast(_ context.Context, evt service.Event, excludeConnectionID string) {
	h.pool.forEach(func(conn *Connection) {
		if conn.ID() == excludeConnectionID {
			return
		}
		conn.Enqueue(evt)
	})
}

// Size returns the number of live connections.
func (h *Hub) Size() int32 {
	return h.pool.size()
}
