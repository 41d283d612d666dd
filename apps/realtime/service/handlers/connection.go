package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pitabwire/util"

	"github.com/chatmail/service-realtime/apps/realtime/service"
)

// Connection wraps a single authenticated WebSocket. Writes are
// serialised through a buffered send channel consumed by writePump;
// gorilla permits only one concurrent writer per socket.
type Connection struct {
	id        string
	profileID string
	ws        *websocket.Conn

	send     chan service.Event
	closed   chan struct{}
	closeOne sync.Once

	connectedAt time.Time
	lastPong    int64 // Unix seconds, atomic access
}

func newConnection(profileID string, ws *websocket.Conn, sendBuffer int) *Connection {
	now := time.Now()
	return &Connection{
		id:        util.IDString(),
		profileID: profileID,
		ws:        ws,

		send:   make(chan service.Event, sendBuffer),
		closed: make(chan struct{}),

		connectedAt: now,
		lastPong:    now.Unix(),
	}
}

func (c *Connection) ID() string        { return c.id }
func (c *Connection) ProfileID() string { return c.profileID }

// Enqueue offers an event to the connection without blocking. A full
// buffer or a closed connection drops the event; a client that cannot
// drain its buffer is about to be closed anyway.
func (c *Connection) Enqueue(evt service.Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

// writePump drains the send channel onto the socket and keeps the
// heartbeat going. Runs in its own goroutine for the connection's
// lifetime; returning closes the socket.
func (c *Connection) writePump(ctx context.Context, writeTimeout, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.closed:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case evt := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteJSON(evt); err != nil {
				util.Log(ctx).WithError(err).WithFields(map[string]any{
					"connection_id": c.id,
					"profile_id":    c.profileID,
				}).Debug("socket write failed")
				c.Close()
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// touchPong records heartbeat activity from the client.
func (c *Connection) touchPong() {
	atomic.StoreInt64(&c.lastPong, time.Now().Unix())
}

// LastPong returns the Unix time of the last heartbeat.
func (c *Connection) LastPong() int64 {
	return atomic.LoadInt64(&c.lastPong)
}

// Close marks the connection closed. Idempotent; the write pump sends
// the close frame and tears the socket down.
func (c *Connection) Close() {
	c.closeOne.Do(func() {
		close(c.closed)
	})
}
