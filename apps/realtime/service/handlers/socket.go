package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pitabwire/util"

	"github.com/chatmail/service-realtime/apps/realtime/service"
	"github.com/chatmail/service-realtime/apps/realtime/service/business"
	"github.com/chatmail/service-realtime/apps/realtime/service/repository"
	"github.com/chatmail/service-realtime/internal/resilience"
	"github.com/chatmail/service-realtime/internal/telemetry"
)

const (
	staleCheckInterval       = 30 * time.Second
	shutdownTimeout          = 30 * time.Second
	presenceUpdateTimeout    = 3 * time.Second
	staleThresholdMultiplier = 3 // Missed heartbeats tolerated before eviction
)

type presencePayload struct {
	ProfileID string `json:"profile_id"`
}

type onlineSnapshotPayload struct {
	ProfileIDs []string `json:"profile_ids"`
}

// Options carries the tuning knobs for the socket manager.
type Options struct {
	SendBufferSize    int
	ReadLimitBytes    int64
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
}

// Manager owns the WebSocket endpoint: handshake, connection lifetime,
// frame routing and teardown. One instance serves all connections.
type Manager struct {
	hub      *Hub
	verifier CredentialVerifier
	router   *Router

	presence *business.PresenceTracker
	rooms    *business.RoomRegistry
	calls    business.CallBusiness
	contacts repository.ContactRepository

	// Contact status writes are best-effort; the breaker keeps a sick
	// database from stalling connect and disconnect paths.
	contactBreaker *resilience.CircuitBreaker

	upgrader websocket.Upgrader
	opts     Options

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	totalConns        uint64 // Atomic access
	disconnectedConns uint64 // Atomic access
}

func NewManager(
	ctx context.Context,
	hub *Hub,
	verifier CredentialVerifier,
	router *Router,
	presence *business.PresenceTracker,
	rooms *business.RoomRegistry,
	calls business.CallBusiness,
	contacts repository.ContactRepository,
	opts Options,
) *Manager {
	m := &Manager{
		hub:      hub,
		verifier: verifier,
		router:   router,

		presence: presence,
		rooms:    rooms,
		calls:    calls,
		contacts: contacts,

		contactBreaker: resilience.NewCircuitBreaker(
			resilience.DefaultSettings("contact-status"),
		),

		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		opts: opts,

		shutdownCh: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.sweepStaleConnections(ctx)

	return m
}

// Handler terminates the WebSocket endpoint. Credentials are checked
// before the upgrade so a bad token costs a plain 401, not a socket.
func (m *Manager) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-m.shutdownCh:
			http.Error(w, ErrShuttingDown.Error(), http.StatusServiceUnavailable)
			return
		default:
		}

		profileID, err := m.verifier.Verify(bearerToken(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		ws, err := m.upgrader.Upgrade(w, r, nil)
		if err != nil {
			util.Log(r.Context()).WithError(err).Debug("websocket upgrade failed")
			return
		}

		m.handleConnection(r.Context(), profileID, ws)
	}
}

// bearerToken pulls the credential from the Authorization header, or
// from the token query parameter for clients that cannot set headers on
// a WebSocket handshake.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// handleConnection runs one socket from registration to teardown. It
// blocks until the client goes away or the server shuts down.
func (m *Manager) handleConnection(ctx context.Context, profileID string, ws *websocket.Conn) {
	conn := newConnection(profileID, ws, m.opts.SendBufferSize)

	if err := m.hub.pool.add(conn); err != nil {
		util.Log(ctx).WithError(err).WithField("profile_id", profileID).
			Warn("rejecting connection")
		telemetry.ConnectionsRejectedCounter.Add(ctx, 1)
		_ = ws.Close()
		return
	}

	atomic.AddUint64(&m.totalConns, 1)
	telemetry.ConnectionsTotalCounter.Add(ctx, 1)
	telemetry.ConnectionsActiveGauge.Add(ctx, 1)

	// A reconnect displaces the profile's previous connection; close
	// the older socket so the client is not left with two sessions.
	if displaced := m.presence.Register(profileID, conn.ID()); displaced != "" {
		if old, ok := m.hub.pool.get(displaced); ok {
			old.Close()
		}
	}

	util.Log(ctx).WithFields(map[string]any{
		"profile_id":    profileID,
		"connection_id": conn.ID(),
		"pool_size":     m.hub.pool.size(),
	}).Debug("client connected")

	go conn.writePump(ctx, m.opts.WriteTimeout, m.opts.HeartbeatInterval)

	m.persistOnlineStatus(ctx, profileID, true)

	conn.Enqueue(service.NewEvent(service.EventUsersOnline, onlineSnapshotPayload{
		ProfileIDs: m.presence.Online(),
	}))
	m.hub.Broadcast(ctx, service.NewEvent(service.EventUserOnline, presencePayload{
		ProfileID: profileID,
	}), conn.ID())

	m.readLoop(ctx, conn)
	m.teardown(ctx, conn)
}

// readLoop consumes frames until the socket dies, the connection is
// closed, or shutdown starts. Routing errors never break the loop.
func (m *Manager) readLoop(ctx context.Context, conn *Connection) {
	readTimeout := m.opts.HeartbeatInterval * staleThresholdMultiplier

	conn.ws.SetReadLimit(m.opts.ReadLimitBytes)
	_ = conn.ws.SetReadDeadline(time.Now().Add(readTimeout))
	conn.ws.SetPongHandler(func(string) error {
		conn.touchPong()
		return conn.ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		select {
		case <-conn.closed:
			return
		case <-m.shutdownCh:
			return
		default:
		}

		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				util.Log(ctx).WithError(err).WithField("connection_id", conn.ID()).
					Debug("socket read failed")
			}
			return
		}

		conn.touchPong()
		m.router.Route(ctx, conn.ProfileID(), conn.ID(), raw)
	}
}

// teardown unwinds everything a connection touched: live calls, room
// subscriptions, the presence entry and the pool slot. Presence is only
// cleared when this connection still owns it, so a disconnect racing a
// reconnect never marks the fresh session offline.
func (m *Manager) teardown(ctx context.Context, conn *Connection) {
	profileID := conn.ProfileID()

	conn.Close()
	m.hub.pool.remove(conn.ID())
	atomic.AddUint64(&m.disconnectedConns, 1)
	telemetry.ConnectionsActiveGauge.Add(ctx, -1)

	m.calls.HandleDisconnect(ctx, profileID)
	m.rooms.DropConnection(conn.ID())

	if m.presence.Unregister(profileID, conn.ID()) {
		m.persistOnlineStatus(ctx, profileID, false)
		m.hub.Broadcast(ctx, service.NewEvent(service.EventUserOffline, presencePayload{
			ProfileID: profileID,
		}), conn.ID())
	}

	util.Log(ctx).WithFields(map[string]any{
		"profile_id":    profileID,
		"connection_id": conn.ID(),
		"duration":      time.Since(conn.connectedAt).String(),
	}).Debug("client disconnected")
}

// persistOnlineStatus mirrors presence into the contact row. Fire and
// forget with a bounded timeout; a missed write only leaves the
// last-seen marker stale.
func (m *Manager) persistOnlineStatus(ctx context.Context, profileID string, online bool) {
	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), presenceUpdateTimeout)

	go func() {
		defer cancel()

		err := m.contactBreaker.Execute(func() error {
			return m.contacts.UpdateOnlineStatus(statusCtx, profileID, online, time.Now())
		})
		if err != nil {
			util.Log(statusCtx).WithError(err).WithFields(map[string]any{
				"profile_id": profileID,
				"online":     online,
			}).Debug("contact status update failed")
		}
	}()
}

// sweepStaleConnections evicts connections whose heartbeat stopped
// without a close frame. Keeps pool slots and presence accurate when
// clients vanish mid-air.
func (m *Manager) sweepStaleConnections(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(staleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.shutdownCh:
			return
		case <-ticker.C:
			m.performSweep(ctx)
		}
	}
}

func (m *Manager) performSweep(ctx context.Context) {
	now := time.Now().Unix()
	staleThreshold := int64(m.opts.HeartbeatInterval.Seconds()) * staleThresholdMultiplier

	staleCount := 0
	m.hub.pool.forEach(func(conn *Connection) {
		if now-conn.LastPong() > staleThreshold {
			util.Log(ctx).WithFields(map[string]any{
				"profile_id":    conn.ProfileID(),
				"connection_id": conn.ID(),
				"age_seconds":   now - conn.LastPong(),
			}).Warn("closing stale connection")

			conn.Close()
			staleCount++
		}
	})

	if staleCount > 0 {
		telemetry.ConnectionsCleanedCounter.Add(ctx, int64(staleCount))
		util.Log(ctx).WithField("count", staleCount).Info("closed stale connections")
	}
}

// Shutdown stops accepting connections, closes the live ones and waits
// for background work to finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		util.Log(ctx).Info("shutting down socket manager")
		close(m.shutdownCh)

		m.hub.pool.forEach(func(conn *Connection) {
			conn.Close()
		})

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			util.Log(ctx).WithFields(map[string]any{
				"connections_total":        atomic.LoadUint64(&m.totalConns),
				"connections_disconnected": atomic.LoadUint64(&m.disconnectedConns),
			}).Info("socket manager shutdown complete")
		case <-time.After(shutdownTimeout):
			util.Log(ctx).Warn("socket manager shutdown timed out")
		}
	})

	return nil
}
