package business

import "sync"

// PresenceTracker maps online profiles to their live connection. A
// profile has at most one connection; a newer registration displaces
// the older one.
type PresenceTracker struct {
	mu          sync.RWMutex
	connections map[string]string // profile ID -> connection ID
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		connections: make(map[string]string),
	}
}

// Register binds a profile to a connection, displacing any previous
// binding. Returns the displaced connection ID, if any.
func (pt *PresenceTracker) Register(profileID, connectionID string) string {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	previous := pt.connections[profileID]
	pt.connections[profileID] = connectionID
	if previous == connectionID {
		return ""
	}
	return previous
}

// Unregister removes the binding only when it still points at the given
// connection. A disconnect racing a reconnect must not evict the newer
// connection's entry.
func (pt *PresenceTracker) Unregister(profileID, connectionID string) bool {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.connections[profileID] != connectionID {
		return false
	}
	delete(pt.connections, profileID)
	return true
}

// Resolve returns the live connection ID for a profile.
func (pt *PresenceTracker) Resolve(profileID string) (string, bool) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	connID, ok := pt.connections[profileID]
	return connID, ok
}

// IsOnline reports whether the profile has a live connection.
func (pt *PresenceTracker) IsOnline(profileID string) bool {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	_, ok := pt.connections[profileID]
	return ok
}

// Online snapshots the profile IDs currently connected.
func (pt *PresenceTracker) Online() []string {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	ids := make([]string, 0, len(pt.connections))
	for id := range pt.connections {
		ids = append(ids, id)
	}
	return ids
}
