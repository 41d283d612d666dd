package business

import (
	"context"
	"sync"

	"github.com/chatmail/service-realtime/apps/realtime/service"
)

// GroupTopic is the room topic a group's live members subscribe to.
func GroupTopic(groupID string) string {
	return "group:" + groupID
}

// RoomRegistry tracks which connections subscribe to which topics and
// fans events out to them. Subscriptions are connection-scoped: a
// dropped connection takes all of its subscriptions with it.
type RoomRegistry struct {
	dispatcher Dispatcher

	mu     sync.RWMutex
	topics map[string]map[string]bool // topic -> connection IDs
	byConn map[string]map[string]bool // connection ID -> topics
}

func NewRoomRegistry(dispatcher Dispatcher) *RoomRegistry {
	return &RoomRegistry{
		dispatcher: dispatcher,
		topics:     make(map[string]map[string]bool),
		byConn:     make(map[string]map[string]bool),
	}
}

// Subscribe adds a connection to a topic.
func (rr *RoomRegistry) Subscribe(topic, connectionID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.topics[topic] == nil {
		rr.topics[topic] = make(map[string]bool)
	}
	rr.topics[topic][connectionID] = true

	if rr.byConn[connectionID] == nil {
		rr.byConn[connectionID] = make(map[string]bool)
	}
	rr.byConn[connectionID][topic] = true
}

// Unsubscribe removes a connection from a topic.
func (rr *RoomRegistry) Unsubscribe(topic, connectionID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.dropLocked(topic, connectionID)
}

// DropConnection removes a connection from every topic it subscribed to.
func (rr *RoomRegistry) DropConnection(connectionID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	for topic := range rr.byConn[connectionID] {
		rr.dropLocked(topic, connectionID)
	}
}

func (rr *RoomRegistry) dropLocked(topic, connectionID string) {
	if conns := rr.topics[topic]; conns != nil {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(rr.topics, topic)
		}
	}
	if topics := rr.byConn[connectionID]; topics != nil {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(rr.byConn, connectionID)
		}
	}
}

// Subscribers snapshots the connection IDs on a topic.
func (rr *RoomRegistry) Subscribers(topic string) []string {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	ids := make([]string, 0, len(rr.topics[topic]))
	for connID := range rr.topics[topic] {
		ids = append(ids, connID)
	}
	return ids
}

// Publish delivers an event to every subscriber of a topic except the
// excluded connection. Delivery is enqueued outside the lock.
func (rr *RoomRegistry) Publish(ctx context.Context, topic string, evt service.Event, excludeConnectionID string) int {
	targets := rr.Subscribers(topic)

	delivered := 0
	for _, connID := range targets {
		if connID == excludeConnectionID {
			continue
		}
		if rr.dispatcher.SendToConnection(ctx, connID, evt) {
			delivered++
		}
	}
	return delivered
}
