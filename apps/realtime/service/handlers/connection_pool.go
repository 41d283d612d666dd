package handlers

import (
	"errors"
	"hash/maphash"
	"sync"
	"sync/atomic"
)

const (
	// poolShardCount is the number of shards for the connection pool.
	// Must be a power of 2 for efficient modulo operation.
	poolShardCount = 32

	minShardCapacity = 64
)

var (
	ErrConnectionPoolFull = errors.New("connection pool full")
	ErrShuttingDown       = errors.New("socket manager is shutting down")
)

// poolShard is a single shard of the connection pool.
type poolShard struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// connectionPool holds live connections keyed by connection ID, sharded
// to keep lock contention low. Size is tracked atomically so reads stay
// lock-free.
type connectionPool struct {
	shards      [poolShardCount]*poolShard
	hashSeed    maphash.Seed
	maxSize     int32
	currentSize int32 // Atomic access
}

func newConnectionPool(maxSize int32) *connectionPool {
	pool := &connectionPool{
		maxSize:  maxSize,
		hashSeed: maphash.MakeSeed(),
	}

	shardCapacity := int(maxSize) / poolShardCount
	if shardCapacity < minShardCapacity {
		shardCapacity = minShardCapacity
	}

	for i := range poolShardCount {
		pool.shards[i] = &poolShard{
			connections: make(map[string]*Connection, shardCapacity),
		}
	}

	return pool
}

// getShard returns the shard for a key. maphash.String is inlined by
// the compiler and performs no allocations.
func (p *connectionPool) getShard(key string) *poolShard {
	h := maphash.String(p.hashSeed, key)
	return p.shards[h&(poolShardCount-1)]
}

// add inserts a connection, returning ErrConnectionPoolFull at
// capacity. An existing connection with the same ID is not replaced.
func (p *connectionPool) add(conn *Connection) error {
	if atomic.LoadInt32(&p.currentSize) >= p.maxSize {
		return ErrConnectionPoolFull
	}

	key := conn.ID()
	shard := p.getShard(key)

	shard.mu.Lock()
	if _, exists := shard.connections[key]; !exists {
		shard.connections[key] = conn
		atomic.AddInt32(&p.currentSize, 1)
	}
	shard.mu.Unlock()
	return nil
}

func (p *connectionPool) get(key string) (*Connection, bool) {
	shard := p.getShard(key)

	shard.mu.RLock()
	conn, exists := shard.connections[key]
	shard.mu.RUnlock()
	return conn, exists
}

// remove deletes and returns the connection, nil if absent.
func (p *connectionPool) remove(key string) *Connection {
	shard := p.getShard(key)

	shard.mu.Lock()
	conn, exists := shard.connections[key]
	if exists {
		delete(shard.connections, key)
		atomic.AddInt32(&p.currentSize, -1)
	}
	shard.mu.Unlock()
	return conn
}

// size returns the current connection count via a lock-free read.
func (p *connectionPool) size() int32 {
	return atomic.LoadInt32(&p.currentSize)
}

// forEach calls fn for every connection. A snapshot is taken per shard
// so fn runs without any pool lock held.
func (p *connectionPool) forEach(fn func(*Connection)) {
	var allConns []*Connection

	for i := range poolShardCount {
		shard := p.shards[i]
		shard.mu.RLock()
		for _, conn := range shard.connections {
			allConns = append(allConns, conn)
		}
		shard.mu.RUnlock()
	}

	for _, conn := range allConns {
		fn(conn)
	}
}
