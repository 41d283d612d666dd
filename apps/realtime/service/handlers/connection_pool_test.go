package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(profileID string) *Connection {
	return newConnection(profileID, nil, 8)
}

func TestPoolAddGetRemove(t *testing.T) {
	pool := newConnectionPool(100)

	conn := newTestConnection("profile-a")
	require.NoError(t, pool.add(conn))
	assert.EqualValues(t, 1, pool.size())

	got, ok := pool.get(conn.ID())
	require.True(t, ok)
	assert.Equal(t, conn, got)

	_, ok = pool.get("missing")
	assert.False(t, ok)

	removed := pool.remove(conn.ID())
	assert.Equal(t, conn, removed)
	assert.EqualValues(t, 0, pool.size())

	assert.Nil(t, pool.remove(conn.ID()))
}

func TestPoolAddDuplicate(t *testing.T) {
	pool := newConnectionPool(100)

	conn := newTestConnection("profile-a")
	require.NoError(t, pool.add(conn))
	require.NoError(t, pool.add(conn))

	assert.EqualValues(t, 1, pool.size())
}

func TestPoolCapacity(t *testing.T) {
	pool := newConnectionPool(2)

	require.NoError(t, pool.add(newTestConnection("a")))
	require.NoError(t, pool.add(newTestConnection("b")))

	err := pool.add(newTestConnection("c"))
	assert.ErrorIs(t, err, ErrConnectionPoolFull)
}

func TestPoolForEach(t *testing.T) {
	pool := newConnectionPool(100)

	for range 10 {
		require.NoError(t, pool.add(newTestConnection("profile")))
	}

	seen := 0
	pool.forEach(func(*Connection) { seen++ })
	assert.Equal(t, 10, seen)
}
