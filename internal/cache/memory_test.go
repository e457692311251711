package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", "v", time.Hour))
	val, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "short", "v", time.Minute))
	require.NoError(t, m.Set(ctx, "forever", "v", 0)) // no expiry

	now = now.Add(2 * time.Minute)

	_, ok, err := m.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryMGetPositional(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", "1", time.Hour))
	require.NoError(t, m.Set(ctx, "c", "3", time.Hour))

	vals, err := m.MGet(ctx, "a", "b", "c")
	require.NoError(t, err)
	require.Len(t, vals, 3)
	require.NotNil(t, vals[0])
	assert.Equal(t, "1", *vals[0])
	assert.Nil(t, vals[1])
	require.NotNil(t, vals[2])
	assert.Equal(t, "3", *vals[2])
}

func TestMemoryDelAndFlush(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", "1", 0))
	require.NoError(t, m.Set(ctx, "b", "2", 0))

	require.NoError(t, m.Del(ctx, "a"))
	_, ok, _ := m.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "b")
	assert.True(t, ok)

	require.NoError(t, m.Flush(ctx))
	_, ok, _ = m.Get(ctx, "b")
	assert.False(t, ok)
}
