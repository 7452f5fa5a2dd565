package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltdata/benchling-webhook-sub011/internal/redis"
)

func setupManager(t *testing.T) *Manager {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	redisClient, err := redis.NewClient(&redis.Config{
		Address: s.Addr(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Close() })

	manager, err := NewManager(redisClient)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	return manager
}

func TestManagerRequiresRedis(t *testing.T) {
	manager, err := NewManager(nil)
	assert.Error(t, err)
	assert.Nil(t, manager)
}

func TestAcquireAndReleaseLock(t *testing.T) {
	manager := setupManager(t)
	ctx := context.Background()

	lock, err := manager.AcquireLock(ctx, "test-lock", 30*time.Second)
	require.NoError(t, err)
	require.NotNil(t, lock)

	assert.Equal(t, "test-lock", lock.Key())
	assert.True(t, lock.IsHeld())

	err = lock.Release(ctx)
	assert.NoError(t, err)
	assert.False(t, lock.IsHeld())
}

func TestLockContention(t *testing.T) {
	manager := setupManager(t)
	ctx := context.Background()

	lock1, err := manager.AcquireLock(ctx, "contended-lock", 30*time.Second)
	require.NoError(t, err)

	// A second acquisition of the same key must not succeed while held
	shortCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	lock2, err := manager.AcquireLock(shortCtx, "contended-lock", 30*time.Second)
	assert.Error(t, err)
	assert.Nil(t, lock2)

	// Releasing frees the key for the next acquisition
	require.NoError(t, lock1.Release(ctx))

	lock3, err := manager.AcquireLock(ctx, "contended-lock", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, lock3.IsHeld())
	lock3.Release(ctx)
}

func TestAcquireSweepLock(t *testing.T) {
	manager := setupManager(t)
	ctx := context.Background()

	lock, err := manager.AcquireSweepLock(ctx)
	require.NoError(t, err)
	assert.Equal(t, "retention:sweep", lock.Key())
	lock.Release(ctx)
}

func TestManagerClose(t *testing.T) {
	manager := setupManager(t)
	ctx := context.Background()

	lock, err := manager.AcquireLock(ctx, "close-lock", 30*time.Second)
	require.NoError(t, err)
	require.True(t, lock.IsHeld())

	require.NoError(t, manager.Close())
	assert.False(t, lock.IsHeld())

	// Key is free after Close released everything
	lock2, err := manager.AcquireLock(ctx, "close-lock", 30*time.Second)
	require.NoError(t, err)
	lock2.Release(ctx)
}

func TestDifferentKeysDoNotContend(t *testing.T) {
	manager := setupManager(t)
	ctx := context.Background()

	lock1, err := manager.AcquireLock(ctx, "lock-a", 30*time.Second)
	require.NoError(t, err)
	defer lock1.Release(ctx)

	lock2, err := manager.AcquireLock(ctx, "lock-b", 30*time.Second)
	require.NoError(t, err)
	defer lock2.Release(ctx)

	assert.True(t, lock1.IsHeld())
	assert.True(t, lock2.IsHeld())
}
