package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/errors"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("connects and pings", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()

		client, err := NewClient(&Config{Address: mr.Addr(), PoolSize: 5})
		require.NoError(t, err)
		assert.NoError(t, client.Close())
	})

	t.Run("nil config", func(t *testing.T) {
		client, err := NewClient(nil)
		assert.Nil(t, client)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})

	t.Run("unreachable server", func(t *testing.T) {
		client, err := NewClient(&Config{Address: "localhost:1"})
		assert.Nil(t, client)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
		assert.Contains(t, err.Error(), "failed to connect to redis")
	})
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, "localhost:6379", cfg.Address)
	assert.Equal(t, 10, cfg.PoolSize)
}

func TestHealth(t *testing.T) {
	client, mr := newTestClient(t)

	assert.NoError(t, client.Health())

	mr.Close()
	assert.Error(t, client.Health())
}

func TestGetGoRedisClient(t *testing.T) {
	client, _ := newTestClient(t)

	rdb := client.GetGoRedisClient()
	require.NotNil(t, rdb)

	// The exposed client talks to the same server.
	assert.NoError(t, rdb.Ping(context.Background()).Err())
}

func TestCheckRateLimit(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	key := "rate_limit:webhook:benchling"
	limit := 5

	// The reported count is the number of requests already in the window,
	// so the first request sees zero.
	for i := 0; i < limit; i++ {
		allowed, count, err := client.CheckRateLimit(ctx, key, limit, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, count)
	}

	allowed, count, err := client.CheckRateLimit(ctx, key, limit, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, limit, count)
}

func TestCheckRateLimitWindowSlides(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	key := "rate_limit:webhook:short"
	window := 50 * time.Millisecond

	for i := 0; i < 3; i++ {
		allowed, _, err := client.CheckRateLimit(ctx, key, 3, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, _, err := client.CheckRateLimit(ctx, key, 3, window)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Old entries are pruned once they age out of the window.
	time.Sleep(window + 20*time.Millisecond)

	allowed, count, err := client.CheckRateLimit(ctx, key, 3, window)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 0, count)
}

func TestCheckRateLimitConcurrent(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	const limit = 10
	const requests = 20

	var wg sync.WaitGroup
	results := make(chan bool, requests)
	errs := make(chan error, requests)

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _, err := client.CheckRateLimit(ctx, "rate_limit:webhook:racy", limit, time.Minute)
			if err != nil {
				errs <- err
				return
			}
			results <- allowed
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("CheckRateLimit failed: %v", err)
	}

	allowedCount := 0
	for allowed := range results {
		if allowed {
			allowedCount++
		}
	}
	assert.Equal(t, limit, allowedCount)
}

func TestSetAndGet(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	t.Run("string survives round trip", func(t *testing.T) {
		key := "jwt:blacklist:abc123"
		require.NoError(t, client.Set(ctx, key, "1", time.Hour))

		got, err := client.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "1", got)
	})

	t.Run("bytes stored as-is", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "raw", []byte("payload"), time.Hour))

		got, err := client.Get(ctx, "raw")
		require.NoError(t, err)
		assert.Equal(t, "payload", got)
	})

	t.Run("structs marshalled to JSON", func(t *testing.T) {
		session := map[string]interface{}{"user": "usr_4xPzW2", "default": false}
		require.NoError(t, client.Set(ctx, "session", session, time.Hour))

		got, err := client.Get(ctx, "session")
		require.NoError(t, err)
		assert.Contains(t, got, `"user":"usr_4xPzW2"`)
	})

	t.Run("missing key reports redis.Nil", func(t *testing.T) {
		_, err := client.Get(ctx, "jwt:blacklist:never-revoked")
		assert.Equal(t, redis.Nil, err)
	})

	t.Run("expiration is honored", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "ephemeral", "x", time.Second))

		mr.FastForward(2 * time.Second)

		_, err := client.Get(ctx, "ephemeral")
		assert.Equal(t, redis.Nil, err)
	})
}

func TestSetRejectsUnmarshalableValue(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.Set(context.Background(), "bad", make(chan int), time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to marshal value")
}

func TestOperationsFailAfterServerStops(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	mr.Close()

	assert.Error(t, client.Set(ctx, "k", "v", time.Hour))

	_, err := client.Get(ctx, "k")
	assert.Error(t, err)

	_, _, err = client.CheckRateLimit(ctx, "rate_limit:webhook:down", 10, time.Minute)
	assert.Error(t, err)
}

func TestConcurrentSetAndGet(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			key := fmt.Sprintf("jwt:blacklist:token-%d", id)
			if err := client.Set(ctx, key, "1", time.Hour); err != nil {
				t.Errorf("Set(%s) failed: %v", key, err)
				return
			}

			got, err := client.Get(ctx, key)
			if err != nil {
				t.Errorf("Get(%s) failed: %v", key, err)
				return
			}
			if got != "1" {
				t.Errorf("Get(%s) = %q, want %q", key, got, "1")
			}
		}(i)
	}
	wg.Wait()
}
