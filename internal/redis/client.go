// Package redis wraps the go-redis client with the operations the webhook
// subscriber needs: sliding-window rate limiting, token blacklisting for
// dashboard sessions, and access to the underlying client for redsync.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/errors"
)

// pingTimeout bounds the connection check on startup and health probes.
const pingTimeout = 5 * time.Second

// Client is a thin wrapper over go-redis. All methods are safe for
// concurrent use.
type Client struct {
	rdb    *redis.Client
	config *Config
	seq    uint64
}

// Config carries the connection settings, typically populated from
// environment variables by the app bootstrap.
type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = "localhost:6379"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.ConfigError("redis config is required")
	}
	config.applyDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.ConnectionError(fmt.Sprintf("failed to connect to redis at %s", config.Address), err)
	}

	return &Client{rdb: rdb, config: config}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings the server, for the readiness endpoint.
func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// GetGoRedisClient exposes the underlying go-redis client for libraries
// that build on it directly, such as redsync connection pools.
func (c *Client) GetGoRedisClient() *redis.Client {
	return c.rdb
}

// CheckRateLimit implements a sliding window counter. It returns whether the
// request is allowed and how many requests were already in the window.
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	now := time.Now().UnixNano()
	windowStart := now - window.Nanoseconds()

	// The sequence number keeps members unique when two requests land on
	// the same nanosecond, which would otherwise collapse into one entry.
	member := fmt.Sprintf("%d:%d", now, atomic.AddUint64(&c.seq, 1))

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now), Member: member})

	// Keep entries a bit longer than the window so a stalled key still expires.
	pipe.Expire(ctx, key, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to check rate limit: %w", err)
	}

	// The count is taken before this request's entry is added.
	count := int(countCmd.Val())
	return count < limit, count, nil
}

// Set stores a value with the given expiration. Strings and byte slices are
// stored as-is, anything else is marshalled to JSON.
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, expiration).Err()
}

// Get returns the value at key. A missing key reports redis.Nil, which
// callers use to distinguish absence from failure.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal value for redis: %w", err)
		}
		return data, nil
	}
}
