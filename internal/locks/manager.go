// Package locks provides distributed locking using the Redlock algorithm
// implementation from go-redsync/redsync/v4.
//
// The retention sweeper is the main consumer: when several subscriber
// replicas share one database, the sweep lock ensures only one of them runs
// the cleanup pass at a time. Locks renew themselves in the background until
// released, so a slow sweep does not lose its lock mid-run.
package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/errors"
	"github.com/quiltdata/benchling-webhook-sub011/internal/redis"
)

// Lock represents an acquired distributed lock.
type Lock interface {
	// Key returns the unique identifier for this lock.
	Key() string

	// Extend updates the lock's expiration time. The manager's automatic
	// renewal process will use the new expiration duration for future
	// renewals.
	Extend(ctx context.Context, expiration time.Duration) error

	// Release explicitly releases the lock, stopping automatic renewal
	// and removing it from Redis. The lock should not be used after
	// calling Release.
	Release(ctx context.Context) error

	// IsHeld returns true if the lock is currently held by this instance.
	// This checks the local state and does not query Redis.
	IsHeld() bool
}

// Manager acquires and tracks distributed locks backed by redsync.
type Manager struct {
	redsync    *redsync.Redsync
	localLocks map[string]*redsyncLock
	mutex      sync.RWMutex
}

type redsyncLock struct {
	mutex      *redsync.Mutex
	key        string
	expiration time.Duration
	acquired   time.Time
	ctx        context.Context
	cancel     context.CancelFunc
	manager    *Manager
}

// NewManager creates a distributed lock manager on top of a connected
// Redis client.
func NewManager(redisClient *redis.Client) (*Manager, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}

	pool := goredis.NewPool(redisClient.GetGoRedisClient())
	rs := redsync.New(pool)

	return &Manager{
		redsync:    rs,
		localLocks: make(map[string]*redsyncLock),
	}, nil
}

// AcquireLock attempts to acquire a distributed lock using the Redlock
// algorithm. The lock is automatically renewed at 1/3 of the expiration
// interval until released.
func (m *Manager) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	mutex := m.redsync.NewMutex(fmt.Sprintf("lock:%s", key), redsync.WithExpiry(expiration))

	if err := mutex.LockContext(ctx); err != nil {
		return nil, errors.InternalError("failed to acquire distributed lock", err)
	}

	lockCtx, cancel := context.WithCancel(context.Background())
	lock := &redsyncLock{
		mutex:      mutex,
		key:        key,
		expiration: expiration,
		acquired:   time.Now(),
		ctx:        lockCtx,
		cancel:     cancel,
		manager:    m,
	}

	m.mutex.Lock()
	m.localLocks[key] = lock
	m.mutex.Unlock()

	go m.renewLock(lock)

	return lock, nil
}

// AcquireSweepLock acquires the lock that serializes retention sweeps
// across subscriber replicas.
func (m *Manager) AcquireSweepLock(ctx context.Context) (Lock, error) {
	return m.AcquireLock(ctx, "retention:sweep", 5*time.Minute)
}

// renewLock runs in a background goroutine to keep a lock alive. The
// renewal interval is 1/3 of the expiration with a one second minimum.
func (m *Manager) renewLock(lock *redsyncLock) {
	renewInterval := lock.expiration / 3
	if renewInterval < time.Second {
		renewInterval = time.Second
	}

	ticker := time.NewTicker(renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-lock.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			ok, err := lock.mutex.ExtendContext(ctx)
			cancel()

			if err != nil || !ok {
				// Lock lost, clean up
				m.releaseLock(lock)
				return
			}
		}
	}
}

func (m *Manager) releaseLock(lock *redsyncLock) {
	m.mutex.Lock()
	delete(m.localLocks, lock.key)
	m.mutex.Unlock()

	lock.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	lock.mutex.UnlockContext(ctx)
}

// Close releases all locks held by this manager.
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, lock := range m.localLocks {
		lock.cancel()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		lock.mutex.UnlockContext(ctx)
		cancel()
	}

	m.localLocks = make(map[string]*redsyncLock)
	return nil
}

func (rl *redsyncLock) Key() string {
	return rl.key
}

// Extend updates the expiration used by the renewal routine on its next
// cycle.
func (rl *redsyncLock) Extend(ctx context.Context, expiration time.Duration) error {
	rl.expiration = expiration
	return nil
}

// Release stops renewal and releases the lock in Redis.
func (rl *redsyncLock) Release(ctx context.Context) error {
	rl.manager.releaseLock(rl)
	return nil
}

func (rl *redsyncLock) IsHeld() bool {
	select {
	case <-rl.ctx.Done():
		return false
	default:
		return true
	}
}
