// Package ratelimit provides rate limiting with HTTP middleware. Limits are
// tracked in a Redis sliding window shared across replicas when a Redis
// client is available, and in per-key local token buckets otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/errors"
	"github.com/quiltdata/benchling-webhook-sub011/internal/redis"
)

const (
	// localPrunePeriod is how long an idle local bucket survives before the
	// next prune removes it.
	localPrunePeriod = 5 * time.Minute

	// maxLocalKeys triggers an immediate prune when the local bucket map
	// grows past it.
	maxLocalKeys = 10000
)

type Limiter struct {
	redis  *redis.Client
	config *Config

	mu        sync.Mutex
	local     map[string]*localBucket
	lastPrune time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

type Config struct {
	DefaultLimit  int           `json:"default_limit"`
	DefaultWindow time.Duration `json:"default_window"`
	Enabled       bool          `json:"enabled"`
}

type RateLimit struct {
	Limit     int           `json:"limit"`
	Window    time.Duration `json:"window"`
	Remaining int           `json:"remaining"`
	ResetTime time.Time     `json:"reset_time"`
}

func NewLimiter(redisClient *redis.Client, config *Config) *Limiter {
	if config == nil {
		config = &Config{
			DefaultLimit:  100,
			DefaultWindow: time.Minute,
			Enabled:       true,
		}
	}

	return &Limiter{
		redis:     redisClient,
		config:    config,
		local:     make(map[string]*localBucket),
		lastPrune: time.Now(),
	}
}

// CheckLimit counts the request against the key's budget and reports how
// much of it is left. Remaining is the budget as seen before this request,
// so an admitted request always reports at least 1 and a denied request
// reports 0. Disabled limiters report the full budget.
func (l *Limiter) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimit, error) {
	rateLimit := &RateLimit{
		Limit:     limit,
		Window:    window,
		ResetTime: time.Now().Add(window),
	}

	if !l.config.Enabled {
		rateLimit.Remaining = limit
		return rateLimit, nil
	}

	if l.redis == nil {
		rateLimit.Remaining = l.checkLocal(key, limit, window)
		return rateLimit, nil
	}

	_, current, err := l.redis.CheckRateLimit(ctx, fmt.Sprintf("rate_limit:%s", key), limit, window)
	if err != nil {
		return nil, errors.InternalError("failed to check rate limit", err)
	}

	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}
	rateLimit.Remaining = remaining

	return rateLimit, nil
}

func (l *Limiter) CheckDefaultLimit(ctx context.Context, key string) (*RateLimit, error) {
	return l.CheckLimit(ctx, key, l.config.DefaultLimit, l.config.DefaultWindow)
}

// checkLocal runs the request against the key's token bucket and returns the
// remaining budget under the same pre-request convention as the Redis path.
func (l *Limiter) checkLocal(key string, limit int, window time.Duration) int {
	if limit <= 0 {
		return 0
	}

	bucket := l.localLimiter(key, limit, window)
	if !bucket.Allow() {
		return 0
	}

	remaining := int(bucket.Tokens()) + 1
	if remaining > limit {
		remaining = limit
	}
	return remaining
}

// localLimiter returns the bucket for the key, creating it with the window's
// refill rate and a burst of the full limit.
func (l *Limiter) localLimiter(key string, limit int, window time.Duration) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastPrune) > localPrunePeriod || len(l.local) > maxLocalKeys {
		l.pruneLocked()
	}

	bucket, ok := l.local[key]
	if !ok {
		bucket = &localBucket{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
		}
		l.local[key] = bucket
	}
	bucket.lastUsed = time.Now()

	return bucket.limiter
}

func (l *Limiter) pruneLocked() {
	cutoff := time.Now().Add(-localPrunePeriod)
	for key, bucket := range l.local {
		if bucket.lastUsed.Before(cutoff) {
			delete(l.local, key)
		}
	}
	l.lastPrune = time.Now()
}

// HTTPMiddleware limits requests per key and sets the X-RateLimit response
// headers. Requests with an empty key, and requests where the limit check
// itself fails, are admitted.
func (l *Limiter) HTTPMiddleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			rateLimit, err := l.CheckDefaultLimit(r.Context(), key)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rateLimit.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", rateLimit.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", rateLimit.ResetTime.Unix()))

			if rateLimit.Remaining <= 0 {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateLimit.Window.Seconds())))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPBasedKey keys requests by client address. Behind a proxy the first
// entry of X-Forwarded-For is the client; the rest of the list is proxies.
func IPBasedKey(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if i := strings.IndexByte(ip, ','); i >= 0 {
			ip = ip[:i]
		}
		return "ip:" + strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + r.RemoteAddr
}

// UserBasedKey keys requests by the dashboard user the auth middleware
// identified. Requests without one are not limited.
func UserBasedKey(r *http.Request) string {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return "user:" + userID
	}
	return ""
}
