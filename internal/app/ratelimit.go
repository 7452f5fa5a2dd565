package app

import (
	"strconv"
	"time"

	"github.com/quiltdata/benchling-webhook-sub011/internal/ratelimit"
)

// initializeRateLimiter builds the shared request limiter. With Redis the
// budget is shared across replicas, otherwise each replica counts alone.
func (app *App) initializeRateLimiter() *ratelimit.Limiter {
	defaultLimit, _ := strconv.Atoi(app.Config.RateLimitDefault)
	if defaultLimit == 0 {
		defaultLimit = 100
	}

	window, _ := time.ParseDuration(app.Config.RateLimitWindow)
	if window == 0 {
		window = time.Minute
	}

	return ratelimit.NewLimiter(app.RedisClient, &ratelimit.Config{
		DefaultLimit:  defaultLimit,
		DefaultWindow: window,
		Enabled:       app.Config.RateLimitEnabled,
	})
}
