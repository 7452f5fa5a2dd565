// Package circuitbreaker wraps sony/gobreaker behind a small adapter.
// The forwarder runs every AWS publish through a breaker so a dead
// endpoint sheds load quickly instead of stacking up timeouts.
package circuitbreaker

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/errors"
	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
)

// Config tunes when a breaker opens and how it probes for recovery.
type Config struct {
	// Consecutive failures before the circuit opens.
	MaxFailures int
	// How long the circuit stays open before letting probes through.
	Timeout time.Duration
	// Probes allowed while half-open. The circuit closes again after
	// this many consecutive successes.
	HalfOpenRequests int
}

func DefaultConfig() Config {
	return Config{
		MaxFailures:      5,
		Timeout:          60 * time.Second,
		HalfOpenRequests: 2,
	}
}

// ForwarderConfig is tuned for the AWS forwarding path, which needs more
// tolerance than a user-facing call before the circuit opens.
var ForwarderConfig = Config{
	MaxFailures:      10,
	Timeout:          120 * time.Second,
	HalfOpenRequests: 3,
}

func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.HalfOpenRequests <= 0 {
		return fmt.Errorf("HalfOpenRequests must be positive, got %d", c.HalfOpenRequests)
	}
	return nil
}

// State mirrors the three gobreaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// GoBreakerAdapter runs calls through a named gobreaker instance and
// maps its sentinel errors onto the subscriber's error types.
type GoBreakerAdapter struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// NewGoBreaker builds a breaker from config. An invalid config logs a
// warning and falls back to DefaultConfig rather than failing startup.
func NewGoBreaker(name string, config Config, logger logging.Logger) *GoBreakerAdapter {
	if err := config.Validate(); err != nil {
		if logger != nil {
			logger.Warn("Invalid circuit breaker config, using defaults",
				logging.Field{"error", err.Error()},
				logging.Field{"name", name},
			)
		}
		config = DefaultConfig()
	}

	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.HalfOpenRequests),
		Interval:    time.Minute, // rolling window for the failure counts
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				logging.Field{"breaker", name},
				logging.Field{"from", from.String()},
				logging.Field{"to", to.String()},
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}

			// Client errors mean the request was bad, not that the
			// downstream service is unhealthy
			if errors.IsType(err, errors.ErrTypeValidation) || errors.IsType(err, errors.ErrTypeNotFound) {
				return true
			}

			return false
		},
	}

	return &GoBreakerAdapter{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Execute runs fn inside the breaker. A call rejected by an open or
// saturated breaker comes back as a connection error naming the breaker;
// errors from fn itself pass through unchanged.
func (g *GoBreakerAdapter) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.ConnectionError(fmt.Sprintf("circuit breaker %q rejected the call", g.name), err)
	}

	return err
}

// State reports the breaker's current state.
func (g *GoBreakerAdapter) State() State {
	switch g.breaker.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

func (g *GoBreakerAdapter) IsOpen() bool {
	return g.State() == StateOpen
}
