// Package app wires the webhook subscriber together: storage, Redis, the
// signature verifier, event forwarding, retention, and the HTTP server.
package app

import (
	"github.com/quiltdata/benchling-webhook-sub011/internal/auth"
	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
	"github.com/quiltdata/benchling-webhook-sub011/internal/config"
	"github.com/quiltdata/benchling-webhook-sub011/internal/forwarder"
	"github.com/quiltdata/benchling-webhook-sub011/internal/jwks"
	"github.com/quiltdata/benchling-webhook-sub011/internal/locks"
	"github.com/quiltdata/benchling-webhook-sub011/internal/redis"
	"github.com/quiltdata/benchling-webhook-sub011/internal/retention"
	"github.com/quiltdata/benchling-webhook-sub011/internal/signature"
	"github.com/quiltdata/benchling-webhook-sub011/internal/storage"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Storage     storage.Storage
	RedisClient *redis.Client
	Auth        *auth.Auth
	KeyClient   *jwks.Client
	Verifier    *signature.Verifier
	Forwarder   forwarder.Forwarder
	LockManager *locks.Manager
	Sweeper     *retention.Sweeper
	Logger      logging.Logger
}

// New creates an application instance with all dependencies initialized
// in dependency order. Redis is optional: without it rate limits, token
// revocation, and the sweep lock fall back to per-process behavior.
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	if err := app.initializeStorage(); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(); err != nil {
		app.Logger.Warn("Redis initialization failed, continuing without Redis",
			logging.Field{Key: "error", Value: err.Error()})
	}

	app.initializeAuth()
	app.initializeVerifier()

	if err := app.initializeForwarder(); err != nil {
		return nil, err
	}

	if err := app.initializeRetention(); err != nil {
		return nil, err
	}

	return app, nil
}

// Cleanup releases all resources in reverse initialization order.
func (app *App) Cleanup() {
	if app.Sweeper != nil {
		app.Sweeper.Stop()
	}
	if app.Forwarder != nil {
		app.Forwarder.Close()
	}
	if app.LockManager != nil {
		app.LockManager.Close()
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
	if app.Storage != nil {
		app.Storage.Close()
	}
}
