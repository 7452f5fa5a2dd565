package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quiltdata/benchling-webhook-sub011/internal/handlers"
	"github.com/quiltdata/benchling-webhook-sub011/internal/server"
)

// RunServer builds the handler stack and returns the HTTP server, ready
// to start, along with the configured router.
func (app *App) RunServer() (*server.Server, http.Handler) {
	h := handlers.New(
		app.Storage,
		app.Verifier,
		app.Forwarder,
		app.RedisClient,
		app.Auth,
		app.Config,
		app.Logger,
	)

	router := mux.NewRouter()
	SetupRoutes(router, h, app.Auth.RequireAuth, app.initializeRateLimiter())

	srv := server.New(router, app.Config.Port, app.Config.TLSCertFile, app.Config.TLSKeyFile)

	return srv, router
}
