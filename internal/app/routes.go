package app

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/quiltdata/benchling-webhook-sub011/internal/handlers"
	"github.com/quiltdata/benchling-webhook-sub011/internal/middleware"
	"github.com/quiltdata/benchling-webhook-sub011/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes for the application
func SetupRoutes(router *mux.Router, h *handlers.Handlers, authMiddleware func(http.Handler) http.Handler, rateLimiter *ratelimit.Limiter) {
	// Add logging middleware to all routes
	router.Use(middleware.LoggingMiddleware)

	// Webhook ingress. Authenticated by signature, not by JWT, and rate
	// limited per caller address.
	webhook := http.Handler(http.HandlerFunc(h.HandleWebhook))
	if rateLimiter != nil {
		webhook = rateLimiter.HTTPMiddleware(ratelimit.IPBasedKey)(webhook)
	}
	router.Handle("/webhook", webhook).Methods("POST")

	// Health check (no auth required)
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// Swagger UI (no auth required)
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// Login and logout stay outside the protected subrouter
	router.HandleFunc("/api/auth/login", h.HandleLogin).Methods("POST")
	router.HandleFunc("/api/auth/logout", h.HandleLogout).Methods("POST")

	// Protected ops API over the delivery log
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware)
	if rateLimiter != nil {
		api.Use(rateLimiter.HTTPMiddleware(ratelimit.UserBasedKey))
	}

	api.HandleFunc("/auth/credentials", h.HandleChangeCredentials).Methods("POST")
	api.HandleFunc("/deliveries", h.GetDeliveries).Methods("GET")
	api.HandleFunc("/deliveries/{id}", h.GetDelivery).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
}
