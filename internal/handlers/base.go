// Package handlers implements the HTTP surface of the webhook subscriber:
// the public webhook ingress, the health endpoint, and the JWT-protected
// ops API over the delivery log.
package handlers

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/quiltdata/benchling-webhook-sub011/internal/auth"
	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
	"github.com/quiltdata/benchling-webhook-sub011/internal/config"
	"github.com/quiltdata/benchling-webhook-sub011/internal/forwarder"
	"github.com/quiltdata/benchling-webhook-sub011/internal/redis"
	"github.com/quiltdata/benchling-webhook-sub011/internal/signature"
	"github.com/quiltdata/benchling-webhook-sub011/internal/storage"
)

type Handlers struct {
	storage   storage.Storage
	verifier  *signature.Verifier
	forwarder forwarder.Forwarder
	redis     *redis.Client
	auth      *auth.Auth
	config    *config.Config
	logger    logging.Logger
}

func New(store storage.Storage, verifier *signature.Verifier, fwd forwarder.Forwarder, redisClient *redis.Client, authHandler *auth.Auth, cfg *config.Config, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Handlers{
		storage:   store,
		verifier:  verifier,
		forwarder: fwd,
		redis:     redisClient,
		auth:      authHandler,
		config:    cfg,
		logger:    logger,
	}
}

// sendJSONResponse writes data as a JSON response body
func (h *Handlers) sendJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

// extractToken pulls the bearer token from the Authorization header or the
// token cookie, reporting which source it came from
func (h *Handlers) extractToken(r *http.Request) (string, string) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer "), "header"
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value, "cookie"
	}
	return "", ""
}

func (h *Handlers) setTokenCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  expiresAt,
	})
}

func (h *Handlers) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// requirePOST rejects non-POST requests with 405 and reports whether the
// handler should continue
func (h *Handlers) requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// isAPIRequest reports whether the request expects a JSON response
func (h *Handlers) isAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (h *Handlers) validatePasswordChange(password, confirm string) error {
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

// getUserIDFromRequest reads the identity header set by the auth middleware
func (h *Handlers) getUserIDFromRequest(r *http.Request) (string, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return "", fmt.Errorf("no authenticated user")
	}
	return userID, nil
}

// clientIP resolves the caller's address: the first X-Forwarded-For hop,
// then X-Real-IP, then the connection's remote address without its port.
func (h *Handlers) clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.Split(forwarded, ",")[0]
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
