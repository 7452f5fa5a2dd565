// Package auth issues and validates the JWTs that protect the ops API.
//
// Tokens are HMAC-SHA256 signed with a shared secret from configuration
// and carry the user identity plus the default-credentials flag. Logout
// revokes a token for its remaining lifetime by blacklisting it, in
// Redis when available so revocation is shared across replicas, in
// memory otherwise.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/errors"
	"github.com/quiltdata/benchling-webhook-sub011/internal/config"
	"github.com/quiltdata/benchling-webhook-sub011/internal/storage"
)

const (
	tokenLifetime   = 24 * time.Hour
	tokenIssuer     = "webhook-subscriber"
	blacklistPrefix = "jwt:blacklist:"
)

// RedisClient is the slice of the redis client used for token
// blacklisting.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// Claims are the JWT claims carried by ops API tokens.
type Claims struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	IsDefault bool   `json:"is_default"`
	jwt.RegisteredClaims
}

// Session describes an authenticated user for handlers.
type Session struct {
	UserID    string
	Username  string
	IsDefault bool
	ExpiresAt time.Time
}

type Auth struct {
	storage storage.Storage
	secret  []byte
	redis   RedisClient

	mu      sync.Mutex
	revoked map[string]time.Time
}

// New creates the auth service. redisClient may be nil, in which case
// revoked tokens are tracked in process memory only.
func New(store storage.Storage, cfg *config.Config, redisClient RedisClient) *Auth {
	return &Auth{
		storage: store,
		secret:  []byte(cfg.JWTSecret),
		redis:   redisClient,
		revoked: make(map[string]time.Time),
	}
}

// GenerateJWT creates a signed token for the given user.
func (a *Auth) GenerateJWT(userID, username string, isDefault bool) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		Username:  username,
		IsDefault: isDefault,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign token", err)
	}

	return signed, nil
}

// ValidateJWT checks the blacklist and then verifies the token
// signature and expiry.
func (a *Auth) ValidateJWT(tokenString string) (*Claims, error) {
	if a.isRevoked(context.Background(), tokenString) {
		return nil, errors.AuthError("token has been revoked")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, errors.AuthError("invalid token").WithContext("error", err.Error())
	}
	if !token.Valid {
		return nil, errors.AuthError("invalid token")
	}

	return claims, nil
}

// Login validates credentials against storage and issues a token.
func (a *Auth) Login(username, password string) (string, *Session, error) {
	user, err := a.storage.ValidateUser(username, password)
	if err != nil {
		return "", nil, errors.AuthError("invalid credentials")
	}

	token, err := a.GenerateJWT(user.ID, user.Username, user.IsDefault)
	if err != nil {
		return "", nil, err
	}

	session := &Session{
		UserID:    user.ID,
		Username:  user.Username,
		IsDefault: user.IsDefault,
		ExpiresAt: time.Now().Add(tokenLifetime),
	}

	return token, session, nil
}

// Logout revokes a token for its remaining lifetime. The token must
// still be valid, revoking an expired or forged token is an error.
func (a *Auth) Logout(tokenString string) error {
	claims, err := a.ValidateJWT(tokenString)
	if err != nil {
		return err
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}

	if a.redis == nil {
		a.mu.Lock()
		a.revoked[tokenString] = claims.ExpiresAt.Time
		a.mu.Unlock()
		return nil
	}

	if err := a.redis.Set(context.Background(), blacklistPrefix+tokenString, "1", ttl); err != nil {
		return errors.InternalError("failed to blacklist token", err)
	}

	return nil
}

// ValidateSession is a convenience wrapper for handlers that only need
// a yes/no answer plus the identity.
func (a *Auth) ValidateSession(tokenString string) (*Session, bool) {
	claims, err := a.ValidateJWT(tokenString)
	if err != nil {
		return nil, false
	}

	return &Session{
		UserID:    claims.UserID,
		Username:  claims.Username,
		IsDefault: claims.IsDefault,
		ExpiresAt: claims.ExpiresAt.Time,
	}, true
}

// ChangeCredentials replaces a user's username and password. Storage
// clears the default-credentials flag as part of the update.
func (a *Auth) ChangeCredentials(userID, username, password string) error {
	if username == "" || password == "" {
		return errors.ValidationError("username and password are required")
	}
	if err := a.storage.UpdateUserCredentials(userID, username, password); err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	return nil
}

// RequireAuth wraps a handler with bearer token authentication. The
// token is taken from the Authorization header or the token cookie.
// Identity headers are set for downstream handlers, overwriting
// anything the client sent.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractToken(r)
		if tokenString == "" {
			unauthorized(w)
			return
		}

		claims, err := a.ValidateJWT(tokenString)
		if err != nil {
			unauthorized(w)
			return
		}

		r.Header.Set("X-User-ID", claims.UserID)
		r.Header.Set("X-Username", claims.Username)
		r.Header.Del("X-Is-Default")
		if claims.IsDefault {
			r.Header.Set("X-Is-Default", "true")
		}

		next.ServeHTTP(w, r)
	})
}

func (a *Auth) isRevoked(ctx context.Context, tokenString string) bool {
	if a.redis != nil {
		// A hit on the blacklist key means the token was revoked.
		if _, err := a.redis.Get(ctx, blacklistPrefix+tokenString); err == nil {
			return true
		}
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	expiry, ok := a.revoked[tokenString]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(a.revoked, tokenString)
		return false
	}
	return true
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error": "Authentication required"}`))
}
