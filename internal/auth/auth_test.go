package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quiltdata/benchling-webhook-sub011/internal/auth"
	"github.com/quiltdata/benchling-webhook-sub011/internal/common/errors"
	"github.com/quiltdata/benchling-webhook-sub011/internal/config"
	"github.com/quiltdata/benchling-webhook-sub011/internal/storage"
)

const testSecret = "unit-test-secret-0123456789abcdef"

// MockStorage implements storage.Storage. Only the user methods carry
// expectations; the delivery methods are never reached from auth.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) ValidateUser(username, password string) (*storage.User, error) {
	args := m.Called(username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.User), args.Error(1)
}

func (m *MockStorage) UpdateUserCredentials(userID string, username, password string) error {
	args := m.Called(userID, username, password)
	return args.Error(0)
}

func (m *MockStorage) Close() error                               { return nil }
func (m *MockStorage) Health() error                              { return nil }
func (m *MockStorage) CreateUser(username, password string) (*storage.User, error) {
	return nil, nil
}
func (m *MockStorage) GetUser(userID string) (*storage.User, error)             { return nil, nil }
func (m *MockStorage) GetUserByUsername(username string) (*storage.User, error) { return nil, nil }
func (m *MockStorage) IsDefaultUser(userID string) (bool, error)                { return false, nil }
func (m *MockStorage) GetUserCount() (int, error)                               { return 0, nil }
func (m *MockStorage) CreateDelivery(delivery *storage.Delivery) error          { return nil }
func (m *MockStorage) GetDelivery(id string) (*storage.Delivery, error)         { return nil, nil }
func (m *MockStorage) GetDeliveryByMessageID(messageID string) (*storage.Delivery, error) {
	return nil, nil
}
func (m *MockStorage) ListDeliveries(filters storage.DeliveryFilters, limit, offset int) ([]*storage.Delivery, int, error) {
	return nil, 0, nil
}
func (m *MockStorage) MarkDeliveryForwarded(id string) error               { return nil }
func (m *MockStorage) DeleteOldDeliveries(before time.Time) (int64, error) { return 0, nil }
func (m *MockStorage) GetStats() (*storage.Stats, error)                   { return nil, nil }

// MockRedis stands in for the token blacklist backend.
type MockRedis struct {
	mock.Mock
}

func (m *MockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockRedis) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func newTestAuth(t *testing.T) (*auth.Auth, *MockStorage, *MockRedis) {
	t.Helper()
	store := new(MockStorage)
	redis := new(MockRedis)
	return auth.New(store, &config.Config{JWTSecret: testSecret}, redis), store, redis
}

// expectNotRevoked arms the blacklist lookup that every validation
// performs before parsing the token.
func expectNotRevoked(redis *MockRedis, token string) {
	redis.On("Get", mock.Anything, "jwt:blacklist:"+token).
		Return("", fmt.Errorf("redis: nil")).Once()
}

func expectRevoked(redis *MockRedis, token string) {
	redis.On("Get", mock.Anything, "jwt:blacklist:"+token).Return("1", nil).Once()
}

func issueToken(t *testing.T, a *auth.Auth, userID, username string, isDefault bool) string {
	t.Helper()
	token, err := a.GenerateJWT(userID, username, isDefault)
	require.NoError(t, err)
	return token
}

func expiredToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID:   "usr_4xPzW2",
		Username: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			Issuer:    "webhook-subscriber",
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// noneAlgToken builds a token claiming alg=none, the classic signature
// stripping attack.
func noneAlgToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{
		UserID:   "usr_4xPzW2",
		Username: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "webhook-subscriber",
		},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return signed
}

func TestGenerateJWTClaims(t *testing.T) {
	authService, _, _ := newTestAuth(t)

	token := issueToken(t, authService, "usr_4xPzW2", "operator", false)

	parsed, err := jwt.ParseWithClaims(token, &auth.Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(*auth.Claims)
	assert.Equal(t, "usr_4xPzW2", claims.UserID)
	assert.Equal(t, "operator", claims.Username)
	assert.False(t, claims.IsDefault)
	assert.Equal(t, "webhook-subscriber", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestGenerateJWTDefaultFlag(t *testing.T) {
	authService, _, redis := newTestAuth(t)

	token := issueToken(t, authService, "usr_admin01", "admin", true)

	expectNotRevoked(redis, token)
	claims, err := authService.ValidateJWT(token)
	require.NoError(t, err)
	assert.True(t, claims.IsDefault)
}

func TestValidateJWTRejections(t *testing.T) {
	authService, _, redis := newTestAuth(t)

	otherAuth := auth.New(new(MockStorage), &config.Config{JWTSecret: "a-completely-different-secret"}, nil)
	foreign := issueToken(t, otherAuth, "usr_4xPzW2", "operator", false)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "invalid.token.here"},
		{"empty", ""},
		{"wrong secret", foreign},
		{"expired", expiredToken(t)},
		{"alg none", noneAlgToken(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectNotRevoked(redis, tt.token)

			claims, err := authService.ValidateJWT(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
		})
	}
}

func TestValidateJWTChecksBlacklistFirst(t *testing.T) {
	authService, _, redis := newTestAuth(t)

	token := issueToken(t, authService, "usr_4xPzW2", "operator", false)
	expectRevoked(redis, token)

	claims, err := authService.ValidateJWT(token)
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.Contains(t, err.Error(), "token has been revoked")
	redis.AssertExpectations(t)
}

func TestValidateJWTWithoutRedis(t *testing.T) {
	authService := auth.New(new(MockStorage), &config.Config{JWTSecret: testSecret}, nil)

	token := issueToken(t, authService, "usr_4xPzW2", "operator", false)

	claims, err := authService.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_4xPzW2", claims.UserID)
}

func TestLogin(t *testing.T) {
	authService, store, redis := newTestAuth(t)

	store.On("ValidateUser", "operator", "correct-horse").Return(&storage.User{
		ID:       "usr_4xPzW2",
		Username: "operator",
	}, nil).Once()

	token, session, err := authService.Login("operator", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotNil(t, session)
	assert.Equal(t, "usr_4xPzW2", session.UserID)
	assert.Equal(t, "operator", session.Username)
	assert.False(t, session.IsDefault)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), session.ExpiresAt, time.Minute)

	// The issued token must round-trip through validation
	expectNotRevoked(redis, token)
	claims, err := authService.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, claims.UserID)

	store.AssertExpectations(t)
}

func TestLoginDefaultUser(t *testing.T) {
	authService, store, redis := newTestAuth(t)

	store.On("ValidateUser", "admin", "admin").Return(&storage.User{
		ID:        "usr_admin01",
		Username:  "admin",
		IsDefault: true,
	}, nil).Once()

	token, session, err := authService.Login("admin", "admin")
	require.NoError(t, err)
	assert.True(t, session.IsDefault)

	expectNotRevoked(redis, token)
	claims, err := authService.ValidateJWT(token)
	require.NoError(t, err)
	assert.True(t, claims.IsDefault)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	authService, store, _ := newTestAuth(t)

	store.On("ValidateUser", "operator", "wrong").
		Return(nil, errors.AuthError("invalid credentials")).Once()

	token, session, err := authService.Login("operator", "wrong")
	require.Error(t, err)
	assert.Empty(t, token)
	assert.Nil(t, session)
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
}

func TestLogoutBlacklistsForRemainingLifetime(t *testing.T) {
	authService, _, redis := newTestAuth(t)

	token := issueToken(t, authService, "usr_4xPzW2", "operator", false)

	expectNotRevoked(redis, token)
	redis.On("Set", mock.Anything, "jwt:blacklist:"+token, "1", mock.MatchedBy(func(ttl time.Duration) bool {
		return ttl > 23*time.Hour && ttl <= 24*time.Hour
	})).Return(nil).Once()

	require.NoError(t, authService.Logout(token))
	redis.AssertExpectations(t)
}

func TestLogoutRejectsInvalidToken(t *testing.T) {
	authService, _, redis := newTestAuth(t)

	expectNotRevoked(redis, "not.a.token")
	assert.Error(t, authService.Logout("not.a.token"))

	expired := expiredToken(t)
	expectNotRevoked(redis, expired)
	assert.Error(t, authService.Logout(expired))
}

func TestLogoutSurfacesRedisFailure(t *testing.T) {
	authService, _, redis := newTestAuth(t)

	token := issueToken(t, authService, "usr_4xPzW2", "operator", false)

	expectNotRevoked(redis, token)
	redis.On("Set", mock.Anything, "jwt:blacklist:"+token, "1", mock.AnythingOfType("time.Duration")).
		Return(fmt.Errorf("connection refused")).Once()

	err := authService.Logout(token)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeInternal))
}

func TestLogoutWithoutRedisUsesLocalBlacklist(t *testing.T) {
	authService := auth.New(new(MockStorage), &config.Config{JWTSecret: testSecret}, nil)

	token := issueToken(t, authService, "usr_4xPzW2", "operator", false)
	require.NoError(t, authService.Logout(token))

	claims, err := authService.ValidateJWT(token)
	require.Error(t, err)
	assert.Nil(t, claims)
	assert.Contains(t, err.Error(), "token has been revoked")
}

func TestValidateSession(t *testing.T) {
	authService, _, redis := newTestAuth(t)

	token := issueToken(t, authService, "usr_4xPzW2", "operator", false)

	expectNotRevoked(redis, token)
	session, ok := authService.ValidateSession(token)
	require.True(t, ok)
	assert.Equal(t, "usr_4xPzW2", session.UserID)
	assert.Equal(t, "operator", session.Username)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), session.ExpiresAt, time.Minute)

	expectNotRevoked(redis, "garbage")
	session, ok = authService.ValidateSession("garbage")
	assert.False(t, ok)
	assert.Nil(t, session)
}

func TestRequireAuth(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "user=%s name=%s default=%s",
			r.Header.Get("X-User-ID"), r.Header.Get("X-Username"), r.Header.Get("X-Is-Default"))
	})

	tests := []struct {
		name       string
		request    func(t *testing.T, a *auth.Auth, redis *MockRedis) *http.Request
		wantStatus int
		wantBody   string
	}{
		{
			name: "bearer token",
			request: func(t *testing.T, a *auth.Auth, redis *MockRedis) *http.Request {
				token := issueToken(t, a, "usr_4xPzW2", "operator", false)
				expectNotRevoked(redis, token)
				req := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
				req.Header.Set("Authorization", "Bearer "+token)
				return req
			},
			wantStatus: http.StatusOK,
			wantBody:   "user=usr_4xPzW2 name=operator default=",
		},
		{
			name: "token cookie",
			request: func(t *testing.T, a *auth.Auth, redis *MockRedis) *http.Request {
				token := issueToken(t, a, "usr_4xPzW2", "operator", false)
				expectNotRevoked(redis, token)
				req := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
				req.AddCookie(&http.Cookie{Name: "token", Value: token})
				return req
			},
			wantStatus: http.StatusOK,
			wantBody:   "user=usr_4xPzW2 name=operator default=",
		},
		{
			name: "default user flag",
			request: func(t *testing.T, a *auth.Auth, redis *MockRedis) *http.Request {
				token := issueToken(t, a, "usr_admin01", "admin", true)
				expectNotRevoked(redis, token)
				req := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
				req.Header.Set("Authorization", "Bearer "+token)
				return req
			},
			wantStatus: http.StatusOK,
			wantBody:   "user=usr_admin01 name=admin default=true",
		},
		{
			name: "spoofed identity headers are replaced",
			request: func(t *testing.T, a *auth.Auth, redis *MockRedis) *http.Request {
				token := issueToken(t, a, "usr_4xPzW2", "operator", false)
				expectNotRevoked(redis, token)
				req := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
				req.Header.Set("Authorization", "Bearer "+token)
				req.Header.Set("X-User-ID", "usr_forged")
				req.Header.Set("X-Is-Default", "true")
				return req
			},
			wantStatus: http.StatusOK,
			wantBody:   "user=usr_4xPzW2 name=operator default=",
		},
		{
			name: "no credentials",
			request: func(t *testing.T, a *auth.Auth, redis *MockRedis) *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Authentication required",
		},
		{
			name: "invalid token",
			request: func(t *testing.T, a *auth.Auth, redis *MockRedis) *http.Request {
				expectNotRevoked(redis, "invalid.token")
				req := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
				req.Header.Set("Authorization", "Bearer invalid.token")
				return req
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Authentication required",
		},
		{
			name: "revoked token",
			request: func(t *testing.T, a *auth.Auth, redis *MockRedis) *http.Request {
				token := issueToken(t, a, "usr_4xPzW2", "operator", false)
				expectRevoked(redis, token)
				req := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
				req.Header.Set("Authorization", "Bearer "+token)
				return req
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Authentication required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authService, _, redis := newTestAuth(t)
			handler := authService.RequireAuth(echo)

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, tt.request(t, authService, redis))

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				// Exact match so a stray default=true cannot slip through
				assert.Equal(t, tt.wantBody, rr.Body.String())
			} else {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
			redis.AssertExpectations(t)
		})
	}
}

func TestChangeCredentials(t *testing.T) {
	tests := []struct {
		name       string
		username   string
		password   string
		updateErr  error
		wantUpdate bool
		wantErr    bool
	}{
		{"valid change", "operator", "rotated-pass-1", nil, true, false},
		{"empty username", "", "rotated-pass-1", nil, false, true},
		{"empty password", "operator", "", nil, false, true},
		{"storage failure", "operator", "rotated-pass-1", fmt.Errorf("disk full"), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authService, store, _ := newTestAuth(t)
			if tt.wantUpdate {
				store.On("UpdateUserCredentials", "usr_4xPzW2", tt.username, tt.password).
					Return(tt.updateErr).Once()
			}

			err := authService.ChangeCredentials("usr_4xPzW2", tt.username, tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			store.AssertExpectations(t)
		})
	}
}
