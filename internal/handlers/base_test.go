package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractToken(t *testing.T) {
	h := &Handlers{}

	t.Run("ExtractFromHeader", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer test-token-123")

		token, source := h.extractToken(req)
		assert.Equal(t, "test-token-123", token)
		assert.Equal(t, "header", source)
	})

	t.Run("ExtractFromCookie", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: "cookie-token-456"})

		token, source := h.extractToken(req)
		assert.Equal(t, "cookie-token-456", token)
		assert.Equal(t, "cookie", source)
	})

	t.Run("NoToken", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)

		token, source := h.extractToken(req)
		assert.Equal(t, "", token)
		assert.Equal(t, "", source)
	})

	t.Run("HeaderPriority", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		req.AddCookie(&http.Cookie{Name: "token", Value: "cookie-token"})

		token, source := h.extractToken(req)
		assert.Equal(t, "header-token", token)
		assert.Equal(t, "header", source)
	})
}

func TestCookieHelpers(t *testing.T) {
	h := &Handlers{}

	t.Run("SetTokenCookie", func(t *testing.T) {
		rr := httptest.NewRecorder()
		expiresAt := time.Now().Add(24 * time.Hour)

		h.setTokenCookie(rr, "test-token", expiresAt)

		cookies := rr.Result().Cookies()
		assert.Len(t, cookies, 1)

		cookie := cookies[0]
		assert.Equal(t, "token", cookie.Name)
		assert.Equal(t, "test-token", cookie.Value)
		assert.Equal(t, "/", cookie.Path)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	})

	t.Run("ClearTokenCookie", func(t *testing.T) {
		rr := httptest.NewRecorder()

		h.clearTokenCookie(rr)

		cookies := rr.Result().Cookies()
		assert.Len(t, cookies, 1)

		cookie := cookies[0]
		assert.Equal(t, "token", cookie.Name)
		assert.Equal(t, "", cookie.Value)
		assert.Equal(t, -1, cookie.MaxAge)
		assert.True(t, cookie.HttpOnly)
	})
}

func TestRequirePOST(t *testing.T) {
	h := &Handlers{}

	t.Run("ValidPOST", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/test", nil)
		rr := httptest.NewRecorder()

		result := h.requirePOST(rr, req)

		assert.True(t, result)
		assert.Equal(t, http.StatusOK, rr.Code) // No error written
	})

	t.Run("InvalidGET", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		rr := httptest.NewRecorder()

		result := h.requirePOST(rr, req)

		assert.False(t, result)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
		assert.Contains(t, rr.Body.String(), "Method not allowed")
	})
}

func TestIsAPIRequest(t *testing.T) {
	h := &Handlers{}

	t.Run("APIPath", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/deliveries", nil)
		assert.True(t, h.isAPIRequest(req))
	})

	t.Run("JSONAcceptHeader", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Accept", "application/json")
		assert.True(t, h.isAPIRequest(req))
	})

	t.Run("WebRequest", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/dashboard", nil)
		assert.False(t, h.isAPIRequest(req))
	})
}

func TestSendJSONResponse(t *testing.T) {
	h := &Handlers{}

	rr := httptest.NewRecorder()
	data := map[string]string{"message": "test response"}

	h.sendJSONResponse(rr, data)

	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "test response")
	assert.Contains(t, rr.Body.String(), "message")
}

func TestValidatePasswordChange(t *testing.T) {
	h := &Handlers{}

	t.Run("ValidPasswords", func(t *testing.T) {
		err := h.validatePasswordChange("password123", "password123")
		assert.NoError(t, err)
	})

	t.Run("PasswordMismatch", func(t *testing.T) {
		err := h.validatePasswordChange("password123", "different123")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "passwords do not match")
	})

	t.Run("PasswordTooShort", func(t *testing.T) {
		err := h.validatePasswordChange("short", "short")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must be at least 8 characters")
	})
}

func TestClientIP(t *testing.T) {
	h := &Handlers{}

	t.Run("ForwardedForFirstHop", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 198.51.100.1")

		assert.Equal(t, "203.0.113.7", h.clientIP(req))
	})

	t.Run("RealIP", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		req.Header.Set("X-Real-IP", "203.0.113.7")

		assert.Equal(t, "203.0.113.7", h.clientIP(req))
	})

	t.Run("RemoteAddrStripPort", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook", nil)
		req.RemoteAddr = "203.0.113.7:54321"

		assert.Equal(t, "203.0.113.7", h.clientIP(req))
	})

	t.Run("RemoteAddrWithoutPort", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook", nil)
		req.RemoteAddr = "203.0.113.7"

		assert.Equal(t, "203.0.113.7", h.clientIP(req))
	})
}

func TestFlattenHeaders(t *testing.T) {
	header := http.Header{
		"Webhook-Id":        {"msg_2NIiNvykOqNJCxatmB"},
		"Webhook-Timestamp": {"1700000000"},
		"Accept":            {"application/json", "text/plain"},
		"Empty":             {},
	}

	flat := flattenHeaders(header)

	assert.Equal(t, "msg_2NIiNvykOqNJCxatmB", flat["Webhook-Id"])
	assert.Equal(t, "1700000000", flat["Webhook-Timestamp"])
	assert.Equal(t, "application/json", flat["Accept"])
	assert.NotContains(t, flat, "Empty")
}
