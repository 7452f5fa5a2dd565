package middleware

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggingMiddleware_GeneratesRequestID(t *testing.T) {
	var seenByHandler string
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenByHandler = w.Header().Get(RequestIDHeader)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	requestID := rr.Header().Get(RequestIDHeader)
	assert.Regexp(t, regexp.MustCompile(`^req-[0-9a-f]+-\d+$`), requestID)
	assert.Equal(t, requestID, seenByHandler, "Handler should see the same id the client gets")
}

func TestLoggingMiddleware_PreservesInboundRequestID(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/webhook", nil)
	req.Header.Set(RequestIDHeader, "req-upstreamproxy01-1700000000")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "req-upstreamproxy01-1700000000", rr.Header().Get(RequestIDHeader))
}

func TestLoggingMiddleware_UniqueIDsPerRequest(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ids := make(map[string]bool)
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest("GET", "/health", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		ids[rr.Header().Get(RequestIDHeader)] = true
	}

	assert.Len(t, ids, 50, "Each request should get its own id")
}

func TestLoggingMiddleware_PassesThroughStatusAndBody(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "not found"}`))
	}))

	req := httptest.NewRequest("GET", "/api/deliveries/missing", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"message": "not found"}`, rr.Body.String())
}

func TestLoggingMiddleware_DefaultsToImplicitOK(t *testing.T) {
	// Handlers that never call WriteHeader still report 200
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
