package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStationAuthMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("passes through when no key configured", func(t *testing.T) {
		m := NewStationAuthMiddleware("")
		handler := m.Handler(okHandler)

		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects missing key", func(t *testing.T) {
		m := NewStationAuthMiddleware("secret-station-key")
		handler := m.Handler(okHandler)

		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects wrong key", func(t *testing.T) {
		m := NewStationAuthMiddleware("secret-station-key")
		handler := m.Handler(okHandler)

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Station-Key", "wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepts key via header", func(t *testing.T) {
		m := NewStationAuthMiddleware("secret-station-key")
		handler := m.Handler(okHandler)

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Station-Key", "secret-station-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("accepts key via bearer token", func(t *testing.T) {
		m := NewStationAuthMiddleware("secret-station-key")
		handler := m.Handler(okHandler)

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer secret-station-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
