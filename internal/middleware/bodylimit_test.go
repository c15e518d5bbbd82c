package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/packstation/station-server-go/internal/errors"
)

func TestBodyLimitMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("passes a normal scan payload through", func(t *testing.T) {
		m := NewBodyLimitMiddleware(0)
		handler := m.Handler(okHandler)

		req := httptest.NewRequest("POST", "/scan", strings.NewReader(`{"payload":"1^ORD-42^^PKG-777"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects an oversized declared body", func(t *testing.T) {
		m := NewBodyLimitMiddleware(0)
		handler := m.Handler(okHandler)

		req := httptest.NewRequest("POST", "/scan", strings.NewReader("x"))
		req.ContentLength = DefaultMaxBodySize + 1
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

		var resp struct {
			Code apperrors.ErrorCode `json:"code"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, apperrors.ErrCodeValidation, resp.Code)
	})
}
