package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// StationAuthMiddleware guards the intake endpoints with a shared station
// key. An empty configured key disables the check (development mode).
type StationAuthMiddleware struct {
	stationKey string
}

func NewStationAuthMiddleware(stationKey string) *StationAuthMiddleware {
	return &StationAuthMiddleware{stationKey: stationKey}
}

func (m *StationAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.stationKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := extractKey(r)
		if key == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing station key",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(m.stationKey)) != 1 {
			log.Warn().Msg("auth middleware: invalid station key attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid station key",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractKey(r *http.Request) string {
	if key := r.Header.Get("X-Station-Key"); key != "" {
		return key
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
