package server

import (
	"context"
	"net/http"
	"strings"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyDeviceID stores the authenticated gate device ID
	ContextKeyDeviceID ContextKey = "device_id"
)

// DeviceIDFromContext returns the device authenticated by RequireDeviceAuth.
func DeviceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyDeviceID).(string)
	return id
}

// RequireDeviceAuth is middleware that validates a gate device's Bearer token
func (s *Server) RequireDeviceAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "Missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeUnauthorized(w, "Invalid Authorization header format")
				return
			}

			token := strings.TrimSpace(parts[1])
			if token == "" {
				writeUnauthorized(w, "Empty token")
				return
			}

			deviceID, err := s.devices.Verify(token)
			if err != nil {
				s.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("device token rejected")
				writeUnauthorized(w, "Invalid device token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyDeviceID, deviceID)
			next(w, r.WithContext(ctx))
		}
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="gate"`)
	writeJSONError(w, "unauthorized", description, http.StatusUnauthorized)
}
