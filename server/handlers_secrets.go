package server

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/jrsteele09/go-gate-pass/gatepass"
	"github.com/jrsteele09/go-gate-pass/secrets"
)

type issuedSecretResponse struct {
	UserID     string    `json:"user_id"`
	Version    int       `json:"version"`
	Secret     string    `json:"secret"` // standard base64
	ActiveFrom time.Time `json:"active_from"`
}

// IssueSecretHandler issues (or rotates) the secret for the user in the path and returns it once.
// The caller is trusted to have authenticated the holder; the secret store itself never leaves
// the server.
func (s *Server) IssueSecretHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("user")
		if err := gatepass.ValidateUserID(userID); err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}

		key, err := s.issuer.Issue(r.Context(), userID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("secret issuance failed")
			writeJSONError(w, "server_error", "secret issuance failed", http.StatusInternalServerError)
			return
		}
		defer secrets.Zero(key.Secret)

		s.logger.Info().
			Str("device_id", DeviceIDFromContext(r.Context())).
			Str("user_id", userID).
			Int("version", key.Version).
			Msg("secret handed out")

		writeJSON(w, http.StatusCreated, issuedSecretResponse{
			UserID:     key.UserID,
			Version:    key.Version,
			Secret:     base64.StdEncoding.EncodeToString(key.Secret),
			ActiveFrom: key.ActiveFrom.UTC(),
		})
	}
}
