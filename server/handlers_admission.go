package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-gate-pass/gatepass"
	"github.com/jrsteele09/go-gate-pass/internal/utils"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxRequestBytes = 4 << 10
)

type admissionRequest struct {
	Payload string `json:"payload" validate:"required"`
}

type admissionResponse struct {
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Step      *int64 `json:"step,omitempty"`
	AttemptID string `json:"attempt_id"`
}

// AdmissionHandler validates one scanned payload and reports the gate decision.
func (s *Server) AdmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admissionRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "Request body must be a JSON object", http.StatusBadRequest)
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeJSONError(w, "invalid_request", "payload is required", http.StatusBadRequest)
			return
		}

		start := time.Now()
		d := s.admitter.Validate(r.Context(), req.Payload)
		s.metrics.Observe(d, time.Since(start))

		s.logger.Info().
			Str("attempt_id", d.AttemptID).
			Str("device_id", DeviceIDFromContext(r.Context())).
			Str("user_id", d.UserID).
			Str("decision", d.Reason.String()).
			Msg("scan")

		resp := admissionResponse{
			Decision:  "accepted",
			UserID:    d.UserID,
			AttemptID: d.AttemptID,
		}
		if d.Accepted {
			resp.Step = utils.Ptr(d.Step)
		} else {
			resp.Decision = "rejected"
			resp.Reason = string(d.Reason)
			resp.Retryable = d.Reason.Retryable()
		}
		writeJSON(w, statusForDecision(d), resp)
	}
}

// statusForDecision maps a decision onto the HTTP status a gate device acts on: 200 opens the
// gate, 403 is a definitive refusal, 503 and 408 mean the scan may be retried.
func statusForDecision(d gatepass.Decision) int {
	if d.Accepted {
		return http.StatusOK
	}
	switch d.Reason {
	case gatepass.ReasonLookupTimeout, gatepass.ReasonCacheUnavailable:
		return http.StatusServiceUnavailable
	case gatepass.ReasonCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusForbidden
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
