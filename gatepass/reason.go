package gatepass

// Reason explains a rejected scan. The string values are part of the gate HTTP API.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonMalformed        Reason = "malformed"
	ReasonUnknownUser      Reason = "unknown_user"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonAlreadyUsed      Reason = "already_used"
	ReasonLookupTimeout    Reason = "lookup_timeout"
	ReasonCancelled        Reason = "cancelled"
	ReasonCacheUnavailable Reason = "replay_cache_unavailable"
)

func (r Reason) String() string {
	if r == ReasonNone {
		return "accepted"
	}
	return string(r)
}

// Retryable reports whether rescanning the same code may succeed. Infrastructure failures are
// retryable; malformed, forged and replayed codes are not.
func (r Reason) Retryable() bool {
	switch r {
	case ReasonLookupTimeout, ReasonCancelled, ReasonCacheUnavailable, ReasonUnknownUser:
		return true
	}
	return false
}

// Decision is the outcome of one scan attempt.
type Decision struct {
	Accepted   bool
	Reason     Reason
	UserID     string // empty when the payload could not be decoded
	Step       int64  // matched step, set when the digest verified
	KeyVersion int    // secret version that verified the digest
	AttemptID  string
	Err        error // underlying cause for infrastructure rejections; never sent to clients
}
