// Package gatepass implements the rotating gate-admission token.
//
// A pass holder's device derives a payload from its identity secret and the current time step:
//
//	step    = floor(unix_seconds / WindowSeconds)
//	digest  = HMAC-SHA256(secret, decimal(step))
//	payload = base64std(user_id + ":" + lowercase_hex(digest))
//
// The gate recomputes the digest for every step within ±ToleranceSteps of its own clock, compares
// in constant time, and admits each (user, step) pair at most once. Both sides must agree on
// WindowSeconds and ToleranceSteps.
package gatepass
