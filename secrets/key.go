package secrets

import (
	"context"
	"time"

	gperrors "github.com/jrsteele09/go-gate-pass/internal/errors"
)

var (
	// ErrSecretUnavailable is returned when no secret is loaded: before issuance or after Destroy.
	ErrSecretUnavailable = gperrors.ErrSecretUnavailable
	// ErrNotFound is returned by repositories and lookups when a user has no secret.
	ErrNotFound = gperrors.ErrSecretNotFound
)

// Key is one version of a user's identity secret.
type Key struct {
	UserID     string
	Version    int
	Secret     []byte
	ActiveFrom time.Time // first instant the key may be used
	RetiredAt  time.Time // zero while the key is current
}

// Current reports whether the key has not been retired.
func (k Key) Current() bool {
	return k.RetiredAt.IsZero()
}

// InEffect reports whether the key may have produced a digest for a time step spanning
// [stepStart, stepEnd). A retired key stays in effect for steps starting before RetiredAt+grace.
func (k Key) InEffect(stepStart, stepEnd time.Time, grace time.Duration) bool {
	if !k.ActiveFrom.Before(stepEnd) {
		return false
	}
	if k.Current() {
		return true
	}
	return stepStart.Before(k.RetiredAt.Add(grace))
}

// Clone returns a deep copy so callers can zero their copy without touching the original.
func (k Key) Clone() Key {
	out := k
	out.Secret = append([]byte(nil), k.Secret...)
	return out
}

// Zero overwrites the secret bytes in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Lookup resolves every stored key version for a user. It is the validator's view of the trusted
// secret store and returns ErrNotFound for unknown users. Callers zero the returned secrets when
// done, so implementations must hand out copies.
type Lookup interface {
	Lookup(ctx context.Context, userID string) ([]Key, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, userID string) ([]Key, error)

func (f LookupFunc) Lookup(ctx context.Context, userID string) ([]Key, error) {
	return f(ctx, userID)
}
