package secrets

import (
	"context"
	"time"
)

// Repo is the trusted server-side storage of identity secrets, keyed by user id and version.
type Repo interface {
	// Put stores a new key version. Storing an existing (user, version) pair is an error.
	Put(ctx context.Context, key Key) error

	// Keys returns every stored version for the user ordered by version, or ErrNotFound.
	Keys(ctx context.Context, userID string) ([]Key, error)

	// Retire marks a version as no longer current.
	Retire(ctx context.Context, userID string, version int, at time.Time) error

	// Delete removes a single version.
	Delete(ctx context.Context, userID string, version int) error

	// DeleteAll removes every version for the user.
	DeleteAll(ctx context.Context, userID string) error
}
