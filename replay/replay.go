package replay

import (
	"context"
	"time"
)

// Cache records (user, time step) pairs that have already been admitted.
//
// Admit is the only operation a validator needs: it checks and inserts in one atomic step so two
// gates scanning the same code concurrently cannot both admit it.
type Cache interface {
	Contains(ctx context.Context, userID string, step int64) (bool, error)
	Insert(ctx context.Context, userID string, step int64, expiry time.Time) error
	// Admit inserts the record if absent and reports whether it did. false means replay.
	Admit(ctx context.Context, userID string, step int64, expiry time.Time) (bool, error)
	// Evict removes records whose expiry is at or before now and returns how many were removed.
	Evict(ctx context.Context, now time.Time) (int, error)
}
