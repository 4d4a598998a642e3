package secrets

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const defaultSecretLength = 32 // 256 bits

// DefaultActivationSkew backdates ActiveFrom by one 30 second step, the default tolerance, so a
// holder whose clock lags the registry can still sign the step before issue.
const DefaultActivationSkew = 30 * time.Second

// Registry is the trusted side of the secret lifecycle. It generates secrets from crypto/rand,
// versions them per user, and serves the validator's lookups.
type Registry struct {
	repo           Repo
	nowFunc        func() time.Time
	secretLength   int
	activationSkew time.Duration // how far ActiveFrom is backdated to absorb holder clock skew
	rotationGrace  time.Duration // how long a retired key keeps validating
	pruneAfter     time.Duration // extra time a retired key is kept after its grace ends
	logger         zerolog.Logger

	mu sync.Mutex // serialises version assignment
}

var (
	_ Issuer = (*Registry)(nil)
	_ Lookup = (*Registry)(nil)
)

type RegistryOption func(*Registry)

func WithNowFunc(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.nowFunc = now
	}
}

func WithSecretLength(n int) RegistryOption {
	return func(r *Registry) {
		r.secretLength = n
	}
}

// WithActivationSkew sets how far ActiveFrom is backdated. It should cover tolerance steps times
// the window width.
func WithActivationSkew(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.activationSkew = d
	}
}

func WithRotationGrace(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.rotationGrace = d
	}
}

func WithPruneAfter(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.pruneAfter = d
	}
}

func WithRegistryLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

func NewRegistry(repo Repo, options ...RegistryOption) *Registry {
	r := &Registry{
		repo:           repo,
		activationSkew: DefaultActivationSkew,
		logger:         log.Logger,
	}
	for _, opt := range options {
		opt(r)
	}
	if r.nowFunc == nil {
		r.nowFunc = time.Now
	}
	if r.activationSkew < 0 {
		r.activationSkew = 0
	}
	if r.pruneAfter <= 0 {
		r.pruneAfter = 5 * time.Minute
	}
	if r.secretLength < 16 {
		r.secretLength = defaultSecretLength
	}
	return r
}

// RotationGrace is the window during which a retired key still validates.
func (r *Registry) RotationGrace() time.Duration {
	return r.rotationGrace
}

// Issue stores a new random secret for the user. If the user already has a current key it is
// retired, which makes Issue on a second login equivalent to Rotate.
func (r *Registry) Issue(ctx context.Context, userID string) (Key, error) {
	if userID == "" {
		return Key{}, errors.New("[Registry.Issue] user id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.repo.Keys(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Key{}, errors.Wrap(err, "Registry.Issue Keys")
	}
	return r.issueLocked(ctx, userID, existing)
}

// Rotate replaces the user's current key. The old key keeps validating for the rotation grace.
func (r *Registry) Rotate(ctx context.Context, userID string) (Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.repo.Keys(ctx, userID)
	if err != nil {
		return Key{}, errors.Wrap(err, "Registry.Rotate Keys")
	}
	return r.issueLocked(ctx, userID, existing)
}

// Revoke deletes every key version for the user. Outstanding payloads stop validating at once.
func (r *Registry) Revoke(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.repo.DeleteAll(ctx, userID); err != nil {
		return errors.Wrap(err, "Registry.Revoke DeleteAll")
	}
	r.logger.Info().Str("user_id", userID).Msg("secrets revoked")
	return nil
}

// Lookup returns copies of every stored key version for the user. Whether a version may validate
// a given time step is decided by the caller through Key.InEffect.
func (r *Registry) Lookup(ctx context.Context, userID string) ([]Key, error) {
	keys, err := r.repo.Keys(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrNotFound
	}
	return lo.Map(keys, func(k Key, _ int) Key {
		return k.Clone()
	}), nil
}

func (r *Registry) issueLocked(ctx context.Context, userID string, existing []Key) (Key, error) {
	now := r.nowFunc()

	secret := make([]byte, r.secretLength)
	if _, err := rand.Read(secret); err != nil {
		return Key{}, errors.Wrap(err, "Registry.Issue rand.Read")
	}

	version := 1
	for _, k := range existing {
		if k.Version >= version {
			version = k.Version + 1
		}
		if k.Current() {
			if err := r.repo.Retire(ctx, userID, k.Version, now); err != nil {
				Zero(secret)
				return Key{}, errors.Wrap(err, "Registry.Issue Retire")
			}
			continue
		}
		if r.expired(k, now) {
			if err := r.repo.Delete(ctx, userID, k.Version); err != nil {
				r.logger.Warn().Err(err).Str("user_id", userID).Int("version", k.Version).Msg("failed to prune expired secret")
			}
		}
	}

	key := Key{
		UserID:     userID,
		Version:    version,
		Secret:     secret,
		ActiveFrom: now.Add(-r.activationSkew),
	}
	if err := r.repo.Put(ctx, key); err != nil {
		Zero(secret)
		return Key{}, errors.Wrap(err, "Registry.Issue Put")
	}

	r.logger.Info().Str("user_id", userID).Int("version", version).Msg("secret issued")
	return key.Clone(), nil
}

// expired reports whether a retired key is far enough past its grace period that no step inside
// any tolerance window can select it again.
func (r *Registry) expired(k Key, now time.Time) bool {
	return !k.Current() && !now.Before(k.RetiredAt.Add(r.rotationGrace+r.pruneAfter))
}
