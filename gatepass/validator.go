package gatepass

import (
	"context"
	"crypto/hmac"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-gate-pass/clock"
	"github.com/jrsteele09/go-gate-pass/replay"
	"github.com/jrsteele09/go-gate-pass/secrets"
)

const defaultLookupTimeout = 2 * time.Second

// Validator decides whether a scanned payload proves fresh possession of the claimed user's
// secret. A Validator is safe for concurrent use; the only shared mutable state is the replay
// cache, whose Admit is atomic.
type Validator struct {
	lookup        secrets.Lookup
	cache         replay.Cache
	clock         clock.Clock
	params        Params
	lookupTimeout time.Duration
	rotationGrace time.Duration
	logger        zerolog.Logger
}

type ValidatorOption func(*Validator)

func WithParams(p Params) ValidatorOption {
	return func(v *Validator) {
		v.params = p
	}
}

func WithClock(c clock.Clock) ValidatorOption {
	return func(v *Validator) {
		v.clock = c
	}
}

func WithLookupTimeout(d time.Duration) ValidatorOption {
	return func(v *Validator) {
		v.lookupTimeout = d
	}
}

// WithRotationGrace sets how long a retired secret version keeps validating.
func WithRotationGrace(d time.Duration) ValidatorOption {
	return func(v *Validator) {
		v.rotationGrace = d
	}
}

func WithLogger(l zerolog.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = l
	}
}

func NewValidator(lookup secrets.Lookup, cache replay.Cache, options ...ValidatorOption) (*Validator, error) {
	if lookup == nil {
		return nil, errors.New("[NewValidator] secret lookup is required")
	}
	if cache == nil {
		return nil, errors.New("[NewValidator] replay cache is required")
	}

	v := &Validator{
		lookup:        lookup,
		cache:         cache,
		clock:         clock.System{},
		params:        DefaultParams(),
		lookupTimeout: defaultLookupTimeout,
		logger:        log.Logger,
	}
	for _, opt := range options {
		opt(v)
	}
	v.params = v.params.normalized()
	if v.lookupTimeout <= 0 {
		v.lookupTimeout = defaultLookupTimeout
	}
	return v, nil
}

// Params returns the protocol constants the validator enforces.
func (v *Validator) Params() Params {
	return v.params
}

// Validate runs one scan attempt: decode, resolve the secret, check the digest across the
// tolerance window, then admit through the replay cache. Admission is the last step, so an
// attempt that fails or is cancelled earlier leaves no record behind.
func (v *Validator) Validate(ctx context.Context, payload string) Decision {
	d := Decision{AttemptID: uuid.NewString()}
	now := v.clock.Now()

	userID, claimed, err := DecodePayload(payload)
	if err != nil {
		return v.reject(d, ReasonMalformed, err)
	}
	d.UserID = userID

	keys, reason, err := v.resolve(ctx, userID)
	if err != nil {
		return v.reject(d, reason, err)
	}
	defer func() {
		for _, k := range keys {
			secrets.Zero(k.Secret)
		}
	}()

	step, version, ok := v.match(keys, claimed, clock.Step(now, v.params.WindowSeconds))
	if !ok {
		return v.reject(d, ReasonInvalidSignature, nil)
	}
	d.Step, d.KeyVersion = step, version

	if err := ctx.Err(); err != nil {
		return v.reject(d, ReasonCancelled, err)
	}

	admitted, err := v.cache.Admit(ctx, userID, step, v.params.Expiry(step))
	switch {
	case err != nil && ctx.Err() != nil:
		return v.reject(d, ReasonCancelled, err)
	case err != nil:
		return v.reject(d, ReasonCacheUnavailable, err)
	case !admitted:
		return v.reject(d, ReasonAlreadyUsed, nil)
	}

	d.Accepted = true
	v.logger.Info().
		Str("attempt_id", d.AttemptID).
		Str("user_id", d.UserID).
		Int64("step", d.Step).
		Int("key_version", d.KeyVersion).
		Msg("admission accepted")
	return d
}

// resolve fetches the user's key versions under the lookup timeout. No lock is held while the
// lookup is in flight.
func (v *Validator) resolve(ctx context.Context, userID string) ([]secrets.Key, Reason, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, v.lookupTimeout)
	defer cancel()

	keys, err := v.lookup.Lookup(lookupCtx, userID)
	switch {
	case err == nil && len(keys) == 0:
		return nil, ReasonUnknownUser, secrets.ErrNotFound
	case err == nil:
		return keys, ReasonNone, nil
	case ctx.Err() != nil:
		return nil, ReasonCancelled, err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(lookupCtx.Err(), context.DeadlineExceeded):
		return nil, ReasonLookupTimeout, err
	default:
		return nil, ReasonUnknownUser, err
	}
}

// match recomputes the digest for each candidate step, nearest first, with every key version in
// effect for that step. Each comparison runs to completion in constant time; scanning stops once
// one succeeds.
func (v *Validator) match(keys []secrets.Key, claimed []byte, current int64) (int64, int, bool) {
	w := v.params.WindowSeconds
	for _, step := range v.params.candidateSteps(current) {
		start, end := clock.StepStart(step, w), clock.StepEnd(step, w)
		for _, k := range keys {
			if len(k.Secret) == 0 || !k.InEffect(start, end, v.rotationGrace) {
				continue
			}
			if hmac.Equal(Digest(k.Secret, step), claimed) {
				return step, k.Version, true
			}
		}
	}
	return 0, 0, false
}

func (v *Validator) reject(d Decision, reason Reason, cause error) Decision {
	d.Accepted = false
	d.Reason = reason
	d.Err = cause

	evt := v.logger.Warn()
	if reason == ReasonLookupTimeout || reason == ReasonCacheUnavailable {
		evt = v.logger.Error()
	}
	if cause != nil {
		evt = evt.Err(cause)
	}
	evt.Str("attempt_id", d.AttemptID).
		Str("user_id", d.UserID).
		Str("reason", string(reason)).
		Msg("admission rejected")
	return d
}
