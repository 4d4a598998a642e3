package gatepass_test

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-gate-pass/clock"
	"github.com/jrsteele09/go-gate-pass/gatepass"
	"github.com/jrsteele09/go-gate-pass/replay"
	"github.com/jrsteele09/go-gate-pass/secrets"
	secretrepofake "github.com/jrsteele09/go-gate-pass/secrets/repofake"
)

type fixture struct {
	clock     *clock.Fake
	repo      *secretrepofake.FakeSecretRepo
	registry  *secrets.Registry
	cache     *replay.MemoryCache
	validator *gatepass.Validator
}

func newFixture(t *testing.T, opts ...gatepass.ValidatorOption) *fixture {
	t.Helper()
	f := &fixture{clock: clock.NewFake(1000), repo: secretrepofake.NewFakeSecretRepo()}
	f.repo.Seed(secrets.Key{UserID: "42", Version: 1, Secret: []byte("K")})
	f.registry = secrets.NewRegistry(f.repo, secrets.WithNowFunc(f.clock.Now))
	f.cache = replay.NewMemoryCache(replay.WithNowFunc(f.clock.Now))

	opts = append([]gatepass.ValidatorOption{gatepass.WithClock(f.clock)}, opts...)
	v, err := gatepass.NewValidator(f.registry, f.cache, opts...)
	require.NoError(t, err)
	f.validator = v
	return f
}

func payloadAt(t *testing.T, secret, userID string, unix int64) string {
	t.Helper()
	p, err := gatepass.Generate([]byte(secret), userID, time.Unix(unix, 0), gatepass.DefaultParams())
	require.NoError(t, err)
	return p
}

func TestValidate_ScanScenario(t *testing.T) {
	f := newFixture(t)
	payload := payloadAt(t, "K", "42", 1000)
	require.Equal(t, vectorPayload, payload)

	f.clock.Set(1029)
	d := f.validator.Validate(context.Background(), payload)
	require.True(t, d.Accepted, "reason %s", d.Reason)
	require.Equal(t, "42", d.UserID)
	require.Equal(t, int64(33), d.Step)
	require.Equal(t, 1, d.KeyVersion)
	require.NotEmpty(t, d.AttemptID)

	d = f.validator.Validate(context.Background(), payload)
	require.False(t, d.Accepted)
	require.Equal(t, gatepass.ReasonAlreadyUsed, d.Reason)

	// a fresh gate that never saw the first scan still refuses it once outside tolerance
	fresh, err := gatepass.NewValidator(f.registry, replay.NewMemoryCache(replay.WithNowFunc(f.clock.Now)), gatepass.WithClock(f.clock))
	require.NoError(t, err)
	f.clock.Set(1065)
	d = fresh.Validate(context.Background(), payload)
	require.False(t, d.Accepted)
	require.Equal(t, gatepass.ReasonInvalidSignature, d.Reason)
}

func TestValidate_AttemptIDsAreUnique(t *testing.T) {
	f := newFixture(t)
	a := f.validator.Validate(context.Background(), "garbage")
	b := f.validator.Validate(context.Background(), "garbage")
	require.NotEqual(t, a.AttemptID, b.AttemptID)
}

func TestValidate_ToleranceBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		tolerance int64
		generated int64
		validated int64
		accepted  bool
	}{
		{name: "same step", tolerance: 1, generated: 990, validated: 1019, accepted: true},
		{name: "one step late", tolerance: 1, generated: 990, validated: 1049, accepted: true},
		{name: "two steps late", tolerance: 1, generated: 990, validated: 1050, accepted: false},
		{name: "holder one step ahead", tolerance: 1, generated: 1020, validated: 990, accepted: true},
		{name: "holder two steps ahead", tolerance: 1, generated: 1020, validated: 989, accepted: false},
		{name: "wider tolerance late", tolerance: 2, generated: 990, validated: 1079, accepted: true},
		{name: "wider tolerance too late", tolerance: 2, generated: 990, validated: 1080, accepted: false},
		{name: "wider tolerance ahead", tolerance: 2, generated: 1050, validated: 990, accepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, gatepass.WithParams(gatepass.Params{WindowSeconds: 30, ToleranceSteps: tt.tolerance}))
			payload := payloadAt(t, "K", "42", tt.generated)

			f.clock.Set(tt.validated)
			d := f.validator.Validate(context.Background(), payload)
			require.Equal(t, tt.accepted, d.Accepted, "reason %s", d.Reason)
			if tt.accepted {
				require.Equal(t, clock.Step(time.Unix(tt.generated, 0), 30), d.Step)
			} else {
				require.Equal(t, gatepass.ReasonInvalidSignature, d.Reason)
			}
		})
	}
}

func TestValidate_ToleranceHoldsForEverySecondOfAStep(t *testing.T) {
	for _, tol := range []int64{1, 2} {
		p := gatepass.Params{WindowSeconds: 30, ToleranceSteps: tol}
		for now := int64(990); now < 1020; now++ {
			payload, err := gatepass.Generate([]byte("K"), "42", time.Unix(now, 0), p)
			require.NoError(t, err)

			f := newFixture(t, gatepass.WithParams(p))
			f.clock.Set(now + tol*30 - 1)
			d := f.validator.Validate(context.Background(), payload)
			require.True(t, d.Accepted, "tol=%d now=%d reason %s", tol, now, d.Reason)

			f = newFixture(t, gatepass.WithParams(p))
			f.clock.Set(now + (tol+1)*30)
			d = f.validator.Validate(context.Background(), payload)
			require.Equal(t, gatepass.ReasonInvalidSignature, d.Reason, "tol=%d now=%d", tol, now)
		}
	}
}

func TestValidate_TamperedDigest(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(1000)

	digest := []byte(hex.EncodeToString(gatepass.Digest([]byte("K"), 33)))
	for i := range digest {
		tampered := append([]byte(nil), digest...)
		if tampered[i] == '0' {
			tampered[i] = '1'
		} else {
			tampered[i] = '0'
		}
		raw, err := hex.DecodeString(string(tampered))
		require.NoError(t, err)
		payload, err := gatepass.EncodePayload("42", raw)
		require.NoError(t, err)

		d := f.validator.Validate(context.Background(), payload)
		require.Equal(t, gatepass.ReasonInvalidSignature, d.Reason, "position %d", i)
	}
	require.Zero(t, f.cache.Len())
}

func TestValidate_WrongSecret(t *testing.T) {
	f := newFixture(t)
	d := f.validator.Validate(context.Background(), payloadAt(t, "not-K", "42", 1000))
	require.Equal(t, gatepass.ReasonInvalidSignature, d.Reason)
}

func TestValidate_OtherUsersSecret(t *testing.T) {
	f := newFixture(t)
	f.repo.Seed(secrets.Key{UserID: "7", Version: 1, Secret: []byte("S7")})

	d := f.validator.Validate(context.Background(), payloadAt(t, "S7", "42", 1000))
	require.Equal(t, gatepass.ReasonInvalidSignature, d.Reason)

	d = f.validator.Validate(context.Background(), payloadAt(t, "S7", "7", 1000))
	require.True(t, d.Accepted)
}

func TestValidate_Malformed(t *testing.T) {
	f := newFixture(t)
	for _, payload := range []string{"", "   ", "not base64!", "NDI6YWJj"} {
		d := f.validator.Validate(context.Background(), payload)
		require.False(t, d.Accepted)
		require.Equal(t, gatepass.ReasonMalformed, d.Reason, "payload %q", payload)
		require.Empty(t, d.UserID)
	}
}

func TestValidate_UnknownUser(t *testing.T) {
	f := newFixture(t)
	d := f.validator.Validate(context.Background(), payloadAt(t, "K", "nobody", 1000))
	require.Equal(t, gatepass.ReasonUnknownUser, d.Reason)
	require.Equal(t, "nobody", d.UserID)
	require.Zero(t, f.cache.Len())
}

func TestValidate_LookupErrorIsUnknownUser(t *testing.T) {
	lookup := secrets.LookupFunc(func(context.Context, string) ([]secrets.Key, error) {
		return nil, errors.New("connection reset")
	})
	v, err := gatepass.NewValidator(lookup, replay.NewMemoryCache(), gatepass.WithClock(clock.NewFake(1000)))
	require.NoError(t, err)

	d := v.Validate(context.Background(), vectorPayload)
	require.Equal(t, gatepass.ReasonUnknownUser, d.Reason)
	require.Error(t, d.Err)
}

func blockingLookup(ctx context.Context, _ string) ([]secrets.Key, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestValidate_LookupTimeout(t *testing.T) {
	cache := replay.NewMemoryCache()
	v, err := gatepass.NewValidator(secrets.LookupFunc(blockingLookup), cache,
		gatepass.WithClock(clock.NewFake(1000)),
		gatepass.WithLookupTimeout(20*time.Millisecond),
	)
	require.NoError(t, err)

	d := v.Validate(context.Background(), vectorPayload)
	require.Equal(t, gatepass.ReasonLookupTimeout, d.Reason)
	require.True(t, d.Reason.Retryable())
	require.Zero(t, cache.Len())
}

func TestValidate_SlowLookupWithinTimeout(t *testing.T) {
	lookup := secrets.LookupFunc(func(ctx context.Context, _ string) ([]secrets.Key, error) {
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return []secrets.Key{{UserID: "42", Version: 1, Secret: []byte("K")}}, nil
	})
	v, err := gatepass.NewValidator(lookup, replay.NewMemoryCache(), gatepass.WithClock(clock.NewFake(1000)))
	require.NoError(t, err)

	d := v.Validate(context.Background(), vectorPayload)
	require.True(t, d.Accepted, "reason %s", d.Reason)
}

func TestValidate_Cancelled(t *testing.T) {
	cache := replay.NewMemoryCache()
	v, err := gatepass.NewValidator(secrets.LookupFunc(blockingLookup), cache, gatepass.WithClock(clock.NewFake(1000)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	d := v.Validate(ctx, vectorPayload)
	require.Equal(t, gatepass.ReasonCancelled, d.Reason)
	require.Zero(t, cache.Len())

	// the same payload is still admissible by a later attempt
	f := newFixture(t)
	require.True(t, f.validator.Validate(context.Background(), vectorPayload).Accepted)
}

func TestValidate_CancelledAfterMatchLeavesNoRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lookup := secrets.LookupFunc(func(context.Context, string) ([]secrets.Key, error) {
		cancel()
		return []secrets.Key{{UserID: "42", Version: 1, Secret: []byte("K")}}, nil
	})
	cache := replay.NewMemoryCache()
	v, err := gatepass.NewValidator(lookup, cache, gatepass.WithClock(clock.NewFake(1000)))
	require.NoError(t, err)

	d := v.Validate(ctx, vectorPayload)
	require.Equal(t, gatepass.ReasonCancelled, d.Reason)
	require.Zero(t, cache.Len())
}

type failingCache struct {
	replay.Cache
}

func (failingCache) Admit(context.Context, string, int64, time.Time) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestValidate_CacheUnavailable(t *testing.T) {
	f := newFixture(t)
	v, err := gatepass.NewValidator(f.registry, failingCache{}, gatepass.WithClock(f.clock))
	require.NoError(t, err)

	d := v.Validate(context.Background(), vectorPayload)
	require.False(t, d.Accepted)
	require.Equal(t, gatepass.ReasonCacheUnavailable, d.Reason)
	require.Equal(t, int64(33), d.Step)
	require.Error(t, d.Err)
}

func TestValidate_RotationGrace(t *testing.T) {
	c := clock.NewFake(1000)
	repo := secretrepofake.NewFakeSecretRepo()
	registry := secrets.NewRegistry(repo, secrets.WithNowFunc(c.Now), secrets.WithRotationGrace(60*time.Second))

	v1, err := registry.Issue(context.Background(), "42")
	require.NoError(t, err)

	v, err := gatepass.NewValidator(registry, replay.NewMemoryCache(replay.WithNowFunc(c.Now)),
		gatepass.WithClock(c),
		gatepass.WithRotationGrace(registry.RotationGrace()),
	)
	require.NoError(t, err)

	c.Set(1010)
	v2, err := registry.Rotate(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, 2, v2.Version)

	old := func(unix int64) string { return payloadAt(t, string(v1.Secret), "42", unix) }

	// retired at 1010; grace runs to 1070
	c.Set(1015)
	d := v.Validate(context.Background(), old(1015))
	require.True(t, d.Accepted, "reason %s", d.Reason)
	require.Equal(t, 1, d.KeyVersion)

	c.Set(1050)
	d = v.Validate(context.Background(), old(1050))
	require.True(t, d.Accepted, "reason %s", d.Reason)

	c.Set(1080)
	d = v.Validate(context.Background(), old(1080))
	require.Equal(t, gatepass.ReasonInvalidSignature, d.Reason)

	d = v.Validate(context.Background(), payloadAt(t, string(v2.Secret), "42", 1080))
	require.True(t, d.Accepted, "reason %s", d.Reason)
	require.Equal(t, 2, d.KeyVersion)
}

func TestValidate_LaggingHolderRightAfterIssue(t *testing.T) {
	c := clock.NewFake(1000)
	registry := secrets.NewRegistry(secretrepofake.NewFakeSecretRepo(),
		secrets.WithNowFunc(c.Now),
		secrets.WithRotationGrace(time.Minute),
	)
	v, err := gatepass.NewValidator(registry, replay.NewMemoryCache(replay.WithNowFunc(c.Now)),
		gatepass.WithClock(c),
		gatepass.WithRotationGrace(registry.RotationGrace()),
	)
	require.NoError(t, err)

	issued, err := registry.Issue(context.Background(), "42")
	require.NoError(t, err)

	// holder clock 15s behind: step 32 while the gate is in step 33
	d := v.Validate(context.Background(), payloadAt(t, string(issued.Secret), "42", 985))
	require.True(t, d.Accepted, "reason %s", d.Reason)
	require.Equal(t, int64(32), d.Step)

	c.Set(1100)
	rotated, err := registry.Rotate(context.Background(), "42")
	require.NoError(t, err)

	d = v.Validate(context.Background(), payloadAt(t, string(rotated.Secret), "42", 1075))
	require.True(t, d.Accepted, "reason %s", d.Reason)
	require.Equal(t, int64(35), d.Step)
	require.Equal(t, 2, d.KeyVersion)
}

func TestValidate_RevokedUser(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.Revoke(context.Background(), "42"))

	d := f.validator.Validate(context.Background(), vectorPayload)
	require.Equal(t, gatepass.ReasonUnknownUser, d.Reason)
}

func TestValidate_ConcurrentScansAdmitOnce(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(1005)

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		replayed atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := f.validator.Validate(context.Background(), vectorPayload)
			switch {
			case d.Accepted:
				accepted.Add(1)
			case d.Reason == gatepass.ReasonAlreadyUsed:
				replayed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), accepted.Load())
	require.Equal(t, int32(49), replayed.Load())
}

func TestValidate_DoesNotMutateStoredSecret(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.validator.Validate(context.Background(), vectorPayload).Accepted)

	keys, err := f.registry.Lookup(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, []byte("K"), keys[0].Secret)
}

func TestNewValidator_RequiresDependencies(t *testing.T) {
	_, err := gatepass.NewValidator(nil, replay.NewMemoryCache())
	require.Error(t, err)

	_, err = gatepass.NewValidator(secrets.LookupFunc(blockingLookup), nil)
	require.Error(t, err)

	v, err := gatepass.NewValidator(secrets.LookupFunc(blockingLookup), replay.NewMemoryCache(),
		gatepass.WithParams(gatepass.Params{}))
	require.NoError(t, err)
	require.Equal(t, gatepass.DefaultParams(), v.Params())
}

func TestReason(t *testing.T) {
	require.Equal(t, "accepted", gatepass.ReasonNone.String())
	require.Equal(t, "already_used", gatepass.ReasonAlreadyUsed.String())

	require.True(t, gatepass.ReasonLookupTimeout.Retryable())
	require.True(t, gatepass.ReasonCacheUnavailable.Retryable())
	require.False(t, gatepass.ReasonMalformed.Retryable())
	require.False(t, gatepass.ReasonInvalidSignature.Retryable())
	require.False(t, gatepass.ReasonAlreadyUsed.Retryable())
}
