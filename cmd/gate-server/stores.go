package main

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/jrsteele09/go-gate-pass/internal/config"
	"github.com/jrsteele09/go-gate-pass/replay"
	"github.com/jrsteele09/go-gate-pass/secrets"
	"github.com/jrsteele09/go-gate-pass/secrets/pgrepo"
	secretrepofake "github.com/jrsteele09/go-gate-pass/secrets/repofake"
	"github.com/jrsteele09/go-gate-pass/server"
)

const (
	connectAttempts = 5
	pingTimeout     = 5 * time.Second
)

// stores holds the backing services chosen from configuration and how to release them.
type stores struct {
	registry     *secrets.Registry
	cache        replay.Cache
	memoryCache  *replay.MemoryCache // set when no Redis URL is configured
	healthChecks map[string]server.HealthCheck
	closers      []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, c config.Config, seeds string) (*stores, error) {
	st := &stores{healthChecks: make(map[string]server.HealthCheck)}

	repo, err := openSecretRepo(ctx, c, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	st.registry = secrets.NewRegistry(repo,
		secrets.WithRotationGrace(c.GetRotationGrace()),
		secrets.WithActivationSkew(activationSkew(c)),
	)

	if seeds != "" {
		fake, ok := repo.(*secretrepofake.FakeSecretRepo)
		if !ok {
			st.Close()
			return nil, errors.New("-seed is only supported with the in-memory secret store")
		}
		if err := seedRepo(fake, seeds); err != nil {
			st.Close()
			return nil, err
		}
	}

	if err := openReplayCache(ctx, c, st); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// activationSkew covers the full tolerance window so the earliest step a validator accepts right
// after issue is already in effect for the new key.
func activationSkew(c config.ProtocolConfig) time.Duration {
	return time.Duration(c.GetToleranceSteps()*c.GetWindowSeconds()) * time.Second
}

func openSecretRepo(ctx context.Context, c config.Config, st *stores) (secrets.Repo, error) {
	if c.GetDatabaseURL() == "" {
		log.Warn().Msg("no database configured, secrets are held in memory and lost on restart")
		return secretrepofake.NewFakeSecretRepo(), nil
	}

	sealer, err := pgrepo.NewSealer(c.GetSealingKey())
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, c.GetDatabaseURL())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create DB connection pool")
	}
	st.closers = append(st.closers, pool.Close)

	if err := connectWithRetry(ctx, "postgres", pool.Ping); err != nil {
		return nil, err
	}
	if err := pgrepo.RunMigrations(ctx, pool); err != nil {
		return nil, err
	}

	store := pgrepo.NewStore(pool, sealer)
	st.healthChecks["postgres"] = store.Ping
	return store, nil
}

func openReplayCache(ctx context.Context, c config.Config, st *stores) error {
	if c.GetRedisURL() == "" {
		log.Warn().Msg("no redis configured, replay protection covers this process only")
		st.memoryCache = replay.NewMemoryCache()
		st.cache = st.memoryCache
		return nil
	}

	opt, err := redis.ParseURL(c.GetRedisURL())
	if err != nil {
		return errors.Wrap(err, "failed to parse redis url")
	}
	client := redis.NewClient(opt)
	st.closers = append(st.closers, func() { _ = client.Close() })

	cache := replay.NewRedisCache(client)
	if err := connectWithRetry(ctx, "redis", cache.Ping); err != nil {
		return err
	}
	st.cache = cache
	st.healthChecks["redis"] = cache.Ping
	return nil
}

// connectWithRetry pings a dependency with Fibonacci backoff so the gate can start alongside its
// stores.
func connectWithRetry(ctx context.Context, name string, ping func(context.Context) error) error {
	b := retry.NewFibonacci(200 * time.Millisecond)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxRetries(connectAttempts, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("store", name).Msg("store not reachable yet")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", name)
	}
	log.Info().Str("store", name).Msg("store connected")
	return nil
}

// seedRepo preloads user=hexsecret pairs for local testing against the in-memory store.
func seedRepo(repo *secretrepofake.FakeSecretRepo, seeds string) error {
	for _, pair := range strings.Split(seeds, ",") {
		userID, hexSecret, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || userID == "" {
			return errors.Errorf("invalid seed %q, want user=hexsecret", pair)
		}
		secret, err := hex.DecodeString(hexSecret)
		if err != nil || len(secret) == 0 {
			return errors.Errorf("invalid seed secret for user %q", userID)
		}
		repo.Seed(secrets.Key{UserID: userID, Version: 1, Secret: secret})
		secrets.Zero(secret)
		log.Info().Str("user_id", userID).Msg("seeded secret")
	}
	return nil
}
