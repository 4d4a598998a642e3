package replay

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "gatepass:admitted:"

// RedisCache is a Cache shared by every gate server pointing at the same Redis. Admit relies on
// SET NX, so the check-then-insert is atomic across processes; Redis expires the records itself.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: defaultKeyPrefix,
	}
}

// WithPrefix returns a copy of the cache that namespaces its keys under prefix.
func (c *RedisCache) WithPrefix(prefix string) *RedisCache {
	return &RedisCache{client: c.client, prefix: prefix}
}

func (c *RedisCache) Contains(ctx context.Context, userID string, step int64) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(userID, step)).Result()
	if err != nil {
		return false, errors.Wrap(err, "RedisCache.Contains")
	}
	return n == 1, nil
}

func (c *RedisCache) Insert(ctx context.Context, userID string, step int64, expiry time.Time) error {
	if err := c.client.SetArgs(ctx, c.key(userID, step), "1", redis.SetArgs{ExpireAt: expiry}).Err(); err != nil {
		return errors.Wrap(err, "RedisCache.Insert")
	}
	return nil
}

func (c *RedisCache) Admit(ctx context.Context, userID string, step int64, expiry time.Time) (bool, error) {
	err := c.client.SetArgs(ctx, c.key(userID, step), "1", redis.SetArgs{Mode: "NX", ExpireAt: expiry}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "RedisCache.Admit")
	}
	return true, nil
}

// Evict is a no-op: every record carries its own Redis expiry.
func (c *RedisCache) Evict(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Ping reports whether Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) key(userID string, step int64) string {
	return c.prefix + strconv.FormatInt(step, 10) + ":" + userID
}
