package replay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type record struct {
	userID string
	step   int64
}

// MemoryCache is an in-process Cache. Replay protection only holds for scans handled by the same
// process; deployments with several gate servers should use RedisCache.
type MemoryCache struct {
	admitted map[record]time.Time
	mu       sync.Mutex
	nowFunc  func() time.Time
	logger   zerolog.Logger
}

var _ Cache = (*MemoryCache)(nil)

type MemoryOption func(*MemoryCache)

func WithNowFunc(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.nowFunc = now
	}
}

func WithLogger(l zerolog.Logger) MemoryOption {
	return func(c *MemoryCache) {
		c.logger = l
	}
}

func NewMemoryCache(options ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		admitted: make(map[record]time.Time),
		nowFunc:  time.Now,
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *MemoryCache) Contains(_ context.Context, userID string, step int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(record{userID: userID, step: step}), nil
}

func (c *MemoryCache) Insert(_ context.Context, userID string, step int64, expiry time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.admitted[record{userID: userID, step: step}] = expiry
	return nil
}

func (c *MemoryCache) Admit(ctx context.Context, userID string, step int64, expiry time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	r := record{userID: userID, step: step}
	if c.liveLocked(r) {
		return false, nil
	}
	c.admitted[r] = expiry
	return true, nil
}

func (c *MemoryCache) Evict(_ context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for r, expiry := range c.admitted {
		if !now.Before(expiry) {
			delete(c.admitted, r)
			evicted++
		}
	}
	return evicted, nil
}

// Len returns the number of stored records, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.admitted)
}

// Run evicts expired records every interval until ctx is cancelled.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, _ := c.Evict(ctx, c.nowFunc()); n > 0 {
				c.logger.Debug().Int("evicted", n).Msg("replay cache evicted expired admissions")
			}
		}
	}
}

// liveLocked reports whether r is present and unexpired, dropping it lazily if it has expired.
func (c *MemoryCache) liveLocked(r record) bool {
	expiry, ok := c.admitted[r]
	if !ok {
		return false
	}
	if !c.nowFunc().Before(expiry) {
		delete(c.admitted, r)
		return false
	}
	return true
}
