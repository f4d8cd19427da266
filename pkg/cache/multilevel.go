package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Fetcher produces a value on a full cache miss.
type Fetcher func(ctx context.Context) ([]byte, error)

// MultiLevel fronts a memory tier with a persisted tier behind it.
//
// Lookup order: memory hit wins; a persisted hit is promoted into memory;
// otherwise the fetcher runs and the result is written to both tiers with
// a now+TTL expiry. Only fetcher errors ever reach the caller.
type MultiLevel struct {
	memory    Tier
	persisted Tier
	now       func() time.Time
}

// MultiLevelOption configures a MultiLevel cache.
type MultiLevelOption func(*MultiLevel)

// WithClock injects the time source used to compute entry expiries.
func WithClock(now func() time.Time) MultiLevelOption {
	return func(c *MultiLevel) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMultiLevel creates a two-tier cache. The persisted tier may be nil,
// which degrades to a memory-only cache (useful in tests and when Redis is
// not configured).
func NewMultiLevel(memory Tier, persisted Tier, opts ...MultiLevelOption) *MultiLevel {
	if memory == nil {
		panic("cache: memory tier is required")
	}
	c := &MultiLevel{
		memory:    memory,
		persisted: persisted,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key, consulting memory first, then the
// persisted tier, then the fetcher. Within a TTL window the fetcher runs at
// most once for a given key.
func (c *MultiLevel) Get(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) ([]byte, error) {
	if fetch == nil {
		return nil, ErrNilFetcher
	}

	if data, _, ok := c.memory.Get(ctx, key); ok {
		return data, nil
	}

	if c.persisted != nil {
		if data, expiresAt, ok := c.persisted.Get(ctx, key); ok {
			// Promote so the next read skips the persisted tier. The
			// memory copy keeps the entry's original expiry; promotion
			// must not extend an entry's lifetime.
			c.memory.Set(ctx, key, data, expiresAt)
			return data, nil
		}
	}

	data, err := fetch(ctx)
	if err != nil {
		return nil, errors.Join(ErrFetchFailed, err)
	}

	expiresAt := c.now().Add(ttl)
	c.memory.Set(ctx, key, data, expiresAt)
	if c.persisted != nil {
		c.persisted.Set(ctx, key, data, expiresAt)
	}
	return data, nil
}

// Invalidate removes every entry whose key contains pattern as a substring,
// on both tiers.
func (c *MultiLevel) Invalidate(ctx context.Context, pattern string) {
	c.memory.DeleteMatching(ctx, pattern)
	if c.persisted != nil {
		c.persisted.DeleteMatching(ctx, pattern)
	}
}

// Delete removes a single key from both tiers.
func (c *MultiLevel) Delete(ctx context.Context, key string) {
	c.memory.Delete(ctx, key)
	if c.persisted != nil {
		c.persisted.Delete(ctx, key)
	}
}

// Close closes both tiers.
func (c *MultiLevel) Close() error {
	err := c.memory.Close()
	if c.persisted != nil {
		err = errors.Join(err, c.persisted.Close())
	}
	return err
}

// GetTyped fetches a JSON-encodable value through the cache.
func GetTyped[T any](ctx context.Context, c *MultiLevel, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	data, err := c.Get(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, errors.Join(ErrCorruptEntry, err)
	}
	return out, nil
}
