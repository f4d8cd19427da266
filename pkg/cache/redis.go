package cache

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scolago/entitlements/pkg/logger"
)

// persistedEntry is the serialized shape stored on the persisted tier.
// ExpiresAt travels with the data so an entry can never be trusted past
// its TTL even if the server-side expiry was lost.
type persistedEntry struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// redisTier is the shared persisted cache tier. Every Redis failure is
// treated as a miss and logged at debug level; the tier never propagates
// an error to callers because all entries are regenerable.
type redisTier struct {
	client redis.Cmdable
	now    func() time.Time
	log    *slog.Logger
}

// RedisTierOption configures a Redis tier.
type RedisTierOption func(*redisTier)

// WithRedisClock injects the time source used for expiry checks.
func WithRedisClock(now func() time.Time) RedisTierOption {
	return func(t *redisTier) {
		if now != nil {
			t.now = now
		}
	}
}

// WithRedisLogger injects the logger used for swallowed failures.
func WithRedisLogger(log *slog.Logger) RedisTierOption {
	return func(t *redisTier) {
		if log != nil {
			t.log = log
		}
	}
}

// NewRedisTier creates the persisted tier on top of an established Redis
// client. Panics on a nil client to fail fast during initialization.
func NewRedisTier(client redis.Cmdable, opts ...RedisTierOption) Tier {
	if client == nil {
		panic("cache: redis client is required")
	}
	t := &redisTier{
		client: client,
		now:    time.Now,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *redisTier) Get(ctx context.Context, key string) ([]byte, time.Time, bool) {
	raw, err := t.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			t.log.Debug("persisted cache read failed, treating as miss",
				logger.CacheKey(key), logger.Error(err))
		}
		return nil, time.Time{}, false
	}

	var entry persistedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		t.log.Debug("persisted cache entry corrupted, treating as miss",
			logger.CacheKey(key), logger.Error(err))
		t.Delete(ctx, key)
		return nil, time.Time{}, false
	}
	if t.now().After(entry.ExpiresAt) {
		t.Delete(ctx, key)
		return nil, time.Time{}, false
	}
	return entry.Data, entry.ExpiresAt, true
}

func (t *redisTier) Set(ctx context.Context, key string, data []byte, expiresAt time.Time) {
	ttl := expiresAt.Sub(t.now())
	if ttl <= 0 {
		return
	}

	raw, err := json.Marshal(persistedEntry{Data: data, ExpiresAt: expiresAt})
	if err != nil {
		t.log.Debug("persisted cache entry not serializable, skipping write",
			logger.CacheKey(key), logger.Error(err))
		return
	}
	if err := t.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		t.log.Debug("persisted cache write failed, skipping",
			logger.CacheKey(key), logger.Error(err))
	}
}

func (t *redisTier) Delete(ctx context.Context, key string) {
	if err := t.client.Del(ctx, key).Err(); err != nil {
		t.log.Debug("persisted cache delete failed, skipping",
			logger.CacheKey(key), logger.Error(err))
	}
}

func (t *redisTier) DeleteMatching(ctx context.Context, pattern string) {
	iter := t.client.Scan(ctx, 0, "*"+pattern+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		t.log.Debug("persisted cache scan failed, skipping invalidation",
			slog.String("pattern", pattern), logger.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := t.client.Del(ctx, keys...).Err(); err != nil {
		t.log.Debug("persisted cache bulk delete failed, skipping",
			slog.String("pattern", pattern), logger.Error(err))
	}
}

func (t *redisTier) Close() error {
	return nil
}
