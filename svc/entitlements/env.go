package entitlements

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/scolago/entitlements/pkg/cache"
	"github.com/scolago/entitlements/pkg/config"
	"github.com/scolago/entitlements/pkg/logger"
	"github.com/scolago/entitlements/pkg/realtime"
	"github.com/scolago/entitlements/pkg/redis"
)

// NewFromEnv builds the engine from environment configuration. Setting
// REDIS_URL enables the persisted cache tier and SYNC_WS_URL the push
// transport; with either one absent the engine degrades to the
// corresponding fallback (memory-only cache, polling-only sync).
// Explicit options win over what the environment provides.
func NewFromEnv(ctx context.Context, tenantID uuid.UUID, backend Backend, opts ...ServiceOption) (*Service, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}

	o := &serviceOptions{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(o)
	}

	var envOpts []ServiceOption

	var redisCfg redis.Config
	if err := config.Load(&redisCfg); err != nil {
		return nil, err
	}
	if o.persisted == nil && redisCfg.ConnectionURL != "" {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			// The persisted tier only saves refetches; without Redis the
			// engine runs on the memory tier alone.
			o.log.Warn("persisted cache unavailable, using memory-only cache", logger.Error(err))
		} else {
			envOpts = append(envOpts,
				WithPersistedTier(cache.NewRedisTier(client, cache.WithRedisLogger(o.log))),
				WithReadinessProbe(redis.Healthcheck(client)),
			)
		}
	}

	if o.transport == nil {
		var wsCfg realtime.WebSocketConfig
		if err := config.Load(&wsCfg); err != nil {
			return nil, err
		}
		if wsCfg.URL != "" {
			envOpts = append(envOpts,
				WithTransport(realtime.NewWebSocketTransport(wsCfg, realtime.WithWebSocketLogger(o.log))))
		}
	}

	return New(ctx, cfg, tenantID, backend, append(envOpts, opts...)...)
}
