// Package redis provides helpers for connecting to the Redis server that
// backs the persisted cache tier.
//
// It wraps the go-redis client with:
//
//   - Connect, which retries the connection using the supplied configuration
//     so the process survives a Redis that is still starting up.
//   - Healthcheck, which plugs the client into liveness and readiness probes.
//
// Configuration lives in the Config struct and is usually populated from
// environment variables via github.com/caarlos0/env:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    // The persisted tier is optional; the cache degrades to memory-only.
//	    log.Warn("redis unavailable", logger.Error(err))
//	}
//	defer client.Close()
//
// # Errors
//
// Sentinel errors (e.g. ErrRedisNotReady) wrap the underlying go-redis
// errors using errors.Join, so they compare with errors.Is.
package redis
