package redis

import "time"

// Config holds the connection settings for the persisted cache backend.
// An empty ConnectionURL means no Redis is configured; callers degrade to
// memory-only caching in that case rather than failing.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"` // e.g. redis://:password@localhost:6379/0
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

func (cfg Config) withDefaults() Config {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	return cfg
}
