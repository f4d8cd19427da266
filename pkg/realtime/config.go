package realtime

import "time"

// Config holds the sync channel tuning knobs.
type Config struct {
	PollInterval      time.Duration `env:"SYNC_POLL_INTERVAL" envDefault:"30s"`      // normal poll cadence
	FastPollInterval  time.Duration `env:"SYNC_FAST_POLL_INTERVAL" envDefault:"5s"`  // while a plan-change confirmation is pending
	ReconnectAttempts int           `env:"SYNC_RECONNECT_ATTEMPTS" envDefault:"5"`   // push reconnections before falling back to polling
	ReconnectBackoff  time.Duration `env:"SYNC_RECONNECT_BACKOFF" envDefault:"2s"`   // fixed delay between reconnections
}

// withDefaults fills zero values so a hand-built Config behaves like the
// env-parsed one.
func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.FastPollInterval <= 0 {
		c.FastPollInterval = 5 * time.Second
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = 5
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = 2 * time.Second
	}
	return c
}
