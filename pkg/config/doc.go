// Package config loads application configuration from environment
// variables into annotated structs.
//
// It wraps `github.com/joho/godotenv` and `github.com/caarlos0/env/v11`
// so every component of the sync engine declares its settings the same
// way: a struct with `env` tags and defaults, parsed once at startup.
//
// # Usage
//
// Describe the configuration as a struct:
//
//	type SyncConfig struct {
//	    WebsocketURL string        `env:"SYNC_WS_URL,required"`
//	    PollInterval time.Duration `env:"SYNC_POLL_INTERVAL" envDefault:"30s"`
//	    CacheTTL     time.Duration `env:"ENTITLEMENT_CACHE_TTL" envDefault:"5m"`
//	}
//
// Then populate it:
//
//	var cfg SyncConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatalf("parsing env: %v", err)
//	}
//
// Load reads the default `.env` file on first use when one exists.
// LoadFromFiles reads explicitly named files and fails when they are
// missing, which is the right behavior for deployment manifests.
//
// # Error Handling
//
// Sentinel errors compare with `errors.Is`:
//
//   - `ErrParsingConfig`   – failed to parse env vars into the struct.
//   - `ErrEnvFileNotFound` – a named env file could not be read.
//   - `ErrNilPointer`      – nil pointer passed to `Load`/`MustLoad`.
package config
