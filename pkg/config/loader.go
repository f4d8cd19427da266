package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// Load populates the provided struct from environment variables based on
// its `env` field tags. On first use it also loads the default .env file
// when one exists, so local development does not need exported variables.
//
// Example:
//
//	type SyncConfig struct {
//		WebsocketURL string        `env:"SYNC_WS_URL,required"`
//		PollInterval time.Duration `env:"SYNC_POLL_INTERVAL" envDefault:"30s"`
//	}
//
//	var cfg SyncConfig
//	if err := config.Load(&cfg); err != nil {
//		// Handle error
//	}
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// LoadFromFiles works like Load but reads the named env files first.
// Missing files fail with ErrEnvFileNotFound so misconfigured deployments
// surface at startup instead of running on defaults.
func LoadFromFiles[T any](v *T, files ...string) error {
	if v == nil {
		return ErrNilPointer
	}

	if err := godotenv.Load(files...); err != nil {
		return errors.Join(ErrEnvFileNotFound, err)
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics when loading fails. Use it for
// configuration the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}
