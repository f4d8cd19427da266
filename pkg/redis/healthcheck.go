package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Healthcheck builds a readiness probe for the persisted cache backend,
// suitable for registering on the service via WithReadinessProbe. A failed
// ping reports ErrHealthcheckFailed with the cause attached.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
