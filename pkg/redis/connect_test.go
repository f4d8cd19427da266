package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scolago/entitlements/pkg/redis"
)

func TestConnectRejectsMalformedURL(t *testing.T) {
	t.Parallel()

	_, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "not-a-redis-url"})
	assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
}
