package redis_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/controlplane/pkg/redis"
)

func unreachable() redis.Config {
	return redis.Config{
		ConnectionURL:  "redis://127.0.0.1:1/0",
		RetryAttempts:  1,
		RetryInterval:  time.Millisecond,
		ConnectTimeout: time.Second,
	}
}

func TestConfig_Enabled(t *testing.T) {
	t.Parallel()

	assert.False(t, redis.Config{}.Enabled())
	assert.True(t, redis.Config{ConnectionURL: "redis://localhost:6379"}.Enabled())
}

func TestConnect_Disabled(t *testing.T) {
	t.Parallel()

	client, err := redis.Connect(context.Background(), redis.Config{})
	require.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
	assert.Nil(t, client)
}

func TestConnect_BadURL(t *testing.T) {
	t.Parallel()

	_, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "http://not-redis"})
	require.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()

	_, err := redis.Connect(context.Background(), unreachable())
	require.ErrorIs(t, err, redis.ErrRedisNotReady)
}

func TestConnect_ContextCancelledBetweenAttempts(t *testing.T) {
	t.Parallel()

	cfg := unreachable()
	cfg.RetryAttempts = 5
	cfg.RetryInterval = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := redis.Connect(ctx, cfg)
	require.ErrorIs(t, err, redis.ErrRedisNotReady)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHealthcheckAndDownstream(t *testing.T) {
	t.Parallel()

	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	err := redis.Healthcheck(client)(context.Background())
	require.ErrorIs(t, err, redis.ErrHealthcheckFailed)

	err = redis.Downstream(client, 200*time.Millisecond)(context.Background())
	require.ErrorIs(t, err, redis.ErrDownstreamUnavailable)
}
