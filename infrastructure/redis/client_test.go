package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/redis"
)

func TestNewClient_RejectsEmptyAddress(t *testing.T) {
	t.Parallel()

	cfg := redis.Config{}
	assert.False(t, cfg.Configured())

	client, err := redis.NewClient(context.Background(), cfg)
	require.ErrorIs(t, err, redis.ErrEmptyAddress)
	assert.Nil(t, client)
}

func TestNewClient_Connects(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	client, err := redis.NewClient(context.Background(), redis.Config{Address: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "sitemap:progress", "{}", 0).Err())
	got, getErr := mr.Get("sitemap:progress")
	require.NoError(t, getErr)
	assert.Equal(t, "{}", got)
}

func TestNewClient_URL(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	cfg := redis.Config{URL: "redis://" + mr.Addr() + "/0", Address: "ignored:1"}
	require.True(t, cfg.Configured())

	client, err := redis.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, mr.Addr(), client.Options().Addr)
}

func TestNewClient_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := redis.NewClient(context.Background(), redis.Config{URL: "http://localhost"})
	assert.Error(t, err)
}

func TestNewClient_PingFailure(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := redis.NewClient(context.Background(), redis.Config{Address: addr})
	assert.Error(t, err)
}
