package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutoring-ledger-api/pkg/config"
)

func TestAddr(t *testing.T) {
	assert.Equal(t, "cache.internal:6380", Addr(config.RedisConfig{Host: "cache.internal", Port: 6380}))
	assert.Equal(t, "[::1]:6379", Addr(config.RedisConfig{Host: "::1", Port: 6379}))
}

func TestNewRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, err := NewRedis(ctx, config.RedisConfig{Host: "127.0.0.1", Port: 1})
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
