package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxdocs/internal/config"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "doclist:owner:42", OwnerListKey(42))
	assert.Equal(t, "doclist:admin:q=|y=2024|t=", AdminListKey("q=|y=2024|t="))
	assert.Equal(t, "doclist:admin:", AdminListPrefix())
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var c ListCache = Noop{}

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	b, ok, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, b)
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.DeletePrefix(ctx, "doclist:"))
}

func TestNew_Disabled(t *testing.T) {
	c, closeFn, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, c)
	assert.NoError(t, closeFn())
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := New(ctx, config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "redis ping")
}

func TestRedisCache_ErrorsSurface(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer client.Close()
	c := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Set(ctx, "k", []byte("v")))
	assert.NoError(t, c.Delete(ctx))
	assert.Error(t, c.DeletePrefix(ctx, "doclist:"))
}
