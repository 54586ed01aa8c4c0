package localstore

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisStore_PrefixIsolation(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	a := NewRedisStore(client, "test:storefront:a:")
	b := NewRedisStore(client, "test:storefront:b:")
	defer a.Clear(ctx)
	defer b.Clear(ctx)

	require.NoError(t, a.Set(ctx, KeyCart, []byte(`[]`)))
	require.NoError(t, b.Set(ctx, KeyCart, []byte(`[{"product_id":"P1"}]`)))

	require.NoError(t, a.Clear(ctx))

	_, err := a.Get(ctx, KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := b.Get(ctx, KeyCart)
	require.NoError(t, err)
	assert.Contains(t, string(v), "P1")
}
