package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client := newTestRedis(t)
	s := NewRedisStore(client, testLogger())
	ctx := context.Background()

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, s.Save(ctx, sampleQueue()))

	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "a1", loaded[0].ID)
}

func TestRedisStoreCorruptValue(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, client.Set(ctx, queueKey, "{broken", 0).Err())

	s := NewRedisStore(client, testLogger())
	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
