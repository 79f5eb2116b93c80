package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	t.Parallel()
	mr, s := newRedis(t)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Put(ctx, "k", id, time.Minute))
	require.True(t, mr.Exists(redisPrefix+"k"))

	got, err := s.Get(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, id, got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k", time.Minute)
	require.ErrorIs(t, err, ErrMissing)
}

func TestRedisStore_SlidingTTL(t *testing.T) {
	t.Parallel()
	mr, s := newRedis(t)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	require.NoError(t, s.Put(ctx, "k", id, 10*time.Minute))
	mr.FastForward(8 * time.Minute)
	before := mr.CommandCount()
	got, err := s.Get(ctx, "k", 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, id, got)
	require.Equal(t, 10*time.Minute, mr.TTL(redisPrefix+"k"))
	// read and refresh happen in one command
	require.Equal(t, 1, mr.CommandCount()-before)

	mr.FastForward(11 * time.Minute)
	_, err = s.Get(ctx, "k", 10*time.Minute)
	require.ErrorIs(t, err, ErrMissing)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	t.Parallel()
	mr, s := newRedis(t)
	require.NoError(t, mr.Set(redisPrefix+"k", "not-a-uuid"))
	_, err := s.Get(context.Background(), "k", time.Minute)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMissing)
}

func TestOpenRedis(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	s, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = OpenRedis(context.Background(), "::bad")
	require.Error(t, err)
}
