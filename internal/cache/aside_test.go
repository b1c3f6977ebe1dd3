package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = Close() })
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	loads := 0
	load := func(dest *cachedUser) func() error {
		return func() error {
			loads++
			*dest = cachedUser{ID: 7, Name: "ada"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, Aside(ctx, UserKey(7), &first, UserTTL, load(&first)))
	assert.Equal(t, "ada", first.Name)
	assert.Equal(t, 1, loads)
	assert.True(t, mr.Exists("user:7"))
	assert.Equal(t, UserTTL, mr.TTL("user:7"))

	var second cachedUser
	require.NoError(t, Aside(ctx, UserKey(7), &second, UserTTL, load(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads, "second lookup should be served from redis")
}

func TestAside_LoadErrorIsNotCached(t *testing.T) {
	mr := setupRedis(t)
	boom := errors.New("not found")

	var u cachedUser
	err := Aside(context.Background(), UserKey(9), &u, UserTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("user:9"))
}

func TestAside_CorruptEntryIsReloaded(t *testing.T) {
	mr := setupRedis(t)
	require.NoError(t, mr.Set("user:3", "{not json"))

	var u cachedUser
	err := Aside(context.Background(), UserKey(3), &u, time.Minute, func() error {
		u = cachedUser{ID: 3, Name: "grace"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "grace", u.Name)

	stored, err := mr.Get("user:3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"name":"grace"}`, stored)
}

func TestAside_WithoutClientCallsLoader(t *testing.T) {
	SetClient(nil)

	called := false
	var u cachedUser
	err := Aside(context.Background(), UserKey(1), &u, UserTTL, func() error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestInvalidateUser(t *testing.T) {
	mr := setupRedis(t)
	require.NoError(t, mr.Set("user:5", "{}"))
	require.NoError(t, mr.Set("user:name:ada", "{}"))

	InvalidateUser(context.Background(), 5, "ada")

	assert.False(t, mr.Exists("user:5"))
	assert.False(t, mr.Exists("user:name:ada"))
}

func TestDial(t *testing.T) {
	ctx := context.Background()

	_, err := Dial(ctx, "redis://127.0.0.1:1/0")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	rdb, err := Dial(ctx, mr.Addr())
	require.NoError(t, err)
	defer rdb.Close()
	assert.NoError(t, rdb.Ping(ctx).Err())
}

func TestOptions(t *testing.T) {
	opts, err := Options("cache:6379")
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)

	opts, err = Options("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = Options("redis://cache:6379/notadb")
	assert.Error(t, err)
}

func TestSetClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	assert.Same(t, rdb, GetClient())

	require.NoError(t, Close())
	assert.Nil(t, GetClient())
	assert.NoError(t, Close(), "closing twice is harmless")
}
