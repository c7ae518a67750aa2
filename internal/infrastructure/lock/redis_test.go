package lock

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

func newLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	l, mr := newLocker(t)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "memefarm:stage:schedule", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("memefarm:stage:schedule"))

	_, ok, err = l.Acquire(ctx, "memefarm:stage:schedule", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	_, ok, err = l.Acquire(ctx, "memefarm:stage:post-due", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per stage")

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("memefarm:stage:schedule"))

	_, ok, err = l.Acquire(ctx, "memefarm:stage:schedule", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	l, mr := newLocker(t)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "memefarm:stage:generate", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = l.Acquire(ctx, "memefarm:stage:generate", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired lock can be taken")

	err = release(ctx)
	assert.True(t, errors.Is(err, ErrNotHeld))
	assert.True(t, mr.Exists("memefarm:stage:generate"), "new holder keeps the lock")
}

func TestAcquireReportsRedisErrors(t *testing.T) {
	l, mr := newLocker(t)
	mr.Close()

	_, ok, err := l.Acquire(context.Background(), "memefarm:stage:scrape", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)

	l, client, err := Dial(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	assert.NotNil(t, l)

	_, _, err = Dial(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}

func TestNoopAlwaysGrants(t *testing.T) {
	release, ok, err := Noop{}.Acquire(context.Background(), "x", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, release(context.Background()))
}
