package runlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, "", ttl), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	t.Parallel()

	locker, mr := newTestLocker(t, time.Minute)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists(DefaultKey))
	assert.Equal(t, time.Minute, mr.TTL(DefaultKey))

	_, err = locker.Acquire(ctx)
	require.ErrorIs(t, err, ErrHeld)

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists(DefaultKey))

	again, err := locker.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestReleaseLeavesForeignLockAlone(t *testing.T) {
	t.Parallel()

	locker, mr := newTestLocker(t, time.Minute)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	other, err := locker.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, lease.Release(ctx))
	assert.True(t, mr.Exists(DefaultKey), "stale lease must not delete the new owner's key")
	require.Error(t, lease.Refresh(ctx))

	require.NoError(t, other.Release(ctx))
}

func TestRefreshExtendsTTL(t *testing.T) {
	t.Parallel()

	locker, mr := newTestLocker(t, time.Minute)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx)
	require.NoError(t, err)
	mr.FastForward(50 * time.Second)
	require.NoError(t, lease.Refresh(ctx))
	assert.Equal(t, time.Minute, mr.TTL(DefaultKey))
}

func TestNoopAlwaysGrants(t *testing.T) {
	t.Parallel()

	var locker Locker = Noop{}
	for i := 0; i < 2; i++ {
		lease, err := locker.Acquire(context.Background())
		require.NoError(t, err)
		require.NoError(t, lease.Refresh(context.Background()))
		require.NoError(t, lease.Release(context.Background()))
	}
}

func TestNewClientRequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	require.Error(t, err)

	mr := miniredis.RunT(t)
	client, err := NewClient(Config{Address: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Close())
}
