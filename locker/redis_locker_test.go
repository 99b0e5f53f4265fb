package locker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupLocker(t *testing.T, opts ...Option) (*miniredis.Miniredis, Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisLocker(client, append([]Option{WithLogger(zap.NewNop())}, opts...)...)
}

func TestRedisLocker_Lock(t *testing.T) {
	mr, l := setupLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "validation")
	require.NoError(t, err)
	require.NotNil(t, unlock)
	assert.True(t, mr.Exists(DefaultKeyPrefix+"validation"))

	_, err = l.TryLock(ctx, "validation")
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists(DefaultKeyPrefix+"validation"))

	unlock, err = l.TryLock(ctx, "validation")
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestRedisLocker_LockGivesUp(t *testing.T) {
	_, l := setupLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	defer func() { _ = unlock(ctx) }()

	start := time.Now()
	_, err = l.Lock(ctx, "k", WithRetries(3), WithRetryDelay(10*time.Millisecond))
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRedisLocker_Expiry(t *testing.T) {
	mr, l := setupLocker(t, WithKeyPrefix("test:"))
	ctx := context.Background()

	_, err := l.Lock(ctx, "k", WithExpiry(time.Second))
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:k"))

	mr.FastForward(2 * time.Second)

	unlock, err := l.TryLock(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestRedisLocker_InvalidKey(t *testing.T) {
	_, l := setupLocker(t)

	_, err := l.Lock(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidLockerKey)
	_, err = l.TryLock(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidLockerKey)
}

func TestRedisLocker_CanceledContext(t *testing.T) {
	_, l := setupLocker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
