package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLocker(rdb, "submit", 5*time.Second, wait), srv
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	locker, srv := newLocker(t, 50*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "a.com")
	require.NoError(t, err)
	assert.True(t, srv.Exists("submit:a.com"))

	_, err = locker.Acquire(ctx, "a.com")
	assert.ErrorIs(t, err, ErrNotAcquired)

	release()
	assert.False(t, srv.Exists("submit:a.com"))

	release, err = locker.Acquire(ctx, "a.com")
	require.NoError(t, err)
	release()
}

func TestRedisLockerReleaseKeepsForeignLock(t *testing.T) {
	locker, srv := newLocker(t, 0)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "a.com")
	require.NoError(t, err)

	// simulate expiry and takeover by another instance
	require.NoError(t, srv.Set("submit:a.com", "someone-else"))
	release()

	got, err := srv.Get("submit:a.com")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerCancelledContext(t *testing.T) {
	locker, _ := newLocker(t, time.Minute)

	release, err := locker.Acquire(context.Background(), "a.com")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "a.com")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNoop(t *testing.T) {
	release, err := Noop{}.Acquire(context.Background(), "x")
	require.NoError(t, err)
	release()
}
