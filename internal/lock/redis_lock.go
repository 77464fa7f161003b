// Package lock provides short-lived distributed locks used to serialise
// listing submissions for the same URL across service instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock is still held by someone else
// after the wait budget is spent.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only when it still carries our token, so a
// holder whose TTL expired never frees a lock taken over by another caller.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker implements a SET NX PX lock.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker returns a locker whose keys live under prefix and expire
// after ttl.  Acquire waits up to wait for a held lock to be released.
func NewRedisLocker(rdb *redis.Client, prefix string, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		wait:   wait,
		retry:  25 * time.Millisecond,
	}
}

// Acquire takes the lock for key and returns the function that releases it.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + ":" + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := l.rdb.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("can't acquire lock %s: %w", fullKey, err)
		}
		if ok {
			return func() {
				// the request context may already be cancelled here
				rctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(rctx, l.rdb, []string{fullKey}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: %w", fullKey, ErrNotAcquired)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// Noop is used when Redis is not configured.  Database row locks still
// serialise submissions within a single MySQL primary.
type Noop struct{}

// Acquire always succeeds.
func (Noop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
