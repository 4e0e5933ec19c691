// Package locks serializes sync reconciliation passes per
// (client, calendar) key. Passes sharing a key never run concurrently;
// passes for different keys proceed independently. A redis-backed manager
// coordinates across instances, and an in-process manager covers
// single-instance deployments and tests.
package locks

import (
	"context"
	"sync"
	"time"

	"appointment-scheduler/internal/common/errors"
)

// retryInterval is how often a blocked caller re-attempts a held
// distributed lock
const retryInterval = 100 * time.Millisecond

// KeyedLocker runs functions under a per-key mutual exclusion guarantee
type KeyedLocker interface {
	// Do runs fn while holding the lock for key, waiting for the current
	// holder if there is one. The wait is bounded by ctx.
	Do(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error

	Close() error
}

// RedisLockClient is the surface the redis-backed locker needs from the
// redis client
type RedisLockClient interface {
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// RedisLocker coordinates per-key locks through redis SETNX, so concurrent
// notifications landing on different instances still serialize.
type RedisLocker struct {
	client RedisLockClient
}

// NewRedisLocker creates a redis-backed keyed locker
func NewRedisLocker(client RedisLockClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Do(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	for {
		if ctx.Err() != nil {
			return errors.TimeoutError("waiting for sync lock").WithContext("key", key)
		}

		acquired, err := l.client.AcquireLock(ctx, key, ttl)
		if err != nil {
			// an expired deadline surfaces through the redis call too;
			// it is the caller's timeout, not a redis failure
			if ctx.Err() != nil {
				return errors.TimeoutError("waiting for sync lock").WithContext("key", key)
			}
			return errors.InternalError("failed to acquire sync lock", err).WithContext("key", key)
		}
		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			return errors.TimeoutError("waiting for sync lock").WithContext("key", key)
		case <-time.After(retryInterval):
		}
	}

	defer func() {
		// release with a fresh context so cancellation of the pass does
		// not leak the lock until its TTL
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.client.ReleaseLock(releaseCtx, key)
	}()

	return fn(ctx)
}

func (l *RedisLocker) Close() error {
	return nil
}

// LocalLocker serializes per key within a single process
type LocalLocker struct {
	mu    sync.Mutex
	byKey map[string]*sync.Mutex
}

// NewLocalLocker creates an in-process keyed locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{byKey: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Do(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	keyLock, ok := l.byKey[key]
	if !ok {
		keyLock = &sync.Mutex{}
		l.byKey[key] = keyLock
	}
	l.mu.Unlock()

	keyLock.Lock()
	defer keyLock.Unlock()

	return fn(ctx)
}

func (l *LocalLocker) Close() error {
	return nil
}
