package locks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment-scheduler/internal/common/errors"
	"appointment-scheduler/internal/redis"
)

func newRedisLocker(t *testing.T) *RedisLocker {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewRedisLocker(client)
}

func TestRedisLockerSerializesSameKey(t *testing.T) {
	locker := newRedisLocker(t)

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.Do(context.Background(), "client-1:cal-1", time.Minute, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				if n > atomic.LoadInt32(&maxInside) {
					atomic.StoreInt32(&maxInside, n)
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside, "holders of the same key must not overlap")
}

func TestRedisLockerIndependentKeys(t *testing.T) {
	locker := newRedisLocker(t)

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = locker.Do(context.Background(), "client-1:cal-1", time.Minute, func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	// a different key proceeds while the first is held
	done := make(chan error, 1)
	go func() {
		done <- locker.Do(context.Background(), "client-2:cal-2", time.Minute, func(ctx context.Context) error {
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("independent key was blocked")
	}
}

func TestRedisLockerContextBoundsWait(t *testing.T) {
	locker := newRedisLocker(t)

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = locker.Do(context.Background(), "client-1:cal-1", time.Minute, func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := locker.Do(ctx, "client-1:cal-1", time.Minute, func(ctx context.Context) error {
		t.Error("should not run while the key is held")
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTimeout))
}

func TestRedisLockerExpiredContextIsTimeout(t *testing.T) {
	// a deadline that has already passed must classify as a timeout even
	// though the redis call itself is what reports the expiry
	locker := newRedisLocker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := locker.Do(ctx, "client-1:cal-1", time.Minute, func(ctx context.Context) error {
		t.Error("should not run with an expired context")
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTimeout))
}

func TestRedisLockerReleasesAfterError(t *testing.T) {
	locker := newRedisLocker(t)

	err := locker.Do(context.Background(), "client-1:cal-1", time.Minute, func(ctx context.Context) error {
		return assert.AnError
	})
	require.Error(t, err)

	// the key must be free again
	ran := false
	err = locker.Do(context.Background(), "client-1:cal-1", time.Minute, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestLocalLockerSerializesSameKey(t *testing.T) {
	locker := NewLocalLocker()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.Do(context.Background(), "key", time.Minute, func(ctx context.Context) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestLocalLockerCancelledContext(t *testing.T) {
	locker := NewLocalLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := locker.Do(ctx, "key", time.Minute, func(ctx context.Context) error {
		t.Error("should not run with a cancelled context")
		return nil
	})
	assert.Error(t, err)
}
