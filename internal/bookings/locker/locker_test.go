package locker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingserrors "docslot/internal/bookings/errors"
)

var keyA = Key{DoctorID: "doc-1", Date: "2025-06-02"}

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	l := NewMemoryLocker(time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := l.Acquire(ctx, keyA)
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(100 * time.Microsecond)
			atomic.AddInt32(&inside, -1)
			_ = lease.Release(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.size(), "entries are dropped when nobody holds them")
}

func TestMemoryLocker_Timeout(t *testing.T) {
	l := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	lease, err := l.Acquire(ctx, keyA)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, keyA)
	assert.True(t, errors.Is(err, bookingserrors.ErrLockTimeout))

	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx), "double release is harmless")

	again, err := l.Acquire(ctx, keyA)
	require.NoError(t, err)
	_ = again.Release(ctx)
}

func TestMemoryLocker_ContextCancelled(t *testing.T) {
	l := NewMemoryLocker(time.Minute)
	lease, err := l.Acquire(context.Background(), keyA)
	require.NoError(t, err)
	defer lease.Release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, keyA)
	assert.True(t, errors.Is(err, bookingserrors.ErrLockTimeout))
}

func TestMemoryLocker_IndependentKeys(t *testing.T) {
	l := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	held, err := l.Acquire(ctx, keyA)
	require.NoError(t, err)
	defer held.Release(ctx)

	for _, k := range []Key{{DoctorID: "doc-2", Date: "2025-06-02"}, {DoctorID: "doc-1", Date: "2025-06-03"}} {
		lease, err := l.Acquire(ctx, k)
		require.NoError(t, err, "key %s must not wait on %s", k, keyA)
		_ = lease.Release(ctx)
	}
}

func newRedisLocker(t *testing.T, opts Options) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, opts), mr
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	l, mr := newRedisLocker(t, Options{AcquireTimeout: 50 * time.Millisecond, TTL: time.Minute, RetryInterval: 5 * time.Millisecond})
	ctx := context.Background()

	lease, err := l.Acquire(ctx, keyA)
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisKeyPrefix+keyA.String()))

	_, err = l.Acquire(ctx, keyA)
	assert.True(t, errors.Is(err, bookingserrors.ErrLockTimeout))

	other, err := l.Acquire(ctx, Key{DoctorID: "doc-2", Date: keyA.Date})
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists(redisKeyPrefix+keyA.String()))
}

func TestRedisLocker_WaiterGetsLockAfterRelease(t *testing.T) {
	l, _ := newRedisLocker(t, Options{AcquireTimeout: time.Second, TTL: time.Minute, RetryInterval: 5 * time.Millisecond})
	ctx := context.Background()

	lease, err := l.Acquire(ctx, keyA)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		second, err := l.Acquire(ctx, keyA)
		if err == nil {
			err = second.Release(ctx)
		}
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, lease.Release(ctx))
	require.NoError(t, <-done)
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldOwner(t *testing.T) {
	l, mr := newRedisLocker(t, Options{AcquireTimeout: 50 * time.Millisecond, TTL: time.Second, RetryInterval: 5 * time.Millisecond})
	ctx := context.Background()

	stale, err := l.Acquire(ctx, keyA)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := l.Acquire(ctx, keyA)
	require.NoError(t, err)

	err = stale.Release(ctx)
	assert.True(t, errors.Is(err, bookingserrors.ErrLockLost))
	assert.True(t, mr.Exists(redisKeyPrefix+keyA.String()), "new owner's lock survives")

	require.NoError(t, fresh.Release(ctx))
}
