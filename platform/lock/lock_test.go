package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func assertExclusive(t *testing.T, l Locker) {
	t.Helper()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "assessment-1")
			require.NoError(t, err)
			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxInside.Load())
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	assertExclusive(t, m)
	require.Equal(t, 0, m.size())
}

func TestKeyedMutexDifferentKeysDoNotContend(t *testing.T) {
	m := NewKeyedMutex()
	unlockA, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := m.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	m := NewKeyedMutex()
	unlock, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	require.Equal(t, 0, m.size())
}

func newRedisLocker(t *testing.T, opts ...RedisOption) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, opts...), mr
}

func TestRedisLockerSerializesSameKey(t *testing.T) {
	l, _ := newRedisLocker(t)
	assertExclusive(t, l)
}

func TestRedisLockerReleaseDeletesKey(t *testing.T) {
	l, mr := newRedisLocker(t, WithPrefix("test:"))

	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, mr.Exists("test:a"))

	unlock()
	require.False(t, mr.Exists("test:a"))
}

func TestRedisLockerDoesNotReleaseForeignToken(t *testing.T) {
	l, mr := newRedisLocker(t, WithTTL(time.Second))

	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("lock:a"))

	other, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	unlock()
	require.True(t, mr.Exists("lock:a"))
	other()
	require.False(t, mr.Exists("lock:a"))
}

func TestRedisLockerRenewsWhileHeld(t *testing.T) {
	l, mr := newRedisLocker(t, WithTTL(time.Second))

	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	// Three TTLs of Redis time pass while the holder is still working.
	for i := 0; i < 6; i++ {
		time.Sleep(500 * time.Millisecond)
		mr.FastForward(500 * time.Millisecond)
		require.True(t, mr.Exists("lock:a"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	require.False(t, mr.Exists("lock:a"))
}

func TestRedisLockerStopsRenewingAfterUnlock(t *testing.T) {
	l, mr := newRedisLocker(t, WithTTL(time.Second))

	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlock()

	// Someone else's key under the same name must not be extended.
	mr.Set("lock:a", "other")
	mr.SetTTL("lock:a", time.Second)
	time.Sleep(500 * time.Millisecond)
	mr.FastForward(1100 * time.Millisecond)
	require.False(t, mr.Exists("lock:a"))
}

func TestRedisLockerHonoursContext(t *testing.T) {
	l, _ := newRedisLocker(t)
	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
