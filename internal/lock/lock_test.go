package lock

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exercise checks mutual exclusion on one key with concurrent increments.
func exercise(t *testing.T, l Locker, key string) {
	var (
		wg      sync.WaitGroup
		counter int
		inside  int
		mu      sync.Mutex
		overlap bool
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			inside++
			if inside > 1 {
				overlap = true
			}
			mu.Unlock()

			v := counter
			time.Sleep(time.Millisecond)
			counter = v + 1

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.False(t, overlap, "two holders inside the critical section")
	assert.Equal(t, 20, counter)
}

func TestKeyedMutex_Exclusive(t *testing.T) {
	k := NewKeyedMutex()
	exercise(t, k, "PM-0001")
	assert.Zero(t, k.size(), "entries are dropped after release")
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := NewKeyedMutex()
	releaseA, err := k.Lock(context.Background(), "A")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := k.Lock(ctx, "B")
	require.NoError(t, err, "a different key is not blocked")
	releaseB()
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	k := NewKeyedMutex()
	release, err := k.Lock(context.Background(), "A")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "A")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // second call is a no-op
	assert.Zero(t, k.size())
}

// Integration test (requires running Redis)
func TestRedisLocker_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	l, err := NewRedisLocker(context.Background(), addr, os.Getenv("REDIS_PASSWORD"), 0, 5*time.Second)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	defer l.Close()

	exercise(t, l, "test-"+uuid.NewString())
}

func TestNewRedisLocker_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := NewRedisLocker(ctx, "127.0.0.1:1", "", 0, time.Second)
	assert.Error(t, err)
}
