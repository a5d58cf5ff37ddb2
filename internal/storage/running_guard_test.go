package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGuard(t *testing.T, ttl time.Duration) (*RunningGuard, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRunningGuard(NewRedisCacheFromClient(client), ttl), mr
}

func TestRunningGuard(t *testing.T) {
	ctx := context.Background()
	guard, mr := setupGuard(t, time.Minute)

	t.Run("acquire then release", func(t *testing.T) {
		acquired, err := guard.TryAcquire(ctx, "0xToken")
		require.NoError(t, err)
		assert.True(t, acquired)

		running, err := guard.IsRunning(ctx, "0xToken")
		require.NoError(t, err)
		assert.True(t, running)

		require.NoError(t, guard.Release(ctx, "0xToken"))

		running, err = guard.IsRunning(ctx, "0xToken")
		require.NoError(t, err)
		assert.False(t, running)
	})

	t.Run("second acquire fails while held", func(t *testing.T) {
		acquired, err := guard.TryAcquire(ctx, "0xHeld")
		require.NoError(t, err)
		require.True(t, acquired)

		acquired, err = guard.TryAcquire(ctx, "0xHeld")
		require.NoError(t, err)
		assert.False(t, acquired)

		require.NoError(t, guard.Release(ctx, "0xHeld"))
	})

	t.Run("tokens are independent", func(t *testing.T) {
		a, err := guard.TryAcquire(ctx, "0xA")
		require.NoError(t, err)
		b, err := guard.TryAcquire(ctx, "0xB")
		require.NoError(t, err)
		assert.True(t, a)
		assert.True(t, b)
	})

	t.Run("ttl frees a crashed flow", func(t *testing.T) {
		acquired, err := guard.TryAcquire(ctx, "0xCrashed")
		require.NoError(t, err)
		require.True(t, acquired)

		mr.FastForward(2 * time.Minute)

		acquired, err = guard.TryAcquire(ctx, "0xCrashed")
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("release of absent marker is safe", func(t *testing.T) {
		assert.NoError(t, guard.Release(ctx, "0xNever"))
	})
}

func TestRunningGuardConcurrent(t *testing.T) {
	ctx := context.Background()
	guard, _ := setupGuard(t, time.Minute)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired, err := guard.TryAcquire(ctx, "0xContended")
			assert.NoError(t, err)
			results <- acquired
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for acquired := range results {
		if acquired {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
