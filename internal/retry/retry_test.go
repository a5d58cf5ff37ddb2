package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		result := WithBackoff(ctx, fastConfig(3), func(ctx context.Context, attempt int) error {
			calls++
			return nil
		})
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.Attempts)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		result := WithBackoff(ctx, fastConfig(3), func(ctx context.Context, attempt int) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		assert.True(t, result.Success)
		assert.Equal(t, 3, result.Attempts)
	})

	t.Run("exhausts the attempt budget", func(t *testing.T) {
		wantErr := errors.New("permanent")
		result := WithBackoff(ctx, fastConfig(3), func(ctx context.Context, attempt int) error {
			return wantErr
		})
		assert.False(t, result.Success)
		assert.Equal(t, 3, result.Attempts)
		assert.Equal(t, wantErr, result.LastError)
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		calls := 0
		result := WithBackoff(cancelCtx, fastConfig(5), func(ctx context.Context, attempt int) error {
			calls++
			cancel()
			return errors.New("transient")
		})
		assert.False(t, result.Success)
		assert.LessOrEqual(t, calls, 2)
	})
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("collapses success to nil", func(t *testing.T) {
		err := Do(ctx, fastConfig(2), func(ctx context.Context, attempt int) error {
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("wraps the last error", func(t *testing.T) {
		inner := errors.New("boom")
		err := Do(ctx, fastConfig(2), func(ctx context.Context, attempt int) error {
			return inner
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, inner)
	})
}

func TestCalculateDelay(t *testing.T) {
	cfg := &Config{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
	assert.Equal(t, time.Second, calculateDelay(cfg, 1))
	assert.Equal(t, 2*time.Second, calculateDelay(cfg, 2))
	assert.Equal(t, 4*time.Second, calculateDelay(cfg, 3))
	assert.Equal(t, 10*time.Second, calculateDelay(cfg, 10))
}

func TestFixedDelayConfig(t *testing.T) {
	cfg := FixedDelayConfig(3, 2*time.Second)
	assert.Equal(t, 2*time.Second, calculateDelay(cfg, 1))
	assert.Equal(t, 2*time.Second, calculateDelay(cfg, 3))
}
