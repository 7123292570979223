package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("returns first success", func(t *testing.T) {
		calls := 0
		v, err := withRetry(context.Background(), fastRetry(2), func(ctx context.Context) (int, error) {
			calls++
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		v, err := withRetry(context.Background(), fastRetry(2), func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &Error{Kind: KindTransient, Op: "test", Message: "flaky"}
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), fastRetry(2), func(ctx context.Context) (int, error) {
			calls++
			return 0, &Error{Kind: KindTransient, Op: "test"}
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry auth failures", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), fastRetry(5), func(ctx context.Context) (int, error) {
			calls++
			return 0, &Error{Kind: KindAuthInvalid, Op: "test", StatusCode: 401}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, KindAuthInvalid, KindOf(err))
	})

	t.Run("does not retry permanent or parse failures", func(t *testing.T) {
		for _, kind := range []Kind{KindPermanent, KindParse} {
			calls := 0
			_, err := withRetry(context.Background(), fastRetry(5), func(ctx context.Context) (int, error) {
				calls++
				return 0, &Error{Kind: kind, Op: "test"}
			})
			require.Error(t, err)
			assert.Equal(t, 1, calls, kind.String())
		}
	})

	t.Run("caller cancellation stops retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := withRetry(ctx, fastRetry(5), func(ctx context.Context) (int, error) {
			calls++
			cancel()
			return 0, &Error{Kind: KindTransient, Op: "test"}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries raw transport errors", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), fastRetry(1), func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("connection reset")
		})
		require.Error(t, err)
		assert.Equal(t, 2, calls)
	})
}

func TestErrorRetryable(t *testing.T) {
	assert.True(t, (&Error{Kind: KindTransient}).Retryable())
	assert.False(t, (&Error{Kind: KindAuthInvalid}).Retryable())
	assert.False(t, (&Error{Kind: KindPermanent}).Retryable())
	assert.False(t, (&Error{Kind: KindNotInitialized}).Retryable())
	assert.False(t, (&Error{Kind: KindParse}).Retryable())
}
