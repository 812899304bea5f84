package concurrency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient failure")

func TestRetry_SucceedsWithoutRetry(t *testing.T) {
	cfg := DefaultRetryConfig()
	calls := 0

	result, err := Retry(context.Background(), cfg, func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesThenSucceeds(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxAttempts = 5
	cfg.Retryable = func(err error) bool { return errors.Is(err, errTransient) }

	calls := 0
	result, err := Retry(context.Background(), cfg, func(ctx context.Context, attempt int) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestRetry_NonRetryableErrorReturnsImmediately(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = 5
	errFatal := errors.New("fatal")
	cfg.Retryable = func(err error) bool { return false }

	calls := 0
	_, err := Retry(context.Background(), cfg, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errFatal
	})

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsMaxAttempts(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxAttempts = 3
	cfg.Retryable = func(error) bool { return true }

	calls := 0
	_, err := Retry(context.Background(), cfg, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Second
	cfg.MaxAttempts = 5
	cfg.Retryable = func(error) bool { return true }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Retry(ctx, cfg, func(ctx context.Context, attempt int) (int, error) {
		return 0, errTransient
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
