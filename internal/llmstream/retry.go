package llmstream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/inkotake/ojoagent/internal/concurrency"
)

// maxAttempts is spec §4.6's "5 attempts on connection-level failures".
const maxAttempts = 5

// retryingClient wraps a Client with spec §4.6's retry contract. It is
// deliberately not built on concurrency.Retry's generic exponential
// backoff: a server-specified Retry-After must override the computed
// delay on a per-attempt basis, which concurrency.Retry's fixed
// multiplier schedule has no hook for. concurrency.InterruptibleSleep is
// reused for the sleep itself so cancellation during backoff still
// responds promptly, matching every other suspension point in the
// pipeline (spec §5 "Suspension points").
type retryingClient struct {
	Client
	cancelToken *concurrency.CancelToken
}

// WithRetry decorates client with the 5-attempt retry contract. token
// may be nil (no external cancellation probe beyond ctx).
func WithRetry(client Client, token *concurrency.CancelToken) Client {
	return &retryingClient{Client: client, cancelToken: token}
}

func (r *retryingClient) ChatCompletion(ctx context.Context, req ChatRequest) (ChatResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := r.Client.ChatCompletion(ctx, req)
		if err == nil {
			return withContentRecovery(result), nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ChatResult{}, ctx.Err()
		}

		var perr *ProviderError
		if !errors.As(err, &perr) || !perr.IsRetryable() {
			return ChatResult{}, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := retryDelay(perr, attempt)
		probe := func() bool { return r.cancelToken != nil && r.cancelToken.Cancelled() }
		if concurrency.InterruptibleSleep(delay, probe) {
			return ChatResult{}, fmt.Errorf("llmstream: cancelled during retry backoff: %w", lastErr)
		}
	}
	return ChatResult{}, fmt.Errorf("llmstream: exhausted %d attempts: %w", maxAttempts, lastErr)
}

// retryDelay honors a server Retry-After when present; otherwise falls
// back to exponential 2^attempt seconds (spec §4.6).
func retryDelay(perr *ProviderError, attempt int) time.Duration {
	if perr != nil && perr.RetryAfter > 0 {
		return time.Duration(perr.RetryAfter) * time.Second
	}
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func withContentRecovery(result ChatResult) ChatResult {
	if result.Content != "" || result.Reasoning == "" {
		return result
	}
	if recovered, ok := recoverContentFromReasoning(result.Reasoning); ok {
		result.Content = recovered
		result.Recovered = true
	}
	return result
}
