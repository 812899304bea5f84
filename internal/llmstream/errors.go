package llmstream

import (
	"errors"
	"fmt"
)

// ErrSafetyFiltered is returned when a provider's stream ends on a
// content-filter/safety signal with no usable content or reasoning at
// all (spec §4.6 "Safety-filter handling").
var ErrSafetyFiltered = errors.New("llmstream: response blocked by provider safety filter")

// ErrVisionUnsupported is returned by OCRImage when the client's model
// has no vision capability.
var ErrVisionUnsupported = errors.New("llmstream: model does not support vision/OCR")

// ProviderError wraps a transport or API-level failure with enough
// context for the retry layer to classify it.
type ProviderError struct {
	Provider   string
	StatusCode int   // 0 for connection-level failures
	RetryAfter int   // seconds, 0 if the provider didn't specify one
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llmstream: %s: HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llmstream: %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable classifies a ProviderError per spec §4.6: connection-level
// failures (StatusCode == 0) and 429/5xx responses are retryable;
// anything else (4xx other than 429) is not.
func (e *ProviderError) IsRetryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}
