package llmstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	calls       int
	failUntil   int // fail on calls 1..failUntil, succeed after
	err         error
	result      ChatResult
}

func (s *stubClient) ProviderName() string { return "stub" }
func (s *stubClient) SupportsVision() bool { return false }
func (s *stubClient) OCRImage(ctx context.Context, imageURL, prompt string) (string, error) {
	return "", ErrVisionUnsupported
}

func (s *stubClient) ChatCompletion(ctx context.Context, req ChatRequest) (ChatResult, error) {
	s.calls++
	if s.calls <= s.failUntil {
		return ChatResult{}, s.err
	}
	return s.result, nil
}

func TestWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	stub := &stubClient{
		failUntil: 5,
		err:       &ProviderError{Provider: "stub", StatusCode: 400},
	}
	client := WithRetry(stub, nil)

	_, err := client.ChatCompletion(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}

func TestWithRetry_SucceedsWithoutRetry(t *testing.T) {
	stub := &stubClient{result: ChatResult{Content: "direct"}}
	client := WithRetry(stub, nil)

	result, err := client.ChatCompletion(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "direct", result.Content)
	assert.Equal(t, 1, stub.calls)
}

func TestRetryDelay_HonorsRetryAfterOverExponential(t *testing.T) {
	perr := &ProviderError{RetryAfter: 3}
	assert.Equal(t, "3s", retryDelay(perr, 1).String())
}

func TestRecoverContentFromReasoning_ExtractsLastFencedBlock(t *testing.T) {
	reasoning := "first thought ```py\nx=1\n``` then more ```cpp\nint main(){}\n```"
	code, ok := recoverContentFromReasoning(reasoning)
	assert.True(t, ok)
	assert.Equal(t, "int main(){}\n", code)
}

func TestRecoverContentFromReasoning_NoFenceReturnsFalse(t *testing.T) {
	_, ok := recoverContentFromReasoning("just plain thinking, no code")
	assert.False(t, ok)
}

func TestWithContentRecovery_OnlyAppliesWhenContentEmpty(t *testing.T) {
	result := withContentRecovery(ChatResult{Content: "", Reasoning: "```\nrecovered\n```"})
	assert.Equal(t, "recovered\n", result.Content)
	assert.True(t, result.Recovered)

	untouched := withContentRecovery(ChatResult{Content: "already here", Reasoning: "```\nother\n```"})
	assert.Equal(t, "already here", untouched.Content)
	assert.False(t, untouched.Recovered)
}
