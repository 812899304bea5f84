package llmstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OpenAICompatibleClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := NewOpenAICompatibleClient(OpenAICompatibleConfig{
		ProviderLabel: "test",
		APIKey:        "key",
		BaseURL:       srv.URL,
		DefaultModel:  "test-model",
		HTTPClient:    srv.Client(),
	})
	return client, srv
}

func TestChatCompletion_NonStreaming(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello", "reasoning_content": "because"}},
			},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		})
	})
	defer srv.Close()

	result, err := client.ChatCompletion(context.Background(), ChatRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Content)
	assert.Equal(t, "because", result.Reasoning)
	assert.Equal(t, 5, result.Usage.TotalTokens)
}

func TestChatCompletion_Streaming(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		lines := []string{
			`{"choices":[{"delta":{"reasoning_content":"thinking..."}}]}`,
			`{"choices":[{"delta":{"content":"Hello"}}]}`,
			`{"choices":[{"delta":{"content":", world"}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		}
		for _, l := range lines {
			fmt.Fprintf(w, "data: %s\n\n", l)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})
	defer srv.Close()

	var chunks []Chunk
	result, err := client.ChatCompletion(context.Background(), ChatRequest{
		Prompt: "hi",
		Stream: true,
		OnChunk: func(c Chunk) {
			chunks = append(chunks, c)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", result.Content)
	assert.Equal(t, "thinking...", result.Reasoning)
	require.Len(t, chunks, 3)
}

func TestChatCompletion_SafetyFilteredWithNoContent(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{}, "finish_reason": "content_filter"},
			},
		})
	})
	defer srv.Close()

	_, err := client.ChatCompletion(context.Background(), ChatRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrSafetyFiltered)
}

func TestChatCompletion_RateLimitSurfacesRetryAfter(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	})
	defer srv.Close()

	_, err := client.ChatCompletion(context.Background(), ChatRequest{Prompt: "hi"})
	require.Error(t, err)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 7, perr.RetryAfter)
	assert.True(t, perr.IsRetryable())
}

func TestOCRImage_RequiresVisionModel(t *testing.T) {
	client := NewOpenAICompatibleClient(OpenAICompatibleConfig{ProviderLabel: "test", APIKey: "k", BaseURL: "http://example.invalid", DefaultModel: "deepseek-reasoner"})
	_, err := client.OCRImage(context.Background(), "http://img", "extract")
	assert.ErrorIs(t, err, ErrVisionUnsupported)
}

func TestSupportsVision(t *testing.T) {
	geminiClient := NewOpenAICompatibleClient(OpenAICompatibleConfig{DefaultModel: "gemini-2.5-pro"})
	assert.True(t, geminiClient.SupportsVision())

	plainClient := NewOpenAICompatibleClient(OpenAICompatibleConfig{DefaultModel: "deepseek-reasoner"})
	assert.False(t, plainClient.SupportsVision())
}

func TestGeminiThinkingExtraBody(t *testing.T) {
	body := geminiThinkingExtraBody("gemini-2.5-pro", 0, 65536)
	require.NotNil(t, body)
	google := body["google"].(map[string]any)
	thinking := google["thinking_config"].(map[string]any)
	assert.Equal(t, 16384, thinking["thinking_budget"])

	assert.Nil(t, geminiThinkingExtraBody("deepseek-reasoner", 1000, 65536))
}
