package llmstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// OpenAICompatibleConfig configures a client speaking the OpenAI chat
// completions wire format — the bridge the original covers "Gemini etc."
// through (services/llm/openai_compatible.py), and here also covers
// DeepSeek and SiliconFlow, both OpenAI-compatible at the HTTP layer.
type OpenAICompatibleConfig struct {
	ProviderLabel string // "deepseek" | "siliconflow" | "openai" | ...
	APIKey        string
	BaseURL       string // e.g. "https://api.deepseek.com/v1"
	DefaultModel  string
	Timeout       time.Duration
	// RequestsPerSecond paces outbound calls per spec §4.6's provider
	// configuration story; zero disables pacing.
	RequestsPerSecond float64

	HTTPClient *http.Client
}

// OpenAICompatibleClient implements Client against any OpenAI-compatible
// chat completions endpoint.
type OpenAICompatibleClient struct {
	cfg        OpenAICompatibleConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOpenAICompatibleClient builds a client from cfg.
func NewOpenAICompatibleClient(cfg OpenAICompatibleConfig) *OpenAICompatibleClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &OpenAICompatibleClient{cfg: cfg, httpClient: httpClient, limiter: limiter}
}

func (c *OpenAICompatibleClient) ProviderName() string { return c.cfg.ProviderLabel }

func (c *OpenAICompatibleClient) SupportsVision() bool {
	model := strings.ToLower(c.cfg.DefaultModel)
	return strings.Contains(model, "vision") || strings.Contains(model, "gpt-4") || strings.Contains(model, "gemini")
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatCompletionRequest struct {
	Model       string         `json:"model"`
	Messages    []chatMessage  `json:"messages"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature"`
	TopP        float64        `json:"top_p"`
	Stream      bool           `json:"stream"`
	ExtraBody   map[string]any `json:"extra_body,omitempty"`
}

// geminiThinkingExtraBody builds the provider-specific "extra_body"
// payload Gemini 2.5-family models need to surface a separate thinking
// token budget alongside max output tokens (spec §4.6 "Thinking
// budget"), mirroring openai_compatible.py's extra_body construction for
// "gemini-2.5"/"gemini-exp" models.
func geminiThinkingExtraBody(model string, thinkingBudget, maxOutputTokens int) map[string]any {
	lower := strings.ToLower(model)
	if !strings.Contains(lower, "gemini-2.5") && !strings.Contains(lower, "gemini-exp") {
		return nil
	}
	if thinkingBudget <= 0 {
		thinkingBudget = 16384
	}
	return map[string]any{
		"google": map[string]any{
			"thinking_config": map[string]any{
				"include_thoughts": true,
				"thinking_budget":  thinkingBudget,
			},
			"max_output_tokens": maxOutputTokens,
		},
	}
}

type chatCompletionChoice struct {
	Delta struct {
		Content          string `json:"content"`
		ReasoningContent string `json:"reasoning_content"`
		Reasoning        string `json:"reasoning"`
	} `json:"delta"`
	Message struct {
		Content          string `json:"content"`
		ReasoningContent string `json:"reasoning_content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatCompletionResponse struct {
	Choices []chatCompletionChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *OpenAICompatibleClient) ChatCompletion(ctx context.Context, req ChatRequest) (ChatResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return ChatResult{}, err
		}
	}

	model := req.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}

	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
		ExtraBody:   geminiThinkingExtraBody(model, req.ThinkingBudget, req.MaxTokens),
	}

	if req.Stream {
		return c.streamChatCompletion(ctx, body, req.OnChunk)
	}
	return c.singleChatCompletion(ctx, body)
}

func (c *OpenAICompatibleClient) do(ctx context.Context, body any) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Provider: c.cfg.ProviderLabel, Err: fmt.Errorf("encode request: %w", err)}
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, &ProviderError{Provider: c.cfg.ProviderLabel, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: c.cfg.ProviderLabel, Err: err}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		payload, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{
			Provider:   c.cfg.ProviderLabel,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(payload))),
		}
	}
	return resp, nil
}

func parseRetryAfter(header string) int {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil {
		return 0
	}
	return seconds
}

func (c *OpenAICompatibleClient) singleChatCompletion(ctx context.Context, body chatCompletionRequest) (ChatResult, error) {
	resp, err := c.do(ctx, body)
	if err != nil {
		return ChatResult{}, err
	}
	defer resp.Body.Close()

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ChatResult{}, &ProviderError{Provider: c.cfg.ProviderLabel, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return ChatResult{}, &ProviderError{Provider: c.cfg.ProviderLabel, Err: fmt.Errorf("empty choices in response")}
	}

	choice := parsed.Choices[0]
	if isSafetyFiltered(choice.FinishReason) && choice.Message.Content == "" && choice.Message.ReasoningContent == "" {
		return ChatResult{}, ErrSafetyFiltered
	}

	result := ChatResult{
		Content:   choice.Message.Content,
		Reasoning: choice.Message.ReasoningContent,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}
	return result, nil
}

func (c *OpenAICompatibleClient) streamChatCompletion(ctx context.Context, body chatCompletionRequest, onChunk func(Chunk)) (ChatResult, error) {
	resp, err := c.do(ctx, body)
	if err != nil {
		return ChatResult{}, err
	}
	defer resp.Body.Close()

	var content, reasoning strings.Builder
	var finishReason string

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunkResp chatCompletionResponse
		if err := json.Unmarshal([]byte(payload), &chunkResp); err != nil {
			continue
		}
		if len(chunkResp.Choices) == 0 {
			continue
		}
		choice := chunkResp.Choices[0]
		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}

		thought := choice.Delta.ReasoningContent
		if thought == "" {
			thought = choice.Delta.Reasoning
		}
		if thought != "" {
			reasoning.WriteString(thought)
			if onChunk != nil {
				onChunk(Chunk{Type: ChunkTypeThought, Thought: thought})
			}
		}
		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			if onChunk != nil {
				onChunk(Chunk{Type: ChunkTypeContent, Content: choice.Delta.Content})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return ChatResult{}, &ProviderError{Provider: c.cfg.ProviderLabel, Err: fmt.Errorf("read stream: %w", err)}
	}

	if isSafetyFiltered(finishReason) && content.Len() == 0 && reasoning.Len() == 0 {
		return ChatResult{}, ErrSafetyFiltered
	}

	return ChatResult{Content: content.String(), Reasoning: reasoning.String()}, nil
}

func isSafetyFiltered(finishReason string) bool {
	return finishReason == "content_filter" || finishReason == "safety"
}

func (c *OpenAICompatibleClient) OCRImage(ctx context.Context, imageURL, prompt string) (string, error) {
	if !c.SupportsVision() {
		return "", ErrVisionUnsupported
	}

	body := chatCompletionRequest{
		Model: c.cfg.DefaultModel,
		Messages: []chatMessage{
			{Role: "user", Content: []map[string]any{
				{"type": "image_url", "image_url": map[string]string{"url": imageURL}},
				{"type": "text", "text": prompt},
			}},
		},
		MaxTokens: 4096,
	}

	resp, err := c.do(ctx, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &ProviderError{Provider: c.cfg.ProviderLabel, Err: fmt.Errorf("decode OCR response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Provider: c.cfg.ProviderLabel, Err: fmt.Errorf("empty choices in OCR response")}
	}
	return parsed.Choices[0].Message.Content, nil
}
