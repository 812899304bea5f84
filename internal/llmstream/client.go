// Package llmstream is the LLM Stream Layer (C6): a uniform streaming
// chat interface over multiple providers, with thought/content
// separation, chunk callbacks, and retry on rate limit (spec §4.6).
//
// The shape is borrowed from the teacher's pkg/agent.LLMClient — a
// Generate-style call returning typed chunks over a channel — but the
// transport underneath is per-provider REST/SSE rather than gRPC: the
// teacher bridges to an out-of-process Python service over
// google.golang.org/grpc, a dependency this repo drops (see DESIGN.md,
// "Dropped teacher dependencies") because there is no sibling service to
// generate stubs for. Concrete providers speak HTTP directly instead.
package llmstream

import "context"

// ChunkType identifies the kind of streaming chunk, mirroring the
// teacher's agent.ChunkType enum.
type ChunkType string

const (
	ChunkTypeContent ChunkType = "content"
	ChunkTypeThought  ChunkType = "thought"
	ChunkTypeUsage    ChunkType = "usage"
	ChunkTypeError    ChunkType = "error"
)

// Chunk is one piece of a streaming response.
type Chunk struct {
	Type    ChunkType
	Content string // set for ChunkTypeContent
	Thought string // set for ChunkTypeThought
	Usage   *Usage // set for ChunkTypeUsage
	Err     error  // set for ChunkTypeError
}

// Usage reports token consumption for a call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	ThinkingTokens   int
	TotalTokens      int
}

// ChatRequest is one ChatCompletion call (spec §4.6).
type ChatRequest struct {
	Prompt       string
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float64
	TopP         float64
	Stream       bool

	// ThinkingBudget is a separate token budget for providers that
	// accept one (spec §4.6 "Thinking budget"); zero means the provider
	// should fold everything into MaxTokens.
	ThinkingBudget int

	// OnChunk, if non-nil, is invoked for every chunk as it streams in,
	// in addition to the chunks being aggregated into the final Result.
	OnChunk func(Chunk)
}

// ChatResult is ChatCompletion's aggregated return value.
type ChatResult struct {
	Content   string
	Reasoning string // empty if the provider has no reasoning stream
	Usage     Usage
	// Recovered is true when Content was empty and got salvaged from a
	// fenced code block inside Reasoning (spec §4.6 "Content recovery").
	Recovered bool
}

// Client is the single abstract interface every provider implements
// (spec §4.6).
type Client interface {
	// ChatCompletion runs one completion, streaming chunks to
	// req.OnChunk if req.Stream is true (non-streaming providers
	// synthesize a single content chunk before returning).
	ChatCompletion(ctx context.Context, req ChatRequest) (ChatResult, error)

	// SupportsVision reports whether this client accepts image input
	// for OCR (spec §4.6 "Vision / OCR is a separate capability flag").
	SupportsVision() bool

	// OCRImage extracts text from an image, if SupportsVision is true.
	OCRImage(ctx context.Context, imageURL, prompt string) (string, error)

	// ProviderName identifies this client for logging and provider
	// selection diagnostics.
	ProviderName() string
}
