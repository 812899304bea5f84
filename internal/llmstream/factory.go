package llmstream

import (
	"fmt"
	"time"

	"github.com/inkotake/ojoagent/internal/concurrency"
)

// ProviderName is one of the task-time provider selectors spec §4.6
// names as examples ("deepseek", "siliconflow", "openai", ...).
type ProviderName string

const (
	ProviderDeepSeek    ProviderName = "deepseek"
	ProviderSiliconFlow ProviderName = "siliconflow"
	ProviderOpenAI      ProviderName = "openai"
	ProviderGemini      ProviderName = "gemini"
)

// defaultBaseURLs/defaultModels give each built-in provider a sane
// default, grounded on the original's per-provider client defaults
// (services/llm/deepseek.py, siliconflow.py, openai_compatible.py).
var defaultBaseURLs = map[ProviderName]string{
	ProviderDeepSeek:    "https://api.deepseek.com/v1",
	ProviderSiliconFlow: "https://api.siliconflow.cn/v1",
	ProviderOpenAI:      "https://api.openai.com/v1",
	ProviderGemini:      "https://hiapi.online/v1",
}

var defaultModels = map[ProviderName]string{
	ProviderDeepSeek:    "deepseek-reasoner",
	ProviderSiliconFlow: "deepseek-ai/DeepSeek-R1",
	ProviderOpenAI:      "gpt-4o",
	ProviderGemini:      "gemini-2.5-pro",
}

// UserCredentials is the per-user, per-provider secret the factory needs
// to construct a concrete client — the decrypted API key the task asked
// for (spec §4.6 "the factory reads per-user API keys (decrypted)").
type UserCredentials struct {
	APIKey  string
	BaseURL string // overrides the provider default when set
	Model   string // overrides the provider default when set
}

// Factory builds retry-wrapped Client instances for a task-time provider
// selection (spec §4.6).
type Factory struct {
	RequestsPerSecond float64 // shared pacing default across providers, 0 disables
	Timeout           time.Duration
}

// NewFactory builds a Factory with spec-reasonable defaults.
func NewFactory() *Factory {
	return &Factory{RequestsPerSecond: 2, Timeout: 60 * time.Second}
}

// Build constructs the Client for name using creds, wrapped in the
// spec §4.6 retry contract. cancelToken may be nil.
func (f *Factory) Build(name ProviderName, creds UserCredentials, cancelToken *concurrency.CancelToken) (Client, error) {
	if creds.APIKey == "" {
		return nil, fmt.Errorf("llmstream: no API key configured for provider %q", name)
	}

	baseURL := creds.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURLs[name]
	}
	model := creds.Model
	if model == "" {
		model = defaultModels[name]
	}
	if baseURL == "" || model == "" {
		return nil, fmt.Errorf("llmstream: unknown provider %q and no override base_url/model given", name)
	}

	client := NewOpenAICompatibleClient(OpenAICompatibleConfig{
		ProviderLabel:     string(name),
		APIKey:            creds.APIKey,
		BaseURL:           baseURL,
		DefaultModel:      model,
		Timeout:           f.Timeout,
		RequestsPerSecond: f.RequestsPerSecond,
	})
	return WithRetry(client, cancelToken), nil
}
