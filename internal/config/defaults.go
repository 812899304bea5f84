package config

import (
	"time"

	"github.com/inkotake/ojoagent/internal/concurrency"
)

// DefaultMaxGlobalTasks is the process-wide cap on concurrently running
// tasks across all users (spec §4.9 Task Service default).
const DefaultMaxGlobalTasks = 50

// DefaultConfig returns the built-in configuration merged under any
// user-supplied YAML (see Load). Every spec-mandated default lives here.
func DefaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			MaxGlobalTasks: DefaultMaxGlobalTasks,
			DashboardURL:   "http://localhost:5173",
			AuthCacheTTL:   time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			LLMSlots:          concurrency.DefaultLLMSlots,
			RemoteReadSlots:   concurrency.DefaultRemoteReadSlots,
			RemoteWriteSlots:  concurrency.DefaultRemoteWriteSlots,
			CompileSlots:      concurrency.DefaultCompileSlots,
			MinSubmitInterval: concurrency.DefaultMinSubmitInterval,
		},
		Adapters:     map[string]AdapterConfig{},
		LLMProviders: map[string]LLMProviderConfig{},
		Slack: SlackConfig{
			Enabled:  false,
			TokenEnv: "SLACK_BOT_TOKEN",
		},
	}
}
