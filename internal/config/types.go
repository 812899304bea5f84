// Package config loads ojoagentd's YAML configuration, merges it with
// built-in defaults, validates it, and optionally watches it for live
// reload. It does not cover database connection parameters (see
// internal/db.Config, which has its own OJO_DB_* env loader).
package config

import "time"

// Config is the fully-resolved, validated runtime configuration.
type Config struct {
	System      SystemConfig                 `yaml:"system"`
	Concurrency ConcurrencyConfig            `yaml:"concurrency"`
	Adapters    map[string]AdapterConfig     `yaml:"adapters" validate:"dive"`
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers" validate:"dive"`
	Slack       SlackConfig                  `yaml:"slack"`
}

// SystemConfig groups process-wide limits and external-facing settings.
type SystemConfig struct {
	MaxGlobalTasks   int      `yaml:"max_global_tasks" validate:"min=1"`
	DashboardURL     string   `yaml:"dashboard_url" validate:"omitempty,url"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
	AuthCacheTTL     time.Duration `yaml:"auth_cache_ttl"`
}

// ConcurrencyConfig maps directly onto internal/concurrency.PoolConfig plus
// the submit-slot minimum interval, so one YAML section tunes every
// bounded-resource knob in the process (spec §4.4, §8.1).
type ConcurrencyConfig struct {
	LLMSlots          int           `yaml:"llm_slots" validate:"min=1"`
	RemoteReadSlots   int           `yaml:"remote_read_slots" validate:"min=1"`
	RemoteWriteSlots  int           `yaml:"remote_write_slots" validate:"min=1,ltfield=RemoteReadSlots"`
	CompileSlots      int           `yaml:"compile_slots" validate:"min=1"`
	MinSubmitInterval time.Duration `yaml:"min_submit_interval"`
}

// AdapterConfig is the per-adapter-name section under `adapters:` — base URL
// and any adapter-specific tuning that isn't a user credential (credentials
// live in user_adapter_configs, see internal/db.ConfigStore).
type AdapterConfig struct {
	BaseURL        string        `yaml:"base_url" validate:"omitempty,url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LLMProviderConfig is one entry under `llm_providers:`.
type LLMProviderConfig struct {
	APIBaseURL  string `yaml:"api_base_url" validate:"required,url"`
	APIKeyEnv   string `yaml:"api_key_env" validate:"required"`
	Model       string `yaml:"model" validate:"required"`
	MaxRetries  int    `yaml:"max_retries" validate:"min=0"`
}

// SlackConfig controls the optional task-lifecycle notifier (internal/notify).
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`
}
