package taskservice

import (
	"context"
	"fmt"

	"github.com/inkotake/ojoagent/internal/db"
	"github.com/inkotake/ojoagent/internal/llmstream"
)

// ConfigCredentialResolver satisfies CredentialResolver over
// internal/db.ConfigStore, treating the LLM provider name as an adapter
// name in user_adapter_configs — the same table that holds judge
// credentials (spec §4.6: "the factory reads per-user API keys
// (decrypted)"). ExtraSettings["base_url"]/["model"] override the
// provider's built-in defaults when present.
type ConfigCredentialResolver struct {
	Configs *db.ConfigStore
}

func (r *ConfigCredentialResolver) ResolveLLMCredentials(ctx context.Context, userID int64, provider string) (llmstream.UserCredentials, error) {
	cfg, apiKey, err := r.Configs.GetAdapterConfig(ctx, userID, provider)
	if err != nil {
		return llmstream.UserCredentials{}, fmt.Errorf("look up %q credentials for user %d: %w", provider, userID, err)
	}
	return llmstream.UserCredentials{
		APIKey:  apiKey,
		BaseURL: cfg.ExtraSettings["base_url"],
		Model:   cfg.ExtraSettings["model"],
	}, nil
}
