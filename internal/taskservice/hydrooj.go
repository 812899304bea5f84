package taskservice

import (
	"context"
	"fmt"

	"github.com/inkotake/ojoagent/internal/adapter/hydrooj"
	"github.com/inkotake/ojoagent/internal/db"
)

// HydroOJConfigProvider satisfies hydrooj.ConfigProvider over
// internal/db.ConfigStore, reading ExtraSettings["base_url"]/["domain"]
// fresh on every call (spec §4.3: "configuration is not cached on the
// adapter instance... every call reads the caller's per-user config
// freshly through context.user_id").
type HydroOJConfigProvider struct {
	Configs *db.ConfigStore
}

func (p *HydroOJConfigProvider) HydroOJConfig(ctx context.Context, userID int64) (hydrooj.Config, error) {
	cfg, _, err := p.Configs.GetAdapterConfig(ctx, userID, "hydrooj")
	if err != nil {
		return hydrooj.Config{}, fmt.Errorf("look up hydrooj config for user %d: %w", userID, err)
	}
	return hydrooj.Config{
		BaseURL: cfg.ExtraSettings["base_url"],
		Domain:  cfg.ExtraSettings["domain"],
	}, nil
}
