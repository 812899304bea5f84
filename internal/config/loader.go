package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads ojoagent.yaml from configDir, expands environment variables,
// merges it over DefaultConfig (user values override built-in defaults,
// never the reverse), and validates the result. This is the primary entry
// point cmd/ojoagentd calls at startup.
func Load(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	cfg := DefaultConfig()

	path := filepath.Join(configDir, "ojoagent.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = ExpandEnv(data)
		var userCfg Config
		if err := yaml.Unmarshal(data, &userCfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
		}
		if err := mergo.Merge(cfg, userCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge user configuration: %w", err)
		}
		log.Info("loaded user configuration", "path", path)
	case os.IsNotExist(err):
		log.Info("no ojoagent.yaml found, using built-in defaults", "path", path)
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	return cfg, nil
}
