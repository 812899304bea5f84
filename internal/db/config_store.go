package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inkotake/ojoagent/internal/models"
	"github.com/inkotake/ojoagent/internal/secrets"
)

// ErrConfigNotFound is returned when no adapter config or module setting
// row matches the lookup.
var ErrConfigNotFound = errors.New("config not found")

// ConfigStore persists per-user adapter credentials and module settings,
// plus process-wide system_configs key/value pairs. Adapter tokens are
// encrypted at rest with the supplied Encryptor; all other fields are
// plaintext.
type ConfigStore struct {
	db  *sql.DB
	enc *secrets.Encryptor
}

func NewConfigStore(c *Client, enc *secrets.Encryptor) *ConfigStore {
	return &ConfigStore{db: c.DB(), enc: enc}
}

// UpsertAdapterConfig inserts or replaces a user's credentials for one adapter.
// cfg.EncryptedToken is treated as plaintext on input and encrypted before storage;
// this mirrors the Auth Cache layer which only ever sees decrypted tokens.
func (s *ConfigStore) UpsertAdapterConfig(ctx context.Context, cfg *models.UserAdapterConfig, plaintextToken string) error {
	ciphertext, err := s.enc.EncryptString(plaintextToken)
	if err != nil {
		return fmt.Errorf("encrypt adapter token: %w", err)
	}

	extraJSON, err := json.Marshal(cfg.ExtraSettings)
	if err != nil {
		return fmt.Errorf("marshal extra settings: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO user_adapter_configs (user_id, adapter_name, encrypted_token, username, extra_settings)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, adapter_name) DO UPDATE
			SET encrypted_token = EXCLUDED.encrypted_token,
			    username = EXCLUDED.username,
			    extra_settings = EXCLUDED.extra_settings,
			    updated_at = now()
		RETURNING id, created_at, updated_at`,
		cfg.UserID, cfg.AdapterName, ciphertext, cfg.Username, extraJSON,
	)
	if err := row.Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return fmt.Errorf("upsert adapter config: %w", err)
	}
	cfg.EncryptedToken = ciphertext
	return nil
}

// GetAdapterConfig fetches a user's stored config for one adapter, along with
// the token decrypted for immediate use (e.g. populating the User Context auth cache).
func (s *ConfigStore) GetAdapterConfig(ctx context.Context, userID int64, adapterName string) (*models.UserAdapterConfig, string, error) {
	cfg := &models.UserAdapterConfig{}
	var extraJSON []byte
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, adapter_name, encrypted_token, username, extra_settings, created_at, updated_at
		FROM user_adapter_configs WHERE user_id = $1 AND adapter_name = $2`,
		userID, adapterName,
	)
	if err := row.Scan(&cfg.ID, &cfg.UserID, &cfg.AdapterName, &cfg.EncryptedToken,
		&cfg.Username, &extraJSON, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrConfigNotFound
		}
		return nil, "", fmt.Errorf("get adapter config: %w", err)
	}
	if err := json.Unmarshal(extraJSON, &cfg.ExtraSettings); err != nil {
		return nil, "", fmt.Errorf("unmarshal extra settings: %w", err)
	}

	plaintext, err := s.enc.DecryptString(cfg.EncryptedToken)
	if err != nil {
		return nil, "", fmt.Errorf("decrypt adapter token: %w", err)
	}
	return cfg, plaintext, nil
}

// ListAdapterConfigs returns every adapter a user has configured, without
// decrypting tokens (for a settings listing page, not for live auth).
func (s *ConfigStore) ListAdapterConfigs(ctx context.Context, userID int64) ([]*models.UserAdapterConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, adapter_name, encrypted_token, username, extra_settings, created_at, updated_at
		FROM user_adapter_configs WHERE user_id = $1 ORDER BY adapter_name`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list adapter configs: %w", err)
	}
	defer rows.Close()

	var out []*models.UserAdapterConfig
	for rows.Next() {
		cfg := &models.UserAdapterConfig{}
		var extraJSON []byte
		if err := rows.Scan(&cfg.ID, &cfg.UserID, &cfg.AdapterName, &cfg.EncryptedToken,
			&cfg.Username, &extraJSON, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan adapter config row: %w", err)
		}
		if err := json.Unmarshal(extraJSON, &cfg.ExtraSettings); err != nil {
			return nil, fmt.Errorf("unmarshal extra settings: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// DeleteAdapterConfig removes a user's credentials for one adapter.
func (s *ConfigStore) DeleteAdapterConfig(ctx context.Context, userID int64, adapterName string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_adapter_configs WHERE user_id = $1 AND adapter_name = $2`,
		userID, adapterName,
	)
	if err != nil {
		return fmt.Errorf("delete adapter config: %w", err)
	}
	return nil
}

// SetModuleDefaultAdapter records a user's preferred adapter for a pipeline module.
func (s *ConfigStore) SetModuleDefaultAdapter(ctx context.Context, userID int64, module models.Module, adapterName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_module_settings (user_id, module, default_adapter)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, module) DO UPDATE SET default_adapter = EXCLUDED.default_adapter`,
		userID, module, adapterName,
	)
	if err != nil {
		return fmt.Errorf("set module default adapter: %w", err)
	}
	return nil
}

// GetModuleDefaultAdapter returns a user's preferred adapter for a module, or
// "" if unset.
func (s *ConfigStore) GetModuleDefaultAdapter(ctx context.Context, userID int64, module models.Module) (string, error) {
	var adapter string
	err := s.db.QueryRowContext(ctx,
		`SELECT default_adapter FROM user_module_settings WHERE user_id = $1 AND module = $2`,
		userID, module,
	).Scan(&adapter)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get module default adapter: %w", err)
	}
	return adapter, nil
}

// GetSystemConfig reads one process-wide config key, or "" if unset.
func (s *ConfigStore) GetSystemConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM system_configs WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get system config %q: %w", key, err)
	}
	return value, nil
}

// SetSystemConfig writes one process-wide config key.
func (s *ConfigStore) SetSystemConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_configs (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set system config %q: %w", key, err)
	}
	return nil
}
