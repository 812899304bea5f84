package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/inkotake/ojoagent/internal/models"
	"github.com/inkotake/ojoagent/internal/secrets"
)

func newMockConfigStore(t *testing.T) (*ConfigStore, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	enc, err := secrets.NewEncryptor(key)
	require.NoError(t, err)

	return &ConfigStore{db: mockDB, enc: enc}, mock
}

func TestConfigStore_UpsertAdapterConfig_EncryptsToken(t *testing.T) {
	store, mock := newMockConfigStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO user_adapter_configs`).
		WithArgs(int64(1), "codeforces", sqlmock.AnyArg(), "handle", []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(9), now, now))

	cfg := &models.UserAdapterConfig{UserID: 1, AdapterName: "codeforces", Username: "handle"}
	err := store.UpsertAdapterConfig(context.Background(), cfg, "super-secret-token")
	require.NoError(t, err)
	require.Equal(t, int64(9), cfg.ID)
	require.NotEqual(t, "super-secret-token", cfg.EncryptedToken, "stored token must be ciphertext, not plaintext")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigStore_GetAdapterConfig_DecryptsToken(t *testing.T) {
	store, mock := newMockConfigStore(t)
	now := time.Now()

	ciphertext, err := store.enc.EncryptString("super-secret-token")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT (.+) FROM user_adapter_configs WHERE user_id = \$1 AND adapter_name = \$2`).
		WithArgs(int64(1), "codeforces").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "adapter_name", "encrypted_token", "username", "extra_settings", "created_at", "updated_at",
		}).AddRow(int64(9), int64(1), "codeforces", ciphertext, "handle", []byte(`{}`), now, now))

	cfg, plaintext, err := store.GetAdapterConfig(context.Background(), 1, "codeforces")
	require.NoError(t, err)
	require.Equal(t, "super-secret-token", plaintext)
	require.Equal(t, "handle", cfg.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigStore_GetModuleDefaultAdapter_UnsetReturnsEmpty(t *testing.T) {
	store, mock := newMockConfigStore(t)

	mock.ExpectQuery(`SELECT default_adapter FROM user_module_settings`).
		WithArgs(int64(1), models.ModuleFetch).
		WillReturnRows(sqlmock.NewRows([]string{"default_adapter"}))

	adapter, err := store.GetModuleDefaultAdapter(context.Background(), 1, models.ModuleFetch)
	require.NoError(t, err)
	require.Equal(t, "", adapter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigStore_SetSystemConfig(t *testing.T) {
	store, mock := newMockConfigStore(t)

	mock.ExpectExec(`INSERT INTO system_configs`).
		WithArgs("max_global_tasks", "50").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SetSystemConfig(context.Background(), "max_global_tasks", "50")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
