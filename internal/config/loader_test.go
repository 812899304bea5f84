package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ojoagent.yaml"), []byte(contents), 0o600))
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxGlobalTasks, cfg.System.MaxGlobalTasks)
	assert.Equal(t, time.Hour, cfg.System.AuthCacheTTL)
}

func TestLoad_UserValuesOverrideDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
system:
  max_global_tasks: 200
  dashboard_url: "https://ojo.example.com"
concurrency:
  llm_slots: 4
  remote_read_slots: 3
  remote_write_slots: 1
  compile_slots: 1
`)

	cfg, err := Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.System.MaxGlobalTasks)
	assert.Equal(t, "https://ojo.example.com", cfg.System.DashboardURL)
	assert.Equal(t, 4, cfg.Concurrency.LLMSlots)
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OJO_DASHBOARD_HOST", "ojo.internal")
	writeConfigFile(t, dir, `
system:
  dashboard_url: "https://${OJO_DASHBOARD_HOST}"
`)

	cfg, err := Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "https://ojo.internal", cfg.System.DashboardURL)
}

func TestLoad_RejectsRemoteWriteSlotsNotBelowReadSlots(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
concurrency:
  llm_slots: 2
  remote_read_slots: 2
  remote_write_slots: 2
  compile_slots: 1
`)

	_, err := Load(context.Background(), dir)
	require.ErrorIs(t, err, ErrValidationFailed)
}

func TestLoad_RejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "system: [this is not valid: yaml")

	_, err := Load(context.Background(), dir)
	require.ErrorIs(t, err, ErrInvalidYAML)
}
