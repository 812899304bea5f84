package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnFileWrite(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "system:\n  max_global_tasks: 10\n")

	reloads := make(chan *Config, 4)
	w := NewWatcher(dir, func(cfg *Config) { reloads <- cfg })
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writeConfigFile(t, dir, "system:\n  max_global_tasks: 77\n")

	select {
	case cfg := <-reloads:
		require.Equal(t, 77, cfg.System.MaxGlobalTasks)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "system:\n  max_global_tasks: 10\n")

	reloads := make(chan *Config, 4)
	w := NewWatcher(dir, func(cfg *Config) { reloads <- cfg })
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("noise"), 0o600))

	select {
	case <-reloads:
		t.Fatal("watcher reloaded on an unrelated file change")
	case <-time.After(300 * time.Millisecond):
	}
}
