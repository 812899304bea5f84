package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 500 * time.Millisecond

// Watcher reloads ojoagent.yaml from disk on change and hands the freshly
// validated Config to OnReload. A failed reload is logged and the previous
// Config keeps serving — a bad edit never takes the process down.
type Watcher struct {
	configDir string
	path      string
	debounce  time.Duration
	onReload  func(*Config)

	mu      sync.Mutex
	timer   *time.Timer
	fsw     *fsnotify.Watcher
	stopCh  chan struct{}
	stopped bool
}

// NewWatcher constructs a Watcher for configDir/ojoagent.yaml. onReload is
// invoked with the new Config after every successful reload.
func NewWatcher(configDir string, onReload func(*Config)) *Watcher {
	return &Watcher{
		configDir: configDir,
		path:      filepath.Clean(filepath.Join(configDir, "ojoagent.yaml")),
		debounce:  defaultWatchDebounce,
		onReload:  onReload,
		stopCh:    make(chan struct{}),
	}
}

// Start begins watching the config directory. The directory (not the file
// itself) is watched so the watch survives editors that replace the file
// via rename rather than in-place write.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(w.configDir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", w.configDir, err)
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	go w.loop()
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

// Stop terminates the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	w.scheduleReload()
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		cfg, err := Load(context.Background(), w.configDir)
		if err != nil {
			slog.Warn("config reload failed, keeping previous configuration", "error", err)
			return
		}
		slog.Info("configuration reloaded", "path", w.path)
		if w.onReload != nil {
			w.onReload(cfg)
		}
	})
}
