// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vidgrab/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// ConfigHolder holds the current configuration and swaps it atomically on
// reload. A reload that fails to load or validate keeps the old value.
type ConfigHolder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	listenersMu sync.RWMutex
	listeners   []chan<- AppConfig
}

// NewConfigHolder creates a holder seeded with initial.
func NewConfigHolder(initial AppConfig, loader *Loader) *ConfigHolder {
	return &ConfigHolder{
		current: initial,
		loader:  loader,
		logger:  xglog.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload loads and validates the configuration, then swaps it in.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}
	if err := Validate(next); err != nil {
		h.logger.Error().Err(err).Str("event", "config.validation_failed").Msg("new configuration failed validation")
		return fmt.Errorf("validate config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.mu.Unlock()

	h.logChanges(prev, next)
	h.notify(next)
	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded")
	return nil
}

// StartWatcher reloads on changes to the config file until ctx ends. It is a
// no-op without a config file. The directory is watched so editors that
// replace the file by rename are picked up.
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("config file watcher disabled (environment-only configuration)")
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.watcher = w
	h.done = make(chan struct{})

	h.logger.Info().Str("event", "config.watcher_started").Str("path", path).Msg("watching config file for changes")
	go h.watchLoop(ctx, filepath.Clean(path))
	return nil
}

func (h *ConfigHolder) watchLoop(ctx context.Context, path string) {
	defer close(h.done)
	defer func() { _ = h.watcher.Close() }()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			return

		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().Str("event", "config.file_changed").Str("op", ev.Op.String()).Msg("config file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().Err(err).Str("event", "config.auto_reload_failed").Msg("automatic config reload failed")
				}
			})

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Wait blocks until the watcher started by StartWatcher has exited.
func (h *ConfigHolder) Wait() {
	if h.done != nil {
		<-h.done
	}
}

// RegisterListener subscribes ch to successful reloads. Sends never block;
// a full channel misses the update.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *ConfigHolder) notify(cfg AppConfig) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str("event", "config.listener_skip").Msg("skipped notifying listener (channel full)")
		}
	}
}

func (h *ConfigHolder) logChanges(prev, next AppConfig) {
	if prev.Log.Level != next.Log.Level {
		h.logger.Info().Str("old", prev.Log.Level).Str("new", next.Log.Level).Msg("config changed: log.level")
	}
	if prev.Progress.MinInterval != next.Progress.MinInterval {
		h.logger.Info().Dur("old", prev.Progress.MinInterval).Dur("new", next.Progress.MinInterval).Msg("config changed: progress.minInterval")
	}
	if prev.API.ListenAddr != next.API.ListenAddr {
		h.logger.Warn().Str("old", prev.API.ListenAddr).Str("new", next.API.ListenAddr).Msg("config changed: api.listenAddr (restart required)")
	}
	if prev.Workspace.Dir != next.Workspace.Dir {
		h.logger.Warn().Str("old", prev.Workspace.Dir).Str("new", next.Workspace.Dir).Msg("config changed: workspace.dir (restart required)")
	}
}
