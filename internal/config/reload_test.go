// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oasdiff/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overwriteConfig marshals values as the YAML config file at path.
func overwriteConfig(t *testing.T, path string, values map[string]any) {
	t.Helper()
	data, err := yaml.Marshal(values)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestConfigHolder_Reload(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewConfigHolder(initial, loader)
	updates := make(chan AppConfig, 1)
	h.RegisterListener(updates)

	overwriteConfig(t, path, map[string]any{
		"log":      map[string]any{"level": "debug"},
		"progress": map[string]any{"minInterval": "250ms"},
	})
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, "debug", h.Get().Log.Level)
	assert.Equal(t, "debug", (<-updates).Log.Level)
	assert.Equal(t, 250*time.Millisecond, h.Get().Progress.MinInterval)

	// Invalid content keeps the previous configuration.
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o600))
	assert.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "debug", h.Get().Log.Level)

	require.NoError(t, os.WriteFile(path, []byte("nope: true\n"), 0o600))
	assert.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "debug", h.Get().Log.Level)
	assert.Empty(t, updates)
}

func TestConfigHolder_ListenerNeverBlocks(t *testing.T) {
	loader := NewLoader("", "dev")
	cfg, err := loader.Load()
	require.NoError(t, err)

	h := NewConfigHolder(cfg, loader)
	full := make(chan AppConfig)
	h.RegisterListener(full)

	done := make(chan error, 1)
	go func() { done <- h.Reload(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reload blocked on listener")
	}
}

func TestConfigHolder_Watcher(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewConfigHolder(initial, loader)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.StartWatcher(ctx))

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))
	assert.Eventually(t, func() bool {
		return h.Get().Log.Level == "warn"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	h.Wait()
}

func TestConfigHolder_WatcherDisabledWithoutFile(t *testing.T) {
	h := NewConfigHolder(Defaults(), NewLoader("", "dev"))
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Wait()
}
