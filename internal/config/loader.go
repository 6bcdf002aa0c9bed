// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "VIDGRAB_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every variable the last Load looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath means
// defaults plus environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the configuration file path, if any.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envList(key string, def []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, def)
}

// Load builds the effective configuration: defaults, then the strict file,
// then environment overrides. The result is not validated; see Validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if cfg.Workspace.Dir != "" {
		if abs, err := filepath.Abs(cfg.Workspace.Dir); err == nil {
			cfg.Workspace.Dir = abs
		}
	}
	cfg.Version = l.version
	return cfg, nil
}

// loadFile decodes path over cfg. Keys absent from the file keep their
// current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	return decodeStrict(data, cfg)
}

func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	p := EnvPrefix

	cfg.API.ListenAddr = l.envString(p+"LISTEN", cfg.API.ListenAddr)
	cfg.API.AllowedOrigins = l.envList(p+"ALLOWED_ORIGINS", cfg.API.AllowedOrigins)
	cfg.API.RateLimit.Enabled = l.envBool(p+"RATELIMIT_ENABLED", cfg.API.RateLimit.Enabled)
	cfg.API.RateLimit.Requests = l.envInt(p+"RATELIMIT_REQUESTS", cfg.API.RateLimit.Requests)
	cfg.API.RateLimit.Window = l.envDuration(p+"RATELIMIT_WINDOW", cfg.API.RateLimit.Window)

	cfg.Metrics.ListenAddr = l.envString(p+"METRICS_LISTEN", cfg.Metrics.ListenAddr)

	// LOG_LEVEL is honoured as a fallback, matching common container setups.
	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Level = l.envString(p+"LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString(p+"LOG_SERVICE", cfg.Log.Service)

	cfg.Workspace.Dir = l.envString(p+"WORKSPACE_DIR", cfg.Workspace.Dir)

	cfg.Tool.YtdlpBin = l.envString(p+"YTDLP_BIN", cfg.Tool.YtdlpBin)
	cfg.Tool.FFmpegBin = l.envString(p+"FFMPEG_BIN", cfg.Tool.FFmpegBin)
	cfg.Tool.Retries = l.envInt(p+"TOOL_RETRIES", cfg.Tool.Retries)
	cfg.Tool.FragmentRetries = l.envInt(p+"TOOL_FRAGMENT_RETRIES", cfg.Tool.FragmentRetries)
	cfg.Tool.SocketTimeout = l.envDuration(p+"TOOL_SOCKET_TIMEOUT", cfg.Tool.SocketTimeout)
	cfg.Tool.Timeout = l.envDuration(p+"TOOL_TIMEOUT", cfg.Tool.Timeout)
	cfg.Tool.CookiesBrowser = l.envString(p+"COOKIES_BROWSER", cfg.Tool.CookiesBrowser)
	cfg.Tool.MergeFormat = l.envString(p+"MERGE_FORMAT", cfg.Tool.MergeFormat)
	cfg.Tool.PostProcess = l.envString(p+"POST_PROCESS", cfg.Tool.PostProcess)

	cfg.Locks.Backend = l.envString(p+"LOCKS_BACKEND", cfg.Locks.Backend)
	cfg.Locks.RedisAddr = l.envString(p+"REDIS_ADDR", cfg.Locks.RedisAddr)
	cfg.Locks.RedisPassword = l.envString(p+"REDIS_PASSWORD", cfg.Locks.RedisPassword)
	cfg.Locks.RedisDB = l.envInt(p+"REDIS_DB", cfg.Locks.RedisDB)
	cfg.Locks.TTL = l.envDuration(p+"LOCKS_TTL", cfg.Locks.TTL)

	cfg.Cache.Backend = l.envString(p+"CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = l.envDuration(p+"CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.CleanupInterval = l.envDuration(p+"CACHE_CLEANUP_INTERVAL", cfg.Cache.CleanupInterval)

	cfg.Progress.MinInterval = l.envDuration(p+"PROGRESS_MIN_INTERVAL", cfg.Progress.MinInterval)

	cfg.Tracing.Enabled = l.envBool(p+"TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString(p+"TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString(p+"TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat(p+"TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)

	cfg.Server.ReadTimeout = l.envDuration(p+"SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration(p+"SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = l.envDuration(p+"SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration(p+"SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
}

// UnknownEnvKeys returns VIDGRAB_ variables present in the environment that
// the last Load did not consume, usually typos.
func (l *Loader) UnknownEnvKeys() []string {
	var out []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
