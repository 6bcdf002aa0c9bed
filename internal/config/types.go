// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Backend names for the lock table and the metadata cache.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Post-processing modes for the target container.
const (
	PostProcessRemux  = "remux"
	PostProcessRecode = "recode"
)

// Tracing exporters.
const (
	ExporterGRPC = "grpc"
	ExporterHTTP = "http"
)

// AppConfig is the effective configuration of the service. The same struct
// is the YAML file schema.
type AppConfig struct {
	Version string `yaml:"-"`

	API       APIConfig       `yaml:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Tool      ToolConfig      `yaml:"tool"`
	Locks     LocksConfig     `yaml:"locks"`
	Cache     CacheConfig     `yaml:"cache"`
	Progress  ProgressConfig  `yaml:"progress"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Server    ServerConfig    `yaml:"server"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	ListenAddr     string          `yaml:"listenAddr"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig is the per-client request limit.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// MetricsConfig configures the prometheus listener. An empty address disables it.
type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// WorkspaceConfig locates the scratch directory for downloads.
type WorkspaceConfig struct {
	Dir string `yaml:"dir"`
}

// ToolConfig configures the external extractor and merger.
type ToolConfig struct {
	YtdlpBin        string        `yaml:"ytdlpBin"`
	FFmpegBin       string        `yaml:"ffmpegBin"`
	Retries         int           `yaml:"retries"`
	FragmentRetries int           `yaml:"fragmentRetries"`
	SocketTimeout   time.Duration `yaml:"socketTimeout"`
	// Timeout bounds one tool invocation; zero means no bound.
	Timeout        time.Duration `yaml:"timeout"`
	CookiesBrowser string        `yaml:"cookiesBrowser"`
	MergeFormat    string        `yaml:"mergeFormat"`
	PostProcess    string        `yaml:"postProcess"`
}

// LocksConfig selects the per-URL lock table. The redis settings are shared
// with the redis cache backend.
type LocksConfig struct {
	Backend       string        `yaml:"backend"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	TTL           time.Duration `yaml:"ttl"`
}

// CacheConfig selects the metadata cache.
type CacheConfig struct {
	Backend         string        `yaml:"backend"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

// ProgressConfig throttles progress events.
type ProgressConfig struct {
	MinInterval time.Duration `yaml:"minInterval"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// ServerConfig holds HTTP server timeouts.
type ServerConfig struct {
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// UsesRedis reports whether any backend needs a redis connection.
func (c AppConfig) UsesRedis() bool {
	return c.Locks.Backend == BackendRedis || c.Cache.Backend == BackendRedis
}

// Redacted returns a copy safe for printing.
func (c AppConfig) Redacted() AppConfig {
	if c.Locks.RedisPassword != "" {
		c.Locks.RedisPassword = "***"
	}
	c.API.AllowedOrigins = append([]string(nil), c.API.AllowedOrigins...)
	return c
}
