// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"

	"github.com/ManuGH/vidgrab/internal/validate"
)

// Validate checks cfg and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	if cfg.API.RateLimit.Enabled {
		v.Positive("api.rateLimit.requests", cfg.API.RateLimit.Requests)
		v.PositiveDuration("api.rateLimit.window", cfg.API.RateLimit.Window)
	}
	for _, origin := range cfg.API.AllowedOrigins {
		if origin == "*" {
			continue
		}
		v.URL("api.allowedOrigins", origin, []string{"http", "https"})
	}

	if cfg.Metrics.ListenAddr != "" {
		v.ListenAddr("metrics.listenAddr", cfg.Metrics.ListenAddr)
		if cfg.Metrics.ListenAddr == cfg.API.ListenAddr {
			v.AddError("metrics.listenAddr", "must differ from api.listenAddr", cfg.Metrics.ListenAddr)
		}
	}

	if !validate.LogLevel(strings.ToLower(cfg.Log.Level)).IsValid() {
		v.AddError("log.level", "must be one of "+strings.Join(validate.LogLevels, ", "), cfg.Log.Level)
	}

	v.Path("workspace.dir", cfg.Workspace.Dir)

	v.NotEmpty("tool.ytdlpBin", cfg.Tool.YtdlpBin)
	v.NotEmpty("tool.ffmpegBin", cfg.Tool.FFmpegBin)
	v.Positive("tool.retries", cfg.Tool.Retries)
	v.Positive("tool.fragmentRetries", cfg.Tool.FragmentRetries)
	v.PositiveDuration("tool.socketTimeout", cfg.Tool.SocketTimeout)
	if cfg.Tool.Timeout < 0 {
		v.AddError("tool.timeout", "must not be negative", cfg.Tool.Timeout)
	}
	v.NotEmpty("tool.mergeFormat", cfg.Tool.MergeFormat)
	v.OneOf("tool.postProcess", cfg.Tool.PostProcess, []string{PostProcessRemux, PostProcessRecode})

	v.OneOf("locks.backend", cfg.Locks.Backend, []string{BackendMemory, BackendRedis})
	v.OneOf("cache.backend", cfg.Cache.Backend, []string{BackendMemory, BackendRedis, BackendNone})
	if cfg.UsesRedis() {
		v.NotEmpty("locks.redisAddr", cfg.Locks.RedisAddr)
		v.NonNegative("locks.redisDB", cfg.Locks.RedisDB)
	}
	if cfg.Locks.Backend == BackendRedis {
		v.PositiveDuration("locks.ttl", cfg.Locks.TTL)
	}
	if cfg.Cache.Backend != BackendNone {
		v.PositiveDuration("cache.ttl", cfg.Cache.TTL)
	}
	if cfg.Cache.Backend == BackendMemory {
		v.PositiveDuration("cache.cleanupInterval", cfg.Cache.CleanupInterval)
	}

	v.PositiveDuration("progress.minInterval", cfg.Progress.MinInterval)

	if cfg.Tracing.Enabled {
		v.OneOf("tracing.exporter", cfg.Tracing.Exporter, []string{ExporterGRPC, ExporterHTTP})
		v.NotEmpty("tracing.endpoint", cfg.Tracing.Endpoint)
		v.Fraction("tracing.samplingRate", cfg.Tracing.SamplingRate)
	}

	v.PositiveDuration("server.readTimeout", cfg.Server.ReadTimeout)
	v.PositiveDuration("server.idleTimeout", cfg.Server.IdleTimeout)
	v.PositiveDuration("server.shutdownTimeout", cfg.Server.ShutdownTimeout)
	if cfg.Server.WriteTimeout < 0 {
		v.AddError("server.writeTimeout", "must not be negative", cfg.Server.WriteTimeout)
	}

	return v.Err()
}
