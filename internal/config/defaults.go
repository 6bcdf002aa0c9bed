// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		API: APIConfig{
			ListenAddr:     ":5000",
			AllowedOrigins: []string{"*"},
			RateLimit: RateLimitConfig{
				Enabled:  true,
				Requests: 60,
				Window:   time.Minute,
			},
		},
		Metrics: MetricsConfig{
			ListenAddr: "",
		},
		Log: LogConfig{
			Level:   "info",
			Service: "vidgrab",
		},
		Workspace: WorkspaceConfig{
			Dir: "downloads",
		},
		Tool: ToolConfig{
			YtdlpBin:        "yt-dlp",
			FFmpegBin:       "ffmpeg",
			Retries:         10,
			FragmentRetries: 10,
			SocketTimeout:   30 * time.Second,
			Timeout:         2 * time.Hour,
			MergeFormat:     "mp4",
			PostProcess:     PostProcessRemux,
		},
		Locks: LocksConfig{
			Backend: BackendMemory,
			TTL:     time.Minute,
		},
		Cache: CacheConfig{
			Backend:         BackendMemory,
			TTL:             10 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Progress: ProgressConfig{
			MinInterval: 500 * time.Millisecond,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     ExporterGRPC,
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		Server: ServerConfig{
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
	}
}
