// SPDX-License-Identifier: MIT

// Package daemon wires the configured components together and manages the
// lifecycle of the HTTP servers.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vidgrab/internal/api"
	"github.com/ManuGH/vidgrab/internal/bus"
	"github.com/ManuGH/vidgrab/internal/cache"
	"github.com/ManuGH/vidgrab/internal/config"
	"github.com/ManuGH/vidgrab/internal/download"
	"github.com/ManuGH/vidgrab/internal/health"
	"github.com/ManuGH/vidgrab/internal/lock"
	"github.com/ManuGH/vidgrab/internal/log"
	"github.com/ManuGH/vidgrab/internal/telemetry"
	"github.com/ManuGH/vidgrab/internal/workspace"
	"github.com/ManuGH/vidgrab/internal/ytdlp"
)

// Runtime is the set of long-lived components built from one configuration.
type Runtime struct {
	Config       config.AppConfig
	API          *api.Server
	Health       *health.Manager
	Orchestrator *download.Orchestrator
	Workspace    *workspace.Manager
	Bus          *bus.MemoryBus

	telemetry *telemetry.Provider
	cache     cache.Cache
	redis     *redis.Client
	logger    zerolog.Logger
}

// Bootstrap validates the environment and builds every component for cfg.
// Close releases what it opened.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (*Runtime, error) {
	logger := log.WithComponent("daemon")

	ytdlpProbe := ytdlp.BinaryProbe{Bin: cfg.Tool.YtdlpBin}
	ffmpegProbe := ytdlp.BinaryProbe{Bin: cfg.Tool.FFmpegBin}

	if err := health.PerformStartupChecks(ctx, health.StartupInput{
		ListenAddr:   cfg.API.ListenAddr,
		WorkspaceDir: cfg.Workspace.Dir,
		Binaries: map[string]health.ProbeFunc{
			ytdlpProbe.Bin:  ytdlpProbe.Probe,
			ffmpegProbe.Bin: ffmpegProbe.Probe,
		},
	}); err != nil {
		return nil, fmt.Errorf("startup checks: %w", err)
	}

	rt := &Runtime{Config: cfg, logger: logger}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		Environment:    "production",
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Warn().Err(err).Str("event", "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
	} else {
		rt.telemetry = tp
	}

	if cfg.UsesRedis() {
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Locks.RedisAddr,
			Password: cfg.Locks.RedisPassword,
			DB:       cfg.Locks.RedisDB,
		})
		if err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
		rt.redis = client
		logger.Info().Str("addr", cfg.Locks.RedisAddr).Msg("connected to redis")
	}

	var locks lock.Table
	switch cfg.Locks.Backend {
	case config.BackendRedis:
		locks = lock.NewRedis(rt.redis, cfg.Locks.TTL)
	default:
		locks = lock.NewMemory()
	}

	detailsTTL := cfg.Cache.TTL
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		rt.cache = cache.NewRedisCache(rt.redis, log.WithComponent("cache"))
	case config.BackendNone:
		rt.cache = cache.NewNoOpCache()
		detailsTTL = 0
	default:
		rt.cache = cache.NewMemoryCache(cfg.Cache.CleanupInterval)
	}

	rt.Bus = bus.NewMemoryBus()
	rt.Workspace = workspace.NewManager(cfg.Workspace.Dir)
	if report := rt.Workspace.Sweep(); report.Files > 0 || report.Slots > 0 || report.Err != nil {
		logger.Info().
			Err(report.Err).
			Int("files", report.Files).
			Int("slots", report.Slots).
			Str(log.FieldPath, rt.Workspace.Root()).
			Msg("swept leftovers from workspace")
	}

	extractor := ytdlp.New(ytdlp.Config{
		Bin:             cfg.Tool.YtdlpBin,
		FFmpegBin:       cfg.Tool.FFmpegBin,
		Retries:         cfg.Tool.Retries,
		FragmentRetries: cfg.Tool.FragmentRetries,
		SocketTimeout:   cfg.Tool.SocketTimeout,
		Timeout:         cfg.Tool.Timeout,
		CookiesBrowser:  cfg.Tool.CookiesBrowser,
		MergeFormat:     cfg.Tool.MergeFormat,
		PostProcess:     cfg.Tool.PostProcess,
	})

	rt.Orchestrator = download.New(download.Config{
		TargetExt:        cfg.Tool.MergeFormat,
		DetailsTTL:       detailsTTL,
		ProgressInterval: cfg.Progress.MinInterval,
	}, download.Deps{
		Extractor: extractor,
		Merger:    ffmpegProbe,
		Locks:     locks,
		Workspace: rt.Workspace,
		Progress:  bus.NewProgressSink(rt.Bus),
		Cache:     rt.cache,
	})

	rt.Health = health.NewManager(cfg.Version)
	rt.Health.RegisterChecker(health.NewDirChecker("workspace", rt.Workspace.Root()))
	rt.Health.RegisterChecker(health.NewProbeChecker("yt-dlp", ytdlpProbe.Probe))
	// Metadata still works without the merger.
	rt.Health.RegisterChecker(health.NewProbeChecker("ffmpeg", ffmpegProbe.Probe).Optional())
	if rt.redis != nil {
		client := rt.redis
		rt.Health.RegisterChecker(health.NewProbeChecker("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}

	apiCfg := api.Config{
		AllowedOrigins: cfg.API.AllowedOrigins,
	}
	if cfg.API.RateLimit.Enabled {
		apiCfg.RateLimitRequests = cfg.API.RateLimit.Requests
		apiCfg.RateLimitWindow = cfg.API.RateLimit.Window
	}
	if cfg.Tracing.Enabled {
		apiCfg.TracingService = cfg.Log.Service
	}
	rt.API = api.New(apiCfg, api.Deps{
		Downloader: rt.Orchestrator,
		Bus:        rt.Bus,
		Health:     rt.Health,
	})

	return rt, nil
}

// Apply hot-reloads the settings that can change without a restart.
func (rt *Runtime) Apply(cfg config.AppConfig) {
	if cfg.Log.Level != rt.Config.Log.Level {
		if log.SetLevel(cfg.Log.Level) {
			rt.logger.Info().Str("level", cfg.Log.Level).Msg("log level applied")
		}
	}
	if cfg.Progress.MinInterval != rt.Config.Progress.MinInterval {
		rt.Orchestrator.SetProgressInterval(cfg.Progress.MinInterval)
	}
	rt.Config.Log.Level = cfg.Log.Level
	rt.Config.Progress.MinInterval = cfg.Progress.MinInterval
}

// ManagerDeps returns the manager dependencies serving this runtime. The
// metrics handler is served on metrics.listenAddr when both are set.
func (rt *Runtime) ManagerDeps(logger zerolog.Logger, metricsHandler http.Handler) Deps {
	return Deps{
		Logger:         logger,
		APIHandler:     rt.API.Handler(),
		MetricsHandler: metricsHandler,
		MetricsAddr:    rt.Config.Metrics.ListenAddr,
		OnShutdown: []func(){
			func() { _ = rt.API.Shutdown(context.Background()) },
		},
	}
}

// RegisterHooks registers Close as a shutdown hook on m.
func (rt *Runtime) RegisterHooks(m Manager) {
	m.RegisterShutdownHook("runtime", rt.Close)
}

// Close releases the cache, the redis client and the tracer provider.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.API != nil {
		_ = rt.API.Shutdown(ctx)
	}
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if rt.telemetry != nil {
		if err := rt.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
