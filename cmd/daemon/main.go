// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/vidgrab/internal/config"
	"github.com/ManuGH/vidgrab/internal/daemon"
	xglog "github.com/ManuGH/vidgrab/internal/log"
	"github.com/ManuGH/vidgrab/internal/version"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "vidgrab",
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Precedence: ENV > file > defaults.
	path := strings.TrimSpace(*configPath)
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}
	if err := config.Validate(cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.invalid").
			Msg("configuration is invalid")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")

	if path != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", path).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}
	for _, key := range loader.UnknownEnvKeys() {
		logger.Warn().
			Str("event", "config.unknown_env").
			Str("key", key).
			Msg("ignoring unknown environment variable")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.API.ListenAddr).
		Msg("starting vidgrab")
	logger.Info().Msgf("→ Workspace: %s", cfg.Workspace.Dir)
	logger.Info().Msgf("→ Tools: %s, %s (merge to %s)", cfg.Tool.YtdlpBin, cfg.Tool.FFmpegBin, cfg.Tool.MergeFormat)
	logger.Info().Msgf("→ Locks: %s, cache: %s", cfg.Locks.Backend, cfg.Cache.Backend)
	if cfg.Tracing.Enabled {
		logger.Info().Msgf("→ Tracing: %s via %s", maskURL(cfg.Tracing.Endpoint), cfg.Tracing.Exporter)
	}
	if cfg.Tool.CookiesBrowser != "" {
		logger.Info().Msgf("→ Browser cookies: %s", cfg.Tool.CookiesBrowser)
	}

	rt, err := daemon.Bootstrap(ctx, cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("startup failed, verify configuration and permissions")
	}

	mgr, err := daemon.NewManager(daemon.ServerConfigFrom(cfg), rt.ManagerDeps(logger, promhttp.Handler()))
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}
	rt.RegisterHooks(mgr)

	holder := config.NewConfigHolder(cfg, loader)
	app := daemon.NewApp(logger, mgr, holder, rt.Apply)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}
