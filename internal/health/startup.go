// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/ManuGH/vidgrab/internal/log"
)

// StartupInput lists what must hold before the server starts.
type StartupInput struct {
	ListenAddr   string
	WorkspaceDir string
	// Binaries are probed but only warned about: a missing binary fails the
	// affected requests, not the process.
	Binaries map[string]ProbeFunc
}

// PerformStartupChecks validates the environment before starting the server.
func PerformStartupChecks(ctx context.Context, in StartupInput) error {
	logger := log.WithComponent("startup-check")

	if in.ListenAddr != "" {
		_, port, err := net.SplitHostPort(in.ListenAddr)
		if err != nil {
			return fmt.Errorf("invalid listen address %q: %w", in.ListenAddr, err)
		}
		if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
			return fmt.Errorf("invalid listen port %q in %q", port, in.ListenAddr)
		}
	}

	if err := CheckWritableDir(in.WorkspaceDir); err != nil {
		return fmt.Errorf("workspace directory check failed: %w", err)
	}
	logger.Info().Str("path", in.WorkspaceDir).Msg("workspace directory is writable")

	for name, probe := range in.Binaries {
		if err := probe(ctx); err != nil {
			logger.Warn().Err(err).Str("binary", name).Str("event", "startup.binary_missing").Msg("required binary not available; affected requests will fail")
			continue
		}
		logger.Info().Str("binary", name).Msg("binary available")
	}
	return nil
}
