// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ytdlp drives the yt-dlp command line tool as a supervised subprocess.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vidgrab/internal/log"
	"github.com/ManuGH/vidgrab/internal/metrics"
	"github.com/ManuGH/vidgrab/internal/procgroup"
)

const (
	modeExtract  = "extract"
	modeDownload = "download"

	defaultWaitDelay = 5 * time.Second
	maxLineBytes     = 1 << 20
)

// Config controls how yt-dlp is invoked.
type Config struct {
	Bin             string
	FFmpegBin       string
	Retries         int
	FragmentRetries int
	SocketTimeout   time.Duration
	// Timeout bounds a single invocation; zero disables it.
	Timeout        time.Duration
	CookiesBrowser string
	MergeFormat    string
	PostProcess    string
	// WaitDelay is how long a canceled process gets between SIGTERM and SIGKILL.
	WaitDelay time.Duration
}

// Client runs yt-dlp.
type Client struct {
	cfg    Config
	logger zerolog.Logger
}

// New returns a client for cfg.
func New(cfg Config) *Client {
	if cfg.Bin == "" {
		cfg.Bin = "yt-dlp"
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaultWaitDelay
	}
	return &Client{
		cfg:    cfg,
		logger: xglog.WithComponent("ytdlp"),
	}
}

// Extract fetches metadata without downloading.
func (c *Client) Extract(ctx context.Context, url string, useCookies bool) (*Info, error) {
	var stdout bytes.Buffer
	err := c.run(ctx, modeExtract, c.extractArgs(url, useCookies), func(r io.Reader) error {
		_, err := io.Copy(&stdout, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ParseInfo(stdout.Bytes())
}

// Download runs a download and returns the final path yt-dlp reported after
// post-processing. The path is empty if yt-dlp printed none.
func (c *Client) Download(ctx context.Context, req DownloadRequest, progress ProgressFunc) (string, error) {
	var finalPath string
	err := c.run(ctx, modeDownload, c.downloadArgs(req), func(r io.Reader) error {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := scanner.Text()
			if p, ok := parseProgressLine(line); ok {
				if progress != nil {
					progress(p)
				}
				continue
			}
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				finalPath = trimmed
			}
		}
		return scanner.Err()
	})
	if err != nil {
		return "", err
	}
	return finalPath, nil
}

func (c *Client) run(ctx context.Context, mode string, args []string, consume func(io.Reader) error) error {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	logger := xglog.WithContext(ctx, c.logger).With().Str("mode", mode).Logger()

	cmd := exec.CommandContext(ctx, c.cfg.Bin, args...)
	procgroup.Set(cmd)
	cmd.Cancel = func() error { return procgroup.Terminate(cmd) }
	cmd.WaitDelay = c.cfg.WaitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("yt-dlp stdout pipe: %w", err)
	}
	stderr := newTailBuffer(stderrTailLines)
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.IncToolExit(mode, "error")
		return &ExitError{Mode: mode, ExitCode: -1, Err: fmt.Errorf("start %s: %w", c.cfg.Bin, err)}
	}
	logger.Debug().
		Str(xglog.FieldEvent, "tool.start").
		Int(xglog.FieldPID, cmd.Process.Pid).
		Msg("yt-dlp started")

	consumeErr := consume(stdout)
	if consumeErr != nil {
		// Drain so the child does not block on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		_ = procgroup.Kill(cmd)
	}

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	ev := logger.Debug()
	if waitErr != nil {
		ev = logger.Warn()
	}
	ev.Str(xglog.FieldEvent, "tool.exit").
		Int(xglog.FieldExitCode, exitCode).
		Dur("duration", time.Since(start)).
		Msg("yt-dlp exited")

	switch {
	case ctx.Err() != nil:
		metrics.IncToolExit(mode, "canceled")
		return &ExitError{Mode: mode, ExitCode: exitCode, Stderr: stderr.String(), Err: ctx.Err()}
	case waitErr != nil:
		metrics.IncToolExit(mode, "error")
		return &ExitError{Mode: mode, ExitCode: exitCode, Stderr: stderr.String(), Err: waitErr}
	case consumeErr != nil:
		metrics.IncToolExit(mode, "error")
		return fmt.Errorf("read yt-dlp output: %w", consumeErr)
	}
	metrics.IncToolExit(mode, "ok")
	return nil
}

// ExitError reports a failed yt-dlp invocation.
type ExitError struct {
	Mode     string
	ExitCode int
	// Stderr holds the tail of the process' standard error.
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	if line := lastErrorLine(e.Stderr); line != "" {
		return line
	}
	if e.Err != nil && !isExitStatus(e.Err) {
		return fmt.Sprintf("yt-dlp %s failed: %v", e.Mode, e.Err)
	}
	return fmt.Sprintf("yt-dlp %s exited with code %d", e.Mode, e.ExitCode)
}

func (e *ExitError) Unwrap() error { return e.Err }

func isExitStatus(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee)
}

// lastErrorLine returns the last "ERROR:" line of yt-dlp's stderr.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if strings.HasPrefix(l, "ERROR:") {
			return l
		}
	}
	return ""
}
