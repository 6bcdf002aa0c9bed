// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package download orchestrates metadata lookups and downloads through the
// external extractor: validation, per-URL exclusivity, workspace handling,
// progress relay and failure classification.
package download

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ManuGH/vidgrab/internal/cache"
	"github.com/ManuGH/vidgrab/internal/lock"
	xglog "github.com/ManuGH/vidgrab/internal/log"
	"github.com/ManuGH/vidgrab/internal/metrics"
	"github.com/ManuGH/vidgrab/internal/naming"
	"github.com/ManuGH/vidgrab/internal/telemetry"
	"github.com/ManuGH/vidgrab/internal/workspace"
	"github.com/ManuGH/vidgrab/internal/ytdlp"
)

const (
	// DefaultAudioFormat is requested when no audio format is given.
	DefaultAudioFormat = "bestaudio"
	// SuccessMessage accompanies every successful download.
	SuccessMessage = "Download successful!"

	defaultTargetExt        = "mp4"
	defaultProgressInterval = 500 * time.Millisecond
)

// Extractor runs the external media tool.
type Extractor interface {
	Extract(ctx context.Context, url string, useCookies bool) (*ytdlp.Info, error)
	Download(ctx context.Context, req ytdlp.DownloadRequest, progress ytdlp.ProgressFunc) (string, error)
}

// Prober checks that an external binary is usable.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProgressSink receives formatted progress for a URL.
type ProgressSink interface {
	Progress(ctx context.Context, url, progress string)
}

// Workspace allocates per-download slots.
type Workspace interface {
	Prepare(ctx context.Context) (*workspace.Slot, error)
}

// Config tunes the orchestrator.
type Config struct {
	// TargetExt is the container the merge step produces.
	TargetExt string
	// DetailsTTL is how long metadata stays cached; zero disables caching.
	DetailsTTL time.Duration
	// ProgressInterval is the minimum spacing of progress events per download.
	ProgressInterval time.Duration
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Extractor Extractor
	Merger    Prober
	Locks     lock.Table
	Workspace Workspace
	Progress  ProgressSink
	Cache     cache.Cache
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	cfg       Config
	extractor Extractor
	merger    Prober
	locks     lock.Table
	workspace Workspace
	progress  ProgressSink
	cache     cache.Cache

	// progressEvery overrides cfg.ProgressInterval after a config reload.
	progressEvery atomic.Int64

	flight singleflight.Group
	tracer trace.Tracer
	logger zerolog.Logger
}

// New returns an orchestrator. Locks defaults to an in-memory table.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.TargetExt == "" {
		cfg.TargetExt = defaultTargetExt
	}
	cfg.TargetExt = strings.TrimPrefix(cfg.TargetExt, ".")
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaultProgressInterval
	}
	if deps.Locks == nil {
		deps.Locks = lock.NewMemory()
	}
	return &Orchestrator{
		cfg:       cfg,
		extractor: deps.Extractor,
		merger:    deps.Merger,
		locks:     deps.Locks,
		workspace: deps.Workspace,
		progress:  deps.Progress,
		cache:     deps.Cache,
		tracer:    telemetry.Tracer("vidgrab/download"),
		logger:    xglog.WithComponent("download"),
	}
}

// SetProgressInterval changes the throttle for downloads started afterwards.
// Non-positive values restore the configured interval.
func (o *Orchestrator) SetProgressInterval(d time.Duration) {
	if d <= 0 {
		d = 0
	}
	o.progressEvery.Store(int64(d))
}

func (o *Orchestrator) progressInterval() time.Duration {
	if d := time.Duration(o.progressEvery.Load()); d > 0 {
		return d
	}
	return o.cfg.ProgressInterval
}

// Request asks for one download.
type Request struct {
	URL         string `json:"url"`
	VideoFormat string `json:"video_format"`
	AudioFormat string `json:"audio_format,omitempty"`
	UseCookies  bool   `json:"use_cookies,omitempty"`
}

// Result is a finished download. The artifact stays on disk until Close.
type Result struct {
	Message string `json:"message"`
	// Filename is relative to the workspace root.
	Filename string `json:"filename"`
	// Name is the artifact's base name, suitable for a download dialog.
	Name string `json:"-"`
	// Path is the absolute artifact path.
	Path string `json:"-"`

	slot *workspace.Slot
}

// Close releases the workspace slot holding the artifact.
func (r *Result) Close() error {
	if r == nil || r.slot == nil {
		return nil
	}
	return r.slot.Close()
}

// FetchDetails returns title, thumbnail and ranked qualities for rawURL.
func (o *Orchestrator) FetchDetails(ctx context.Context, rawURL string, useCookies bool) (_ *Details, err error) {
	rawURL = strings.TrimSpace(rawURL)
	ctx, span := o.tracer.Start(ctx, "download.FetchDetails", trace.WithAttributes(telemetry.DownloadAttributes(rawURL, "", "", useCookies)...))
	defer func() {
		o.endSpan(span, err)
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = string(KindOf(err))
		}
		metrics.IncDetails(outcome)
	}()

	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	r, err := o.lookup(ctx, rawURL, useCookies)
	if err != nil {
		logger := xglog.WithContext(ctx, o.logger)
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "details.failed").
			Str(xglog.FieldURL, rawURL).
			Msg("metadata lookup failed")
		return nil, toolError("fetching video details", err)
	}
	span.SetAttributes(attribute.Int(telemetry.DetailsQualityKey, len(r.Qualities)))

	return &Details{
		Title:     r.Title,
		Thumbnail: r.Thumbnail,
		Qualities: r.Qualities,
		URL:       rawURL,
	}, nil
}

// Download fetches req.URL in the requested formats. A second request for a
// URL already being downloaded is rejected with KindConflict rather than
// queued. On success the caller owns the Result and must Close it.
func (o *Orchestrator) Download(ctx context.Context, req Request) (_ *Result, err error) {
	start := time.Now()
	req.URL = strings.TrimSpace(req.URL)
	ctx, span := o.tracer.Start(ctx, "download.Download", trace.WithAttributes(
		telemetry.DownloadAttributes(req.URL, req.VideoFormat, req.AudioFormat, req.UseCookies)...))
	logger := xglog.WithContext(ctx, o.logger).With().
		Str(xglog.FieldURL, req.URL).
		Str(xglog.FieldVideoFormat, req.VideoFormat).
		Logger()

	defer func() {
		o.endSpan(span, err)
		if err != nil {
			metrics.ObserveDownload(string(KindOf(err)), time.Since(start))
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "download.failed").
				Str(xglog.FieldErrorKind, string(KindOf(err))).
				Msg("download failed")
			return
		}
		metrics.ObserveDownload(metrics.OutcomeSuccess, time.Since(start))
	}()

	if err := validateURL(req.URL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.VideoFormat) == "" {
		return nil, newError(KindValidation, "Missing URL or video format", nil)
	}
	audio := strings.TrimSpace(req.AudioFormat)
	if audio == "" {
		audio = DefaultAudioFormat
	}

	if o.merger != nil {
		if perr := o.merger.Probe(ctx); perr != nil {
			return nil, newError(KindDependencyMissing, "FFmpeg is not installed. Please install it to merge video and audio.", perr)
		}
	}

	release, ok, lerr := o.locks.TryAcquire(ctx, req.URL)
	if lerr != nil {
		return nil, newError(KindToolFailure, "lock table unavailable", lerr)
	}
	if !ok {
		metrics.IncLockConflict()
		logger.Info().Str(xglog.FieldEvent, "download.conflict").Msg("download already in progress")
		return nil, newError(KindConflict, "Download already in progress for this URL", nil)
	}
	defer release()
	metrics.IncDownloadsInFlight()
	defer metrics.DecDownloadsInFlight()

	slot, werr := o.workspace.Prepare(ctx)
	if werr != nil {
		return nil, newError(KindToolFailure, "preparing workspace failed", werr)
	}
	keep := false
	defer func() {
		if !keep {
			_ = slot.Close()
		}
	}()

	spec := FormatSpec(req.VideoFormat, audio)
	span.SetAttributes(
		attribute.String(telemetry.DownloadFormatSpecKey, spec),
		attribute.String(telemetry.DownloadSlotKey, slot.Name),
	)
	meta, merr := o.lookup(ctx, req.URL, req.UseCookies)
	if merr != nil {
		return nil, toolError("fetching video details", merr)
	}
	name := naming.SafeName(meta.Title, naming.Disambiguator(meta.Heights[req.VideoFormat], naming.NewToken()), "%(ext)s")

	logger.Info().
		Str(xglog.FieldEvent, "download.start").
		Str(xglog.FieldFormatSpec, spec).
		Str(xglog.FieldSlot, slot.Name).
		Msg("download started")

	reported, derr := o.extractor.Download(ctx, ytdlp.DownloadRequest{
		URL:            req.URL,
		FormatSpec:     spec,
		OutputTemplate: slot.Template(name),
		UseCookies:     req.UseCookies,
	}, o.progressFunc(ctx, req.URL))
	if derr != nil {
		return nil, toolError("download", derr)
	}

	final, rerr := slot.Resolve(reported, o.cfg.TargetExt)
	if rerr != nil {
		return nil, newError(KindArtifactNotFound, "File not found after download.", rerr)
	}

	rel, relErr := filepath.Rel(filepath.Dir(slot.Dir), final)
	if relErr != nil || strings.HasPrefix(rel, "..") {
		// Symlinked roots resolve elsewhere; fall back to slot-relative naming.
		rel = filepath.Join(slot.Name, filepath.Base(final))
	}

	logger.Info().
		Str(xglog.FieldEvent, "download.done").
		Str(xglog.FieldFinalPath, final).
		Dur("duration", time.Since(start)).
		Msg("download finished")

	keep = true
	return &Result{
		Message:  SuccessMessage,
		Filename: filepath.ToSlash(rel),
		Name:     filepath.Base(final),
		Path:     final,
		slot:     slot,
	}, nil
}

// FormatSpec builds the extractor format selector. "bestaudio" as the video
// format requests audio alone.
func FormatSpec(videoFormat, audioFormat string) string {
	if videoFormat == DefaultAudioFormat {
		return DefaultAudioFormat
	}
	if audioFormat == "" {
		audioFormat = DefaultAudioFormat
	}
	return videoFormat + "+" + audioFormat
}

// progressFunc throttles progress to one event per ProgressInterval. The
// final 100% is always delivered, exactly once.
func (o *Orchestrator) progressFunc(ctx context.Context, rawURL string) ytdlp.ProgressFunc {
	if o.progress == nil {
		return nil
	}
	limiter := rate.NewLimiter(rate.Every(o.progressInterval()), 1)
	var (
		mu   sync.Mutex
		done bool
	)
	return func(p float64) {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}
		if p >= 100 {
			done = true
		} else if !limiter.Allow() {
			return
		}
		o.progress.Progress(ctx, rawURL, ytdlp.FormatPercent(p))
	}
}

func validateURL(raw string) error {
	if raw == "" {
		return newError(KindValidation, "No URL provided", nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return newError(KindValidation, "Invalid URL", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return newError(KindValidation, "URL must be an absolute http or https URL", nil)
	}
	return nil
}

func (o *Orchestrator) endSpan(span trace.Span, err error) {
	if err != nil {
		kind := KindOf(err)
		span.SetAttributes(telemetry.ErrorAttributes(string(kind))...)
		var de *Error
		if errors.As(err, &de) && (kind == KindValidation || kind == KindConflict) {
			span.SetStatus(codes.Unset, "")
		} else {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
