// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api provides the HTTP surface of vidgrab.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vidgrab/internal/api/middleware"
	"github.com/ManuGH/vidgrab/internal/bus"
	"github.com/ManuGH/vidgrab/internal/download"
	"github.com/ManuGH/vidgrab/internal/health"
	"github.com/ManuGH/vidgrab/internal/log"
)

const (
	// HomeMessage is returned by GET /.
	HomeMessage = "YouTube Downloader API is running!"

	defaultHeartbeat = 15 * time.Second
	maxBodyBytes     = 64 << 10
)

// Downloader is the orchestration surface the handlers drive.
type Downloader interface {
	FetchDetails(ctx context.Context, url string, useCookies bool) (*download.Details, error)
	Download(ctx context.Context, req download.Request) (*download.Result, error)
}

// Config configures the HTTP surface.
type Config struct {
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// TracingService names the HTTP spans; empty disables HTTP tracing.
	TracingService string
	// Heartbeat is the SSE keepalive interval.
	Heartbeat time.Duration
}

// Deps are the server's collaborators. Health may be nil.
type Deps struct {
	Downloader Downloader
	Bus        bus.Bus
	Health     *health.Manager
}

// Server holds the HTTP handlers. Downloads started through it outlive their
// client connection but not the server: Shutdown cancels them.
type Server struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc

	once    sync.Once
	handler http.Handler
}

// New returns a server. Call Shutdown to release in-flight work.
func New(cfg Config, deps Deps) *Server {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		deps:       deps,
		logger:     log.WithComponent("api"),
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

// Handler returns the router with all routes and middleware applied.
func (s *Server) Handler() http.Handler {
	s.once.Do(func() { s.handler = s.routes() })
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
	})

	if s.deps.Health != nil {
		r.Get("/healthz", s.deps.Health.ServeHealth)
		r.Get("/readyz", s.deps.Health.ServeReady)
	}
	r.Get("/events", s.handleEvents)

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimitRequests > 0 && s.cfg.RateLimitWindow > 0 {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestLimit: s.cfg.RateLimitRequests,
				WindowSize:   s.cfg.RateLimitWindow,
			}))
		}
		r.Get("/", s.handleHome)
		r.Post("/video-details", s.handleVideoDetails)
		r.Post("/download", s.handleDownload)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusNotFound, "NOT_FOUND", "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method Not Allowed")
	})
	return r
}

// Shutdown cancels in-flight downloads and closes event streams. It does not
// stop the http.Server; call it after http.Server.Shutdown has begun.
func (s *Server) Shutdown(_ context.Context) error {
	s.logger.Info().Str(log.FieldEvent, "api.shutdown").Msg("cancelling in-flight requests")
	s.rootCancel()
	return nil
}

// detach returns a context carrying r's values that survives the client
// going away and ends with the server.
func (s *Server) detach(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	stop := context.AfterFunc(s.rootCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
