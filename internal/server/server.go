// Package server exposes the chat service over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ada-assist/ada/internal/cache"
	"github.com/ada-assist/ada/internal/chat"
	"github.com/ada-assist/ada/internal/llm/configuration"
	"github.com/ada-assist/ada/internal/llm/retry"
	"github.com/ada-assist/ada/internal/metrics"
	"github.com/ada-assist/ada/internal/pipeline"
	"github.com/ada-assist/ada/internal/ratelimit"
)

// Frontend timing hints served by /api/config, in milliseconds.
const (
	RequestTimeoutMS            = 120000
	ErrorAnnouncementDurationMS = 5000
)

const (
	defaultShutdownTimeout = 10 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	maxRequestBodyBytes    = 64 << 10
)

// Asker answers questions. *chat.Service implements it.
type Asker interface {
	Ask(ctx context.Context, question string) (chat.Answer, error)
}

// MetricsSource exposes collected metrics. *metrics.Collector implements it.
type MetricsSource interface {
	Snapshot() metrics.Snapshot
}

// RetryStatsSource exposes transport retry counters. *llm.Coordinator
// implements it.
type RetryStatsSource interface {
	RetryStats() retry.Stats
}

// Server owns the router and the listener built from ServerConfig.
type Server struct {
	asker   Asker
	cache   *cache.Cache[pipeline.Result]
	metrics MetricsSource
	retries RetryStatsSource
	limiter *ratelimit.Limiter
	cfg     configuration.ServerConfig
	logger  *slog.Logger
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithCache enables the cache administration routes and health cache stats.
func WithCache(c *cache.Cache[pipeline.Result]) Option {
	return func(s *Server) { s.cache = c }
}

// WithLimiter enables per-client rate limiting on /api/chat.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithRetryStats adds the transport retry counters to /api/metrics.
func WithRetryStats(src RetryStatsSource) Option {
	return func(s *Server) { s.retries = src }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds a server and its routes.
func New(asker Asker, m MetricsSource, cfg configuration.ServerConfig, opts ...Option) *Server {
	s := &Server{
		asker:   asker,
		metrics: m,
		cfg:     cfg,
		logger:  slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(securityHeaders)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/metrics", s.getMetrics)
		r.Get("/config", s.getConfig)
		r.Get("/cache/stats", s.cacheStats)
		r.Delete("/cache", s.clearCache)

		r.Group(func(r chi.Router) {
			if s.cfg.WriteTimeout > 0 {
				r.Use(chiMiddleware.Timeout(s.cfg.WriteTimeout))
			}
			if s.limiter != nil {
				r.Use(rateLimit(s.limiter, s.logger))
			}
			r.Post("/chat", s.chat)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	if s.limiter != nil {
		s.limiter.Start()
		defer s.limiter.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
