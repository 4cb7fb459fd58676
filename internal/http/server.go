// Package http provides the OpenAI-compatible embedding API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/embedgate/internal/config"
	"github.com/fyrsmithlabs/embedgate/internal/embeddings"
	"github.com/fyrsmithlabs/embedgate/internal/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Server serves the embedding API.
type Server struct {
	echo     *echo.Echo
	registry *embeddings.Registry
	logger   *logging.Logger
	config   *Config
	metrics  *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	// BodyLimit caps request bodies, e.g. "10M". Empty disables the limit.
	BodyLimit string
	// APIKey enables bearer authentication on /v1/embeddings when set.
	APIKey config.Secret
}

// Options carries optional collaborators.
type Options struct {
	// Metrics records request metrics when non-nil.
	Metrics *HTTPMetrics
	// Tracer creates a server span per request when non-nil.
	Tracer trace.Tracer
	// MetricsHandler is mounted at GET /metrics when non-nil.
	MetricsHandler http.Handler
}

// ConfigFromSettings builds a Config from loaded configuration.
func ConfigFromSettings(cfg *config.Config) *Config {
	return &Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		BodyLimit:       cfg.Server.BodyLimit,
		APIKey:          cfg.API.Key,
	}
}

// NewServer creates a new HTTP server.
func NewServer(registry *embeddings.Registry, logger *logging.Logger, cfg *Config, opts Options) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	if opts.Tracer != nil {
		e.Use(TracingMiddleware(opts.Tracer))
	}
	e.Use(requestLogger(logger))
	if opts.Metrics != nil {
		e.Use(opts.Metrics.MetricsMiddleware())
	}
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	s := &Server{
		echo:     e,
		registry: registry,
		logger:   logger,
		config:   cfg,
		metrics:  opts.Metrics,
	}

	s.registerRoutes(cfg.APIKey, opts.MetricsHandler)

	if cfg.APIKey.IsSet() {
		logger.Info(context.Background(), "bearer authentication enabled", logging.Secret("api_key", cfg.APIKey))
	} else {
		logger.Warn(context.Background(), "API_KEY not set, embeddings endpoint is unauthenticated")
	}

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes(apiKey config.Secret, metricsHandler http.Handler) {
	s.echo.GET("/", s.handleHealth)
	s.echo.GET("/healthz", s.handleHealth)
	if metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
	}

	v1 := s.echo.Group("/v1")
	v1.POST("/embeddings", s.handleEmbeddings, BearerAuth(apiKey))
}

// requestLogger logs one line per request and seeds the request context
// with the request ID and logger.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			ctx = logging.WithLogger(ctx, logger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// Resolve the status before logging
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Int64("bytes", c.Response().Size),
				zap.Duration("duration", time.Since(start)),
			)

			return nil
		}
	}
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully within the
// configured timeout. Returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "starting http server", zap.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
