package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/embedgate/internal/config"
	"github.com/fyrsmithlabs/embedgate/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/embedgate/internal/http"
	"github.com/fyrsmithlabs/embedgate/internal/logging"
	"github.com/fyrsmithlabs/embedgate/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the embedding gateway",
		Long: `Load the configured model and serve the embedding API until SIGINT or
SIGTERM. A model that fails to load aborts startup with a non-zero exit.

Examples:
  # Serve on a custom port with authentication
  SERVER_PORT=9000 API_KEY=s3cret embedgate serve

  # Use a text-embeddings-inference backend instead of local ONNX
  EMBEDDINGS_PROVIDER=tei EMBEDDINGS_BASE_URL=http://tei:80 embedgate serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, *configPath)
		},
	}
}

func runServe(cmd *cobra.Command, configPath string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return run(ctx, configPath)
}

// run starts the gateway and blocks until ctx is cancelled.
//
//  1. Loads and validates configuration
//  2. Initializes telemetry, then the logger on top of its log exporter
//  3. Loads the embedding model (failure is fatal)
//  4. Starts the HTTP server
//  5. Shuts down gracefully, then releases the model and flushes telemetry
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	logger, err := newLogger(cfg, tel)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()
	// Runs before Sync so buffered OTLP log records are exported.
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	logger.Info(ctx, "starting embedgate",
		zap.String("version", version),
		zap.String("model", cfg.Model),
		zap.String("provider", cfg.Embeddings.Provider),
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("otlp_export", tel.IsEnabled()),
	)

	registry, err := embeddings.NewRegistry(ctx,
		embeddings.ProviderConfigFromSettings(cfg.Model, cfg.Embeddings),
		logger.Named("embeddings"),
		embeddings.NewMetrics(logger),
	)
	if err != nil {
		logger.Error(ctx, "failed to load embedding model", zap.String("model", cfg.Model), zap.Error(err))
		return err
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warn(ctx, "closing model registry failed", zap.Error(err))
		}
	}()
	logger.Info(ctx, "model registry ready", zap.Strings("models", registry.Names()))

	srv, err := httpserver.NewServer(registry, logger.Named("http"), httpserver.ConfigFromSettings(cfg), httpserver.Options{
		Metrics:        httpserver.NewHTTPMetrics(logger),
		Tracer:         tel.Tracer("github.com/fyrsmithlabs/embedgate/internal/http"),
		MetricsHandler: tel.MetricsHandler(),
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "http server failed", zap.Error(err))
		return err
	}

	logger.Info(context.Background(), "shutdown complete")
	return nil
}

// newLogger builds the service logger. Records are also exported over OTLP
// when telemetry export is enabled.
func newLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}
	provider := tel.LoggerProvider()
	logCfg.Output.OTEL = provider != nil
	logger, err := logging.NewLogger(logCfg, provider)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return logger, nil
}
