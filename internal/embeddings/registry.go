package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fyrsmithlabs/embedgate/internal/logging"
	"go.uber.org/zap"
)

// Registry maps model names to loaded encoders. It is populated once and
// never mutated, so lookups need no locking.
type Registry struct {
	encoders    map[string]Encoder
	defaultName string
}

// NewRegistry loads the configured model and returns a registry holding it
// as the default. Any load failure is returned; callers treat it as fatal.
func NewRegistry(ctx context.Context, cfg ProviderConfig, logger *logging.Logger, metrics *Metrics) (*Registry, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderFastEmbed
	}

	if provider == ProviderFastEmbed && FastEmbedAvailable {
		path, err := ConfigureONNXRuntime()
		if err != nil {
			return nil, err
		}
		if path != "" {
			logger.Debug(ctx, "using ONNX runtime", zap.String("path", path))
		}
	}

	logger.Info(ctx, "loading embedding model",
		zap.String("model", cfg.Model),
		zap.String("provider", provider),
	)

	if cfg.Logger == nil {
		cfg.Logger = logger
	}

	start := time.Now()
	enc, err := NewEncoder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("loading model %q: %w", cfg.Model, err)
	}

	logger.Info(ctx, "embedding model loaded",
		zap.String("model", cfg.Model),
		zap.String("provider", provider),
		zap.Int("dimension", enc.Dimension()),
		zap.Duration("duration", time.Since(start)),
	)

	return NewStaticRegistry(cfg.Model, Instrument(enc, cfg.Model, provider, metrics)), nil
}

// NewStaticRegistry returns a registry holding enc under name as the default.
func NewStaticRegistry(name string, enc Encoder) *Registry {
	return &Registry{
		encoders:    map[string]Encoder{name: enc},
		defaultName: name,
	}
}

// Default returns the encoder for the configured model.
func (r *Registry) Default() Encoder {
	return r.encoders[r.defaultName]
}

// DefaultName returns the configured model name.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Names returns the registered model names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.encoders))
	for name := range r.encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases every encoder.
func (r *Registry) Close() error {
	var errs []error
	for name, enc := range r.encoders {
		if err := enc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
