package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/embedgate/internal/config"
	"github.com/fyrsmithlabs/embedgate/internal/logging"
)

// Encoder turns one text into one embedding vector.
type Encoder interface {
	// Encode generates the embedding for text.
	Encode(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the embedding dimension for the loaded model.
	Dimension() int
	// Close releases resources held by the encoder.
	Close() error
}

// Provider names accepted in configuration.
const (
	ProviderFastEmbed = "fastembed"
	ProviderTEI       = "tei"
)

// ProviderConfig holds configuration for creating an Encoder.
type ProviderConfig struct {
	// Provider is "fastembed" or "tei"
	Provider string
	// Model is the embedding model name
	Model string
	// CacheDir is the model cache directory (fastembed only)
	CacheDir string
	// MaxLength is the max sequence length (fastembed only)
	MaxLength int
	// BaseURL is the TEI URL (tei only)
	BaseURL string
	// Timeout bounds TEI requests (tei only)
	Timeout time.Duration
	// BreakerFailures and BreakerTimeout tune the TEI circuit breaker (tei only)
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	// Logger receives provider diagnostics. Defaults to a nop logger.
	Logger *logging.Logger
}

// ProviderConfigFromSettings builds a ProviderConfig from loaded configuration.
func ProviderConfigFromSettings(model string, c config.EmbeddingsConfig) ProviderConfig {
	return ProviderConfig{
		Provider:  c.Provider,
		Model:     model,
		CacheDir:  c.CacheDir,
		MaxLength: c.MaxLength,
		BaseURL:   c.BaseURL,
		Timeout:   c.Timeout,

		BreakerFailures: c.BreakerFailures,
		BreakerTimeout:  c.BreakerTimeout,
	}
}

// NewEncoder creates an Encoder for the configured provider and loads the model.
func NewEncoder(ctx context.Context, cfg ProviderConfig) (Encoder, error) {
	switch cfg.Provider {
	case ProviderFastEmbed, "":
		enc, err := NewFastEmbedEncoder(FastEmbedConfig{
			Model:     cfg.Model,
			CacheDir:  cfg.CacheDir,
			MaxLength: cfg.MaxLength,
		})
		if err != nil {
			return nil, err
		}
		return enc, nil
	case ProviderTEI:
		enc, err := NewTEIEncoder(ctx, TEIConfig{
			BaseURL:         cfg.BaseURL,
			Model:           cfg.Model,
			Timeout:         cfg.Timeout,
			BreakerFailures: cfg.BreakerFailures,
			BreakerTimeout:  cfg.BreakerTimeout,
			Logger:          cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
