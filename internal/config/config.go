// Package config provides configuration loading for embedgate.
//
// Configuration is read once at process start into a typed Config and then
// threaded explicitly to the components that need it. Values come from
// hardcoded defaults, an optional YAML file, and environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// DefaultModel is the embedding model served when MODEL is unset.
const DefaultModel = "all-MiniLM-L6-v2"

// Config holds the complete embedgate configuration.
type Config struct {
	// Model is the embedding model identifier loaded at startup (env MODEL).
	Model      string           `koanf:"model"`
	API        APIConfig        `koanf:"api"`
	Server     ServerConfig     `koanf:"server"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// APIConfig holds request authentication settings.
type APIConfig struct {
	// Key enables bearer-token authentication when non-empty (env API_KEY).
	Key Secret `koanf:"key"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	BodyLimit       string        `koanf:"body_limit"`
}

// EmbeddingsConfig selects and tunes the embedding backend.
type EmbeddingsConfig struct {
	Provider  string        `koanf:"provider"`   // "fastembed" or "tei"
	CacheDir  string        `koanf:"cache_dir"`  // fastembed model cache
	MaxLength int           `koanf:"max_length"` // fastembed max sequence length
	BaseURL   string        `koanf:"base_url"`   // tei base URL
	Timeout   time.Duration `koanf:"timeout"`    // tei request timeout

	// BreakerFailures is the number of consecutive tei backend failures that
	// opens the circuit. BreakerTimeout is how long it stays open.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// LoggingConfig holds the logging knobs exposed through configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"`
	Protocol     string  `koanf:"protocol"`
	Insecure     bool    `koanf:"insecure"`
	ServiceName  string  `koanf:"service_name"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Model is empty
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Embeddings provider is unknown, or tei is selected without a valid base URL
//   - Logging format is not json or console
//   - Telemetry is enabled without an endpoint, or sampling rate is outside [0, 1]
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.New("model is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Embeddings.Provider {
	case "fastembed":
		if c.Embeddings.MaxLength < 0 {
			return fmt.Errorf("invalid embeddings max length: %d", c.Embeddings.MaxLength)
		}
	case "tei":
		u, err := url.Parse(c.Embeddings.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid embeddings base url: %q", c.Embeddings.BaseURL)
		}
		if c.Embeddings.Timeout <= 0 {
			return errors.New("embeddings timeout must be positive")
		}
		if c.Embeddings.BreakerFailures == 0 {
			return errors.New("embeddings breaker failures must be positive")
		}
		if c.Embeddings.BreakerTimeout <= 0 {
			return errors.New("embeddings breaker timeout must be positive")
		}
	default:
		return fmt.Errorf("unknown embeddings provider %q (must be fastembed or tei)", c.Embeddings.Provider)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.ServiceName == "" {
			return errors.New("telemetry service name is required when telemetry is enabled")
		}
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry sampling rate must be between 0 and 1, got %f", c.Telemetry.SamplingRate)
	}

	return nil
}
