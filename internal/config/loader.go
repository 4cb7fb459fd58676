package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// defaults is the lowest-precedence configuration layer.
const defaults = `
model: all-MiniLM-L6-v2
server:
  host: 0.0.0.0
  port: 8080
  shutdown_timeout: 10s
  body_limit: 10M
embeddings:
  provider: fastembed
  cache_dir: local_cache
  max_length: 512
  base_url: http://localhost:8081
  timeout: 30s
  breaker_failures: 5
  breaker_timeout: 30s
logging:
  level: info
  format: json
telemetry:
  enabled: false
  endpoint: localhost:4317
  protocol: grpc
  insecure: true
  service_name: embedgate
  sampling_rate: 1.0
`

// envSections are the top-level config sections that accept SECTION_FIELD
// environment variables. Bare keys are matched exactly.
var (
	envSections = map[string]bool{
		"api":        true,
		"server":     true,
		"embeddings": true,
		"logging":    true,
		"telemetry":  true,
	}
	envBareKeys = map[string]bool{
		"model": true,
	}
)

// Load loads configuration from defaults and environment variables only.
//
// Environment variables:
//   - MODEL: embedding model identifier (default: all-MiniLM-L6-v2)
//   - API_KEY: bearer token; authentication is disabled when unset or empty
//   - SERVER_HOST, SERVER_PORT, SERVER_SHUTDOWN_TIMEOUT, SERVER_BODY_LIMIT
//   - EMBEDDINGS_PROVIDER, EMBEDDINGS_CACHE_DIR, EMBEDDINGS_MAX_LENGTH,
//     EMBEDDINGS_BASE_URL, EMBEDDINGS_TIMEOUT, EMBEDDINGS_BREAKER_FAILURES,
//     EMBEDDINGS_BREAKER_TIMEOUT
//   - LOGGING_LEVEL, LOGGING_FORMAT
//   - TELEMETRY_ENABLED, TELEMETRY_ENDPOINT, TELEMETRY_PROTOCOL,
//     TELEMETRY_INSECURE, TELEMETRY_SERVICE_NAME, TELEMETRY_SAMPLING_RATE
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration from an optional YAML file, then overrides
// with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MODEL, API_KEY, SERVER_PORT, ...)
//  2. YAML config file at configPath, when configPath is non-empty
//  3. Hardcoded defaults
//
// The YAML file must have 0600 or 0400 permissions and be at most 1MB.
// Empty environment variables are ignored, so API_KEY= leaves authentication
// disabled and MODEL= keeps the default model.
//
// Environment variables map to keys by splitting on the first underscore:
//
//	MODEL -> model
//	API_KEY -> api.key
//	SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps an environment variable to a config key. Returning an empty
// key tells koanf to skip the variable.
func envKey(name, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}

	lower := strings.ToLower(name)
	if envBareKeys[lower] {
		return lower, value
	}

	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 || parts[1] == "" || !envSections[parts[0]] {
		return "", nil
	}

	return parts[0] + "." + parts[1], value
}

// readConfigFile opens the file once and validates it through the open
// descriptor to avoid a TOCTOU race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}

	// Skip on Windows (different permission model)
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
