package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/embedgate/internal/logging"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// warmupText is embedded once at load to verify the server and learn the
// vector dimension.
const warmupText = "embedgate warmup"

// Default circuit breaker settings.
const (
	defaultBreakerFailures uint32        = 5
	defaultBreakerTimeout  time.Duration = 30 * time.Second
)

// TEIConfig holds configuration for the TEI encoder.
type TEIConfig struct {
	// BaseURL is the text-embeddings-inference server, e.g. http://localhost:8081
	BaseURL string

	// Model is the name reported for this encoder. TEI serves whatever model
	// it was started with.
	Model string

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration

	// Client overrides the HTTP client.
	Client *http.Client

	// BreakerFailures is the number of consecutive backend failures that
	// opens the circuit. Defaults to 5.
	BreakerFailures uint32

	// BreakerTimeout is how long the circuit stays open before a single
	// probe request is let through. Defaults to 30s.
	BreakerTimeout time.Duration

	// Logger receives circuit state changes. Defaults to a nop logger.
	Logger *logging.Logger
}

// Validate validates the configuration.
func (c TEIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: invalid base URL %q", ErrInvalidConfig, c.BaseURL)
	}
	return nil
}

// TEIEncoder generates embeddings through a text-embeddings-inference server.
// Calls go through a circuit breaker so a dead backend fails fast instead
// of holding every request for the full timeout.
type TEIEncoder struct {
	config    TEIConfig
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[[]float32]
	endpoint  string
	dimension int
}

// statusError is a non-200 answer from the TEI server.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// rejectsInput reports whether TEI refused the text itself rather than
// failing to serve it.
func (e *statusError) rejectsInput() bool {
	return e.code == http.StatusRequestEntityTooLarge || e.code == http.StatusUnprocessableEntity
}

// breakerSuccess reports whether err says nothing about backend health.
// Cancelled callers and inputs the server rejects as a client error do not
// count toward opening the circuit.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.code >= 400 && se.code < 500
}

// teiRequest is the request body for the TEI embed endpoint.
type teiRequest struct {
	Inputs   string `json:"inputs"`
	Truncate bool   `json:"truncate"`
}

// NewTEIEncoder creates a TEI encoder and probes the server with a warm-up
// request. An unreachable or misbehaving server is a load failure.
func NewTEIEncoder(ctx context.Context, cfg TEIConfig) (*TEIEncoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	openFor := cfg.BreakerTimeout
	if openFor <= 0 {
		openFor = defaultBreakerTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	e := &TEIEncoder{
		config:   cfg,
		client:   client,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/embed",
	}
	e.breaker = gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:        "tei:" + cfg.BaseURL,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: breakerSuccess,
	})

	vec, err := e.Encode(ctx, warmupText)
	if err != nil {
		return nil, fmt.Errorf("probing TEI server at %s: %w", cfg.BaseURL, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("probing TEI server at %s: %w: empty vector", cfg.BaseURL, ErrEmbeddingFailed)
	}
	e.dimension = len(vec)

	return e, nil
}

// Encode generates the embedding for one text. While the circuit is open it
// fails immediately with ErrEmbeddingFailed.
func (e *TEIEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.breaker.Execute(func() ([]float32, error) {
		return e.encode(ctx, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: TEI circuit open: %w", ErrEmbeddingFailed, err)
	}
	return vec, err
}

func (e *TEIEncoder) encode(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: text, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
		if se.rejectsInput() {
			return nil, fmt.Errorf("%w: %w", ErrInputRejected, se)
		}
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, se)
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", ErrEmbeddingFailed, len(vectors))
	}

	return vectors[0], nil
}

// Dimension returns the vector length observed at load.
func (e *TEIEncoder) Dimension() int {
	return e.dimension
}

// State returns the circuit breaker state.
func (e *TEIEncoder) State() gobreaker.State {
	return e.breaker.State()
}

// Close releases idle connections.
func (e *TEIEncoder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
