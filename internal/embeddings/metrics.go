package embeddings

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/embedgate/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/embedgate/internal/embeddings"

// Metrics holds all embedding-related instruments.
type Metrics struct {
	meter       metric.Meter
	logger      *logging.Logger
	duration    metric.Float64Histogram
	inputLength metric.Int64Histogram
	errors      metric.Int64Counter
}

// NewMetrics creates embedding instruments on the global MeterProvider.
func NewMetrics(logger *logging.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error
	ctx := context.Background()

	m.duration, err = m.meter.Float64Histogram(
		"embedgate.embedding.duration",
		metric.WithDescription("Duration of a single text encode, labeled by model and provider"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create duration histogram", zap.Error(err))
	}

	m.inputLength, err = m.meter.Int64Histogram(
		"embedgate.embedding.input_length",
		metric.WithDescription("Length of encoded texts in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(16, 64, 256, 1024, 4096, 16384, 65536),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create input length histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"embedgate.embedding.errors",
		metric.WithDescription("Total failed encodes by model and provider"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create errors counter", zap.Error(err))
	}
}

// RecordGeneration records one encode.
func (m *Metrics) RecordGeneration(ctx context.Context, model, provider string, duration time.Duration, textLen int, err error) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("provider", provider),
	)

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.inputLength != nil {
		m.inputLength.Record(ctx, int64(textLen), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

// instrumentedEncoder records Metrics around every Encode.
type instrumentedEncoder struct {
	Encoder
	model    string
	provider string
	metrics  *Metrics
}

// Instrument wraps enc so each Encode is recorded in m.
func Instrument(enc Encoder, model, provider string, m *Metrics) Encoder {
	if m == nil {
		return enc
	}
	return &instrumentedEncoder{Encoder: enc, model: model, provider: provider, metrics: m}
}

func (e *instrumentedEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.Encoder.Encode(ctx, text)
	e.metrics.RecordGeneration(ctx, e.model, e.provider, time.Since(start), len(text), err)
	return vec, err
}
