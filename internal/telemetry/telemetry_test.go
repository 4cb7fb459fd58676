package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fyrsmithlabs/embedgate/internal/config"
	"github.com/fyrsmithlabs/embedgate/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"disabled ignores endpoint", func(c *Config) { c.Endpoint = "" }, ""},
		{"enabled local", func(c *Config) { c.Enabled = true }, ""},
		{"enabled remote tls", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.example.com:4317"
			c.Insecure = false
		}, ""},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, "endpoint is required"},
		{"missing service name", func(c *Config) { c.Enabled = true; c.ServiceName = "" }, "service_name is required"},
		{"insecure remote", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.example.com:4317"
		}, "insecure connections"},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, "unsupported protocol"},
		{"sampling rate", func(c *Config) { c.Enabled = true; c.SamplingRate = 1.5 }, "sampling rate"},
		{"export interval", func(c *Config) { c.Enabled = true; c.ExportInterval = 0 }, "export interval"},
		{"shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_isLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4317", true},
		{"127.0.0.1:4317", true},
		{"http://localhost:4318", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"otel-collector:4317", false},
		{"https://collector.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.want, cfg.isLocalEndpoint())
		})
	}
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.TelemetryConfig{
		Enabled:      true,
		Endpoint:     "localhost:4318",
		Protocol:     ProtocolHTTP,
		Insecure:     true,
		ServiceName:  "embedgate-test",
		SamplingRate: 0.25,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "embedgate-test", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, 0.25, cfg.SamplingRate)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval)
	require.NoError(t, cfg.Validate())

	cfg = FromSettings(config.TelemetryConfig{ServiceName: "embedgate"}, "")
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, "dev", cfg.ServiceVersion)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ShutdownTimeout = 0
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_MetricsHandler(t *testing.T) {
	ctx := context.Background()
	tel, err := New(ctx, NewDefaultConfig())
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(ctx) }()

	assert.False(t, tel.IsEnabled())
	assert.Nil(t, tel.LoggerProvider(), "no OTLP log export while disabled")

	counter, err := otel.Meter("embedgate/test").Int64Counter("embedgate.test.requests")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	rec := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "embedgate_test_requests")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNew_Enabled(t *testing.T) {
	for _, protocol := range []string{ProtocolGRPC, ProtocolHTTP} {
		t.Run(protocol, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			cfg.Protocol = protocol
			cfg.ShutdownTimeout = 100 * time.Millisecond

			tel, err := New(context.Background(), cfg)
			require.NoError(t, err)
			assert.True(t, tel.IsEnabled())
			assert.NotNil(t, tel.LoggerProvider())

			_, span := tel.Tracer("embedgate/test").Start(context.Background(), "op")
			assert.True(t, span.SpanContext().IsValid())
			span.End()

			// No collector is listening; only check shutdown returns.
			_ = tel.Shutdown(context.Background())
		})
	}
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.Nil(t, tel.LoggerProvider())
	assert.False(t, tel.IsEnabled())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

// recordingExporter keeps exported log records in memory.
type recordingExporter struct {
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func TestLoggerProvider_BridgesZap(t *testing.T) {
	ctx := context.Background()
	exporter := &recordingExporter{}
	lp := newLoggerProvider(exporter, newResource(NewDefaultConfig()))
	defer func() { _ = lp.Shutdown(ctx) }()

	cfg := logging.NewDefaultConfig()
	cfg.Output = logging.OutputConfig{OTEL: true}
	logger, err := logging.NewLogger(cfg, lp)
	require.NoError(t, err)

	logger.Info(ctx, "model loaded", zap.String("model", "all-MiniLM-L6-v2"))
	require.NoError(t, lp.ForceFlush(ctx))

	require.Len(t, exporter.records, 1)
	assert.Equal(t, "model loaded", exporter.records[0].Body().AsString())
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, newSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.5).Description(), "TraceIDRatioBased")
	assert.IsType(t, trace.ParentBased(trace.AlwaysSample()), newSampler(1))
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "localhost:4318", stripScheme("http://localhost:4318"))
	assert.Equal(t, "collector:443", stripScheme("https://collector:443"))
	assert.Equal(t, "localhost:4317", stripScheme("localhost:4317"))
}
