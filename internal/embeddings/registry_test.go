package embeddings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/embedgate/internal/config"
	"github.com/fyrsmithlabs/embedgate/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type fakeEncoder struct {
	vector   []float32
	err      error
	calls    atomic.Int32
	closed   atomic.Bool
	closeErr error
}

func (f *fakeEncoder) Encode(_ context.Context, _ string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEncoder) Dimension() int { return len(f.vector) }

func (f *fakeEncoder) Close() error {
	f.closed.Store(true)
	return f.closeErr
}

func TestStaticRegistry(t *testing.T) {
	enc := &fakeEncoder{vector: []float32{1, 2}}
	reg := NewStaticRegistry("all-MiniLM-L6-v2", enc)

	assert.Equal(t, "all-MiniLM-L6-v2", reg.DefaultName())
	assert.Same(t, enc, reg.Default())
	assert.Equal(t, []string{"all-MiniLM-L6-v2"}, reg.Names())

	require.NoError(t, reg.Close())
	assert.True(t, enc.closed.Load())
}

func TestRegistry_CloseError(t *testing.T) {
	enc := &fakeEncoder{closeErr: errors.New("session busy")}
	err := NewStaticRegistry("m", enc).Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closing m")
}

func TestNewRegistry_TEI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[0.5,0.25,0.125,1]]`))
	}))
	defer srv.Close()

	tl := logging.NewTestLogger()
	reg, err := NewRegistry(context.Background(), ProviderConfig{
		Provider: ProviderTEI,
		Model:    "all-MiniLM-L6-v2",
		BaseURL:  srv.URL,
	}, tl.Logger, nil)
	require.NoError(t, err)
	defer reg.Close()

	assert.Equal(t, "all-MiniLM-L6-v2", reg.DefaultName())
	assert.Equal(t, 4, reg.Default().Dimension())

	vec, err := reg.Default().Encode(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 0.125, 1}, vec)

	tl.AssertLogged(t, zapcore.InfoLevel, "embedding model loaded")
	tl.AssertField(t, "embedding model loaded", "dimension", int64(4))
}

func TestNewRegistry_LoadFailures(t *testing.T) {
	tl := logging.NewTestLogger()
	ctx := context.Background()

	t.Run("empty model", func(t *testing.T) {
		_, err := NewRegistry(ctx, ProviderConfig{Provider: ProviderTEI, BaseURL: "http://localhost:1"}, tl.Logger, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewRegistry(ctx, ProviderConfig{Provider: "openai", Model: "m"}, tl.Logger, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("unknown fastembed model", func(t *testing.T) {
		_, err := NewRegistry(ctx, ProviderConfig{Provider: ProviderFastEmbed, Model: "no-such-model"}, tl.Logger, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownModel) || errors.Is(err, ErrFastEmbedNotAvailable), err.Error())
		assert.Contains(t, err.Error(), `loading model "no-such-model"`)
	})

	t.Run("tei unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		_, err := NewRegistry(ctx, ProviderConfig{Provider: ProviderTEI, Model: "m", BaseURL: srv.URL}, tl.Logger, nil)
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})
}

func TestProviderConfigFromSettings(t *testing.T) {
	cfg := ProviderConfigFromSettings("BAAI/bge-small-en-v1.5", configEmbeddings())
	assert.Equal(t, ProviderTEI, cfg.Provider)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Model)
	assert.Equal(t, "http://tei:80", cfg.BaseURL)
	assert.Equal(t, 256, cfg.MaxLength)
	assert.EqualValues(t, 3, cfg.BreakerFailures)
	assert.Equal(t, time.Minute, cfg.BreakerTimeout)
}

func configEmbeddings() config.EmbeddingsConfig {
	return config.EmbeddingsConfig{
		Provider:  ProviderTEI,
		CacheDir:  "local_cache",
		MaxLength: 256,
		BaseURL:   "http://tei:80",
		Timeout:   5 * time.Second,

		BreakerFailures: 3,
		BreakerTimeout:  time.Minute,
	}
}
