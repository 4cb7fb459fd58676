package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/embedgate/internal/config"
	"github.com/fyrsmithlabs/embedgate/internal/embeddings"
	"github.com/fyrsmithlabs/embedgate/internal/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const testModel = "all-MiniLM-L6-v2"

// fakeEncoder returns [len(text), 1, 0.5] and records every text it sees.
type fakeEncoder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1, 0.5}, nil
}

func (f *fakeEncoder) Dimension() int { return 3 }
func (f *fakeEncoder) Close() error   { return nil }

func (f *fakeEncoder) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func setupTestServer(t *testing.T, apiKey string) (*Server, *fakeEncoder) {
	t.Helper()
	enc := &fakeEncoder{}
	server, err := NewServer(
		embeddings.NewStaticRegistry(testModel, enc),
		logging.NewTestLogger().Logger,
		&Config{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second, BodyLimit: "1M", APIKey: config.Secret(apiKey)},
		Options{},
	)
	require.NoError(t, err)
	return server, enc
}

func do(server *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) EmbeddingResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp EmbeddingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Detail
}

func TestNewServer(t *testing.T) {
	registry := embeddings.NewStaticRegistry(testModel, &fakeEncoder{})
	logger := logging.NewTestLogger()

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(registry, logger.Logger, nil, Options{})
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", server.config.Host)
		assert.Equal(t, 8080, server.config.Port)
		assert.NotNil(t, server.Handler())
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(registry, nil, nil, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when registry is nil", func(t *testing.T) {
		_, err := NewServer(nil, logger.Logger, nil, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registry cannot be nil")
	})

	t.Run("logs auth mode without the key", func(t *testing.T) {
		tl := logging.NewTestLogger()
		_, err := NewServer(registry, tl.Logger, &Config{APIKey: "supersecret"}, Options{})
		require.NoError(t, err)
		tl.AssertLogged(t, zapcore.InfoLevel, "bearer authentication enabled")
		tl.AssertNotContains(t, "supersecret")

		tl.Reset()
		_, err = NewServer(registry, tl.Logger, &Config{}, Options{})
		require.NoError(t, err)
		tl.AssertLogged(t, zapcore.WarnLevel, "API_KEY not set")
	})
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(&config.Config{
		API:    config.APIConfig{Key: "k"},
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 9000, ShutdownTimeout: 3 * time.Second, BodyLimit: "2M"},
	})
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "2M", cfg.BodyLimit)
	assert.Equal(t, "k", cfg.APIKey.Value())
}

func TestHandleHealth(t *testing.T) {
	for _, apiKey := range []string{"", "secret"} {
		server, _ := setupTestServer(t, apiKey)
		for _, path := range []string{"/", "/healthz"} {
			t.Run(path+" key="+apiKey, func(t *testing.T) {
				rec := do(server, http.MethodGet, path, "", nil)
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
			})
		}
	}
}

func TestHandleEmbeddings_ScalarInput(t *testing.T) {
	server, enc := setupTestServer(t, "")

	rec := do(server, http.MethodPost, "/v1/embeddings", `{"input":"hello"}`, nil)
	resp := decodeResponse(t, rec)

	require.Len(t, resp.Data, 1)
	assert.Equal(t, 0, resp.Data[0].Index)
	assert.Equal(t, "embedding", resp.Data[0].Object)
	assert.Equal(t, []float32{5, 1, 0.5}, resp.Data[0].Embedding)
	assert.Equal(t, testModel, resp.Model)
	assert.Equal(t, "list", resp.Object)
	assert.Equal(t, Usage{PromptTokens: 3, TotalTokens: 3}, resp.Usage)
	assert.Equal(t, []string{"hello"}, enc.seen())
}

func TestHandleEmbeddings_ListInput(t *testing.T) {
	server, enc := setupTestServer(t, "")

	rec := do(server, http.MethodPost, "/v1/embeddings", `{"input":["a","bb","ccc"]}`, nil)
	resp := decodeResponse(t, rec)

	require.Len(t, resp.Data, 3)
	for i, d := range resp.Data {
		assert.Equal(t, i, d.Index)
		assert.Equal(t, float32(i+1), d.Embedding[0])
	}
	assert.Equal(t, Usage{PromptTokens: 9, TotalTokens: 9}, resp.Usage)
	assert.Equal(t, []string{"a", "bb", "ccc"}, enc.seen())
}

func TestHandleEmbeddings_EmptyList(t *testing.T) {
	server, enc := setupTestServer(t, "")

	rec := do(server, http.MethodPost, "/v1/embeddings", `{"input":[]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"data":[],"model":"all-MiniLM-L6-v2","usage":{"prompt_tokens":0,"total_tokens":0},"object":"list"}`,
		rec.Body.String())
	assert.Empty(t, enc.seen())
}

func TestHandleEmbeddings_FieldOrder(t *testing.T) {
	server, _ := setupTestServer(t, "")

	body := do(server, http.MethodPost, "/v1/embeddings", `{"input":"x"}`, nil).Body.String()
	keys := []string{`"data"`, `"model"`, `"usage"`, `"object":"list"`}
	last := -1
	for _, k := range keys {
		idx := strings.LastIndex(body, k)
		require.NotEqual(t, -1, idx, k)
		assert.Greater(t, idx, last, "%s out of order in %s", k, body)
		last = idx
	}
}

func TestHandleEmbeddings_BadRequests(t *testing.T) {
	const inputMsg = "input needs to be an array of strings or a string"

	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"number input", `{"input":123}`, inputMsg},
		{"mixed list", `{"input":["a",5,"c"]}`, inputMsg},
		{"null in list", `{"input":["a",null]}`, inputMsg},
		{"nested list", `{"input":[["a"]]}`, inputMsg},
		{"object input", `{"input":{"text":"a"}}`, inputMsg},
		{"bool input", `{"input":true}`, inputMsg},
		{"null input", `{"input":null}`, inputMsg},
		{"missing input", `{"model":"all-MiniLM-L6-v2"}`, inputMsg},
		{"uppercase input key", `{"INPUT":"a"}`, inputMsg},
		{"mixed case input key", `{"Input":["a"]}`, inputMsg},
		{"numeric model", `{"input":"a","model":5}`, "model needs to be a string"},
		{"null model", `{"input":"a","model":null}`, "model needs to be a string"},
		{"malformed json", `{"input":`, "invalid request body"},
		{"not an object", `["a"]`, "invalid request body"},
		{"trailing data", `{"input":"a"} {}`, "invalid request body"},
		{"empty body", ``, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, enc := setupTestServer(t, "")
			req := httptest.NewRequest(http.MethodPost, "/v1/embeddings", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			server.echo.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.detail, detail(t, rec))
			assert.Empty(t, enc.seen(), "encoder must not run on invalid input")
		})
	}
}

func TestHandleEmbeddings_ModelIgnored(t *testing.T) {
	server, enc := setupTestServer(t, "")

	rec := do(server, http.MethodPost, "/v1/embeddings", `{"input":"a","model":"text-embedding-3-large"}`, nil)
	resp := decodeResponse(t, rec)

	assert.Equal(t, testModel, resp.Model)
	assert.Equal(t, []string{"a"}, enc.seen())
}

func TestHandleEmbeddings_EncoderFailure(t *testing.T) {
	server, enc := setupTestServer(t, "")
	enc.err = errors.New("onnx session failed")

	rec := do(server, http.MethodPost, "/v1/embeddings", `{"input":["a","b"]}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "embedding generation failed", detail(t, rec))
	assert.NotContains(t, rec.Body.String(), "onnx")
	assert.Equal(t, []string{"a"}, enc.seen(), "stops at the first failure")
}

func TestHandleEmbeddings_InputRejected(t *testing.T) {
	server, enc := setupTestServer(t, "")
	enc.err = fmt.Errorf("%w: status 413: input too long", embeddings.ErrInputRejected)

	rec := do(server, http.MethodPost, "/v1/embeddings", `{"input":"a"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "input rejected by embedding backend", detail(t, rec))
	assert.NotContains(t, rec.Body.String(), "413")
}

func TestHandleEmbeddings_Auth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
		detail string
	}{
		{"no header", "", http.StatusUnauthorized, "API key required"},
		{"wrong token", "Bearer wrong", http.StatusUnauthorized, "Invalid API key"},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized, "API key required"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "API key required"},
		{"scheme only", "Bearer", http.StatusUnauthorized, "API key required"},
		{"token prefix", "Bearer secre", http.StatusUnauthorized, "Invalid API key"},
		{"valid", "Bearer secret", http.StatusOK, ""},
		{"lowercase scheme", "bearer secret", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, enc := setupTestServer(t, "secret")
			header := map[string]string{}
			if tt.header != "" {
				header[echo.HeaderAuthorization] = tt.header
			}

			rec := do(server, http.MethodPost, "/v1/embeddings", `{"input":"a"}`, header)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, tt.detail, detail(t, rec))
				assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
				assert.Empty(t, enc.seen())
			}
		})
	}
}

func TestHandleEmbeddings_AuthBeforeDecode(t *testing.T) {
	server, _ := setupTestServer(t, "secret")

	rec := do(server, http.MethodPost, "/v1/embeddings", `{"input":123}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "API key required", detail(t, rec))
}

func TestHandleEmbeddings_NoAuthConfigured(t *testing.T) {
	server, _ := setupTestServer(t, "")

	rec := do(server, http.MethodPost, "/v1/embeddings", `{"input":"a"}`, map[string]string{
		echo.HeaderAuthorization: "Bearer anything",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ErrorEnvelope(t *testing.T) {
	server, _ := setupTestServer(t, "")

	rec := do(server, http.MethodGet, "/v2/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", detail(t, rec))

	rec = do(server, http.MethodGet, "/v1/embeddings", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method Not Allowed", detail(t, rec))
	assert.Empty(t, rec.Header().Get(echo.HeaderWWWAuthenticate))
}

func TestServer_BodyLimit(t *testing.T) {
	enc := &fakeEncoder{}
	server, err := NewServer(embeddings.NewStaticRegistry(testModel, enc), logging.NewTestLogger().Logger,
		&Config{BodyLimit: "1K"}, Options{})
	require.NoError(t, err)

	body := `{"input":"` + strings.Repeat("a", 2048) + `"}`
	rec := do(server, http.MethodPost, "/v1/embeddings", body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, enc.seen())
}

func TestServer_RequestID(t *testing.T) {
	server, _ := setupTestServer(t, "")

	rec := do(server, http.MethodGet, "/healthz", "", nil)
	_, err := uuid.Parse(rec.Header().Get(echo.HeaderXRequestID))
	assert.NoError(t, err)

	rec = do(server, http.MethodGet, "/healthz", "", map[string]string{echo.HeaderXRequestID: "client-id-1"})
	assert.Equal(t, "client-id-1", rec.Header().Get(echo.HeaderXRequestID))
}

func TestServer_RequestLogging(t *testing.T) {
	tl := logging.NewTestLogger()
	server, err := NewServer(embeddings.NewStaticRegistry(testModel, &fakeEncoder{}), tl.Logger, nil, Options{})
	require.NoError(t, err)

	do(server, http.MethodPost, "/v1/embeddings", `{"input":5}`, map[string]string{echo.HeaderXRequestID: "req-42"})

	tl.AssertLogged(t, zapcore.InfoLevel, "http request")
	tl.AssertField(t, "http request", "status", int64(http.StatusBadRequest))
	tl.AssertField(t, "http request", "request.id", "req-42")
	tl.AssertLogged(t, zapcore.DebugLevel, "rejected embedding request")
}

func TestServer_MetricsRoute(t *testing.T) {
	enc := &fakeEncoder{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	server, err := NewServer(embeddings.NewStaticRegistry(testModel, enc), logging.NewTestLogger().Logger,
		&Config{APIKey: "secret"}, Options{MetricsHandler: handler})
	require.NoError(t, err)

	rec := do(server, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics\n", rec.Body.String())
}

func TestServer_StartShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	server, err := NewServer(embeddings.NewStaticRegistry(testModel, &fakeEncoder{}), logging.NewTestLogger().Logger,
		&Config{Host: "127.0.0.1", Port: port, ShutdownTimeout: time.Second}, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + l.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
