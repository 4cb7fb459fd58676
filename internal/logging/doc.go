// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stdout + OpenTelemetry log bridge)
//   - Automatic context field injection (trace_id, span_id, request.id)
//   - Secret redaction at the encoder (field names and value patterns)
//   - Sampling below error level (errors never sampled)
//
// # Usage
//
//	cfg, err := logging.FromSettings("info", "json")
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, "c0ffee")
//	logger.Info(ctx, "embeddings computed", zap.Int("items", 3))
//
// Output includes automatic correlation:
//
//	{
//	  "ts": "2026-10-18T10:15:30.000Z",
//	  "level": "info",
//	  "msg": "embeddings computed",
//	  "service": "embedgate",
//	  "request.id": "c0ffee",
//	  "items": 3
//	}
//
// # Secret Redaction
//
// Fields named authorization, api_key, token and similar are replaced with
// [REDACTED]. String values matching a bearer or api-key pattern become
// [REDACTED:pattern]. Use Secret or RedactedString to log that a credential
// was present without logging its value:
//
//	logger.Info(ctx, "auth configured", logging.Secret("api_key", cfg.API.Key))
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
package logging
