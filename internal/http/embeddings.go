package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fyrsmithlabs/embedgate/internal/embeddings"
	"github.com/fyrsmithlabs/embedgate/internal/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	objectEmbedding = "embedding"
	objectList      = "list"

	msgEmbeddingFailed = "embedding generation failed"
)

// CreateEmbeddings encodes every text of input in order with enc and builds
// the response envelope reported under model.
func CreateEmbeddings(ctx context.Context, enc embeddings.Encoder, model string, input Input) (*EmbeddingResponse, error) {
	texts := input.Texts()
	resp := &EmbeddingResponse{
		Data:   make([]EmbeddingData, 0, len(texts)),
		Model:  model,
		Object: objectList,
	}

	tokens := 0
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := enc.Encode(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("encoding input %d: %w", i, err)
		}
		tokens += len(vec)
		resp.Data = append(resp.Data, EmbeddingData{
			Embedding: vec,
			Index:     i,
			Object:    objectEmbedding,
		})
	}

	resp.Usage = Usage{PromptTokens: tokens, TotalTokens: tokens}
	return resp, nil
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleEmbeddings serves POST /v1/embeddings.
func (s *Server) handleEmbeddings(c echo.Context) error {
	ctx := c.Request().Context()
	logger := logging.FromContext(ctx)

	req, err := DecodeEmbeddingRequest(c.Request().Body)
	if err != nil {
		logger.Debug(ctx, "rejected embedding request", zap.Error(err))
		switch {
		case errors.Is(err, ErrInvalidInput):
			return echo.NewHTTPError(http.StatusBadRequest, ErrInvalidInput.Error())
		case errors.Is(err, errModelType):
			return echo.NewHTTPError(http.StatusBadRequest, errModelType.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, errMalformedBody.Error())
		}
	}

	model := s.registry.DefaultName()
	if req.Model != "" && req.Model != model {
		logger.Debug(ctx, "ignoring requested model",
			zap.String("requested", req.Model),
			zap.String("model", model),
		)
	}

	resp, err := CreateEmbeddings(ctx, s.registry.Default(), model, req.Input)
	if err != nil {
		if errors.Is(err, embeddings.ErrInputRejected) {
			logger.Info(ctx, "embedding input rejected", zap.Error(err))
			return echo.NewHTTPError(http.StatusBadRequest, embeddings.ErrInputRejected.Error()).SetInternal(err)
		}
		if ctx.Err() != nil {
			logger.Info(ctx, "embedding request cancelled", zap.Error(err))
		} else {
			logger.Error(ctx, "embedding generation failed",
				zap.String("model", model),
				zap.Error(err),
			)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, msgEmbeddingFailed).SetInternal(err)
	}

	s.metrics.RecordInputItems(ctx, len(resp.Data))
	logger.Debug(ctx, "embeddings computed",
		zap.Int("items", len(resp.Data)),
		zap.Int("tokens", resp.Usage.TotalTokens),
	)

	return c.JSON(http.StatusOK, resp)
}
