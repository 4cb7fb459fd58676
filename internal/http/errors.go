package http

import (
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/embedgate/internal/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrInvalidInput indicates an input that is neither a string nor a list of strings.
var ErrInvalidInput = errors.New("input needs to be an array of strings or a string")

// errChallenge marks a 401 that must carry a WWW-Authenticate challenge.
var errChallenge = errors.New("bearer challenge")

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// errorHandler renders errors as {"detail": msg}.
func errorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		detail := http.StatusText(code)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				detail = msg
			} else {
				detail = http.StatusText(code)
			}
			if errors.Is(he.Internal, errChallenge) {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			}
		} else {
			ctx := c.Request().Context()
			logger.Error(ctx, "unhandled error", zap.Error(err))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, ErrorResponse{Detail: detail})
		}
		if writeErr != nil {
			logger.Warn(c.Request().Context(), "failed to write error response", zap.Error(writeErr))
		}
	}
}
