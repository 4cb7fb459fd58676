package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/embedgate/internal/config"
	"github.com/fyrsmithlabs/embedgate/internal/logging"
	"github.com/labstack/echo/v4"
)

// Authentication failure messages.
const (
	msgAPIKeyRequired = "API key required"
	msgInvalidAPIKey  = "Invalid API key"
)

// BearerAuth creates an Echo middleware that requires
// "Authorization: Bearer <key>" when key is set, and is a no-op otherwise.
//
// A missing header, a non-bearer scheme, or an empty token is answered with
// 401 "API key required"; a token that does not match with 401
// "Invalid API key". Both carry WWW-Authenticate: Bearer.
func BearerAuth(key config.Secret) echo.MiddlewareFunc {
	if !key.IsSet() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	expected := []byte(key.Value())

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorized(msgAPIKeyRequired)
			}
			if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
				logging.FromContext(c.Request().Context()).Warn(c.Request().Context(), "rejected request with invalid API key")
				return unauthorized(msgInvalidAPIKey)
			}
			return next(c)
		}
	}
}

// bearerToken extracts the credentials from a bearer Authorization header.
// The scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(msg string) *echo.HTTPError {
	he := echo.NewHTTPError(http.StatusUnauthorized, msg)
	he.Internal = errChallenge
	return he
}
