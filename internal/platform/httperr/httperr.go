// Package httperr renders every API failure as {"error": "..."}.
package httperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the uniform error payload.
type Body struct {
	Error string `json:"error"`
}

// Handler returns an echo.HTTPErrorHandler. Errors that are not
// *echo.HTTPError are logged and answered with a generic 500 so driver
// messages never reach the client.
func Handler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch m := he.Message.(type) {
			case string:
				msg = m
			case error:
				msg = m.Error()
			default:
				msg = fmt.Sprint(m)
			}
			if he.Internal != nil {
				logger.Warn().Err(he.Internal).Int("status", code).Msg(msg)
			}
		} else {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Msg("unhandled error")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, Body{Error: msg})
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

// Internal wraps an unexpected failure as a 500 that keeps the cause for the
// log only.
func Internal(err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
