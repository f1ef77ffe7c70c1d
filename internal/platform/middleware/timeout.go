package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on every request context and answers 504
// when the handler overruns it. The handler runs on the request goroutine;
// anything it writes once the deadline has passed is discarded. The /ws
// endpoint is long-lived and skipped.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 || isWebSocketPath(c.Request().URL.Path) {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			res := c.Response()
			w := &deadlineWriter{ResponseWriter: res.Writer, ctx: ctx}
			res.Writer = w
			err := next(c)
			res.Writer = w.ResponseWriter

			if w.dropped {
				res.Committed = false
				res.Size = 0
			}
			if res.Committed || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return err
			}
			return c.JSON(http.StatusGatewayTimeout, map[string]string{
				"error": "request timed out",
			})
		}
	}
}

// deadlineWriter passes a response through only if it starts before ctx
// ends. A response started late is swallowed whole.
type deadlineWriter struct {
	http.ResponseWriter
	ctx     context.Context
	dropped bool
}

func (w *deadlineWriter) WriteHeader(code int) {
	if w.ctx.Err() != nil {
		w.dropped = true
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *deadlineWriter) Write(b []byte) (int, error) {
	if w.dropped {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *deadlineWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok && !w.dropped {
		f.Flush()
	}
}

func (w *deadlineWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func isWebSocketPath(path string) bool {
	return path == "/ws" || strings.HasPrefix(path, "/ws/")
}
