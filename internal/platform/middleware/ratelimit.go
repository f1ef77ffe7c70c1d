package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimitConfig configures a fixed-window limiter. Rate uses limiter's
// formatted notation, e.g. "100-S" or "10-M".
type RateLimitConfig struct {
	Rate      string
	Prefix    string
	SkipPaths []string
	Store     limiter.Store
	// OnDeny is called with the matched route whenever a request is refused.
	OnDeny func(route string)
}

// RateLimit keys requests by authenticated user when known, otherwise by
// client IP. An unparseable rate falls back to 10 per second.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		rate = limiter.Rate{Period: time.Second, Limit: 10}
	}
	store := cfg.Store
	if store == nil {
		prefix := cfg.Prefix
		if prefix == "" {
			prefix = "ratelimit"
		}
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          prefix,
			CleanUpInterval: time.Minute,
		})
	}
	lim := limiter.New(store, rate)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, p := range cfg.SkipPaths {
				if p != "" && strings.HasPrefix(path, p) {
					return next(c)
				}
			}

			lctx, err := lim.Get(c.Request().Context(), limitKey(c))
			if err != nil {
				// A broken store must not take the API down with it.
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				retry := int(time.Until(time.Unix(lctx.Reset, 0)).Seconds())
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				if cfg.OnDeny != nil {
					cfg.OnDeny(c.Path())
				}
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func limitKey(c echo.Context) string {
	if uid, ok := c.Get("user_id").(string); ok && uid != "" {
		return "user:" + uid
	}
	return "ip:" + strings.TrimPrefix(c.RealIP(), "::ffff:")
}
