package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const pingTimeout = 5 * time.Second

// PoolStats is the connection pool snapshot reported by /health/db.
type PoolStats struct {
	Total          int32  `json:"total"`
	Idle           int32  `json:"idle"`
	InUse          int32  `json:"in_use"`
	Max            int32  `json:"max"`
	Acquires       int64  `json:"acquires"`
	WaitedAcquires int64  `json:"waited_acquires"`
	AcquireTime    string `json:"acquire_time"`
}

func statsOf(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		Total:          s.TotalConns(),
		Idle:           s.IdleConns(),
		InUse:          s.AcquiredConns(),
		Max:            s.MaxConns(),
		Acquires:       s.AcquireCount(),
		WaitedAcquires: s.EmptyAcquireCount(),
		AcquireTime:    s.AcquireDuration().String(),
	}
}

// HealthHandler serves GET /health/db. A failed ping answers 503 so load
// balancers stop routing dispatch traffic to an instance without a database.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return readiness(pool.Ping, func() PoolStats { return statsOf(pool) })
}

func readiness(ping func(context.Context) error, stats func() PoolStats) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
		defer cancel()

		if err := ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  "Database unavailable",
				"pool":   stats(),
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"pool":   stats(),
		})
	}
}

// LivenessHandler serves GET /health without touching the database.
func LivenessHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
