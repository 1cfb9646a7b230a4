package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const readyTimeout = 5 * time.Second

// poolStatus is the connection pool summary reported by the readiness
// endpoint. Enough to spot a saturated or drained pool from a probe.
type poolStatus struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

func status(pool *pgxpool.Pool) poolStatus {
	stat := pool.Stat()
	return poolStatus{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
	}
}

// ReadyHandler reports whether the server can reach its database. Wired to
// the /ready probe; liveness stays independent of the database.
func ReadyHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unavailable",
				"error":  err.Error(),
				"pool":   status(pool),
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "ready",
			"pool":   status(pool),
		})
	}
}
