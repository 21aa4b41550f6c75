package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Check is an optional dependency probed by the health endpoint, such as Redis.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler pings the database and every extra check. Any failure turns
// the response into 503.
func HealthHandler(pool *pgxpool.Pool, checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))

		err := pool.Ping(ctx)
		stats := GetPoolStats(pool)
		if err != nil {
			stats.Healthy = false
			status = http.StatusServiceUnavailable
			deps["postgres"] = err.Error()
		} else {
			deps["postgres"] = "ok"
		}

		for _, chk := range checks {
			if err := chk.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				deps[chk.Name] = err.Error()
				continue
			}
			deps[chk.Name] = "ok"
		}

		label := "healthy"
		if status != http.StatusOK {
			label = "unhealthy"
		}
		return c.JSON(status, map[string]interface{}{
			"status":       label,
			"dependencies": deps,
			"pool":         stats,
		})
	}
}
