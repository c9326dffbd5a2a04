package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v5"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Health reports liveness of the store and the redis connection.
func Health(db HealthChecker, redisCheck func() error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := db.HealthCheck(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		if err := redisCheck(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	}
}
