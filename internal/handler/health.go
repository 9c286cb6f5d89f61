package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/deppfellow/posts-api/internal/middleware"
	"github.com/deppfellow/posts-api/internal/server"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

var errNotConfigured = errors.New("not configured")

// HealthHandler serves /status for load balancers and uptime monitors.
type HealthHandler struct {
	Handler
}

// NewHealthHandler returns the /status handler.
func NewHealthHandler(s *server.Server) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
	}
}

type dependencyCheck struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

type healthResponse struct {
	Status      string                     `json:"status"`
	Timestamp   time.Time                  `json:"timestamp"`
	Environment string                     `json:"environment"`
	Checks      map[string]dependencyCheck `json:"checks"`
}

// CheckHealth pings every dependency listed in
// observability.health_checks.checks. It answers 200 when all of them
// respond and 503 otherwise.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()

	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	response := healthResponse{
		Status:      healthStatusHealthy,
		Timestamp:   time.Now().UTC(),
		Environment: h.server.Config.Primary.Env,
		Checks:      make(map[string]dependencyCheck),
	}

	cfg := h.server.Config.Observability.HealthChecks
	if cfg.Enabled {
		pings := map[string]func(context.Context) error{
			"database": h.pingDatabase,
			"redis":    h.pingRedis,
		}

		for name, ping := range pings {
			if !cfg.Has(name) {
				continue
			}

			check := h.runCheck(c.Request().Context(), &logger, name, cfg.Timeout, ping)
			response.Checks[name] = check
			if check.Status != healthStatusHealthy {
				response.Status = healthStatusUnhealthy
			}
		}
	}

	if response.Status != healthStatusHealthy {
		logger.Warn().
			Dur("total_duration", time.Since(start)).
			Msg("health check failed")

		h.recordHealthEvent(map[string]any{
			"check_type":        "overall",
			"operation":         "health_check",
			"error_type":        "overall_unhealthy",
			"total_duration_ms": time.Since(start).Milliseconds(),
		})

		return c.JSON(http.StatusServiceUnavailable, response)
	}

	logger.Debug().
		Dur("total_duration", time.Since(start)).
		Msg("health check passed")

	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write JSON response: %w", err)
	}
	return nil
}

func (h *HealthHandler) runCheck(
	ctx context.Context,
	logger *zerolog.Logger,
	name string,
	timeout time.Duration,
	ping func(context.Context) error,
) dependencyCheck {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		logger.Error().
			Err(err).
			Str("check", name).
			Dur("response_time", elapsed).
			Msg("dependency health check failed")

		h.recordHealthEvent(map[string]any{
			"check_type":       name,
			"operation":        "health_check",
			"error_type":       name + "_unhealthy",
			"response_time_ms": elapsed.Milliseconds(),
			"error_message":    err.Error(),
		})

		return dependencyCheck{
			Status:       healthStatusUnhealthy,
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return dependencyCheck{
		Status:       healthStatusHealthy,
		ResponseTime: elapsed.String(),
	}
}

func (h *HealthHandler) pingDatabase(ctx context.Context) error {
	if h.server.DB == nil || h.server.DB.Pool == nil {
		return errNotConfigured
	}
	return h.server.DB.Pool.Ping(ctx)
}

func (h *HealthHandler) pingRedis(ctx context.Context) error {
	if h.server.Redis == nil {
		return errNotConfigured
	}
	return h.server.Redis.Ping(ctx).Err()
}

// recordHealthEvent sends a HealthCheckError custom event when New Relic
// is running.
func (h *HealthHandler) recordHealthEvent(params map[string]any) {
	if app := h.server.LoggerService.GetApplication(); app != nil {
		app.RecordCustomEvent("HealthCheckError", params)
	}
}
