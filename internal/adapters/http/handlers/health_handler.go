package handlers

import (
	"saccotrack/internal/config"
	"saccotrack/internal/core/services"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	scheduler *services.Scheduler
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(scheduler *services.Scheduler) *HealthHandler {
	return &HealthHandler{
		scheduler: scheduler,
	}
}

// Root handles root endpoint
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "running",
		"message": "🚀 SaccoTrack API v1.0 is running",
		"mode":    config.AppConfig.AppMode,
	})
}

// HealthCheck checks API, database and scheduler health
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	dbStatus := "healthy"
	if err := config.HealthCheck(); err != nil {
		dbStatus = "unhealthy"
	}

	schedStatus := "stopped"
	if h.scheduler != nil {
		schedStatus = "running"
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"checks": fiber.Map{
			"api":       "healthy",
			"database":  dbStatus,
			"scheduler": schedStatus,
		},
	})
}

// APIInfo handles API v1 info
func (h *HealthHandler) APIInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "SaccoTrack API v1.0",
		"version": "1.0.0",
	})
}
