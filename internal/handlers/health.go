package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sol1corejz/topgo-reports/internal/logger"
	"go.uber.org/zap"
)

func (h *Handler) HealthHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	status := fiber.Map{}
	healthy := true
	for _, hc := range h.checks {
		if err := hc.Check(ctx); err != nil {
			logger.Log.Warn("Health check failed", zap.String("check", hc.Name), zap.Error(err))
			status[hc.Name] = err.Error()
			healthy = false
			continue
		}
		status[hc.Name] = "ok"
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return c.Status(fiber.StatusOK).JSON(status)
}
