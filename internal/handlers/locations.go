package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sol1corejz/topgo-reports/internal/locations"
	"github.com/sol1corejz/topgo-reports/internal/logger"
	"go.uber.org/zap"
)

func (h *Handler) SetLocationHandler(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badID(c)
	}

	var coords locations.Coords
	if err := c.BodyParser(&coords); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	if err := h.locations.Set(ctx, id, coords); err != nil {
		if errors.Is(err, locations.ErrInvalidCoords) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Log.Error("Error saving courier location", zap.Int64("courier_id", id), zap.Error(err))
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) GetLocationsHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	locs, err := h.locations.All(ctx)
	if err != nil {
		logger.Log.Error("Error getting courier locations", zap.Error(err))
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if len(locs) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Status(fiber.StatusOK).JSON(locs)
}

func (h *Handler) DeleteLocationHandler(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badID(c)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	if err := h.locations.Remove(ctx, id); err != nil {
		logger.Log.Error("Error removing courier location", zap.Int64("courier_id", id), zap.Error(err))
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
