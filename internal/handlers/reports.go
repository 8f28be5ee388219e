package handlers

import (
	"context"
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/sol1corejz/topgo-reports/internal/logger"
	"github.com/sol1corejz/topgo-reports/internal/models"
	"github.com/sol1corejz/topgo-reports/internal/reports"
	"github.com/sol1corejz/topgo-reports/internal/storage"
	"github.com/sol1corejz/topgo-reports/internal/xls"
	"go.uber.org/zap"
)

func (h *Handler) ListOwnedHandler(kind models.ReportKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c)
		if !ok {
			return badID(c)
		}
		return h.list(c, kind, id)
	}
}

func (h *Handler) ListCuratorHandler(kind models.ReportKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return h.list(c, kind)
	}
}

func (h *Handler) list(c *fiber.Ctx, kind models.ReportKind, owners ...int64) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	files, err := h.registry.ListReports(ctx, kind, owners...)
	if err != nil {
		logger.Log.Error("Error listing reports", zap.String("kind", string(kind)), zap.Error(err))
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if len(files) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Status(fiber.StatusOK).JSON(files)
}

func (h *Handler) GenerateOwnedHandler(generate func(context.Context, int64) (models.ReportFile, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c)
		if !ok {
			return badID(c)
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), generateTimeout)
		defer cancel()

		file, err := generate(ctx, id)
		return generated(c, file, err)
	}
}

func (h *Handler) GenerateCuratorHandler(generate func(context.Context) (models.ReportFile, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), generateTimeout)
		defer cancel()

		file, err := generate(ctx)
		return generated(c, file, err)
	}
}

func generated(c *fiber.Ctx, file models.ReportFile, err error) error {
	if err != nil {
		var se *reports.StageError
		stage := ""
		if errors.As(err, &se) {
			stage = se.Stage
		}
		logger.Log.Error("Error generating report", zap.String("stage", stage), zap.Error(err))

		if errors.Is(err, models.ErrUnmappedStatus) || errors.Is(err, models.ErrUnmappedPayMethod) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusCreated).JSON(file)
}

func (h *Handler) DownloadHandler(c *fiber.Ctx) error {
	kind := models.ReportKind(c.Params("kind"))
	if _, err := kind.Table(); err != nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	path, err := h.generator.FilePath(c.Params("filename"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid file name",
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	file, err := h.registry.GetReport(ctx, kind, c.Params("filename"))
	if err != nil {
		if errors.Is(err, storage.ErrReportNotFound) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		logger.Log.Error("Error getting report", zap.Error(err))
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Log.Warn("Registered report is missing on disk", zap.String("file", file.Filename))
			return c.SendStatus(fiber.StatusGone)
		}
		logger.Log.Error("Error reading report", zap.Error(err))
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	c.Attachment(file.Filename)
	c.Set(fiber.HeaderContentType, xls.ContentType)
	return c.Status(fiber.StatusOK).Send(data)
}
