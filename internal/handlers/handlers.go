package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sol1corejz/topgo-reports/internal/locations"
	"github.com/sol1corejz/topgo-reports/internal/models"
)

const (
	requestTimeout  = 10 * time.Second
	generateTimeout = 2 * time.Minute
)

type Registry interface {
	ListReports(ctx context.Context, kind models.ReportKind, owners ...int64) ([]models.ReportFile, error)
	GetReport(ctx context.Context, kind models.ReportKind, filename string) (models.ReportFile, error)
}

type Generator interface {
	RestaurantOrders(ctx context.Context, restaurantID int64) (models.ReportFile, error)
	RestaurantCurators(ctx context.Context) (models.ReportFile, error)
	CourierSessions(ctx context.Context, courierID int64) (models.ReportFile, error)
	CourierCuratorsArchive(ctx context.Context) (models.ReportFile, error)
	FilePath(filename string) (string, error)
}

type Locations interface {
	Set(ctx context.Context, courierID int64, c locations.Coords) error
	All(ctx context.Context) ([]locations.Location, error)
	Remove(ctx context.Context, courierID int64) error
}

type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Handler struct {
	registry  Registry
	generator Generator
	locations Locations
	checks    []HealthCheck
}

// New accepts a nil Locations; the courier location routes are not mounted then.
func New(registry Registry, generator Generator, locs Locations, checks ...HealthCheck) *Handler {
	return &Handler{
		registry:  registry,
		generator: generator,
		locations: locs,
		checks:    checks,
	}
}

func (h *Handler) Register(app *fiber.App) {
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/healthz", h.HealthHandler)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/reports")
	api.Get("/courier/:id", h.ListOwnedHandler(models.KindCourier))
	api.Get("/restaurant/:id", h.ListOwnedHandler(models.KindRestaurant))
	api.Get("/courier_curators", h.ListCuratorHandler(models.KindCourierCurators))
	api.Get("/restaurant_curators", h.ListCuratorHandler(models.KindRestaurantCurators))

	api.Post("/courier/:id", h.GenerateOwnedHandler(h.generator.CourierSessions))
	api.Post("/restaurant/:id", h.GenerateOwnedHandler(h.generator.RestaurantOrders))
	api.Post("/courier_curators", h.GenerateCuratorHandler(h.generator.CourierCuratorsArchive))
	api.Post("/restaurant_curators", h.GenerateCuratorHandler(h.generator.RestaurantCurators))

	api.Get("/:kind/files/:filename", h.DownloadHandler)

	if h.locations != nil {
		couriers := app.Group("/api/couriers")
		couriers.Get("/locations", h.GetLocationsHandler)
		couriers.Put("/:id/location", h.SetLocationHandler)
		couriers.Delete("/:id/location", h.DeleteLocationHandler)
	}
}

func paramID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func badID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid id",
	})
}
