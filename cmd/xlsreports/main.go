package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sol1corejz/topgo-reports/cmd/config"
	"github.com/sol1corejz/topgo-reports/internal/handlers"
	"github.com/sol1corejz/topgo-reports/internal/locations"
	"github.com/sol1corejz/topgo-reports/internal/logger"
	"github.com/sol1corejz/topgo-reports/internal/mailer"
	"github.com/sol1corejz/topgo-reports/internal/reports"
	"github.com/sol1corejz/topgo-reports/internal/storage"
	"github.com/sol1corejz/topgo-reports/internal/workers"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	config.ParseFlags()

	if err := logger.Initialize(config.LogLevel); err != nil {
		log.Fatalf("failed to initialize logger with level %q: %v", config.LogLevel, err)
	}
	defer logger.Sync()

	if err := config.Validate(); err != nil {
		logger.Log.Fatal("Invalid configuration", zap.Error(err))
	}

	loc, err := config.Location()
	if err != nil {
		logger.Log.Fatal("Unknown report time zone", zap.String("tz", config.ReportTZ), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, config.DatabaseDriver, config.DatabaseURI)
	if err != nil {
		logger.Log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		logger.Log.Error("Failed to init storage", zap.Error(err))
		return
	}

	sender, err := mailer.New(mailer.Config{
		Host:     config.SMTPHost,
		Port:     config.SMTPPort,
		Username: config.SMTPUsername,
		Password: config.SMTPPassword,
		From:     config.MailFrom,
		Timeout:  config.MailTimeout,
	})
	if err != nil {
		logger.Log.Fatal("Failed to configure mailer", zap.Error(err))
	}

	generator := reports.New(store, sender, config.ReportsDir, config.OperationsMail, reports.WithLocation(loc))

	var (
		rdb    *redis.Client
		locs   *locations.Store
		pruner workers.LocationPruner
		checks = []handlers.HealthCheck{{Name: "postgres", Check: store.DB.PingContext}}
	)
	if config.RedisAddr != "" {
		rdb, err = locations.NewClient(ctx, locations.Config{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		if err != nil {
			logger.Log.Warn("Courier locations disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			locs = locations.New(rdb)
			pruner = locs
			checks = append(checks, handlers.HealthCheck{
				Name:  "redis",
				Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			})
		}
	}

	scheduler := workers.NewScheduler(workers.Schedule{
		Daily:       config.DailySchedule,
		Weekly:      config.WeeklySchedule,
		Approvals:   config.ApprovalsSchedule,
		TickTimeout: config.TickTimeout,
		LocationTTL: config.LocationTTL,
		Location:    loc,
	}, generator, store, pruner)

	if err := scheduler.Start(); err != nil {
		logger.Log.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	var api handlers.Locations
	if locs != nil {
		api = locs
	}
	h := handlers.New(store, generator, api, checks...)

	if err := run(ctx, h); err != nil {
		logger.Log.Error("Failed to run server", zap.Error(err))
	}
}

func run(ctx context.Context, h *handlers.Handler) error {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	h.Register(app)

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Running server", zap.String("address", config.RunAddress))
		errCh <- app.Listen(config.RunAddress)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down server")
	return app.ShutdownWithTimeout(shutdownTimeout)
}
