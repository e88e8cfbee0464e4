package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/oakfield/shopfront-backend/internal/cart"
	"github.com/oakfield/shopfront-backend/internal/cron"
	"github.com/oakfield/shopfront-backend/internal/reservations"
	"github.com/oakfield/shopfront-backend/pkg/config"
	"github.com/oakfield/shopfront-backend/pkg/db"
	"github.com/oakfield/shopfront-backend/pkg/logger"
	"github.com/oakfield/shopfront-backend/pkg/metrics"
	"github.com/oakfield/shopfront-backend/pkg/migrate"
	"github.com/oakfield/shopfront-backend/pkg/outbox"
	"github.com/oakfield/shopfront-backend/pkg/redis"
)

const lockKeyFormat = "sf:reclaim-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "reclaim-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "reclaim-worker"

	logg = logger.New(logger.Options{
		ServiceName: "reclaim-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Reclaim.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create reclaim lock", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	reclaimJob, err := cron.NewCartReclaimJob(cron.CartReclaimJobParams{
		Logger:    logg,
		DB:        dbClient,
		Carts:     cart.NewRepository(dbClient.DB()),
		Items:     reservations.NewRepository(dbClient.DB()),
		Outbox:    outboxService,
		BatchSize: cfg.Reclaim.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reclaim job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reclaimJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Reclaim.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reclaim worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting reclaim worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reclaim worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reclaim worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
