package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astro-67/bookissue-backend/internal/cache"
	"github.com/Astro-67/bookissue-backend/internal/config"
	"github.com/Astro-67/bookissue-backend/internal/observability"
	"github.com/Astro-67/bookissue-backend/internal/persistence"
	"github.com/Astro-67/bookissue-backend/internal/repository"
	"github.com/Astro-67/bookissue-backend/internal/service"
	"github.com/Astro-67/bookissue-backend/internal/worker"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the worker shares the API's database, an in-memory store would be invisible to it
	if cfg.Postgres.DSN == "" {
		logger.Fatal("POSTGRES_DSN is required for the standalone worker")
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	repos := repository.NewPostgresSet(pg.PoolHandle())

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: repos.Notifications,
		Unread:           cache.NewUnreadCounter(redis.Handle(), cfg.Notification.UnreadCacheTTL()),
		Metrics:          metrics,
		Logger:           logger,
	})

	w, err := worker.NewWorker(worker.WorkerConfig{
		RedisOpts:   worker.RedisOpt(cfg.Redis),
		Queue:       cfg.Notification.QueueName,
		Concurrency: cfg.Notification.WorkerConcurrency,
		Deliverer:   notificationService,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("failed to init worker", zap.Error(err))
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name + "-worker", DisableStartupMessage: true})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive", "service": cfg.App.Name + "-worker", "version": cfg.App.Version})
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return w.Run(groupCtx) })
	group.Go(func() error { return app.Listen(cfg.App.Addr()) })
	group.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", zap.Error(err))
	}
}
