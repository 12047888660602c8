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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/Astro-67/bookissue-backend/internal/api/http"
	"github.com/Astro-67/bookissue-backend/internal/api/http/handlers"
	"github.com/Astro-67/bookissue-backend/internal/auth"
	"github.com/Astro-67/bookissue-backend/internal/cache"
	"github.com/Astro-67/bookissue-backend/internal/config"
	"github.com/Astro-67/bookissue-backend/internal/events"
	"github.com/Astro-67/bookissue-backend/internal/observability"
	"github.com/Astro-67/bookissue-backend/internal/persistence"
	"github.com/Astro-67/bookissue-backend/internal/repository"
	"github.com/Astro-67/bookissue-backend/internal/repository/memory"
	"github.com/Astro-67/bookissue-backend/internal/service"
	"github.com/Astro-67/bookissue-backend/internal/worker"
)

const shutdownTimeout = 10 * time.Second

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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	repos := memory.NewStore().Set()
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = repository.NewPostgresSet(pg.PoolHandle())
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	if cfg.Notification.BrokerURL != "" {
		publisher, err := events.NewRabbitPublisher(cfg.Notification.BrokerURL, cfg.Notification.BrokerExchange, logger)
		if err != nil {
			logger.Fatal("failed to connect broker", zap.Error(err))
		}
		defer publisher.Close() //nolint:errcheck
		events.SubscribeAll(dispatcher, events.Forwarder(publisher))
	}

	var enqueuer service.Enqueuer
	if cfg.Notification.Async() {
		client := worker.NewClient(worker.RedisOpt(cfg.Redis), cfg.Notification.QueueName, logger)
		defer client.Close() //nolint:errcheck
		enqueuer = client
	}

	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: repos.Notifications,
		Dispatcher:       dispatcher,
		Unread:           cache.NewUnreadCounter(redis.Handle(), cfg.Notification.UnreadCacheTTL()),
		Enqueuer:         enqueuer,
		Metrics:          metrics,
		Logger:           logger,
	})
	notificationService.RegisterHandlers()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   repos.Users,
		Dispatcher: dispatcher,
	})
	userService := service.NewUserService(service.UserDependencies{
		UserRepo:    repos.Users,
		TicketRepo:  repos.Tickets,
		HistoryRepo: repos.History,
		Dispatcher:  dispatcher,
		BcryptCost:  cfg.Auth.BcryptCost,
		Logger:      logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.Tickets,
		CommentRepo: repos.Comments,
		UserRepo:    repos.Users,
		HistoryRepo: repos.History,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	commentService := service.NewCommentService(service.CommentDependencies{
		TicketRepo:  repos.Tickets,
		CommentRepo: repos.Comments,
		UserRepo:    repos.Users,
		Dispatcher:  dispatcher,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, repos.Users)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, cfg.Notification.Async()),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Comments:       handlers.NewCommentsHandler(commentService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if cfg.Notification.Async() && cfg.Notification.EmbeddedWorker {
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
		group.Go(func() error { return w.Run(groupCtx) })
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", zap.Error(err))
	}
}
