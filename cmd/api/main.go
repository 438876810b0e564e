package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/fleet-workorders/internal/api/http"
	"github.com/spec-kit/fleet-workorders/internal/api/http/handlers"
	"github.com/spec-kit/fleet-workorders/internal/auth"
	"github.com/spec-kit/fleet-workorders/internal/broadcast"
	"github.com/spec-kit/fleet-workorders/internal/config"
	"github.com/spec-kit/fleet-workorders/internal/events"
	"github.com/spec-kit/fleet-workorders/internal/numbering"
	"github.com/spec-kit/fleet-workorders/internal/observability"
	"github.com/spec-kit/fleet-workorders/internal/persistence"
	"github.com/spec-kit/fleet-workorders/internal/realtime"
	"github.com/spec-kit/fleet-workorders/internal/repository"
	"github.com/spec-kit/fleet-workorders/internal/service"
	"github.com/spec-kit/fleet-workorders/internal/worker"
)

const devOperatorPassword = "dev"

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	stream := events.NewBroadcaster()
	dispatcher := events.NewInMemoryDispatcher(logger)

	var (
		store  repository.WorkOrderStore
		feed   realtime.Feed
		pinger realtime.Pinger
	)
	if pg.Enabled() {
		pgStore := repository.NewPostgresStore(pg.Pool)
		store = pgStore
		feed = repository.NewPgFeed(pg.Pool, pgStore, cfg.Sync.SubscribeTimeout, logger)
		pinger = pg
	} else {
		mem := repository.NewMemoryStore()
		store = mem
		feed = mem
	}

	var (
		publisher    broadcast.Publisher = broadcast.NopPublisher{}
		signalSource worker.SignalSource
	)
	if redis.Enabled() {
		redisPublisher := broadcast.NewRedisPublisher(redis.Client, cfg.Redis.SignalsChannel, logger)
		publisher = redisPublisher
		signalSource = redisPublisher
	}

	notificationService := service.NewNotificationService(dispatcher, publisher, logger)
	worker.StartNotificationWorker(ctx, notificationService, signalSource, stream, logger)

	workOrderService := service.NewWorkOrderService(service.WorkOrderDependencies{
		Store:         store,
		Numbers:       numbering.NewGenerator(cfg.WorkOrder.NumberPrefix, nil),
		Dispatcher:    dispatcher,
		Logger:        logger,
		UpdateRetries: cfg.WorkOrder.UpdateRetries,
		NumberRetries: cfg.WorkOrder.NumberRetries,
	})

	if len(cfg.Auth.Operators) == 0 && cfg.App.Env == "development" {
		hash, err := auth.HashPassword(devOperatorPassword, cfg.Auth.BcryptCost)
		if err != nil {
			logger.Fatal("failed to hash dev operator password", zap.Error(err))
		}
		cfg.Auth.Operators = []config.Operator{{Username: "dev", Sector: "WORKSHOP", PasswordHash: hash}}
		logger.Warn("AUTH_OPERATORS empty; seeded operator dev/dev for development")
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, tokens, logger)

	var syncController handlers.SyncController
	if cfg.Sync.Enabled {
		syncWorker, err := worker.StartSyncWorker(ctx, worker.SyncDependencies{
			Config:     cfg.Sync,
			Feed:       feed,
			Decode:     repository.DecodeRow,
			Pinger:     pinger,
			Stream:     stream,
			Dispatcher: dispatcher,
			Metrics:    metrics,
			Logger:     logger,
		})
		if err != nil {
			logger.Fatal("failed to start sync worker", zap.Error(err))
		}
		defer syncWorker.Stop()
		syncController = syncWorker
	}

	dependencies := map[string]handlers.Pinger{"store": store}
	if redis.Enabled() {
		dependencies["redis"] = redis
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		WorkOrders:     handlers.NewWorkOrdersHandler(workOrderService),
		Transitions:    handlers.NewTransitionsHandler(workOrderService),
		Stream:         handlers.NewStreamHandler(stream, syncController, logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	stream.Close()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
