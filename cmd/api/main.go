package main

import (
	"context"
	"log"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/ordercast/wadispatch/internal/config"
	"github.com/ordercast/wadispatch/internal/handler"
	"github.com/ordercast/wadispatch/internal/infra/postgresql"
	"github.com/ordercast/wadispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/ordercast/wadispatch/internal/infra/redis"
	"github.com/ordercast/wadispatch/internal/observability"
	"github.com/ordercast/wadispatch/internal/queue"
	"github.com/ordercast/wadispatch/internal/repository"
	"github.com/ordercast/wadispatch/internal/resolver"
	"github.com/ordercast/wadispatch/internal/service"
	"github.com/ordercast/wadispatch/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	scheduler := queue.NewRabbitMQScheduler(rabbit)
	defer scheduler.Close()

	logRepo := repository.NewGormDispatchLogRepo(db)
	mappingRepo := repository.NewGormDispatchMappingRepo(db)
	consentRepo := repository.NewGormConsentRepo(db)
	orderSource := repository.NewGormOrderSource(db)

	var consentPolicy service.ConsentPolicy = service.AllowAllPolicy{}
	if cfg.ConsentEnforcement {
		consentPolicy = service.NewLedgerConsentPolicy(consentRepo)
	}

	// The API side only schedules jobs; sending happens in the worker, so
	// no provider client or rate limiter is wired here.
	dispatch, err := service.NewDispatchService(
		logRepo,
		mappingRepo,
		orderSource,
		nil,
		scheduler,
		resolver.New(cfg.SiteName),
		consentPolicy,
		nil,
		cfg.MaxRetryAttempts,
		cfg.RetryDelaySeconds,
		logger,
	)
	if err != nil {
		logger.Fatal("dispatch service initialization failed", zap.Error(err))
	}

	reconciler := service.NewReconciler(logRepo, logger)

	metrics := observability.NewMetrics()
	dispatch.SetMetrics(metrics)
	reconciler.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb, rabbit)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterWebhookRoutes(app, reconciler, cfg.WebhookVerifyToken); err != nil {
		logger.Fatal("webhook route registration failed", zap.Error(err))
	}
	if err := handler.RegisterEventRoutes(app, dispatch); err != nil {
		logger.Fatal("event route registration failed", zap.Error(err))
	}
	if err := handler.RegisterMappingRoutes(app, mappingRepo); err != nil {
		logger.Fatal("mapping route registration failed", zap.Error(err))
	}
	if err := handler.RegisterLogRoutes(app, logRepo); err != nil {
		logger.Fatal("log route registration failed", zap.Error(err))
	}
	if err := handler.RegisterConsentRoutes(app, consentRepo); err != nil {
		logger.Fatal("consent route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("wadispatch api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(":" + strconv.Itoa(cfg.APIPort)); err != nil {
			logger.Error("api server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down api")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}
}
