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
	"github.com/ordercast/wadispatch/internal/provider"
	"github.com/ordercast/wadispatch/internal/queue"
	"github.com/ordercast/wadispatch/internal/repository"
	"github.com/ordercast/wadispatch/internal/resolver"
	"github.com/ordercast/wadispatch/internal/service"
)

const metricsShutdownTimeout = 5 * time.Second

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

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.SendRatePerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	scheduler := queue.NewRabbitMQScheduler(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)
	defer rabbit.Close()

	sender, err := provider.NewWhatsAppClient(
		cfg.WhatsAppAPIBaseURL,
		cfg.WhatsAppAPIVersion,
		provider.Credentials{
			PhoneNumberID: cfg.WhatsAppPhoneNumberID,
			AccessToken:   cfg.WhatsAppAccessToken,
		},
	)
	if err != nil {
		logger.Fatal("whatsapp client initialization failed", zap.Error(err))
	}

	logRepo := repository.NewGormDispatchLogRepo(db)
	mappingRepo := repository.NewGormDispatchMappingRepo(db)
	consentRepo := repository.NewGormConsentRepo(db)
	orderSource := repository.NewGormOrderSource(db)

	var consentPolicy service.ConsentPolicy = service.AllowAllPolicy{}
	if cfg.ConsentEnforcement {
		consentPolicy = service.NewLedgerConsentPolicy(consentRepo)
	}

	dispatch, err := service.NewDispatchService(
		logRepo,
		mappingRepo,
		orderSource,
		sender,
		scheduler,
		resolver.New(cfg.SiteName),
		consentPolicy,
		limiter,
		cfg.MaxRetryAttempts,
		cfg.RetryDelaySeconds,
		logger,
	)
	if err != nil {
		logger.Fatal("dispatch service initialization failed", zap.Error(err))
	}
	metrics := observability.NewMetrics()
	dispatch.SetMetrics(metrics)

	worker, err := service.NewWorker(dispatch, consumer, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal("worker initialization failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Send-path metric families live in this process only, so the worker
	// carries its own scrape endpoint.
	metricsApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	metricsApp.Get("/livez", handler.LivezHandler())
	metricsApp.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	go func() {
		logger.Info("worker metrics server started", zap.Int("port", cfg.MetricsPort))
		if err := metricsApp.Listen(":" + strconv.Itoa(cfg.MetricsPort)); err != nil {
			logger.Error("worker metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("wadispatch worker started", zap.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Start(ctx); err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
	}

	if err := metricsApp.ShutdownWithTimeout(metricsShutdownTimeout); err != nil {
		logger.Error("worker metrics server shutdown failed", zap.Error(err))
	}
	logger.Info("wadispatch worker stopped")
}
