package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"github.com/viesti/telia-gateway/internal/cache"
	"github.com/viesti/telia-gateway/internal/config"
	"github.com/viesti/telia-gateway/internal/handler"
	"github.com/viesti/telia-gateway/internal/infra/postgresql"
	"github.com/viesti/telia-gateway/internal/infra/postgresql/migrations"
	infraredis "github.com/viesti/telia-gateway/internal/infra/redis"
	"github.com/viesti/telia-gateway/internal/observability"
	"github.com/viesti/telia-gateway/internal/queue"
	"github.com/viesti/telia-gateway/internal/repository"
	"github.com/viesti/telia-gateway/internal/scheduler"
	"github.com/viesti/telia-gateway/internal/service"
	"github.com/viesti/telia-gateway/internal/telia"
	"github.com/viesti/telia-gateway/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
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

	if err := run(cfg, logger); err != nil {
		logger.Fatal("telia-gateway exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	metrics := observability.NewMetrics()
	deliveries := repository.NewGormDeliveryRepo(db)

	// Redis is optional. With it the token cache and rate limit are shared
	// across processes; without it both stay in-process.
	var tokenCache cache.TokenCache = cache.NewMemoryTokenCache()
	var rdb *goredis.Client
	var gatewayLimiterSetup func(gw *telia.Gateway) error
	if cfg.RedisURL != "" {
		client, err := infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer client.Close()
		rdb = client

		redisCache, err := cache.NewRedisTokenCache(client)
		if err != nil {
			return fmt.Errorf("token cache initialization failed: %w", err)
		}
		tokenCache = redisCache

		if cfg.RateLimitPerSec > 0 {
			gatewayLimiterSetup = func(gw *telia.Gateway) error {
				limiter, err := infraredis.NewRedisRateLimiter(client, cfg.RateLimitPerSec)
				if err != nil {
					return fmt.Errorf("rate limiter initialization failed: %w", err)
				}
				gw.SetRateLimiter(limiter)
				return nil
			}
		}
	}

	carrier, err := telia.NewTransport(cfg.TeliaBaseURL, cfg.HTTPDebug)
	if err != nil {
		return fmt.Errorf("carrier transport initialization failed: %w", err)
	}

	tokens, err := telia.NewTokenManager(carrier, telia.Credentials{
		Username: cfg.TeliaUsername,
		Password: cfg.TeliaPassword,
	}, tokenCache, cfg.TokenSettleDelay(), logger)
	if err != nil {
		return fmt.Errorf("token manager initialization failed: %w", err)
	}
	tokens.SetMetrics(metrics)

	callbackData, err := telia.NewCallbackDataGenerator(deliveries)
	if err != nil {
		return fmt.Errorf("callback data generator initialization failed: %w", err)
	}

	// The gateway and its retry scheduler reference each other: a busy-server
	// rejection schedules a task whose handler calls back into the gateway.
	// The gateway pointer is captured here and assigned below.
	var gateway *telia.Gateway
	retryHandler := func(ctx context.Context, task telia.RetryTask) error {
		_, err := gateway.Deliver(ctx, task.PhoneNumber, task.Code, task.Tenant, true)
		return err
	}

	var retryScheduler telia.RetryScheduler
	var retryConsumer *queue.RetryConsumer
	if cfg.RabbitMQURL != "" {
		broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		defer broker.Close()

		retryScheduler = queue.NewRetryPublisher(broker)
		retryConsumer = queue.NewRetryConsumer(broker, cfg.RetryPrefetch, logger)
	} else {
		timers, err := scheduler.NewTimerScheduler(retryHandler, logger)
		if err != nil {
			return fmt.Errorf("timer scheduler initialization failed: %w", err)
		}
		defer timers.Close() //nolint:errcheck
		retryScheduler = timers

		logger.Warn("no RABBITMQ_URL configured; scheduled retries are in-process and lost on restart")
	}

	gateway, err = telia.NewGateway(carrier, tokens, deliveries, callbackData, retryScheduler, cfg.RetryDelay(), logger)
	if err != nil {
		return fmt.Errorf("gateway initialization failed: %w", err)
	}
	gateway.SetMetrics(metrics)
	if gatewayLimiterSetup != nil {
		if err := gatewayLimiterSetup(gateway); err != nil {
			return err
		}
	}

	callbacks, err := service.NewCallbackService(deliveries, logger)
	if err != nil {
		return fmt.Errorf("callback service initialization failed: %w", err)
	}
	callbacks.SetMetrics(metrics)

	defaultTenant := telia.Tenant{
		SenderAddress: cfg.SenderAddress,
		SenderName:    cfg.SenderName,
		Mode:          telia.ParseMode(cfg.TeliaMode),
		NotifyBaseURL: cfg.CallbackBaseURL,
	}

	app := fiber.New(fiber.Config{
		AppName:               "telia-gateway",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(observability.RequestLogger(logger))
	app.Use(metrics.HTTPMiddleware())

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	handler.NewDeliveryHandler(gateway, callbacks, deliveries, defaultTenant, logger).RegisterRoutes(app)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("telia-gateway api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	if retryConsumer != nil {
		group.Go(func() error {
			return retryConsumer.Consume(groupCtx, retryHandler)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")

		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Warn("http server shutdown failed", zap.Error(err))
		}

		revokeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if _, err := tokens.RevokeCached(revokeCtx); err != nil {
			logger.Warn("failed to revoke cached token on shutdown", zap.Error(err))
		}

		return nil
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
