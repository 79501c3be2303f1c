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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ggz/smsbridge/internal/config"
	"github.com/ggz/smsbridge/internal/cryptobox"
	"github.com/ggz/smsbridge/internal/dispatch"
	"github.com/ggz/smsbridge/internal/handler"
	infraredis "github.com/ggz/smsbridge/internal/infra/redis"
	"github.com/ggz/smsbridge/internal/infra/sqlite"
	"github.com/ggz/smsbridge/internal/notify"
	"github.com/ggz/smsbridge/internal/observability"
	"github.com/ggz/smsbridge/internal/pattern"
	"github.com/ggz/smsbridge/internal/pipeline"
	"github.com/ggz/smsbridge/internal/ratelimit"
	"github.com/ggz/smsbridge/internal/retention"
	"github.com/ggz/smsbridge/internal/settings"
	"github.com/ggz/smsbridge/internal/store"
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
		logger.Fatal("smsbridge exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("sqlite initialization failed: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sqlite underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	var (
		rdb     *goredis.Client
		limiter ratelimit.RateLimiter
	)
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		limiter, err = infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
		if err != nil {
			return fmt.Errorf("redis rate limiter init failed: %w", err)
		}
	} else {
		limiter = ratelimit.NewMemoryRateLimiter(cfg.RateLimitPerSec)
	}

	attemptLog, err := store.NewGormAttemptLog(db)
	if err != nil {
		return err
	}

	initial, err := cfg.PipelineSettings()
	if err != nil {
		return fmt.Errorf("invalid pipeline settings: %w", err)
	}
	settingsStore, err := settings.NewSwappable(initial)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	notifier := notify.NewLogNotifier(logger)

	scheduler, err := pipeline.NewScheduler(
		attemptLog,
		pattern.NewExtractor(),
		cryptobox.NewEncryptor(),
		notifier,
		logger,
	)
	if err != nil {
		return err
	}
	scheduler.SetMetrics(metrics)

	dispatcher, err := dispatch.NewDispatcher(
		scheduler,
		limiter,
		cfg.WorkerConcurrency,
		cfg.QueueDepth,
		time.Duration(cfg.RetryBackoffSeconds)*time.Second,
		cfg.MaxDeliveryAttempts,
		logger,
	)
	if err != nil {
		return err
	}
	dispatcher.SetMetrics(metrics)

	gate, err := pipeline.NewGate(settingsStore, attemptLog, dispatcher, logger)
	if err != nil {
		return err
	}
	gate.SetMetrics(metrics)

	janitor, err := retention.NewJanitor(
		attemptLog,
		cfg.RetentionDays,
		time.Duration(cfg.RetentionSweepMinutes)*time.Minute,
		logger,
	)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handler.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterMessageRoutes(app, gate); err != nil {
		return err
	}
	if err := handler.RegisterHistoryRoutes(app, attemptLog); err != nil {
		return err
	}
	if err := handler.RegisterSettingsRoutes(app, settingsStore); err != nil {
		return err
	}

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	logger.Info("smsbridge started",
		zap.Int("port", cfg.APIPort),
		zap.String("database", cfg.DatabasePath),
		zap.Int("workers", cfg.WorkerConcurrency),
	)

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Start(groupCtx)
	})
	g.Go(func() error {
		return janitor.Start(groupCtx)
	})
	g.Go(func() error {
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
