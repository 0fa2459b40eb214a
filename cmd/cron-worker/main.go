package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderdesk/internal/audit"
	"github.com/angelmondragon/orderdesk/internal/cron"
	"github.com/angelmondragon/orderdesk/internal/games"
	"github.com/angelmondragon/orderdesk/internal/notifications"
	"github.com/angelmondragon/orderdesk/internal/orders"
	"github.com/angelmondragon/orderdesk/internal/users"
	"github.com/angelmondragon/orderdesk/pkg/config"
	"github.com/angelmondragon/orderdesk/pkg/db"
	"github.com/angelmondragon/orderdesk/pkg/instance"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/metrics"
	"github.com/angelmondragon/orderdesk/pkg/migrate"
	"github.com/angelmondragon/orderdesk/pkg/pubsub"
	"github.com/angelmondragon/orderdesk/pkg/redis"
)

const sweepLockName = "cron-worker:%s"

func main() {
	once := flag.Bool("once", false, "run a single sweep cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg, *once); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger, once bool) error {
	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRun(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run migrations", err)
		return err
	}

	if !cfg.Redis.Enabled() {
		return errors.New("redis is required for the sweep lock")
	}
	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	recorder, err := audit.NewRecorder(audit.RecorderParams{
		Store:     audit.NewRepository(dbClient.DB()),
		Logger:    logg,
		Metrics:   orderMetrics,
		QueueSize: cfg.Audit.QueueSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := recorder.Close(ctx); err != nil {
			logg.Error(ctx, "audit queue not drained", err)
		}
	}()

	notifier, closeNotifier, err := buildNotifier(cfg, logg, orderMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		return err
	}
	defer closeNotifier()

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(dbClient.DB()),
		Users:     users.NewRepository(dbClient.DB()),
		Games:     games.NewRepository(dbClient.DB()),
		Audit:     recorder,
		Metrics:   orderMetrics,
		Logger:    logg,
		GiftTimer: cfg.Orders.GiftTimerDuration,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		return err
	}

	giftTimerJob, err := cron.NewGiftTimerJob(cron.GiftTimerJobParams{
		Logger:    logg,
		Orders:    orderService,
		Notifier:  notifier,
		Metrics:   cronMetrics,
		BatchSize: cfg.Sweeper.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create gift timer job", err)
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(fmt.Sprintf(sweepLockName, envOrLocal(cfg.App.Env))), cfg.Sweeper.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:       logg,
		Registry:     cron.NewRegistry(giftTimerJob),
		Lock:         lock,
		Metrics:      cronMetrics,
		Interval:     cfg.Sweeper.Interval,
		CycleTimeout: cycleTimeout(cfg.Sweeper),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Sweeper.Interval.String(),
		"instance":    instance.ID(),
	})

	if once {
		logg.Info(ctx, "running a single sweep cycle")
		return service.RunOnce(ctx)
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

// buildNotifier publishes to Pub/Sub when a topic is configured and falls back to the log.
func buildNotifier(cfg *config.Config, logg *logger.Logger, counter *metrics.OrderMetrics) (notifications.Dispatcher, func(), error) {
	if !cfg.NotificationsEnabled() {
		logg.Info(context.Background(), "pubsub not configured; notifications go to the log")
		return notifications.NewLogDispatcher(logg), func() {}, nil
	}

	client, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, err
	}
	publisher := client.NotificationPublisher()
	dispatcher, err := notifications.NewPubSubDispatcher(notifications.PubSubDispatcherParams{
		Publisher: publisher,
		Logger:    logg,
		Metrics:   counter,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return dispatcher, func() {
		publisher.Stop()
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}, nil
}

// cycleTimeout keeps a cycle inside the lock lease.
func cycleTimeout(cfg config.SweeperConfig) time.Duration {
	if cfg.LockTTL <= 0 {
		return 0
	}
	return cfg.LockTTL * 9 / 10
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
