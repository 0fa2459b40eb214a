package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderdesk/api"
	"github.com/angelmondragon/orderdesk/api/routes"
	"github.com/angelmondragon/orderdesk/internal/actions"
	"github.com/angelmondragon/orderdesk/internal/audit"
	"github.com/angelmondragon/orderdesk/internal/auth"
	"github.com/angelmondragon/orderdesk/internal/games"
	"github.com/angelmondragon/orderdesk/internal/orders"
	"github.com/angelmondragon/orderdesk/internal/users"
	"github.com/angelmondragon/orderdesk/pkg/auth/session"
	"github.com/angelmondragon/orderdesk/pkg/config"
	"github.com/angelmondragon/orderdesk/pkg/db"
	"github.com/angelmondragon/orderdesk/pkg/instance"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/metrics"
	"github.com/angelmondragon/orderdesk/pkg/migrate"
	"github.com/angelmondragon/orderdesk/pkg/redis"
	"github.com/angelmondragon/orderdesk/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
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

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured; session cache and login rate limiting disabled")
	}

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

	hasher := security.NewHasher(cfg.Password)
	userRepo := users.NewRepository(dbClient.DB())
	gameRepo := games.NewRepository(dbClient.DB())

	authParams := auth.ServiceParams{
		UserRepo:          userRepo,
		Hasher:            hasher,
		SessionConfig:     cfg.Session,
		MinPasswordLength: cfg.Password.MinLength,
		Logger:            logg,
	}
	if redisClient != nil {
		cache, err := session.NewCache(redisClient)
		if err != nil {
			logg.Error(context.Background(), "failed to create session cache", err)
			return err
		}
		authParams.TokenCache = cache
	}
	authService, err := auth.NewService(authParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		return err
	}

	userService, err := users.NewService(users.ServiceParams{
		Repo:              userRepo,
		Games:             gameRepo,
		Hasher:            hasher,
		MinPasswordLength: cfg.Password.MinLength,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		return err
	}

	gameService, err := games.NewService(gameRepo, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create games service", err)
		return err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:            orders.NewRepository(dbClient.DB()),
		Users:           userRepo,
		Games:           gameRepo,
		Audit:           recorder,
		Metrics:         orderMetrics,
		Logger:          logg,
		GiftTimer:       cfg.Orders.GiftTimerDuration,
		DefaultPageSize: cfg.Orders.DefaultPageSize,
		MaxPageSize:     cfg.Orders.MaxPageSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		return err
	}

	accountRegistry, err := actions.NewAccountRegistry(actions.AccountDeps{
		Auth:  authService,
		Users: userService,
		Games: gameService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to register account actions", err)
		return err
	}
	orderRegistry, err := actions.NewOrderRegistry(orderService)
	if err != nil {
		logg.Error(context.Background(), "failed to register order actions", err)
		return err
	}
	accountDispatcher, err := actions.NewDispatcher(accountRegistry, authService, logg)
	if err != nil {
		return err
	}
	orderDispatcher, err := actions.NewDispatcher(orderRegistry, authService, logg)
	if err != nil {
		return err
	}

	handler := routes.NewRouter(routes.Params{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		Account:  accountDispatcher,
		Orders:   orderDispatcher,
		Gatherer: prometheus.DefaultGatherer,
	})

	port := os.Getenv("PORT")
	if port != "" {
		cfg.App.Port = port
	}
	server := api.NewServer(cfg, handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        server.Addr,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	if err := api.Serve(ctx, server, cfg.App.ShutdownTimeout, logg); err != nil {
		return err
	}
	logg.Info(ctx, "api server stopped")
	return nil
}
