package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/orderdesk/internal/users"
	"github.com/angelmondragon/orderdesk/pkg/config"
	"github.com/angelmondragon/orderdesk/pkg/db"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/migrate"
	"github.com/angelmondragon/orderdesk/pkg/security"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "seed-admin"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "seed-admin",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	requireResource(ctx, logg, "migrations", migrate.MaybeRun(ctx, cfg, logg, dbClient))

	res, err := users.EnsureAdmin(ctx, users.NewRepository(dbClient.DB()), security.NewHasher(cfg.Password), users.AdminSeed{
		Username: cfg.Bootstrap.AdminUsername,
		Password: cfg.Bootstrap.AdminPassword,
		Nickname: cfg.Bootstrap.AdminNickname,
	}, db.UTCNow())
	requireResource(ctx, logg, "admin account", err)

	ctx = logg.WithFields(ctx, map[string]any{
		"username": res.User.Username,
		"user_id":  res.User.ID.String(),
		"role":     string(res.User.Role),
	})
	if !res.Created {
		logg.Info(ctx, "admin account already exists; nothing to do")
		return
	}
	logg.Info(ctx, "admin account created")
	if res.GeneratedPassword != "" {
		fmt.Printf("generated password for %s: %s\n", res.User.Username, res.GeneratedPassword)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
