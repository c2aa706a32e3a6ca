package main

import (
	"context"
	"log"

	"little_lemon/internal/config"
	"little_lemon/internal/database"
	"little_lemon/internal/logger"
	"little_lemon/internal/migrations"
	"little_lemon/internal/repository"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zlog.Sync()

	ctx := context.Background()
	db, err := database.Initialize(cfg.DatabaseURL, cfg.DBLogLevel, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}

	admin := migrations.Admin{Username: cfg.AdminUsername, Email: cfg.AdminEmail, Password: cfg.AdminPassword}
	if err := migrations.RunMigrations(ctx, db, admin, zlog); err != nil {
		zlog.Fatal("failed to run migrations", zap.Error(err))
	}

	if err := migrations.SeedMenu(ctx, repository.NewCategoryRepository(db), repository.NewMenuItemRepository(db), zlog); err != nil {
		zlog.Fatal("failed to seed menu", zap.Error(err))
	}

	zlog.Info("database initialization completed", zap.String("admin", cfg.AdminUsername))
}
