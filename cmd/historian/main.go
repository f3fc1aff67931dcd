// cmd/historian/main.go pops game actions from the Redis queue and persists
// them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/timmypass17/wordjamboree/internal/cache"
	"github.com/timmypass17/wordjamboree/internal/config"
	"github.com/timmypass17/wordjamboree/internal/database"
	"github.com/timmypass17/wordjamboree/internal/historian"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		logger.Fatal(err)
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal(err)
	}

	svc := historian.New(rdb, database.NewGameStore(pool), historian.Options{
		Queue:      cfg.Historian.Queue,
		BatchSize:  cfg.Historian.BatchSize,
		FlushDelay: cfg.Historian.FlushDelay,
		Inactivity: cfg.Historian.Inactivity,
	}, logger)
	if err := svc.Run(ctx); err != nil {
		logger.Fatalf("historian exited: %v", err)
	}
	logger.Info("historian shutdown complete")
}
