// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/timmypass17/wordjamboree/internal/auth"
	"github.com/timmypass17/wordjamboree/internal/cache"
	"github.com/timmypass17/wordjamboree/internal/config"
	"github.com/timmypass17/wordjamboree/internal/dictionary"
	"github.com/timmypass17/wordjamboree/internal/game"
	"github.com/timmypass17/wordjamboree/internal/handlers"
	"github.com/timmypass17/wordjamboree/internal/store"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	var rdb *redis.Client
	if cfg.Store == "redis" || cfg.Historian.ActionLog {
		var err error
		rdb, err = cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		logger.Infof("connected to Redis at %s", cfg.Redis.Addr)
	}

	var st store.Store
	switch cfg.Store {
	case "redis":
		rs := store.NewRedisStore(rdb, logger)
		rs.MaxRetries = cfg.Rules.MaxRetries
		st = rs
	default:
		ms := store.NewMemoryStore(logger)
		ms.MaxRetries = cfg.Rules.MaxRetries
		st = ms
	}

	dict, err := dictionary.Open(cfg.Dictionary.Path, cfg.Dictionary.CacheSize, logger)
	if err != nil {
		return err
	}
	defer dict.Close()
	if cfg.Dictionary.ImportFile != "" {
		if _, err := dict.ImportFile(ctx, cfg.Dictionary.ImportFile); err != nil {
			return err
		}
	}
	if n, err := dict.Count(); err == nil && n == 0 {
		logger.Warnf("dictionary %s is empty, every word will be rejected", cfg.Dictionary.Path)
	}

	issuer, err := auth.NewIssuer(cfg.TokenExpire)
	if err != nil {
		return err
	}

	orch := game.NewOrchestrator(cfg.Rules.Game(), dict, nil)
	gs := handlers.NewGameServer(st, orch, issuer, logger)
	if cfg.Historian.ActionLog {
		gs.Actions = cache.NewActionQueue(rdb, cfg.Historian.Queue)
		logger.Infof("publishing actions to %s", cfg.Historian.Queue)
	}

	g, gctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gs.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// Websocket sessions outlive Shutdown, so they end with gctx.
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		logger.Infof("Running on %s (store: %s)", srv.Addr, cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
