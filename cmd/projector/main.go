package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-settlement/internal/config"
	kafkax "github.com/ariefcatur/go-order-settlement/internal/kafka"
	"github.com/ariefcatur/go-order-settlement/internal/logging"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/ariefcatur/go-order-settlement/internal/projector"
	"github.com/ariefcatur/go-order-settlement/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Error("redis ping", zap.Error(err))
		os.Exit(1)
	}

	svc := &projector.Service{
		Cache:  &redisx.StatusCache{RDB: rdb, Logger: log.Named("status_cache")},
		Redis:  rdb,
		Name:   cfg.ProjectorGroup,
		Logger: log.Named("projector"),
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, orders.LifecycleTopics, cfg.ProjectorWorkers, log.Named("consumer"))
	log.Info("projector consumer started",
		zap.String("group", cfg.ProjectorGroup),
		zap.Strings("topics", orders.LifecycleTopics),
		zap.Int("workers", cfg.ProjectorWorkers),
	)
	if err := cons.Start(ctx, svc.HandleLifecycleEvent); err != nil {
		log.Error("consumer exit", zap.Error(err))
		os.Exit(1)
	}
	log.Info("projector stopped")
}
