package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"markr/internal/attendance"
	"markr/internal/config"
	"markr/internal/faceclient"
	"markr/internal/logger"
	"markr/internal/metrics"
	"markr/internal/queue"
	"markr/internal/store"
)

// Worker consumes absence notification jobs and relays them to the
// attendance backend's SMS endpoint.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		log.Fatal("worker needs QUEUE_BACKEND=redis; the memory queue is drained inside the api process")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()
	if !redisClient.Healthy(ctx) {
		log.Warn("redis not reachable yet; consumer will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	backend := faceclient.New(cfg.BackendURL, cfg.BackendToken, cfg.BackendTimeout, cfg.BackendSkip)
	if !cfg.BackendSkip {
		if err := backend.Health(ctx); err != nil {
			log.Warn("attendance backend not available", zap.Error(err))
		} else {
			log.Info("attendance backend connected")
		}
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	notifier := attendance.NewNotifier(backend, log, metrics.New())

	log.Info("worker started", zap.String("queue", cfg.QueueKey))
	if err := notifier.Run(ctx, q); err != nil {
		log.Fatal("queue consume failed", zap.Error(err))
	}
	log.Info("worker stopped")
}
