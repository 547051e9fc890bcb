package main

import (
	"alcyxob/navistream/internal/config"
	"alcyxob/navistream/internal/derivative"
	"alcyxob/navistream/internal/logging"
	"alcyxob/navistream/internal/storage"
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		fallback := logging.New(config.LogConfig{Level: "info"})
		fallback.Fatal().Err(err).Msg("could not load config")
	}
	logger := logging.New(cfg.Log)

	if cfg.Derivatives.QueueURL == "" {
		logger.Fatal().Msg("derivatives.queue_url (DERIVATIVES_QUEUE_URL) must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancelStart := context.WithTimeout(ctx, 30*time.Second)
	defer cancelStart()

	fileStorage, err := storage.New(startCtx, cfg.Storage, cfg.S3, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize file storage")
	}
	queue, err := derivative.NewSQSClient(startCtx, cfg.Derivatives.Region)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize SQS client")
	}

	worker := derivative.NewWorker(queue, cfg.Derivatives.QueueURL, fileStorage, derivative.NewFFmpeg(),
		cfg.Derivatives.Concurrency, cfg.Derivatives.WorkDir, logger)

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
	logger.Info().Msg("worker exiting")
}
