package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrbuddhu/Speechix/internal/config"
	"github.com/mrbuddhu/Speechix/internal/logger"
	"github.com/mrbuddhu/Speechix/internal/pgmq"
	"github.com/mrbuddhu/Speechix/internal/repository"
	"github.com/mrbuddhu/Speechix/internal/service"
	"github.com/mrbuddhu/Speechix/internal/storage"
	"github.com/mrbuddhu/Speechix/internal/synthesis"
	"github.com/mrbuddhu/Speechix/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DBConnectionString)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB pool: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	store, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		logger.Fatal().Msgf("Failed to initialize content store: %v", err)
	}

	engine := synthesis.NewHTTPEngine(cfg.EngineBaseURL, logger)
	pgmqClient := pgmq.New(pool)

	jobRepo := repository.NewJobRepo(pool)
	subRepo := repository.NewSubscriptionRepo(pool)
	refAudioRepo := repository.NewReferenceAudioRepo(pool)

	// The worker only consumes; submission-side dispatch happens in the API
	// process, so no publisher is wired here.
	ttsSvc := service.NewTTSService(
		jobRepo, subRepo, refAudioRepo,
		store, engine, nil, "",
		time.Duration(cfg.EngineTimeoutSec)*time.Second,
		time.Duration(cfg.SignedURLExpirySec)*time.Second,
		cfg.MaxTextLength,
		logger,
	)

	if err := worker.Run(ctx, cfg, logger, pgmqClient, ttsSvc); err != nil {
		logger.Fatal().Msgf("Synthesis worker failed: %v", err)
	}
	logger.Info().Msg("Synthesis worker stopped gracefully")
}
