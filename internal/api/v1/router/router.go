package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mrbuddhu/Speechix/internal/api/v1/handler"
	"github.com/mrbuddhu/Speechix/internal/config"
	"github.com/mrbuddhu/Speechix/internal/middleware"
	"github.com/mrbuddhu/Speechix/internal/pgmq"
	"github.com/mrbuddhu/Speechix/internal/pubsub"
	"github.com/mrbuddhu/Speechix/internal/repository"
	"github.com/mrbuddhu/Speechix/internal/service"
	"github.com/mrbuddhu/Speechix/internal/storage"
	"github.com/mrbuddhu/Speechix/internal/synthesis"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the full API: database pool, content store, synthesis engine,
// dispatcher, repositories, services, and handlers.
func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initializing")

	pool, err := openPool(context.Background(), cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open DB pool")
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	store, err := storage.NewS3Store(context.Background(), cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize content store")
		return nil, nil, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	engine := synthesis.NewHTTPEngine(cfg.EngineBaseURL, logger)

	// Dispatch backend: Pub/Sub in production, pgmq for local/dev. Both feed
	// the same orchestrator; only the transport differs.
	var publisher pubsub.Publisher
	var topic string
	switch cfg.DispatchMode {
	case "pubsub":
		pub, err := pubsub.NewPublisher(context.Background(), cfg.GCPProjectID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Pub/Sub publisher")
			return nil, nil, err
		}
		publisher = pub
		topic = cfg.SynthesisTopic
	default:
		publisher = pgmq.NewQueuePublisher(pgmq.New(pool))
		topic = cfg.SynthesisQueueName
	}
	logger.Info().Str("dispatch_mode", cfg.DispatchMode).Str("topic", topic).Msg("Job dispatcher ready")

	jobRepo := repository.NewJobRepo(pool)
	subRepo := repository.NewSubscriptionRepo(pool)
	refAudioRepo := repository.NewReferenceAudioRepo(pool)
	userRepo := repository.NewUserRepo(pool)

	ttsSvc := service.NewTTSService(
		jobRepo, subRepo, refAudioRepo,
		store, engine, publisher, topic,
		time.Duration(cfg.EngineTimeoutSec)*time.Second,
		time.Duration(cfg.SignedURLExpirySec)*time.Second,
		cfg.MaxTextLength,
		logger,
	)
	userSvc := service.NewUserService(userRepo, subRepo, logger)

	ttsHandler := handler.NewTTSHandler(ttsSvc, validate, int64(cfg.MaxUploadSizeBytes), logger)
	userHandler := handler.NewUserHandler(userSvc, validate, logger)
	jobsHandler := handler.NewJobsHandler(ttsSvc, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)
	isLocalDev := cfg.PubSubEmulatorHost != "" || cfg.DispatchMode != "pubsub"
	pubsubAuthMiddleware := middleware.PubSubAuthMiddleware(isLocalDev, cfg.ProcessEndpointURL, cfg.PubSubPushServiceAccountEmail, logger)

	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	ttsHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	jobsHandler.RegisterRoutes(apiV1Mux, pubsubAuthMiddleware)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), pool, nil
}

// openPool connects to Postgres with environment-appropriate DSN tweaks.
func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dsn := cfg.DBConnectionString
	// Local Postgres usually runs without SSL; production connection strings
	// carry their own sslmode.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = 25
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	// Transaction poolers like pgbouncer break server-side prepared statements.
	if cfg.Environment != "development" {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
