package main

import (
	"alcyxob/navistream/internal/api"
	"alcyxob/navistream/internal/config"
	"alcyxob/navistream/internal/derivative"
	"alcyxob/navistream/internal/logging"
	"alcyxob/navistream/internal/media"
	"alcyxob/navistream/internal/pipeline"
	"alcyxob/navistream/internal/repository"
	"alcyxob/navistream/internal/repository/memory"
	"alcyxob/navistream/internal/repository/mongo"
	"alcyxob/navistream/internal/service"
	"alcyxob/navistream/internal/storage"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fallback := logging.New(config.LogConfig{Level: "info"})
		fallback.Fatal().Err(err).Msg("could not load config")
	}
	logger := logging.New(cfg.Log)
	logger.Info().Str("database", cfg.Database.Driver).Str("storage", cfg.Storage.Driver).Msg("starting navistream server")

	if cfg.JWT.Secret == "" {
		logger.Fatal().Msg("jwt.secret (JWT_SECRET) must be set")
	}

	// --- Metadata store ---
	var (
		userRepo     repository.UserRepository
		videoRepo    repository.VideoRepository
		playlistRepo repository.PlaylistRepository
	)
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn().Msg("using in-memory metadata store; records are lost on restart")
		userRepo = memory.NewUserRepository()
		videoRepo = memory.NewVideoRepository()
		playlistRepo = memory.NewPlaylistRepository()
	default:
		dbClient, err := mongo.ConnectDB(cfg.Database.URI)
		if err != nil {
			logger.Fatal().Err(err).Msg("could not connect to MongoDB")
		}
		defer func() {
			logger.Info().Msg("disconnecting MongoDB")
			if err := mongo.DisconnectDB(dbClient); err != nil {
				logger.Error().Err(err).Msg("failed to disconnect MongoDB")
			}
		}()
		appDB := dbClient.Database(cfg.Database.Name)
		logger.Info().Str("name", cfg.Database.Name).Msg("database connection established")

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
				logger.Error().Err(err).Msg("index creation failed")
				return
			}
			logger.Info().Msg("index creation completed")
		}()

		userRepo = mongo.NewMongoUserRepository(appDB)
		videoRepo = mongo.NewMongoVideoRepository(appDB)
		playlistRepo = mongo.NewMongoPlaylistRepository(appDB)
	}

	// --- Object storage ---
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()
	fileStorage, err := storage.New(startCtx, cfg.Storage, cfg.S3, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize file storage")
	}

	// --- Derivatives ---
	var requester derivative.Requester = derivative.NopRequester{}
	if cfg.Derivatives.QueueURL != "" {
		sqsClient, err := derivative.NewSQSClient(startCtx, cfg.Derivatives.Region)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize SQS client")
		}
		requester = derivative.NewSQSRequester(sqsClient, cfg.Derivatives.QueueURL)
	} else {
		logger.Warn().Msg("derivatives.queue_url not set; thumbnails and streams will not be generated")
	}
	urls := pipeline.NewURLBuilder(fileStorage, cfg.Derivatives.StreamWidth)

	// --- Metrics ---
	var (
		observer = pipeline.NopObserver()
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		promObserver, err := pipeline.NewPrometheusObserver("navistream", reg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to register metrics")
		}
		observer, gatherer = promObserver, reg
	}

	// --- Upload pipeline ---
	staging, err := pipeline.NewStagingStore(cfg.Upload.StagingDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize staging store")
	}
	uploader := pipeline.NewRemoteUploader(fileStorage, media.NewFFProbe(), urls, requester, pipeline.UploaderConfig{
		Folder:        cfg.Upload.Folder,
		MaxRetries:    cfg.Upload.MaxRetries,
		RetryInterval: cfg.Upload.RetryInterval,
	}, observer, logger)
	orchestrator := pipeline.NewOrchestrator(
		pipeline.NewAdmissionFilter(cfg.Upload.AllowedTypes, cfg.Upload.MaxBytes),
		staging,
		uploader,
		pipeline.NewMetadataRecorder(videoRepo),
		observer,
		logger,
	)
	// files left behind by a crashed process
	orchestrator.Cleanup().Sweep(cfg.Upload.StaleAfter)

	// --- Services ---
	authService, err := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize auth service")
	}
	videoService := service.NewVideoService(videoRepo, fileStorage, urls, logger)
	userService := service.NewUserService(userRepo, videoRepo, logger)
	playlistService := service.NewPlaylistService(playlistRepo, videoRepo)

	// --- Router ---
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	deps := api.Dependencies{
		AuthService:     authService,
		VideoService:    videoService,
		UserService:     userService,
		PlaylistService: playlistService,
		Ingester:        orchestrator,
		Logger:          logger,
		CORSOrigins:     cfg.Server.CORSOrigins,
		MetricsPath:     cfg.Metrics.Path,
		Gatherer:        gatherer,
		UploadTimeout:   cfg.Upload.Timeout,
	}
	if cfg.Storage.Driver == "local" {
		deps.MediaDir = cfg.Storage.LocalDir
	}
	router := api.NewRouter(deps)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("ListenAndServe error")
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	// in-flight derivative requests
	uploader.Wait()

	logger.Info().Msg("server exiting")
}
