package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ar210505/rubric-coder-intel/internal/config"
	"github.com/ar210505/rubric-coder-intel/internal/database"
	"github.com/ar210505/rubric-coder-intel/internal/extract"
	"github.com/ar210505/rubric-coder-intel/internal/handler"
	"github.com/ar210505/rubric-coder-intel/internal/middleware"
	"github.com/ar210505/rubric-coder-intel/internal/repository"
	"github.com/ar210505/rubric-coder-intel/internal/router"
	"github.com/ar210505/rubric-coder-intel/internal/service"
	"github.com/ar210505/rubric-coder-intel/internal/worker"
	cloud "github.com/ar210505/rubric-coder-intel/pkg/cloudinary"
	"github.com/ar210505/rubric-coder-intel/pkg/objectstore"
	"github.com/ar210505/rubric-coder-intel/pkg/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured; stats cache and distributed locks disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newObjectStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to create object store: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	extractor := extract.NewRegistry()
	scorer := scoring.NewEngine(scoring.Options{Mode: scoring.ParseMode(cfg.ScoringMode)})

	rubricRepo := repository.NewRubricRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)

	statsService := service.NewStatsService(evaluationRepo, redisClient, cfg.StatsCacheTTL, logger)
	rubricService := service.NewRubricService(rubricRepo, validate, logger)
	seedService := service.NewSeedService(rubricRepo, logger)

	evaluationDeps := service.EvaluationDeps{
		Submissions: submissionRepo,
		Evaluations: evaluationRepo,
		Rubrics:     rubricRepo,
		Store:       store,
		Extractor:   extractor,
		Scorer:      scorer,
		Stats:       statsService,
		Validator:   validate,
	}
	if redisClient != nil {
		evaluationDeps.Locker = service.NewRedisLocker(redisClient)
	}
	if redisClient != nil || natsConn != nil {
		evaluationDeps.Events = service.NewEventPublisher(redisClient, natsConn, cfg.NATSSubject)
	}
	evaluationService := service.NewEvaluationService(evaluationDeps, service.EvaluationConfig{
		LockTTL:    cfg.EvaluationLockTTL,
		RunTimeout: cfg.EvaluationTimeout,
	}, logger)

	pool := worker.NewPool(cfg.EvaluationWorkers, cfg.EvaluationTimeout, evaluationService.Process, logger)
	pool.Start(ctx)

	var dispatcher worker.Dispatcher = worker.NewLocalDispatcher(pool)
	if natsConn != nil {
		natsDispatcher := worker.NewNATSDispatcher(natsConn, cfg.NATSSubject, pool, logger)
		natsDispatcher.OnReject(func(ctx context.Context, job worker.Job, err error) {
			_ = service.MarkUnscheduled(ctx, submissionRepo, logger, job, err)
		})
		if err := natsDispatcher.Consume(ctx); err != nil {
			log.Fatalf("failed to subscribe to evaluation jobs: %v", err)
		}
		dispatcher = natsDispatcher
	}

	submissionService := service.NewSubmissionService(service.SubmissionDeps{
		Submissions: submissionRepo,
		Rubrics:     rubricRepo,
		Store:       store,
		Extractor:   extractor,
		Dispatcher:  dispatcher,
		Stats:       statsService,
		Validator:   validate,
	}, cfg.UploadMaxSizeMB, logger)

	rubricHandler := handler.NewRubricHandler(rubricService, seedService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	evaluationHandler := handler.NewEvaluationHandler(evaluationService, statsService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RubricHandler:     rubricHandler,
		SubmissionHandler: submissionHandler,
		EvaluationHandler: evaluationHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		WorkerStats:       pool.Stats,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, pool, cancel)
}

func newObjectStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (objectstore.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverCloudinary:
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	case config.StorageDriverMemory:
		logger.Warn().Msg("using in-memory object store; documents are lost on restart")
		return objectstore.NewMemory(), nil
	default:
		return objectstore.NewMinIO(ctx, objectstore.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.StorageBucket,
			Region:    cfg.MinIORegion,
			UseSSL:    cfg.MinIOUseSSL,
		}, logger)
	}
}

func waitForShutdown(app *fiber.App, pool *worker.Pool, cancel context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	cancel()
	pool.Stop()

	log.Println("server stopped")
}
