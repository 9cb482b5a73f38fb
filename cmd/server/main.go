package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sprinklerprep/internal/config"
	"sprinklerprep/internal/events"
	"sprinklerprep/internal/exam"
	"sprinklerprep/internal/handlers"
	"sprinklerprep/internal/jobs"
	"sprinklerprep/internal/loader"
	"sprinklerprep/internal/metrics"
	"sprinklerprep/internal/modes"
	"sprinklerprep/internal/progress"
	"sprinklerprep/internal/repositories"
	"sprinklerprep/internal/routers"
	"sprinklerprep/internal/statestore"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type app struct {
	questionHandler *handlers.QuestionHandler
	examHandler     *handlers.ExamHandler
	modeHandler     *handlers.ModeHandler
	progressHandler *handlers.ProgressHandler
	healthHandler   *handlers.HealthHandler
}

func registerRoutes(router *chi.Mux, a app, jwtSecret string) {
	routers.HealthRoutes(router, a.healthHandler, metrics.Handler())
	routers.QuestionRoutes(router, a.questionHandler)
	routers.ExamRoutes(router, a.examHandler, jwtSecret)
	routers.ModeRoutes(router, a.modeHandler, jwtSecret)
	routers.ProgressRoutes(router, a.progressHandler, jwtSecret)
}

func newRouter(cfg *config.Config, a app) *chi.Mux {
	router := chi.NewRouter()

	// cors middleware
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// per-route timeouts live in routers so the exam websocket can outlive them
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer, metrics.Middleware)

	registerRoutes(router, a, cfg.JWTSecret)
	return router
}

// questionSources builds the configured bank sources. The returned mongo
// client is nil unless MONGO_URI is set.
func questionSources(ctx context.Context, cfg *config.Config) ([]loader.Source, *mongo.Client, error) {
	var sources []loader.Source
	if cfg.QuestionsEmbedded {
		sources = append(sources, loader.NewEmbeddedSource())
	}
	if cfg.QuestionsDir != "" {
		if _, err := os.Stat(cfg.QuestionsDir); err == nil {
			sources = append(sources, loader.NewDirSource(cfg.QuestionsDir))
		}
	}
	if cfg.MongoURI == "" {
		return sources, nil, nil
	}
	client, err := loader.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	sources = append(sources, loader.NewMongoSource(client, cfg.QuestionsDBName, cfg.QuestionsCollection))
	return sources, client, nil
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// question bank
	sources, mongoClient, err := questionSources(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect to question store", zap.Error(err))
	}
	bankLoader := loader.New(logger, sources, loader.WithConcurrency(cfg.LoadConcurrency))
	questionRepo := repositories.NewQuestionRepository(logger)
	if err := questionRepo.Reload(ctx, bankLoader); err != nil {
		if !errors.Is(err, loader.ErrEmptyBank) {
			logger.Fatal("Failed to load question bank", zap.Error(err))
		}
		logger.Warn("Serving without questions until the next reload", zap.Error(err))
	}

	// progress database
	db, err := progress.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	progressService := progress.NewService(db, logger)

	checks := map[string]handlers.Check{"database": progressService.Ping}
	checks["questions"] = func(context.Context) error {
		if len(questionRepo.Questions()) == 0 {
			return repositories.ErrBankNotLoaded
		}
		return nil
	}

	// exam state and completion fan-out
	var (
		stateStore exam.StateStore = statestore.NewMemoryStore()
		recorder   exam.Recorder   = progressService
		rdb        *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		redisStore := statestore.NewRedisStore(rdb, cfg.ExamStateTTL)
		stateStore = redisStore
		checks["redis"] = redisStore.Ping

		publisher := events.NewPublisher(rdb)
		recorder = publisher
		hostname, _ := os.Hostname()
		subscriber := events.NewSubscriber(rdb, progressService, logger).WithConsumer(hostname)
		go func() {
			if err := subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Completion subscriber stopped", zap.Error(err))
			}
		}()
		logger.Info("Redis enabled for exam state and completion events", zap.String("addr", cfg.RedisAddr))
	}

	examConfig := exam.Config{
		Duration:     cfg.ExamDuration,
		MaxQuestions: cfg.ExamMaxQuestions,
		TickInterval: cfg.ExamTick,
	}
	registry := exam.NewRegistry(ctx, func(owner string) *exam.Session {
		return exam.NewSession(owner, questionRepo.Questions, stateStore, recorder, logger, exam.WithConfig(examConfig))
	})

	games := modes.NewManager(questionRepo.Questions, progressService, progressService, logger)

	// background jobs
	reloadJob := jobs.NewBankReloadJob(questionRepo, bankLoader, cfg.BankReloadSchedule, logger)
	if err := reloadJob.Start(); err != nil {
		logger.Error("Failed to start bank reload job", zap.Error(err))
	}
	gameSweepJob := jobs.NewSweepJob("games", games, cfg.GameMaxIdle, cfg.SweepSchedule, logger)
	if err := gameSweepJob.Start(); err != nil {
		logger.Error("Failed to start game sweep job", zap.Error(err))
	}
	examSweepJob := jobs.NewSweepJob("exams", registry, cfg.ExamRetention, cfg.SweepSchedule, logger)
	if err := examSweepJob.Start(); err != nil {
		logger.Error("Failed to start exam sweep job", zap.Error(err))
	}

	router := newRouter(cfg, app{
		questionHandler: handlers.NewQuestionHandler(questionRepo),
		examHandler:     handlers.NewExamHandler(registry, logger),
		modeHandler:     handlers.NewModeHandler(games),
		progressHandler: handlers.NewProgressHandler(progressService, logger),
		healthHandler:   handlers.NewHealthHandler(checks),
	})

	serverAddr := ":" + cfg.Port

	// http server with timeouts
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// starting server in a goroutine
	go func() {
		logger.Info("Sprinklerprep starting",
			zap.String("addr", serverAddr),
			zap.Int("questions", len(questionRepo.Questions())))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shutdown the server
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Sprinklerprep shutting down...")

	reloadJob.Stop()
	gameSweepJob.Stop()
	examSweepJob.Stop()

	// graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// countdowns and the subscriber stop with ctx
	cancel()
	registry.Wait()

	if rdb != nil {
		_ = rdb.Close()
	}
	if mongoClient != nil {
		_ = mongoClient.Disconnect(shutdownCtx)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("Sprinklerprep exited")
}
