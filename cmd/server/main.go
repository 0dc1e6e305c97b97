package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/VipuDevAI/exam-engine/internal/cache"
	"github.com/VipuDevAI/exam-engine/internal/config"
	"github.com/VipuDevAI/exam-engine/internal/handlers"
	"github.com/VipuDevAI/exam-engine/internal/repositories"
	"github.com/VipuDevAI/exam-engine/internal/repositories/memory"
	postgresrepo "github.com/VipuDevAI/exam-engine/internal/repositories/postgres"
	"github.com/VipuDevAI/exam-engine/internal/services"
	"github.com/VipuDevAI/exam-engine/internal/utils"
	"github.com/VipuDevAI/exam-engine/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	repo, flags, locks, cleanup, err := buildInfrastructure(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	publisher, err := cfg.Events.CreateEventPublisher(utils.ToSlogLogger(logger))
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	attemptService := services.NewAttemptService(repo, flags, locks, publisher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reaper := services.NewReaper(repo.Attempt(), attemptService, cfg.ReaperInterval, cfg.ReaperGrace, logger)
	go reaper.Start(ctx)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	handlerManager := handlers.NewHandlerManager(attemptService, utils.NewValidator(), logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting exam engine", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}

// buildInfrastructure selects the storage driver and the matching flag and
// lock implementations. Redis is only dialed for the postgres deployment; the
// memory driver runs self-contained for local development.
func buildInfrastructure(cfg *config.Config, logger utils.Logger) (repositories.Repository, cache.FeatureFlags, cache.Locker, func(), error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("Using in-memory store; data will not survive a restart")
		return memory.NewStore(), cache.StaticFlags{Enabled: cfg.ExamEnabledDefault}, cache.NewKeyedLock(), func() {}, nil
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := postgresrepo.AutoMigrate(db); err != nil {
		return nil, nil, nil, nil, err
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to static flags and local locks", "error", err)
		return postgresrepo.NewRepository(db), cache.StaticFlags{Enabled: cfg.ExamEnabledDefault}, cache.NewKeyedLock(), func() {}, nil
	}

	cleanup := func() { _ = redisClient.Close() }
	flags := cache.NewRedisFlags(redisClient, cfg.ExamEnabledDefault)
	locks := cache.NewRedisLock(redisClient, 30*time.Second)
	return postgresrepo.NewRepository(db), flags, locks, cleanup, nil
}
