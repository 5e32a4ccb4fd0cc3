package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apexam/assess-backend/internal/cache"
	"github.com/apexam/assess-backend/internal/config"
	"github.com/apexam/assess-backend/internal/database"
	"github.com/apexam/assess-backend/internal/handler"
	"github.com/apexam/assess-backend/internal/logger"
	"github.com/apexam/assess-backend/internal/repository"
	"github.com/apexam/assess-backend/internal/router"
	"github.com/apexam/assess-backend/internal/service"
	"github.com/apexam/assess-backend/internal/validator"
	"github.com/apexam/assess-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("conflict_policy", string(cfg.ConflictPolicy)).
		Msg("Starting Assess Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	sessionRepo := repository.NewSessionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	sessionCache := cache.NewRedisSessionCache(rdb, log)
	clock := service.SystemClock{}

	sessionService := service.NewSessionService(sessionRepo, sessionCache, cfg, clock, log)
	resultService := service.NewResultService(resultRepo, sessionRepo, clock, log)
	launchService := service.NewLaunchService(cfg, clock)
	cleanupService := service.NewCleanupService(sessionRepo, sessionCache, cfg, clock, log)

	// ─── Cleanup Worker ───────────────────────────────────────────────
	// Owned here, controlled over the cleanup API. No global timer state.
	cleanupWorker := worker.NewCleanupWorker(cleanupService, cfg.CleanupInterval, nil, log)
	if cfg.CleanupAutostart {
		cleanupWorker.Start()
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService, launchService),
		Result:  handler.NewResultHandler(resultService),
		Cleanup: handler.NewCleanupHandler(cleanupService, cleanupWorker),
		Monitor: handler.NewMonitorHandler(rdb, cleanupService, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(launchService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the cleanup worker; an in-flight sweep completes first.
	cleanupWorker.Stop()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
