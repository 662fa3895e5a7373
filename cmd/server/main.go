package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/psw-tryout/tryout-backend/internal/config"
	"github.com/psw-tryout/tryout-backend/internal/database"
	"github.com/psw-tryout/tryout-backend/internal/handler"
	"github.com/psw-tryout/tryout-backend/internal/logger"
	"github.com/psw-tryout/tryout-backend/internal/mailer"
	"github.com/psw-tryout/tryout-backend/internal/repository"
	"github.com/psw-tryout/tryout-backend/internal/router"
	"github.com/psw-tryout/tryout-backend/internal/service"
	"github.com/psw-tryout/tryout-backend/internal/validator"
	"github.com/psw-tryout/tryout-backend/internal/worker"
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
		Str("log_level", cfg.LogLevel).
		Msg("Starting Tryout Backend")

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
	participantRepo := repository.NewParticipantRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	tryoutRepo := repository.NewTryoutRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	participantService := service.NewParticipantService(participantRepo, authService, rdb, cfg, log)
	adminService := service.NewAdminService(adminRepo)
	tryoutService := service.NewTryoutService(tryoutRepo, questionRepo, attemptRepo, rdb, log)
	attemptService := service.NewAttemptService(attemptRepo, tryoutRepo, questionRepo, tryoutService, log)
	dashboardService := service.NewDashboardService(dashboardRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:            handler.NewAuthHandler(authService, participantService, adminService),
		Portal:          handler.NewPortalHandler(tryoutService, attemptService, participantService, rdb, log),
		ParticipantMgmt: handler.NewParticipantMgmtHandler(participantService, authService, log),
		TryoutAdmin:     handler.NewTryoutAdminHandler(tryoutService, log),
		Dashboard:       handler.NewDashboardHandler(dashboardService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	tamperWorker := worker.NewTamperWorker(pool, rdb, log)
	mailWorker := worker.NewMailWorker(mailer.New(cfg), rdb, log)

	go tamperWorker.Start(workerCtx)
	go mailWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published tryouts into Redis BEFORE accepting traffic.
	if err := tryoutService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

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

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
