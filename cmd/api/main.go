package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/emilythestrangee/campus-events/backend/internal/auth"
	"github.com/emilythestrangee/campus-events/backend/internal/config"
	"github.com/emilythestrangee/campus-events/backend/internal/database"
	"github.com/emilythestrangee/campus-events/backend/internal/handlers"
	"github.com/emilythestrangee/campus-events/backend/internal/logging"
	"github.com/emilythestrangee/campus-events/backend/internal/notify"
	"github.com/emilythestrangee/campus-events/backend/internal/ratelimit"
	"github.com/emilythestrangee/campus-events/backend/internal/server"
	"github.com/emilythestrangee/campus-events/backend/internal/storage"
	"github.com/emilythestrangee/campus-events/backend/internal/votes"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logging.Configure(cfg.LogLevel, cfg.LogFile, !cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.DB, !cfg.IsProduction())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	voteLimiter := newVoteLimiter(ctx, cfg)

	images, err := storage.NewLocalImageStore(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	var sms notify.SMSSender
	if cfg.Twilio.Enabled() {
		sms = notify.NewBreakerSender(notify.NewTwilioSender(cfg.Twilio))
		log.Info().Msg("SMS notifications enabled")
	}
	dispatcher := notify.NewDispatcher(db.GetDB(), sms)

	hub := notify.NewHub()
	go func() {
		if err := hub.Listen(ctx, cfg.DB.DSN()); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("notification listener stopped")
		}
	}()

	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	reconciler := votes.NewReconciler(
		votes.NewGormStore(db.GetDB()),
		votes.WithSelfHeal(cfg.VoteSelfHeal),
	)

	h := handlers.NewHandler(handlers.Deps{
		DB:             db.GetDB(),
		Tokens:         tokens,
		Reconciler:     reconciler,
		Images:         images,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Notifier:       dispatcher,
		Hub:            hub,
	})

	srv := server.New(cfg, db, h, tokens, voteLimiter).HTTPServer()

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pending notifications dropped")
	}
	if closer, ok := voteLimiter.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close rate limiter")
		}
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}
}

// newVoteLimiter shares vote budgets through Redis when REDIS_URL is set and
// falls back to a per-process limiter otherwise.
func newVoteLimiter(ctx context.Context, cfg *config.Config) ratelimit.Limiter {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryLimiter(cfg.VoteRateLimit)
	}

	rdb, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using in-process vote limiter")
		return ratelimit.NewMemoryLimiter(cfg.VoteRateLimit)
	}
	return ratelimit.NewRedisLimiter(rdb, cfg.VoteRateLimit)
}
