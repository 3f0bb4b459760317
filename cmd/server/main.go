// Command server runs the nourish backend: a per-user document store,
// pantry and conversation repositories, a completion-backed chat pipeline,
// an expiry-notification worker, and the versioned HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/nourishd/go-nourish-backend/internal/completion"
	"github.com/nourishd/go-nourish-backend/internal/config"
	httpapi "github.com/nourishd/go-nourish-backend/internal/http"
	"github.com/nourishd/go-nourish-backend/internal/jobs"
	"github.com/nourishd/go-nourish-backend/internal/observability"
	"github.com/nourishd/go-nourish-backend/internal/repo"
	"github.com/nourishd/go-nourish-backend/internal/store"
	"github.com/nourishd/go-nourish-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op unless OTEL_ENABLED)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Document tree over SQLite, plus the relational idempotency table.
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	st, err := store.New(db)
	if err != nil {
		log.Fatal().Err(err).Msg("store migration failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("idempotency migration failed")
	}

	// Shared vocabularies live at the tree root; seed once, never overwrite.
	profiles := repo.NewProfileRepo(st)
	if err := profiles.SeedOptions(ctx, repo.DefaultOptions()); err != nil {
		log.Fatal().Err(err).Msg("seed application options failed")
	}

	comp := completion.NewClient(
		cfg.Completion.BaseURL,
		cfg.Completion.APIKey,
		cfg.Completion.Model,
		cfg.Completion.Timeout,
	)

	// Background expiry notifications.
	worker := jobs.NewExpiryWorker(
		st,
		repo.NewInventoryRepo(st),
		repo.NewNotificationRepo(st),
		cfg.Expiry.Window,
		cfg.Expiry.Interval,
	)
	worker.Start()
	defer worker.Stop()

	engine := gin.New()
	httpapi.RegisterRoutes(engine, st, db, comp, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
