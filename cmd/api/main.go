package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/QSchlegel/OrchWiz-sub000/internal/app/migrate"
	"github.com/QSchlegel/OrchWiz-sub000/internal/catalog"
	httpx "github.com/QSchlegel/OrchWiz-sub000/internal/http"
	"github.com/QSchlegel/OrchWiz-sub000/internal/repository/postgres"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/auth"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/billing"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/crew"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/events"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/secrets"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/sessions"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/ship"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/transfer"
	"github.com/QSchlegel/OrchWiz-sub000/internal/ws"
	"github.com/QSchlegel/OrchWiz-sub000/pkg/config"
	"github.com/QSchlegel/OrchWiz-sub000/pkg/logger"
)

func main() {
	cfg := config.LoadShipyardConfig()
	log := logger.New("api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Error("failed to load app catalog", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := ws.NewHub(cfg.EventBuffer)

	authSvc := auth.New(repo, log, cfg)
	eventSvc := events.New(repo, hub, log)
	billingSvc := billing.New(repo, log, cfg)
	crewSvc := crew.New(repo, repo, log)
	secretSvc := secrets.New(repo, log, cfg)
	shipSvc := ship.New(repo, repo, crewSvc, billingSvc, eventSvc, secretSvc, cat, log, cfg)
	transferSvc := transfer.New(repo, repo, eventSvc, log)
	sessionSvc := sessions.New(repo, repo, eventSvc, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(httpx.Deps{
		Logger:           log,
		Auth:             authSvc,
		Ship:             shipSvc,
		Crew:             crewSvc,
		Secrets:          secretSvc,
		Billing:          billingSvc,
		Transfer:         transferSvc,
		Sessions:         sessionSvc,
		Events:           eventSvc,
		Catalog:          cat,
		Limiter:          limiter,
		ProvisionerToken: cfg.ProvisionerToken,
		DBHealth:         pool.Ping,
		SSEHeartbeat:     cfg.SSEHeartbeatEvery,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("shipyard api starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("shipyard api stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
