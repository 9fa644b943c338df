package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"libras-central/internal/audit"
	"libras-central/internal/auth"
	"libras-central/internal/availability"
	"libras-central/internal/bridge"
	"libras-central/internal/config"
	"libras-central/internal/dispatch"
	"libras-central/internal/httpapi"
	"libras-central/internal/invite"
	"libras-central/internal/reporting"
	"libras-central/pkg/logger"
	"libras-central/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	rooms, err := bridge.NewHTTPProvider(cfg.Bridge)
	if err != nil {
		log.Error("bridge init failed", "err", err)
		os.Exit(1)
	}

	scheduleStore := availability.NewPostgresStore(db)
	gate := availability.NewGate(scheduleStore)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	callStore := dispatch.NewPostgresStore(db)
	invites := invite.NewRelay(cfg.SMTP, log)

	dispatchSvc := dispatch.NewService(callStore, gate, rooms, invites, auditSvc, rdb, cfg.Dispatch, log)

	h := &httpapi.Handlers{
		Dispatch:     dispatchSvc,
		Gate:         gate,
		Availability: scheduleStore,
		Reporting:    reporting.NewService(callStore),
		Audit:        auditSvc,
		Cfg:          cfg.Dispatch,
	}
	webhook := bridge.WebhookHandler{Dispatch: dispatchSvc, Secret: cfg.Bridge.WebhookSecret}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	httpapi.Register(r, h, webhook, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
