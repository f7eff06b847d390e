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

	"callbilling-platform/internal/accounts"
	"callbilling-platform/internal/audit"
	"callbilling-platform/internal/auth"
	"callbilling-platform/internal/billing"
	"callbilling-platform/internal/config"
	"callbilling-platform/internal/httpapi"
	"callbilling-platform/internal/reporting"
	"callbilling-platform/internal/settings"
	"callbilling-platform/internal/social"
	"callbilling-platform/pkg/logger"
	"callbilling-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
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

	if cfg.App.Env == "production" {
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

	// Persistence
	accountRepo := accounts.NewPostgresRepo(db)
	socialRepo := social.NewPostgresRepo(db)
	settingsRepo := settings.NewPostgresRepo(db)
	settlementStore := billing.NewPostgresStore(db)
	reportingRepo := reporting.NewPostgresRepo(db)
	auditRepo := audit.NewPostgresRepo(db)

	// Services
	auditSvc := audit.NewService(auditRepo)
	settingsSvc := settings.NewService(settingsRepo, auditSvc)
	billingSvc := billing.NewService(accountRepo, socialRepo, settingsSvc, settlementStore)
	reportingSvc := reporting.NewService(reportingRepo)

	h := httpapi.Handlers{
		Auth:      authManager,
		Billing:   billingSvc,
		Settings:  settingsSvc,
		Reporting: reportingSvc,
		Redis:     rdb,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerPublicRoutes(r, db)
	registerAuthRoutes(r, h)
	registerProtectedRoutes(r, auth.RequireAccessToken(authManager), h)

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

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
