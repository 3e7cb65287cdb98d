package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/routes"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("starting", zap.String("database_type", cfg.DatabaseType), zap.String("storage", cfg.StorageBackend))

	if err := database.Initialize(cfg); err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := routes.SetupApp(ctx, cfg)
	if err != nil {
		log.Fatal("setup failed", zap.Error(err))
	}

	if admin, err := app.Auth.EnsureAdmin(); err != nil {
		log.Warn("seed admin failed", zap.Error(err))
	} else {
		log.Info("admin user ready", zap.String("email", admin.Email))
	}

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: app.Router,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
	app.Close()
}
