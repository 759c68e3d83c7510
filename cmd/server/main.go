package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/api"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/logger"
	"github.com/Rosevil15/TPMSS-sub001/internal/session"
	"github.com/Rosevil15/TPMSS-sub001/internal/timer"
	"github.com/Rosevil15/TPMSS-sub001/migrations"
	"github.com/Rosevil15/TPMSS-sub001/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.MustNew(cfg.Log.Level, cfg.Log.Format, "tpmss-server")
	defer lg.Sync()

	// Connect to database
	db, err := database.Connect(cfg.Database.Driver, cfg.Database.ConnectionString(), lg)
	if err != nil {
		lg.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(migrations.FS); err != nil {
		lg.Fatal("failed to run migrations", zap.Error(err))
	}

	sessions := session.NewManager(cfg.HTTP.MaxSessions)

	// Sweep idle sessions
	scheduler := timer.NewScheduler(1, lg)
	scheduler.Start()
	defer scheduler.Stop()

	sweepEvery := max(cfg.HTTP.SessionIdleTimeout/2, time.Minute)
	if err := scheduler.Every("session-sweep", sweepEvery, func(context.Context) error {
		if n := sessions.Sweep(cfg.HTTP.SessionIdleTimeout); n > 0 {
			lg.Info("swept idle sessions", zap.Int("removed", n))
		}
		return nil
	}); err != nil {
		lg.Fatal("failed to schedule session sweep", zap.Error(err))
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := api.NewServer(db, sessions, api.Options{
		CaseIDAttempts: cfg.Cases.MaxIDAttempts,
		ReportFormat:   cfg.Reports.Format,
		ReportTheme:    cfg.Reports.Theme,
	}, lg)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	lg.Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		lg.Error("http server shutdown failed", zap.Error(err))
	}
}
