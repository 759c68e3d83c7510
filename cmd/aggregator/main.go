package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/apperror"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/location"
	"github.com/Rosevil15/TPMSS-sub001/internal/logger"
	"github.com/Rosevil15/TPMSS-sub001/internal/report"
	"github.com/Rosevil15/TPMSS-sub001/internal/timer"
	"github.com/Rosevil15/TPMSS-sub001/pkg/config"
)

// dailyKinds are written every day for all locations.
var dailyKinds = []report.Kind{report.KindSummary, report.KindWarnings}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.MustNew(cfg.Log.Level, cfg.Log.Format, "tpmss-aggregator")
	defer lg.Sync()

	// Connect to database
	db, err := database.Connect(cfg.Database.Driver, cfg.Database.ConnectionString(), lg)
	if err != nil {
		lg.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	writer, err := report.WriterFor(cfg.Reports.Format)
	if err != nil {
		lg.Fatal("invalid report format", zap.Error(err))
	}
	generator := report.NewGenerator(db, lg)
	theme := report.ParseTheme(cfg.Reports.Theme)

	scheduler := timer.NewScheduler(1, lg)
	scheduler.Start()
	defer scheduler.Stop()

	job := func(ctx context.Context) error {
		for _, kind := range dailyKinds {
			doc, err := generator.Generate(ctx, kind, location.Filter{FilterType: location.All}, theme)
			if apperror.KindOf(err) == apperror.KindEmptyResult {
				lg.Info("skipping empty report", zap.String("kind", string(kind)), zap.String("reason", apperror.Message(err)))
				continue
			}
			if err != nil {
				return err
			}
			path, err := report.Save(cfg.Reports.OutputDir, doc, writer)
			if err != nil {
				return err
			}
			lg.Info("report written", zap.String("kind", string(kind)), zap.String("path", path))
		}
		return nil
	}

	if err := scheduler.Daily("daily-reports", cfg.Reports.DailyTime, job); err != nil {
		lg.Fatal("failed to schedule daily reports", zap.Error(err))
	}
	if next, ok := scheduler.NextRun("daily-reports"); ok {
		lg.Info("aggregator running", zap.Time("next_run", next), zap.String("output_dir", cfg.Reports.OutputDir))
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	lg.Info("shutting down gracefully")
}
