package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/logger"
	"github.com/Rosevil15/TPMSS-sub001/internal/queue"
	"github.com/Rosevil15/TPMSS-sub001/internal/timer"
	"github.com/Rosevil15/TPMSS-sub001/internal/warning"
	"github.com/Rosevil15/TPMSS-sub001/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.MustNew(cfg.Log.Level, cfg.Log.Format, "tpmss-alarming")
	defer lg.Sync()

	// Connect to database
	db, err := database.Connect(cfg.Database.Driver, cfg.Database.ConnectionString(), lg)
	if err != nil {
		lg.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		lg.Fatal("failed to connect to redis", zap.Error(err))
	}

	if err := queue.EnsureTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicWarnings, 3, 1); err != nil {
		lg.Warn("topic creation failed (may already exist)", zap.Error(err))
	}

	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicWarnings)
	defer producer.Close()

	monitor := warning.NewMonitor(
		warning.NewEvaluator(db, lg),
		warning.NewStateTracker(redisClient, cfg.Warnings.StateTTL),
		producer,
		lg,
	)

	scheduler := timer.NewScheduler(1, lg)
	scheduler.Start()
	defer scheduler.Stop()

	scan := func(ctx context.Context) error {
		sent, err := monitor.Scan(ctx)
		if err != nil {
			return err
		}
		lg.Info("warning scan finished", zap.Int("notifications", sent))
		return nil
	}

	// First scan right away, then on the interval.
	if err := scan(context.Background()); err != nil {
		lg.Error("initial warning scan failed", zap.Error(err))
	}
	if err := scheduler.Every("warning-scan", cfg.Warnings.ScanInterval, scan); err != nil {
		lg.Fatal("failed to schedule warning scan", zap.Error(err))
	}

	lg.Info("alarming service running", zap.Duration("interval", cfg.Warnings.ScanInterval))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	lg.Info("shutting down gracefully")
}
