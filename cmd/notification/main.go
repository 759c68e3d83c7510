package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/logger"
	"github.com/Rosevil15/TPMSS-sub001/internal/notification"
	"github.com/Rosevil15/TPMSS-sub001/internal/queue"
	"github.com/Rosevil15/TPMSS-sub001/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.MustNew(cfg.Log.Level, cfg.Log.Format, "tpmss-notification")
	defer lg.Sync()

	notifier := notification.NewEmailNotifier(&cfg.SMTP, lg)
	if notifier.Configured() {
		if err := notifier.TestConnection(); err != nil {
			lg.Warn("SMTP connection test failed", zap.Error(err))
		}
	} else {
		lg.Warn("SMTP not configured, digests will only be logged")
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicWarnings, "notification-group")
	defer consumer.Close()

	batcher := queue.NewDigestBatcher(consumer, notifier, cfg.Digest.BatchSize, cfg.Digest.FlushInterval, lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batcher.Start(ctx)

	lg.Info("notification service running",
		zap.Int("batch_size", cfg.Digest.BatchSize),
		zap.Duration("flush_interval", cfg.Digest.FlushInterval))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	lg.Info("shutting down gracefully")
	batcher.Stop()
}
