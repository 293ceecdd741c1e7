package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/phone-storefront/internal/config"
	"github.com/example/phone-storefront/internal/email"
	"github.com/example/phone-storefront/internal/infrastructure/kafka"
	"github.com/example/phone-storefront/internal/infrastructure/store"
	"github.com/example/phone-storefront/internal/logging"
	"github.com/example/phone-storefront/internal/notification"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadNotifier()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.Named("notifier")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting order notification service",
		zap.Strings("kafka_brokers", cfg.Brokers()),
		zap.String("kafka_topic", cfg.KafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort),
		zap.String("from", cfg.SMTPFrom),
	)

	// Account lookups only
	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	mailer := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(mailer, store.NewPostgresUserStore(db), logger)

	consumer := kafka.NewConsumer(cfg.Brokers(), cfg.KafkaTopic, cfg.KafkaGroupID, logger)
	defer consumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("consuming events")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-done:
	}

	logger.Info("shutting down")
	cancel()
	<-done
}
