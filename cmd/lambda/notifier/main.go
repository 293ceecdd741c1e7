package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/phone-storefront/internal/config"
	"github.com/example/phone-storefront/internal/email"
	"github.com/example/phone-storefront/internal/infrastructure/msk"
	"github.com/example/phone-storefront/internal/infrastructure/store"
	"github.com/example/phone-storefront/internal/logging"
	"github.com/example/phone-storefront/internal/notification"
	"go.uber.org/zap"
)

var (
	notificationHandler *notification.Handler
	logger              *zap.Logger
)

func init() {
	cfg, err := config.LoadNotifier()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	base, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logger = base.Named("lambda-notifier")

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}

	mailer := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	notificationHandler = notification.NewHandler(mailer, store.NewPostgresUserStore(db), logger)

	logger.Info("initialized", zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort))
}

// handler processes one MSK batch. Undecodable records and handler failures are
// logged and skipped, matching the long-running consumer.
func handler(ctx context.Context, ev events.KafkaEvent) error {
	msgs, errs := msk.DecodeEvent(ev)
	for _, err := range errs {
		logger.Warn("skipping undecodable record", zap.Error(err))
	}

	failed := 0
	for _, m := range msgs {
		if err := notificationHandler.HandleEvent(ctx, m.Key, m.Value); err != nil {
			failed++
			logger.Error("failed to handle record", zap.String("record", m.ID()), zap.Error(err))
		}
	}

	logger.Info("batch processed",
		zap.Int("records", len(msgs)+len(errs)),
		zap.Int("succeeded", len(msgs)-failed),
	)
	return nil
}

func main() {
	defer logger.Sync()
	lambda.Start(handler)
}
