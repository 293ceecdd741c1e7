package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/phone-storefront/internal/api"
	"github.com/example/phone-storefront/internal/auth"
	"github.com/example/phone-storefront/internal/catalog"
	"github.com/example/phone-storefront/internal/collection"
	"github.com/example/phone-storefront/internal/config"
	"github.com/example/phone-storefront/internal/identity"
	"github.com/example/phone-storefront/internal/infrastructure/kafka"
	"github.com/example/phone-storefront/internal/infrastructure/store"
	"github.com/example/phone-storefront/internal/logging"
	"github.com/example/phone-storefront/internal/order"
	"github.com/example/phone-storefront/internal/preferences"
	"github.com/example/phone-storefront/internal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.Named("api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting phone storefront",
		zap.String("port", cfg.Port),
		zap.Strings("kafka_brokers", cfg.Brokers()),
		zap.String("kafka_topic", cfg.KafkaTopic),
		zap.String("item_store", cfg.ItemStoreBackend),
	)

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	if err := store.Migrate(db); err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}
	logger.Info("connected to PostgreSQL")

	cartStore, wishlistStore, err := itemStores(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal("failed to init item stores", zap.Error(err))
	}

	// Write-behind workers
	syncCfg := collection.SyncerConfig{Timeout: cfg.RemoteTimeout, MaxAttempts: cfg.SyncMaxAttempts}
	cartSyncer := collection.NewSyncer(collection.KindCart, cartStore, syncCfg, logger)
	wishlistSyncer := collection.NewSyncer(collection.KindWishlist, wishlistStore, syncCfg, logger)

	var wg sync.WaitGroup
	for _, s := range []*collection.Syncer{cartSyncer, wishlistSyncer} {
		s.OnFailure(func(f collection.Failure) {
			logger.Error("remote write abandoned",
				zap.String("kind", string(f.Kind)),
				zap.String("user_id", f.UserID),
				zap.String("product_id", f.ProductID),
				zap.String("op", f.Op),
				zap.Int("attempts", f.Attempts),
				zap.Error(f.Err),
			)
		})
		wg.Add(1)
		go func(s *collection.Syncer) {
			defer wg.Done()
			s.Run(ctx)
		}(s)
	}

	composer := catalog.NewComposer(store.NewPostgresCatalog(db), cfg.RemoteTimeout, logger)

	producer := kafka.NewProducer(cfg.Brokers(), cfg.KafkaTopic)
	defer producer.Close()
	orders := order.NewService(store.NewPostgresOrderStore(db), producer, cfg.RemoteTimeout, logger)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, preferences will fail until it recovers", zap.Error(err))
	}
	prefs := preferences.NewStore(rdb, cfg.PreferencesTTL)

	registry := session.NewRegistry(session.Deps{
		CartSyncer:     cartSyncer,
		WishlistSyncer: wishlistSyncer,
		Composer:       composer,
		Orders:         orders,
		SearchDebounce: cfg.SearchDebounce,
		Logger:         logger,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweepSessions(ctx, registry, cfg.SessionIdleTimeout)
	}()

	authenticator := identity.NewAuthenticator(
		store.NewPostgresUserStore(db),
		auth.NewPasswordHasher(auth.DefaultBcryptCost),
		logger,
	)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)

	router := api.NewRouter(api.RouterDeps{
		Handlers:      api.NewHandlers(composer, orders, prefs, logger),
		Auth:          api.NewAuthHandlers(authenticator, jwtService, cfg.SecureCookies, logger),
		Sessions:      registry,
		Accounts:      authenticator,
		JWT:           jwtService,
		SecureCookies: cfg.SecureCookies,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	cancel()
	wg.Wait()

	// Drain writes queued before shutdown
	for _, s := range []*collection.Syncer{cartSyncer, wishlistSyncer} {
		if err := s.Flush(shutdownCtx); err != nil {
			logger.Warn("flush interrupted",
				zap.String("kind", string(s.Kind())),
				zap.Int("pending", s.Pending()),
				zap.Error(err),
			)
		}
	}
}

// itemStores builds the cart and wishlist stores for the configured backend,
// each behind its own circuit breaker.
func itemStores(ctx context.Context, cfg *config.Config, db *sql.DB, logger *zap.Logger) (collection.RemoteStore, collection.RemoteStore, error) {
	var cart, wishlist collection.RemoteStore
	switch cfg.ItemStoreBackend {
	case config.BackendDynamoDB:
		client, err := store.NewDynamoClient(ctx, cfg.AWSRegion, cfg.DynamoDBEndpoint)
		if err != nil {
			return nil, nil, err
		}
		cart = store.NewDynamoItemStore(client, cfg.CartTableName)
		wishlist = store.NewDynamoItemStore(client, cfg.WishlistTableName)
	default:
		cart = store.NewPostgresItemStore(db, collection.KindCart)
		wishlist = store.NewPostgresItemStore(db, collection.KindWishlist)
	}
	return store.NewBreakerItemStore(cart, store.BreakerConfig{Name: string(collection.KindCart)}, logger),
		store.NewBreakerItemStore(wishlist, store.BreakerConfig{Name: string(collection.KindWishlist)}, logger),
		nil
}

func sweepSessions(ctx context.Context, registry *session.Registry, idle time.Duration) {
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.Sweep(idle)
		}
	}
}
