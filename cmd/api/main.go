package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warehouse-channel-sync/internal/application"
	"warehouse-channel-sync/internal/application/webhook_handlers"
	"warehouse-channel-sync/internal/config"
	apiinfra "warehouse-channel-sync/internal/infrastructure/api"
	"warehouse-channel-sync/internal/infrastructure/cache"
	"warehouse-channel-sync/internal/infrastructure/encryption"
	"warehouse-channel-sync/internal/infrastructure/metrics"
	"warehouse-channel-sync/internal/infrastructure/pubsub"
	"warehouse-channel-sync/internal/infrastructure/repository"
	"warehouse-channel-sync/internal/infrastructure/shipstation"
	shopifyinfra "warehouse-channel-sync/internal/infrastructure/shopify"
	"warehouse-channel-sync/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

// stores bundles the short-lived state backends
type stores interface {
	ports.ConnectSessionStore
	ports.RunGuard
	ports.IdempotencyStore
	Close() error
}

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if found, err := config.LoadDotEnv(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load .env file")
	} else if !found {
		logger.Warn().Msg(".env file not found, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err == nil {
		err = client.Ping(connectCtx, nil)
	}
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.Mongo.Database)

	// Initialize repositories
	channelRepo := repository.NewMongoChannelRepository(db)
	warehouseRegistry := repository.NewMongoWarehouseRegistry(db)
	entityStore := repository.NewMongoEntityStore(db)
	if err := channelRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to ensure channel indexes")
	}
	if err := entityStore.EnsureIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure entity indexes")
	}

	state, err := newStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize state store")
	}
	defer state.Close()

	// Initialize infrastructure
	sealer, err := encryption.NewSecretBoxSealer(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize credential sealer")
	}

	platform, err := shopifyinfra.NewPlatform(shopifyinfra.Config{
		APIKey:            cfg.Shopify.APIKey,
		APISecret:         cfg.Shopify.APISecret,
		APIVersion:        cfg.Shopify.APIVersion,
		RequestsPerSecond: cfg.Shopify.RequestsPerSecond,
		Retries:           cfg.Shopify.Retries,
	}, sealer, logger.With().Str("component", "shopify").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Shopify platform")
	}

	carriers := shipstation.NewFactory(cfg.ShipStationBaseURL, sealer, &http.Client{Timeout: 30 * time.Second}, logger.With().Str("component", "shipstation").Logger())
	syncMetrics := metrics.NewSyncMetrics(cfg.MetricsNamespace, true)
	progress := pubsub.NewProgressPubSub(64, logger)

	// Initialize application services
	channelService := application.NewChannelService(
		channelRepo,
		warehouseRegistry,
		platform,
		carriers,
		sealer,
		syncMetrics,
		logger,
	)

	pipeline := application.NewSyncPipeline(
		channelRepo,
		warehouseRegistry,
		platform,
		entityStore,
		state,
		progress,
		syncMetrics,
		cfg.Sync.PageSize,
		logger.With().Str("component", "sync").Logger(),
	)

	orchestrator := application.NewConnectOrchestrator(
		channelService,
		channelRepo,
		state,
		platform,
		sealer,
		pipeline,
		cfg.AppURL,
		cfg.Shopify.Scopes,
		cfg.Sync.OAuthStateTTL,
		logger,
	)

	catalogService := application.NewServiceCatalogService(channelRepo, carriers, entityStore, state, logger)

	// Initialize webhook dispatcher and register handlers
	webhookDispatcher := application.NewWebhookDispatcher(channelRepo, state, logger)
	webhookDispatcher.Register(
		webhook_handlers.NewOrderHandler(pipeline, logger),
		webhook_handlers.NewProductHandler(pipeline, logger),
		webhook_handlers.NewCustomerHandler(entityStore, logger),
		webhook_handlers.NewAppUninstalledHandler(channelService, logger),
	)

	handler := apiinfra.NewHandler(apiinfra.Dependencies{
		Channels:   channelService,
		Connector:  orchestrator,
		Syncer:     pipeline,
		Catalog:    catalogService,
		Webhooks:   webhookDispatcher,
		Verifier:   platform,
		Progress:   progress,
		Metrics:    syncMetrics.Handler(),
		SwaggerDoc: "./docs/swagger.json",
	}, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("Starting API server")
		logger.Info().Msg("Swagger documentation available at http://localhost:" + cfg.Port + "/swagger/index.html")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pipeline.Shutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		pipeline.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
	}
	logger.Info().Msg("Server stopped")
}

// newStores selects Redis when an address is configured and the in-process store otherwise.
// The in-process store only guards a single replica.
func newStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (stores, error) {
	if cfg.Redis.Addr == "" {
		logger.Warn().Msg("REDIS_ADDR not set, using in-process state store")
		return cache.NewMemoryStore(cfg.Sync.RunLockTTL, cfg.Sync.WebhookDedup), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	return cache.NewRedisStore(rdb, cfg.Redis.KeyPrefix, cfg.Sync.RunLockTTL, cfg.Sync.WebhookDedup), nil
}
