package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"warehouse-channel-sync/internal/application"
	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/infrastructure/pubsub"
	"warehouse-channel-sync/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// ChannelManager is the channel configuration surface
type ChannelManager interface {
	GetChannel(ctx context.Context, channelID string) (*domain.ChannelIntegration, error)
	ListChannels(ctx context.Context, accountID string) ([]domain.ChannelIntegration, error)
	SaveRouting(ctx context.Context, channelID string, input application.RoutingInput) (*domain.ChannelIntegration, error)
	SaveInventorySettings(ctx context.Context, channelID string, settings domain.InventorySettings) ([]domain.ConflictWarning, error)
	SetEnabled(ctx context.Context, channelID string, enabled bool) ([]domain.ConflictWarning, error)
	Conflicts(ctx context.Context, channelID string) ([]domain.ConflictWarning, error)
	RemoveProductDestination(ctx context.Context, channelID, warehouseID string) (*domain.ProductSyncConfig, error)
	Disconnect(ctx context.Context, channelID string) error
	TestConnection(ctx context.Context, channelID string) (*domain.ConnectionTest, error)
	ConnectCarrier(ctx context.Context, input application.CarrierInput) (*domain.ChannelIntegration, error)
}

// Connector runs the connect flow and its platform callback
type Connector interface {
	Connect(ctx context.Context, input application.ConnectInput) *application.ConnectOutcome
	CompleteAuthorization(ctx context.Context, callbackURL *url.URL) (*application.CallbackResult, error)
}

// Syncer runs one sync pass
type Syncer interface {
	Sync(ctx context.Context, channelID string, kind domain.EntityKind, resume *domain.SyncCursor) (*domain.SyncResult, error)
}

// CatalogRefresher refreshes a shipping channel's services and boxes
type CatalogRefresher interface {
	Refresh(ctx context.Context, channelID string) (*application.CatalogRefreshResult, error)
}

// WebhookDispatcher processes verified webhook deliveries
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, event *domain.WebhookEvent) (bool, error)
}

// ProgressSource hands out progress subscriptions
type ProgressSource interface {
	Subscribe(ctx context.Context, filter *pubsub.ProgressFilter) *pubsub.ProgressSubscription
}

// Dependencies groups what the HTTP layer calls into
type Dependencies struct {
	Channels   ChannelManager
	Connector  Connector
	Syncer     Syncer
	Catalog    CatalogRefresher
	Webhooks   WebhookDispatcher
	Verifier   ports.WebhookVerifier
	Progress   ProgressSource
	Metrics    http.Handler
	SwaggerDoc string
	Heartbeat  time.Duration
}

// Handler serves the REST surface of the sync service
type Handler struct {
	deps   Dependencies
	now    func() time.Time
	logger zerolog.Logger
}

// NewHandler creates a new HTTP handler set
func NewHandler(deps Dependencies, logger zerolog.Logger) *Handler {
	if deps.Heartbeat <= 0 {
		deps.Heartbeat = 15 * time.Second
	}
	return &Handler{deps: deps, now: time.Now, logger: logger}
}

// Routes builds the chi router with middleware and every route
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.deps.Metrics != nil {
		r.Handle("/metrics", h.deps.Metrics)
	}
	if h.deps.SwaggerDoc != "" {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
		r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			http.ServeFile(w, r, h.deps.SwaggerDoc)
		})
	}

	r.Get("/auth/callback", h.authCallback)
	r.Post("/webhooks/shopify/{channelId}", h.shopifyWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/accounts/{accountId}/channels", h.listChannels)
		r.Post("/channels/connect", h.connect)
		r.Post("/channels/carrier", h.connectCarrier)

		r.Route("/channels/{channelId}", func(r chi.Router) {
			r.Get("/", h.getChannel)
			r.Put("/routing", h.saveRouting)
			r.Put("/inventory", h.saveInventory)
			r.Put("/enabled", h.setEnabled)
			r.Get("/conflicts", h.conflicts)
			r.Delete("/product-sync/warehouses/{warehouseId}", h.removeProductDestination)
			r.Post("/connect", h.connect)
			r.Post("/sync/{kind}", h.runSync)
			r.Get("/sync/events", h.syncEvents)
			r.Post("/test", h.testConnection)
			r.Post("/disconnect", h.disconnect)
			r.Post("/catalog/refresh", h.refreshCatalog)
		})
	})

	return r
}

// requestLogger logs one line per request with the chi request id
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info().
					Str("requestId", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("HTTP request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
