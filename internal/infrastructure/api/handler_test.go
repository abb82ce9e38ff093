package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"warehouse-channel-sync/internal/application"
	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/infrastructure/pubsub"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Stubs
// ============================================================================

type stubChannels struct {
	channel   *domain.ChannelIntegration
	err       error
	warnings  []domain.ConflictWarning
	enabledTo *bool
}

func (s *stubChannels) GetChannel(ctx context.Context, channelID string) (*domain.ChannelIntegration, error) {
	return s.channel, s.err
}

func (s *stubChannels) ListChannels(ctx context.Context, accountID string) ([]domain.ChannelIntegration, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.channel == nil {
		return nil, nil
	}
	return []domain.ChannelIntegration{*s.channel}, nil
}

func (s *stubChannels) SaveRouting(ctx context.Context, channelID string, input application.RoutingInput) (*domain.ChannelIntegration, error) {
	return s.channel, s.err
}

func (s *stubChannels) SaveInventorySettings(ctx context.Context, channelID string, settings domain.InventorySettings) ([]domain.ConflictWarning, error) {
	return s.warnings, s.err
}

func (s *stubChannels) SetEnabled(ctx context.Context, channelID string, enabled bool) ([]domain.ConflictWarning, error) {
	s.enabledTo = &enabled
	return s.warnings, s.err
}

func (s *stubChannels) Conflicts(ctx context.Context, channelID string) ([]domain.ConflictWarning, error) {
	return s.warnings, s.err
}

func (s *stubChannels) RemoveProductDestination(ctx context.Context, channelID, warehouseID string) (*domain.ProductSyncConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &s.channel.ProductSync, nil
}

func (s *stubChannels) Disconnect(ctx context.Context, channelID string) error {
	return s.err
}

func (s *stubChannels) TestConnection(ctx context.Context, channelID string) (*domain.ConnectionTest, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ConnectionTest{Success: true, Detail: "ok"}, nil
}

func (s *stubChannels) ConnectCarrier(ctx context.Context, input application.CarrierInput) (*domain.ChannelIntegration, error) {
	return s.channel, s.err
}

type stubConnector struct {
	outcome  *application.ConnectOutcome
	callback *application.CallbackResult
	err      error
	input    application.ConnectInput
}

func (s *stubConnector) Connect(ctx context.Context, input application.ConnectInput) *application.ConnectOutcome {
	s.input = input
	return s.outcome
}

func (s *stubConnector) CompleteAuthorization(ctx context.Context, callbackURL *url.URL) (*application.CallbackResult, error) {
	return s.callback, s.err
}

type stubSyncer struct {
	result *domain.SyncResult
	err    error
	resume *domain.SyncCursor
	kind   domain.EntityKind
}

func (s *stubSyncer) Sync(ctx context.Context, channelID string, kind domain.EntityKind, resume *domain.SyncCursor) (*domain.SyncResult, error) {
	s.kind = kind
	s.resume = resume
	return s.result, s.err
}

type stubDispatcher struct {
	mu     sync.Mutex
	events []*domain.WebhookEvent
	first  bool
	err    error
}

func (s *stubDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.first, s.err
}

type stubVerifier struct{ ok bool }

func (s stubVerifier) VerifyWebhook(r *http.Request) bool { return s.ok }

func connectedChannel() *domain.ChannelIntegration {
	return &domain.ChannelIntegration{
		ID:          "ch-1",
		AccountID:   "acct-1",
		StoreID:     "store-1",
		Name:        "Main shop",
		Payload:     domain.EcommercePayload{Platform: domain.PlatformShopify, ShopDomain: "demo.myshopify.com"},
		Status:      domain.ChannelStatusConnected,
		Enabled:     true,
		Credentials: []byte("sealed-token"),
		Routing:     domain.RoutingConfig{Mode: domain.RoutingModeSimple, PrimaryWarehouseID: "wh-1"},
		ProductSync: domain.ProductSyncConfig{Mode: domain.ProductSyncPrimaryOnly},
	}
}

func newTestHandler(deps Dependencies) http.Handler {
	return NewHandler(deps, zerolog.Nop()).Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// ============================================================================
// Error mapping
// ============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("channel x: %w", domain.ErrNotFound), http.StatusNotFound},
		{&domain.ConfigError{Field: "routing.primaryWarehouseId", Reason: "unknown"}, http.StatusUnprocessableEntity},
		{domain.ErrNoWarehouses, http.StatusUnprocessableEntity},
		{domain.ErrVerificationFailed, http.StatusUnprocessableEntity},
		{domain.ErrSyncInProgress, http.StatusConflict},
		{domain.ErrChannelNotConnected, http.StatusConflict},
		{domain.ErrStateInvalid, http.StatusUnauthorized},
		{domain.ErrShopMismatch, http.StatusForbidden},
		{fmt.Errorf("%w: 401", domain.ErrPlatformAuth), http.StatusBadGateway},
		{domain.ErrPlatformFetch, http.StatusBadGateway},
		{domain.ErrPlatformInvalidResponse, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

// ============================================================================
// Channel routes
// ============================================================================

func TestHealth(t *testing.T) {
	rec := do(t, newTestHandler(Dependencies{}), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestGetChannel_OmitsCredentials(t *testing.T) {
	h := newTestHandler(Dependencies{Channels: &stubChannels{channel: connectedChannel()}})

	rec := do(t, h, http.MethodGet, "/api/v1/channels/ch-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sealed-token")
	assert.NotContains(t, rec.Body.String(), "credentials")
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["hasCredentials"])
	payload := body["payload"].(map[string]interface{})
	assert.Equal(t, "ecommerce", payload["kind"])
	assert.Equal(t, "demo.myshopify.com", payload["shopDomain"])
	inventory := body["inventory"].(map[string]interface{})
	assert.Equal(t, "manual", inventory["syncDirection"])
}

func TestGetChannel_NotFound(t *testing.T) {
	h := newTestHandler(Dependencies{Channels: &stubChannels{err: fmt.Errorf("channel x: %w", domain.ErrNotFound)}})

	rec := do(t, h, http.MethodGet, "/api/v1/channels/x", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "internal", body["origin"])
	assert.Equal(t, "retry", body["remedy"])
}

func TestListChannels(t *testing.T) {
	h := newTestHandler(Dependencies{Channels: &stubChannels{channel: connectedChannel()}})

	rec := do(t, h, http.MethodGet, "/api/v1/accounts/acct-1/channels", "")

	require.Equal(t, http.StatusOK, rec.Code)
	channels := decodeBody(t, rec)["channels"].([]interface{})
	assert.Len(t, channels, 1)
}

func TestSaveRouting_InvalidConfig(t *testing.T) {
	h := newTestHandler(Dependencies{Channels: &stubChannels{
		err: &domain.ConfigError{Field: "routing.assignments", Reason: "region CA is claimed by two warehouses"},
	}})

	rec := do(t, h, http.MethodPut, "/api/v1/channels/ch-1/routing", `{"routing":{"mode":"advanced"}}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "routing.assignments", body["field"])
	assert.Equal(t, "edit_configuration", body["remedy"])
	assert.Equal(t, "internal", body["origin"])
}

func TestSaveRouting_MalformedBody(t *testing.T) {
	h := newTestHandler(Dependencies{Channels: &stubChannels{channel: connectedChannel()}})

	rec := do(t, h, http.MethodPut, "/api/v1/channels/ch-1/routing", `{"routing":`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSaveInventory_ReturnsWarnings(t *testing.T) {
	warning := domain.ConflictWarning{ChannelID: "ch-1", OtherChannelID: "ch-2", OtherChannelName: "Outlet", Reason: "both push"}
	h := newTestHandler(Dependencies{Channels: &stubChannels{warnings: []domain.ConflictWarning{warning}}})

	rec := do(t, h, http.MethodPut, "/api/v1/channels/ch-1/inventory", `{"inventorySyncEnabled":true,"syncDirection":"platform_to_warehouses"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	conflicts := decodeBody(t, rec)["conflicts"].([]interface{})
	require.Len(t, conflicts, 1)
	assert.Equal(t, "ch-2", conflicts[0].(map[string]interface{})["otherChannelId"])
}

func TestConflicts_EmptyListEncodesAsArray(t *testing.T) {
	h := newTestHandler(Dependencies{Channels: &stubChannels{}})

	rec := do(t, h, http.MethodGet, "/api/v1/channels/ch-1/conflicts", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conflicts":[]}`, rec.Body.String())
}

func TestSetEnabled(t *testing.T) {
	channels := &stubChannels{}
	h := newTestHandler(Dependencies{Channels: channels})

	rec := do(t, h, http.MethodPut, "/api/v1/channels/ch-1/enabled", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Nil(t, channels.enabledTo)

	rec = do(t, h, http.MethodPut, "/api/v1/channels/ch-1/enabled", `{"enabled":false}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, channels.enabledTo)
	assert.False(t, *channels.enabledTo)
}

func TestRemoveProductDestination_LastOneRejected(t *testing.T) {
	h := newTestHandler(Dependencies{Channels: &stubChannels{
		err: &domain.ConfigError{Field: "selectedWarehouseIds", Reason: "at least one destination warehouse is required"},
	}})

	rec := do(t, h, http.MethodDelete, "/api/v1/channels/ch-1/product-sync/warehouses/wh-1", "")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDisconnect(t *testing.T) {
	h := newTestHandler(Dependencies{Channels: &stubChannels{}})

	rec := do(t, h, http.MethodPost, "/api/v1/channels/ch-1/disconnect", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disconnected", decodeBody(t, rec)["status"])
}

func TestTestConnection_PlatformAuthIsExternal(t *testing.T) {
	h := newTestHandler(Dependencies{Channels: &stubChannels{err: fmt.Errorf("%w: invalid token", domain.ErrPlatformAuth)}})

	rec := do(t, h, http.MethodPost, "/api/v1/channels/ch-1/test", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "external", body["origin"])
	assert.Equal(t, "reconnect", body["remedy"])
}

// ============================================================================
// Connect and callback
// ============================================================================

func TestConnect_Redirecting(t *testing.T) {
	connector := &stubConnector{outcome: &application.ConnectOutcome{
		ChannelID:        "ch-1",
		State:            application.ConnectRedirecting,
		AuthorizationURL: "https://demo.myshopify.com/admin/oauth/authorize?state=abc",
	}}
	h := newTestHandler(Dependencies{Connector: connector})

	rec := do(t, h, http.MethodPost, "/api/v1/channels/ch-1/connect", `{"accountId":"acct-1","storeId":"store-1","name":"Main","shopDomain":"demo.myshopify.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ch-1", connector.input.ChannelID)
	body := decodeBody(t, rec)
	assert.Equal(t, "REDIRECTING", body["state"])
	assert.Contains(t, body["authorizationUrl"], "oauth/authorize")
	_, hasError := body["error"]
	assert.False(t, hasError)
}

func TestConnect_VerifyFailedNeverRedirects(t *testing.T) {
	err := fmt.Errorf("%w: primary warehouse not persisted", domain.ErrVerificationFailed)
	connector := &stubConnector{outcome: &application.ConnectOutcome{
		ChannelID: "ch-1",
		State:     application.ConnectEditing,
		Transitions: []application.ConnectTransition{
			{From: application.ConnectVerifying, To: application.ConnectVerifyFailed, Error: err.Error()},
			{From: application.ConnectVerifyFailed, To: application.ConnectEditing, Error: err.Error()},
		},
		Err: err,
	}}
	h := newTestHandler(Dependencies{Connector: connector})

	rec := do(t, h, http.MethodPost, "/api/v1/channels/connect", `{"accountId":"acct-1","storeId":"store-1","name":"Main","shopDomain":"demo.myshopify.com"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "EDITING", body["state"])
	assert.Equal(t, "edit_configuration", body["remedy"])
	_, hasURL := body["authorizationUrl"]
	assert.False(t, hasURL)
}

func TestAuthCallback_RedirectsToReturnURL(t *testing.T) {
	connector := &stubConnector{callback: &application.CallbackResult{
		ChannelID: "ch-1",
		StoreID:   "store-1",
		ReturnURL: "https://app.example.com/channels?tab=sales",
	}}
	h := newTestHandler(Dependencies{Connector: connector})

	rec := do(t, h, http.MethodGet, "/auth/callback?shop=demo.myshopify.com&code=c&state=s", "")

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", location.Host)
	assert.Equal(t, "ch-1", location.Query().Get("channel_id"))
	assert.Equal(t, "sales", location.Query().Get("tab"))
}

func TestAuthCallback_InvalidState(t *testing.T) {
	h := newTestHandler(Dependencies{Connector: &stubConnector{err: fmt.Errorf("%w: unknown or expired state", domain.ErrStateInvalid)}})

	rec := do(t, h, http.MethodGet, "/auth/callback?shop=demo.myshopify.com&code=c&state=stale", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "reconnect", decodeBody(t, rec)["remedy"])
}

// ============================================================================
// Sync
// ============================================================================

func TestRunSync(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		h := newTestHandler(Dependencies{Syncer: &stubSyncer{}})
		rec := do(t, h, http.MethodPost, "/api/v1/channels/ch-1/sync/customers", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("in progress", func(t *testing.T) {
		h := newTestHandler(Dependencies{Syncer: &stubSyncer{err: domain.ErrSyncInProgress}})
		rec := do(t, h, http.MethodPost, "/api/v1/channels/ch-1/sync/orders", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("done", func(t *testing.T) {
		syncer := &stubSyncer{result: &domain.SyncResult{ChannelID: "ch-1", Kind: domain.EntityOrders, Status: domain.SyncDone, Success: true, RecordsProcessed: 120, PagesProcessed: 3}}
		h := newTestHandler(Dependencies{Syncer: syncer})
		rec := do(t, h, http.MethodPost, "/api/v1/channels/ch-1/sync/orders", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.EntityOrders, syncer.kind)
		assert.Nil(t, syncer.resume)
		assert.Equal(t, float64(120), decodeBody(t, rec)["recordsProcessed"])
	})

	t.Run("failed run reports cursor", func(t *testing.T) {
		err := fmt.Errorf("%w: fetch products page: 500", domain.ErrPlatformFetch)
		syncer := &stubSyncer{result: &domain.SyncResult{
			ChannelID: "ch-1",
			Kind:      domain.EntityProducts,
			Status:    domain.SyncError,
			Error:     err.Error(),
			Origin:    domain.OriginExternal,
			Remedy:    "retry",
			Cursor:    &domain.SyncCursor{HasNextPage: true, EndCursor: "c2", PageIndex: 2},
			Err:       err,
		}}
		h := newTestHandler(Dependencies{Syncer: syncer})
		rec := do(t, h, http.MethodPost, "/api/v1/channels/ch-1/sync/products", "")
		require.Equal(t, http.StatusBadGateway, rec.Code)
		cursor := decodeBody(t, rec)["cursor"].(map[string]interface{})
		assert.Equal(t, "c2", cursor["endCursor"])
	})

	t.Run("resume cursor passed through", func(t *testing.T) {
		syncer := &stubSyncer{result: &domain.SyncResult{Status: domain.SyncDone, Success: true}}
		h := newTestHandler(Dependencies{Syncer: syncer})
		rec := do(t, h, http.MethodPost, "/api/v1/channels/ch-1/sync/products", `{"resume":{"hasNextPage":true,"endCursor":"c2","pageIndex":2}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, syncer.resume)
		assert.Equal(t, "c2", syncer.resume.EndCursor)
		assert.Equal(t, 2, syncer.resume.PageIndex)
	})
}

func TestSyncEvents_StreamsChannelProgress(t *testing.T) {
	ps := pubsub.NewProgressPubSub(8, zerolog.Nop())
	server := httptest.NewServer(newTestHandler(Dependencies{Progress: ps, Heartbeat: time.Hour}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/channels/ch-1/sync/events?kind=orders", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				return name, data
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	name, _ := readEvent()
	require.Equal(t, "connected", name)
	require.Eventually(t, func() bool { return ps.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	ps.Publish(domain.ProgressEvent{ChannelID: "ch-2", Kind: domain.EntityOrders, Stage: domain.StageStarting, At: time.Now()})
	ps.Publish(domain.ProgressEvent{ChannelID: "ch-1", Kind: domain.EntityProducts, Stage: domain.StageStarting, At: time.Now()})
	ps.Publish(domain.ProgressEvent{ChannelID: "ch-1", Kind: domain.EntityOrders, Stage: domain.StageMergingPage, Page: 1, RecordsProcessed: 50, At: time.Now()})

	name, data := readEvent()
	require.Equal(t, "progress", name)
	var event domain.ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(data), &event))
	assert.Equal(t, "ch-1", event.ChannelID)
	assert.Equal(t, domain.EntityOrders, event.Kind)
	assert.Equal(t, domain.StageMergingPage, event.Stage)
	assert.Equal(t, 50, event.RecordsProcessed)

	cancel()
	assert.Eventually(t, func() bool { return ps.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSyncEvents_InvalidKind(t *testing.T) {
	ps := pubsub.NewProgressPubSub(8, zerolog.Nop())
	rec := do(t, newTestHandler(Dependencies{Progress: ps}), http.MethodGet, "/api/v1/channels/ch-1/sync/events?kind=refunds", "")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 0, ps.SubscriberCount())
}

// ============================================================================
// Webhooks
// ============================================================================

func webhookRequest(topic, id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/ch-1", strings.NewReader(`{"id":1}`))
	if topic != "" {
		req.Header.Set("X-Shopify-Topic", topic)
	}
	req.Header.Set("X-Shopify-Webhook-Id", id)
	req.Header.Set("X-Shopify-Shop-Domain", "demo.myshopify.com")
	return req
}

func TestShopifyWebhook(t *testing.T) {
	t.Run("missing topic", func(t *testing.T) {
		dispatcher := &stubDispatcher{first: true}
		h := newTestHandler(Dependencies{Webhooks: dispatcher, Verifier: stubVerifier{ok: true}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, webhookRequest("", "w-1"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, dispatcher.events)
	})

	t.Run("bad signature", func(t *testing.T) {
		dispatcher := &stubDispatcher{first: true}
		h := newTestHandler(Dependencies{Webhooks: dispatcher, Verifier: stubVerifier{ok: false}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, webhookRequest("orders/create", "w-1"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, dispatcher.events)
	})

	t.Run("dispatched", func(t *testing.T) {
		dispatcher := &stubDispatcher{first: true}
		h := newTestHandler(Dependencies{Webhooks: dispatcher, Verifier: stubVerifier{ok: true}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, webhookRequest("orders/create", "w-1"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, dispatcher.events, 1)
		event := dispatcher.events[0]
		assert.Equal(t, "w-1", event.ID)
		assert.Equal(t, "ch-1", event.ChannelID)
		assert.Equal(t, "orders/create", event.Topic)
		assert.Equal(t, "demo.myshopify.com", event.Shop)
		assert.JSONEq(t, `{"id":1}`, string(event.Payload))
	})

	t.Run("duplicate", func(t *testing.T) {
		h := newTestHandler(Dependencies{Webhooks: &stubDispatcher{first: false}, Verifier: stubVerifier{ok: true}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, webhookRequest("orders/create", "w-1"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "duplicate", decodeBody(t, rec)["received"])
	})

	t.Run("handler failure asks for retry", func(t *testing.T) {
		h := newTestHandler(Dependencies{Webhooks: &stubDispatcher{first: true, err: errors.New("store down")}, Verifier: stubVerifier{ok: true}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, webhookRequest("products/update", "w-2"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("foreign shop", func(t *testing.T) {
		err := fmt.Errorf("channel ch-1: %w", domain.ErrShopMismatch)
		h := newTestHandler(Dependencies{Webhooks: &stubDispatcher{err: err}, Verifier: stubVerifier{ok: true}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, webhookRequest("app/uninstalled", "w-3"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown channel", func(t *testing.T) {
		err := fmt.Errorf("channel ch-1: %w", domain.ErrNotFound)
		h := newTestHandler(Dependencies{Webhooks: &stubDispatcher{err: err}, Verifier: stubVerifier{ok: true}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, webhookRequest("orders/create", "w-4"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
