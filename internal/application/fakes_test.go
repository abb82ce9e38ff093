package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/ports"

	"github.com/shopspring/decimal"
)

// ============================================================================
// In-memory ports
// ============================================================================

type memChannels struct {
	mu       sync.Mutex
	channels map[string]domain.ChannelIntegration
	saves    []domain.ChannelPatch
	saveErr  error
	// dropSaves acknowledges writes without storing them
	dropSaves bool
}

func newMemChannels(channels ...domain.ChannelIntegration) *memChannels {
	m := &memChannels{channels: make(map[string]domain.ChannelIntegration)}
	for _, c := range channels {
		m.channels[c.ID] = c
	}
	return m
}

func (m *memChannels) Save(ctx context.Context, channelID string, patch domain.ChannelPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves = append(m.saves, patch)
	if m.dropSaves {
		return nil
	}
	c, ok := m.channels[channelID]
	if !ok {
		c = domain.ChannelIntegration{ID: channelID}
	}
	applyPatch(&c, patch)
	m.channels[channelID] = c
	return nil
}

func (m *memChannels) GetByID(ctx context.Context, channelID string) (*domain.ChannelIntegration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.channels[channelID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memChannels) ListByAccount(ctx context.Context, accountID string) ([]domain.ChannelIntegration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.ChannelIntegration
	for _, c := range m.channels {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memChannels) get(channelID string) domain.ChannelIntegration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[channelID]
}

func applyPatch(c *domain.ChannelIntegration, p domain.ChannelPatch) {
	if p.AccountID != nil {
		c.AccountID = *p.AccountID
	}
	if p.StoreID != nil {
		c.StoreID = *p.StoreID
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Payload != nil {
		c.Payload = p.Payload
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.ConnectedAt != nil {
		t := *p.ConnectedAt
		c.ConnectedAt = &t
	}
	if p.LastSyncAt != nil {
		t := *p.LastSyncAt
		c.LastSyncAt = &t
	}
	for kind, t := range p.Watermarks {
		if c.Watermarks == nil {
			c.Watermarks = make(map[domain.EntityKind]time.Time)
		}
		c.Watermarks[kind] = t
	}
	if p.Credentials != nil {
		c.Credentials = append([]byte(nil), (*p.Credentials)...)
	}
	if p.Routing != nil {
		c.Routing = *p.Routing
	}
	if p.ProductSync != nil {
		c.ProductSync = *p.ProductSync
	}
	if p.Inventory != nil {
		c.Inventory = *p.Inventory
	}
}

type memWarehouses map[string][]domain.Warehouse

func (m memWarehouses) ListWarehouses(ctx context.Context, storeID string) ([]domain.Warehouse, error) {
	return m[storeID], nil
}

type memEntities struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	products map[string]domain.Product
	services map[string]domain.ShippingService
	boxes    map[string]domain.ShippingBox
	upserts  int
	failOn   int
}

func newMemEntities() *memEntities {
	return &memEntities{
		orders:   make(map[string]domain.Order),
		products: make(map[string]domain.Product),
		services: make(map[string]domain.ShippingService),
		boxes:    make(map[string]domain.ShippingBox),
	}
}

func (m *memEntities) FindOrders(ctx context.Context, channelID string, externalIDs []string) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Order
	for _, id := range externalIDs {
		if o, ok := m.orders[channelID+"/"+id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memEntities) UpsertOrders(ctx context.Context, orders []domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upserts++
	if m.failOn > 0 && m.upserts == m.failOn {
		return errors.New("write conflict")
	}
	for _, o := range orders {
		m.orders[o.ChannelID+"/"+o.ExternalID] = o
	}
	return nil
}

func (m *memEntities) RedactOrders(ctx context.Context, channelID string, externalIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, id := range externalIDs {
		key := channelID + "/" + id
		if o, ok := m.orders[key]; ok && o.Email != "" {
			o.Email = ""
			m.orders[key] = o
			n++
		}
	}
	return n, nil
}

func (m *memEntities) FindProducts(ctx context.Context, channelID string, externalIDs []string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Product
	for _, id := range externalIDs {
		if p, ok := m.products[channelID+"/"+id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memEntities) UpsertProducts(ctx context.Context, products []domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upserts++
	for _, p := range products {
		m.products[p.ChannelID+"/"+p.ExternalID] = p
	}
	return nil
}

func (m *memEntities) ListShippingServices(ctx context.Context, channelID string) ([]domain.ShippingService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.ShippingService
	for _, s := range m.services {
		if s.ChannelID == channelID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memEntities) UpsertShippingServices(ctx context.Context, services []domain.ShippingService) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range services {
		m.services[s.ChannelID+"/"+domain.CatalogKey(s.Carrier, s.ServiceCode)] = s
	}
	return nil
}

func (m *memEntities) ListShippingBoxes(ctx context.Context, channelID string) ([]domain.ShippingBox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.ShippingBox
	for _, b := range m.boxes {
		if b.ChannelID == channelID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memEntities) UpsertShippingBoxes(ctx context.Context, boxes []domain.ShippingBox) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range boxes {
		m.boxes[b.ChannelID+"/"+domain.CatalogKey(b.Carrier, b.PackageCode)] = b
	}
	return nil
}

func (m *memEntities) order(channelID, externalID string) (domain.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[channelID+"/"+externalID]
	return o, ok
}

func (m *memEntities) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// ============================================================================
// Platform fakes
// ============================================================================

// pagedClient serves pages keyed by the cursor they are requested with
type pagedClient struct {
	mu       sync.Mutex
	pages    map[string]*domain.Page
	failOn   map[string]error
	requests []domain.PageRequest
	test     *domain.ConnectionTest
	testErr  error

	// onFetch runs before a page is served, outside the client lock
	onFetch func(ctx context.Context, after string)
}

func (c *pagedClient) FetchPage(ctx context.Context, kind domain.EntityKind, req domain.PageRequest) (*domain.Page, error) {
	if c.onFetch != nil {
		c.onFetch(ctx, req.After)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if err, ok := c.failOn[req.After]; ok {
		return nil, err
	}
	page, ok := c.pages[req.After]
	if !ok {
		return &domain.Page{}, nil
	}
	return page, nil
}

func (c *pagedClient) TestConnection(ctx context.Context) (*domain.ConnectionTest, error) {
	return c.test, c.testErr
}

func (c *pagedClient) fetches() []domain.PageRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.PageRequest(nil), c.requests...)
}

type clientFactory struct {
	client *pagedClient
	err    error
}

func (f *clientFactory) ClientFor(ctx context.Context, channel *domain.ChannelIntegration) (ports.PlatformClient, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

type fakeCatalog struct {
	services    []domain.ShippingService
	boxes       []domain.ShippingBox
	servicesErr error
	test        *domain.ConnectionTest
}

func (c *fakeCatalog) ListServices(ctx context.Context) ([]domain.ShippingService, error) {
	return append([]domain.ShippingService(nil), c.services...), c.servicesErr
}

func (c *fakeCatalog) ListPackages(ctx context.Context) ([]domain.ShippingBox, error) {
	return append([]domain.ShippingBox(nil), c.boxes...), nil
}

func (c *fakeCatalog) TestConnection(ctx context.Context) (*domain.ConnectionTest, error) {
	return c.test, nil
}

type catalogFactory struct {
	catalog *fakeCatalog
}

func (f *catalogFactory) CatalogFor(ctx context.Context, channel *domain.ChannelIntegration) (ports.CarrierCatalog, error) {
	return f.catalog, nil
}

type fakeAuthorizer struct {
	rejectCallback bool
	token          string
	exchangeErr    error
	redirectURI    string
}

func (a *fakeAuthorizer) AuthorizationURL(shopDomain string, scopes []string, redirectURI, state string) (string, error) {
	a.redirectURI = redirectURI
	return fmt.Sprintf("https://%s/admin/oauth/authorize?scope=%s&state=%s", shopDomain, strings.Join(scopes, ","), state), nil
}

func (a *fakeAuthorizer) VerifyCallback(callbackURL *url.URL) (bool, error) {
	return !a.rejectCallback, nil
}

func (a *fakeAuthorizer) ExchangeToken(ctx context.Context, shopDomain, code string) (string, error) {
	return a.token, a.exchangeErr
}

type prefixSealer struct{}

func (prefixSealer) Seal(plaintext []byte) ([]byte, error) {
	return append([]byte("sealed:"), plaintext...), nil
}

func (prefixSealer) Open(sealed []byte) ([]byte, error) {
	return []byte(strings.TrimPrefix(string(sealed), "sealed:")), nil
}

// ============================================================================
// Observers
// ============================================================================

type progressLog struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (p *progressLog) Publish(event domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *progressLog) last() domain.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func (p *progressLog) stages() []domain.ProgressStage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ProgressStage, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Stage)
	}
	return out
}

type countingRecorder struct {
	mu        sync.Mutex
	pages     int
	records   int
	finished  []domain.SyncStatus
	conflicts int
}

func (r *countingRecorder) PageCommitted(kind domain.EntityKind, records int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages++
	r.records += records
}

func (r *countingRecorder) RunFinished(kind domain.EntityKind, status domain.SyncStatus, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, status)
}

func (r *countingRecorder) ConflictsDetected(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts += count
}

type triggerLog struct {
	mu    sync.Mutex
	calls []string
}

func (t *triggerLog) Start(ctx context.Context, channelID string, kind domain.EntityKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, channelID+":"+string(kind))
}

// ============================================================================
// Fixtures
// ============================================================================

var testWarehouses = memWarehouses{
	"store-1": {
		{ID: "W1", StoreID: "store-1", Name: "East"},
		{ID: "W2", StoreID: "store-1", Name: "West"},
		{ID: "W3", StoreID: "store-1", Name: "North"},
	},
}

func connectedShop(id string) domain.ChannelIntegration {
	connectedAt := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	return domain.ChannelIntegration{
		ID:          id,
		AccountID:   "acct-1",
		StoreID:     "store-1",
		Name:        "Shop " + id,
		Payload:     domain.EcommercePayload{Platform: domain.PlatformShopify, ShopDomain: id + ".myshopify.com"},
		Status:      domain.ChannelStatusConnected,
		Enabled:     true,
		ConnectedAt: &connectedAt,
		Credentials: []byte("sealed:{}"),
		Routing:     domain.RoutingConfig{Mode: domain.RoutingModeSimple, PrimaryWarehouseID: "W1", FallbackWarehouseID: "W2"},
		ProductSync: domain.ProductSyncConfig{Mode: domain.ProductSyncAllRoutingWarehouses},
		Inventory:   domain.InventorySettings{Direction: domain.SyncDirectionManual},
	}
}

func orderRecord(externalID, region string) domain.ExternalRecord {
	return domain.ExternalRecord{
		ExternalID: externalID,
		Platform:   domain.PlatformShopify,
		StoreID:    "store-1",
		UpdatedAt:  time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		Order: &domain.ExternalOrder{
			Name:              "#" + externalID,
			Email:             "buyer@example.com",
			FinancialStatus:   "PAID",
			FulfillmentStatus: "UNFULFILLED",
			TotalAmount:       "20.00",
			CurrencyCode:      "USD",
			RegionCode:        region,
			CountryCode:       "US",
			Lines: []domain.ExternalOrderLine{{
				ExternalID:  externalID + "-L1",
				SKU:         "SKU-1",
				Quantity:    2,
				UnitAmount:  "10.00",
				WeightValue: "1",
				WeightUnit:  "KILOGRAMS",
			}},
		},
	}
}

func productRecord(externalID string) domain.ExternalRecord {
	return domain.ExternalRecord{
		ExternalID: externalID,
		Platform:   domain.PlatformShopify,
		StoreID:    "store-1",
		UpdatedAt:  time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		Product: &domain.ExternalProduct{
			Title:  "Product " + externalID,
			Status: "ACTIVE",
			Variants: []domain.ExternalVariant{{
				ExternalID:   externalID + "-V1",
				SKU:          "SKU-" + externalID,
				Price:        "4.50",
				CurrencyCode: "USD",
			}},
		},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
