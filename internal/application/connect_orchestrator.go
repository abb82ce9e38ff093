package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/ports"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConnectState is a step of the connect flow
type ConnectState string

const (
	ConnectEditing      ConnectState = "EDITING"
	ConnectSavingConfig ConnectState = "SAVING_CONFIG"
	ConnectVerifying    ConnectState = "VERIFYING"
	ConnectVerifyFailed ConnectState = "VERIFY_FAILED"
	ConnectRedirecting  ConnectState = "REDIRECTING"
)

// ConnectTransition records one step of the connect flow
type ConnectTransition struct {
	From  ConnectState `json:"from"`
	To    ConnectState `json:"to"`
	Error string       `json:"error,omitempty"`
}

// ConnectOutcome is the typed result of a connect attempt. AuthorizationURL is set
// only when State is REDIRECTING.
type ConnectOutcome struct {
	ChannelID        string                   `json:"channelId"`
	State            ConnectState             `json:"state"`
	Transitions      []ConnectTransition      `json:"transitions"`
	AuthorizationURL string                   `json:"authorizationUrl,omitempty"`
	Conflicts        []domain.ConflictWarning `json:"conflicts,omitempty"`
	Err              error                    `json:"-"`
}

func (o *ConnectOutcome) move(to ConnectState, err error) {
	t := ConnectTransition{From: o.State, To: to}
	if err != nil {
		t.Error = err.Error()
		o.Err = err
	}
	o.Transitions = append(o.Transitions, t)
	o.State = to
}

// ConnectInput is what the user submits when connecting a sales channel
type ConnectInput struct {
	ChannelID   string                   `json:"channelId"`
	AccountID   string                   `json:"accountId" validate:"required"`
	StoreID     string                   `json:"storeId" validate:"required"`
	Name        string                   `json:"name" validate:"required"`
	ShopDomain  string                   `json:"shopDomain" validate:"required,hostname"`
	Routing     domain.RoutingConfig     `json:"routing"`
	ProductSync domain.ProductSyncConfig `json:"productSync"`
	Inventory   domain.InventorySettings `json:"inventory"`
	ReturnURL   string                   `json:"returnUrl" validate:"omitempty,url"`
}

// CallbackResult is the outcome of a completed authorization
type CallbackResult struct {
	ChannelID string `json:"channelId"`
	StoreID   string `json:"storeId"`
	ReturnURL string `json:"returnUrl,omitempty"`
}

// SyncTrigger starts a background sync run
type SyncTrigger interface {
	Start(ctx context.Context, channelID string, kind domain.EntityKind)
}

// ConnectOrchestrator persists a channel's configuration and proves it was persisted
// before handing the user to the platform's authorization page, then completes the
// authorization when the platform redirects back.
type ConnectOrchestrator struct {
	channels   *ChannelService
	repo       ports.ChannelRepository
	sessions   ports.ConnectSessionStore
	authorizer ports.Authorizer
	sealer     ports.CredentialSealer
	trigger    SyncTrigger
	validate   *validator.Validate
	appURL     string
	scopes     []string
	stateTTL   time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// NewConnectOrchestrator creates a new connect orchestrator
func NewConnectOrchestrator(
	channels *ChannelService,
	repo ports.ChannelRepository,
	sessions ports.ConnectSessionStore,
	authorizer ports.Authorizer,
	sealer ports.CredentialSealer,
	trigger SyncTrigger,
	appURL string,
	scopes []string,
	stateTTL time.Duration,
	logger zerolog.Logger,
) *ConnectOrchestrator {
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	return &ConnectOrchestrator{
		channels:   channels,
		repo:       repo,
		sessions:   sessions,
		authorizer: authorizer,
		sealer:     sealer,
		trigger:    trigger,
		validate:   newValidator(),
		appURL:     strings.TrimRight(appURL, "/"),
		scopes:     scopes,
		stateTTL:   stateTTL,
		now:        time.Now,
		logger:     logger,
	}
}

// Connect runs EDITING → SAVING_CONFIG → VERIFYING → REDIRECTING. Any failure ends back
// in EDITING with Err set; a failed verification passes through VERIFY_FAILED and never
// produces an authorization URL.
func (o *ConnectOrchestrator) Connect(ctx context.Context, input ConnectInput) *ConnectOutcome {
	out := &ConnectOutcome{ChannelID: input.ChannelID, State: ConnectEditing}
	if out.ChannelID == "" {
		out.ChannelID = uuid.NewString()
	}
	log := o.logger.With().Str("channelId", out.ChannelID).Str("shop", input.ShopDomain).Logger()

	if err := validateStruct(o.validate, input); err != nil {
		out.Err = err
		return out
	}
	if err := o.channels.validateRouting(ctx, input.StoreID, input.Routing, input.ProductSync); err != nil {
		out.Err = err
		return out
	}
	if input.Inventory.Direction != "" && !input.Inventory.Direction.IsValid() {
		out.Err = &domain.ConfigError{Field: "inventory.syncDirection", Reason: fmt.Sprintf("unknown direction %q", input.Inventory.Direction)}
		return out
	}
	inventory := input.Inventory.Normalize()

	// SAVING_CONFIG
	out.move(ConnectSavingConfig, nil)
	if err := o.saveConfig(ctx, out.ChannelID, input, inventory); err != nil {
		log.Error().Err(err).Msg("Failed to save channel configuration")
		out.move(ConnectVerifyFailed, err)
		out.move(ConnectEditing, err)
		return out
	}

	// VERIFYING
	out.move(ConnectVerifying, nil)
	saved, err := o.verify(ctx, out.ChannelID)
	if err != nil {
		log.Warn().Err(err).Msg("Saved configuration failed verification")
		out.move(ConnectVerifyFailed, err)
		out.move(ConnectEditing, err)
		return out
	}

	conflicts, err := o.channels.conflictsFor(ctx, saved, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to compute conflicts during connect")
	}
	out.Conflicts = conflicts

	// REDIRECTING
	authURL, err := o.authorizationURL(ctx, saved, input)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build authorization URL")
		out.Err = err
		out.move(ConnectEditing, err)
		return out
	}
	out.AuthorizationURL = authURL
	out.move(ConnectRedirecting, nil)

	log.Info().
		Str("storeId", input.StoreID).
		Int("conflicts", len(conflicts)).
		Msg("Configuration verified, redirecting to authorization")
	return out
}

func (o *ConnectOrchestrator) saveConfig(ctx context.Context, channelID string, input ConnectInput, inventory domain.InventorySettings) error {
	existing, err := o.repo.GetByID(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to read channel: %w", err)
	}

	routing := input.Routing
	product := input.ProductSync
	patch := domain.ChannelPatch{
		AccountID:   &input.AccountID,
		StoreID:     &input.StoreID,
		Name:        &input.Name,
		Payload:     domain.EcommercePayload{Platform: domain.PlatformShopify, ShopDomain: input.ShopDomain, Scopes: o.scopes},
		Routing:     &routing,
		ProductSync: &product,
		Inventory:   &inventory,
	}
	if existing == nil {
		status := domain.ChannelStatusDisconnected
		enabled := false
		patch.Status = &status
		patch.Enabled = &enabled
	}
	if err := o.repo.Save(ctx, channelID, patch); err != nil {
		return fmt.Errorf("failed to save channel configuration: %w", err)
	}
	return nil
}

// verify re-reads the channel from the store; the value used to issue the save is
// not trusted.
func (o *ConnectOrchestrator) verify(ctx context.Context, channelID string) (*domain.ChannelIntegration, error) {
	saved, err := o.repo.GetByID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("%w: read-back failed: %v", domain.ErrVerificationFailed, err)
	}
	if saved == nil {
		return nil, fmt.Errorf("%w: channel %s not found after save", domain.ErrVerificationFailed, channelID)
	}
	if saved.Routing.PrimaryWarehouseID == "" {
		return nil, fmt.Errorf("%w: primary warehouse missing", domain.ErrVerificationFailed)
	}
	if !saved.Routing.IsComplete() {
		return nil, fmt.Errorf("%w: routing configuration incomplete", domain.ErrVerificationFailed)
	}
	if err := saved.ProductSync.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}
	return saved, nil
}

func (o *ConnectOrchestrator) authorizationURL(ctx context.Context, channel *domain.ChannelIntegration, input ConnectInput) (string, error) {
	state, err := newStateToken()
	if err != nil {
		return "", err
	}

	now := o.now()
	session := &domain.ConnectSession{
		State:      state,
		ChannelID:  channel.ID,
		AccountID:  channel.AccountID,
		StoreID:    channel.StoreID,
		ShopDomain: input.ShopDomain,
		Scopes:     o.scopes,
		Routing:    channel.Routing,
		Product:    channel.ProductSync,
		Inventory:  channel.Inventory,
		ReturnURL:  input.ReturnURL,
		ExpiresAt:  now.Add(o.stateTTL),
		CreatedAt:  now,
	}
	if err := o.sessions.Put(ctx, session, o.stateTTL); err != nil {
		return "", fmt.Errorf("failed to store authorization state: %w", err)
	}

	redirectURI := o.appURL + "/auth/callback?store_id=" + url.QueryEscape(channel.StoreID)
	return o.authorizer.AuthorizationURL(input.ShopDomain, o.scopes, redirectURI, state)
}

// CompleteAuthorization handles the platform redirect: it checks the callback signature,
// consumes the single-use state, exchanges the code, stores the sealed token and starts
// the first sync of orders and products.
func (o *ConnectOrchestrator) CompleteAuthorization(ctx context.Context, callbackURL *url.URL) (*CallbackResult, error) {
	q := callbackURL.Query()
	state := q.Get("state")
	shop := q.Get("shop")
	code := q.Get("code")
	if state == "" || shop == "" || code == "" {
		return nil, fmt.Errorf("%w: callback is missing state, shop or code", domain.ErrStateInvalid)
	}

	ok, err := o.authorizer.VerifyCallback(callbackURL)
	if err != nil || !ok {
		o.logger.Warn().Err(err).Str("shop", shop).Msg("Authorization callback signature rejected")
		return nil, fmt.Errorf("%w: callback signature invalid", domain.ErrStateInvalid)
	}

	session, err := o.sessions.Take(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to read authorization state: %w", err)
	}
	if session == nil || session.IsExpired(o.now()) {
		return nil, fmt.Errorf("%w: unknown or expired state", domain.ErrStateInvalid)
	}
	if !strings.EqualFold(session.ShopDomain, shop) {
		return nil, fmt.Errorf("%w: state was issued for a different shop", domain.ErrStateInvalid)
	}
	if storeID := q.Get("store_id"); storeID != "" && storeID != session.StoreID {
		return nil, fmt.Errorf("%w: state was issued for a different store", domain.ErrStateInvalid)
	}

	token, err := o.authorizer.ExchangeToken(ctx, shop, code)
	if err != nil {
		o.logger.Error().Err(err).Str("shop", shop).Msg("Failed to exchange authorization code")
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	plaintext, err := json.Marshal(domain.Credentials{AccessToken: token})
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials: %w", err)
	}
	sealed, err := o.sealer.Seal(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credentials: %w", err)
	}

	now := o.now()
	status := domain.ChannelStatusConnected
	enabled := true
	patch := domain.ChannelPatch{
		Payload:     domain.EcommercePayload{Platform: domain.PlatformShopify, ShopDomain: shop, Scopes: session.Scopes},
		Status:      &status,
		Enabled:     &enabled,
		ConnectedAt: &now,
		Credentials: &sealed,
	}

	// Restore the configuration snapshot if the stored one was lost since the redirect
	current, err := o.repo.GetByID(ctx, session.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel: %w", err)
	}
	if current == nil || !current.Routing.IsComplete() {
		patch.AccountID = &session.AccountID
		patch.StoreID = &session.StoreID
		patch.Routing = &session.Routing
		patch.ProductSync = &session.Product
		patch.Inventory = &session.Inventory
		o.logger.Warn().Str("channelId", session.ChannelID).Msg("Restoring configuration snapshot from authorization state")
	}

	if err := o.repo.Save(ctx, session.ChannelID, patch); err != nil {
		return nil, fmt.Errorf("failed to save connected channel: %w", err)
	}

	o.logger.Info().
		Str("channelId", session.ChannelID).
		Str("storeId", session.StoreID).
		Str("shop", shop).
		Msg("Channel connected, starting initial sync")

	o.trigger.Start(ctx, session.ChannelID, domain.EntityOrders)
	o.trigger.Start(ctx, session.ChannelID, domain.EntityProducts)

	return &CallbackResult{ChannelID: session.ChannelID, StoreID: session.StoreID, ReturnURL: session.ReturnURL}, nil
}

// newStateToken returns 32 random bytes as hex
func newStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
