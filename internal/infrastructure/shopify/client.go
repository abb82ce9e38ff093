package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// client reads one shop through the Admin GraphQL API
type client struct {
	api     *goshopify.Client
	shop    string
	storeID string
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// FetchPage requests one cursor page of orders or products
func (c *client) FetchPage(ctx context.Context, kind domain.EntityKind, req domain.PageRequest) (*domain.Page, error) {
	vars := map[string]interface{}{
		"first": req.First,
	}
	if req.After != "" {
		vars["after"] = req.After
	}
	if filter := updatedAtFilter(req.UpdatedAtMin); filter != nil {
		vars["query"] = *filter
	}

	switch kind {
	case domain.EntityOrders:
		var resp ordersPageResponse
		if err := c.query(ctx, "fetch orders page", ordersPageQuery, vars, &resp); err != nil {
			return nil, err
		}
		page := &domain.Page{
			HasNextPage: resp.Orders.PageInfo.HasNextPage,
			EndCursor:   resp.Orders.PageInfo.EndCursor,
			Records:     make([]domain.ExternalRecord, 0, len(resp.Orders.Nodes)),
		}
		for _, n := range resp.Orders.Nodes {
			page.Records = append(page.Records, n.toRecord(c.storeID))
		}
		return page, nil

	case domain.EntityProducts:
		var resp productsPageResponse
		if err := c.query(ctx, "fetch products page", productsPageQuery, vars, &resp); err != nil {
			return nil, err
		}
		page := &domain.Page{
			HasNextPage: resp.Products.PageInfo.HasNextPage,
			EndCursor:   resp.Products.PageInfo.EndCursor,
			Records:     make([]domain.ExternalRecord, 0, len(resp.Products.Nodes)),
		}
		for _, n := range resp.Products.Nodes {
			page.Records = append(page.Records, n.toRecord(c.storeID, resp.Shop.CurrencyCode))
		}
		return page, nil
	}

	return nil, fmt.Errorf("%w: unknown entity kind %q", domain.ErrConfigInvalid, kind)
}

// TestConnection reads the shop resource, the lightest call that needs a valid token
func (c *client) TestConnection(ctx context.Context) (*domain.ConnectionTest, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	shop, err := c.api.Shop.Get(ctx, nil)
	if err != nil {
		classified := classifyError("get shop", err)
		if errors.Is(classified, domain.ErrPlatformAuth) {
			c.logger.Warn().Str("shop", c.shop).Msg("Token validation failed: token is invalid or revoked")
			return &domain.ConnectionTest{Success: false, Detail: "access token rejected"}, nil
		}
		return nil, classified
	}
	return &domain.ConnectionTest{Success: true, Detail: fmt.Sprintf("connected to %s (%s)", shop.Name, shop.MyshopifyDomain)}, nil
}

func (c *client) query(ctx context.Context, op, q string, vars map[string]interface{}, resp interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.api.GraphQL.Query(ctx, q, vars, resp); err != nil {
		return classifyError(op, err)
	}
	return nil
}

// classifyError maps go-shopify errors onto the platform error sentinels
func classifyError(op string, err error) error {
	var rateErr goshopify.RateLimitError
	var respErr goshopify.ResponseError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("failed to %s: %w", op, err)
	case errors.As(err, &rateErr):
		return fmt.Errorf("%w: %s: rate limited, retry after %ds", domain.ErrPlatformFetch, op, rateErr.RetryAfter)
	case errors.As(err, &respErr):
		if respErr.Status == http.StatusUnauthorized || respErr.Status == http.StatusForbidden || isAuthMessage(respErr.Error()) {
			return fmt.Errorf("%w: %s: %s", domain.ErrPlatformAuth, op, respErr.Error())
		}
		return fmt.Errorf("%w: %s: %s", domain.ErrPlatformFetch, op, respErr.Error())
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return fmt.Errorf("%w: %s: %v", domain.ErrPlatformInvalidResponse, op, err)
	case isAuthMessage(err.Error()):
		return fmt.Errorf("%w: %s: %v", domain.ErrPlatformAuth, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrPlatformFetch, op, err)
}

func isAuthMessage(msg string) bool {
	return containsAny(strings.ToLower(msg), "401", "unauthorized", "invalid api key", "invalid token", "access denied")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var _ ports.PlatformClient = (*client)(nil)
