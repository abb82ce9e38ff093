package shopify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"warehouse-channel-sync/internal/domain"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const ordersPageQuery = `
query OrdersPage($first: Int!, $after: String, $query: String) {
  orders(first: $first, after: $after, query: $query, sortKey: UPDATED_AT) {
    pageInfo {
      hasNextPage
      endCursor
    }
    nodes {
      id
      name
      email
      createdAt
      updatedAt
      cancelledAt
      displayFinancialStatus
      displayFulfillmentStatus
      totalPriceSet {
        shopMoney {
          amount
          currencyCode
        }
      }
      shippingAddress {
        provinceCode
        countryCodeV2
      }
      lineItems(first: 100) {
        nodes {
          id
          sku
          title
          quantity
          originalUnitPriceSet {
            shopMoney {
              amount
              currencyCode
            }
          }
          variant {
            inventoryItem {
              measurement {
                weight {
                  value
                  unit
                }
              }
            }
          }
        }
      }
    }
  }
}`

const productsPageQuery = `
query ProductsPage($first: Int!, $after: String, $query: String) {
  shop {
    currencyCode
  }
  products(first: $first, after: $after, query: $query, sortKey: UPDATED_AT) {
    pageInfo {
      hasNextPage
      endCursor
    }
    nodes {
      id
      title
      status
      vendor
      productType
      handle
      updatedAt
      variants(first: 100) {
        nodes {
          id
          sku
          title
          price
          inventoryQuantity
          inventoryItem {
            measurement {
              weight {
                value
                unit
              }
            }
          }
        }
      }
    }
  }
}`

// pageQueries maps each entity kind to its operation
var pageQueries = map[domain.EntityKind]string{
	domain.EntityOrders:   ordersPageQuery,
	domain.EntityProducts: productsPageQuery,
}

// checkQueries parses every page query and requires exactly one named operation
func checkQueries(queries map[domain.EntityKind]string) error {
	for kind, q := range queries {
		doc, err := parser.ParseQuery(&ast.Source{Name: string(kind), Input: q})
		if err != nil {
			return fmt.Errorf("invalid %s query: %w", kind, err)
		}
		if len(doc.Operations) != 1 || doc.Operations[0].Name == "" {
			return fmt.Errorf("invalid %s query: expected one named operation", kind)
		}
		if doc.Operations[0].Operation != ast.Query {
			return fmt.Errorf("invalid %s query: not a query operation", kind)
		}
	}
	return nil
}

// updatedAtFilter builds the search syntax used for incremental pulls
func updatedAtFilter(min *time.Time) *string {
	if min == nil {
		return nil
	}
	f := fmt.Sprintf("updated_at:>='%s'", min.UTC().Format(time.RFC3339))
	return &f
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type moneySet struct {
	ShopMoney money `json:"shopMoney"`
}

type weight struct {
	Value json.Number `json:"value"`
	Unit  string      `json:"unit"`
}

type inventoryItem struct {
	Measurement *struct {
		Weight *weight `json:"weight"`
	} `json:"measurement"`
}

func (i *inventoryItem) weight() (string, string) {
	if i == nil || i.Measurement == nil || i.Measurement.Weight == nil {
		return "", ""
	}
	return i.Measurement.Weight.Value.String(), i.Measurement.Weight.Unit
}

type orderNode struct {
	ID                       string     `json:"id"`
	Name                     string     `json:"name"`
	Email                    string     `json:"email"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
	CancelledAt              *time.Time `json:"cancelledAt"`
	DisplayFinancialStatus   string     `json:"displayFinancialStatus"`
	DisplayFulfillmentStatus string     `json:"displayFulfillmentStatus"`
	TotalPriceSet            moneySet   `json:"totalPriceSet"`
	ShippingAddress          *struct {
		ProvinceCode  string `json:"provinceCode"`
		CountryCodeV2 string `json:"countryCodeV2"`
	} `json:"shippingAddress"`
	LineItems struct {
		Nodes []struct {
			ID                   string   `json:"id"`
			SKU                  string   `json:"sku"`
			Title                string   `json:"title"`
			Quantity             int      `json:"quantity"`
			OriginalUnitPriceSet moneySet `json:"originalUnitPriceSet"`
			Variant              *struct {
				InventoryItem *inventoryItem `json:"inventoryItem"`
			} `json:"variant"`
		} `json:"nodes"`
	} `json:"lineItems"`
}

type ordersPageResponse struct {
	Orders struct {
		PageInfo pageInfo    `json:"pageInfo"`
		Nodes    []orderNode `json:"nodes"`
	} `json:"orders"`
}

type productNode struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Vendor      string    `json:"vendor"`
	ProductType string    `json:"productType"`
	Handle      string    `json:"handle"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Variants    struct {
		Nodes []struct {
			ID                string         `json:"id"`
			SKU               string         `json:"sku"`
			Title             string         `json:"title"`
			Price             string         `json:"price"`
			InventoryQuantity int            `json:"inventoryQuantity"`
			InventoryItem     *inventoryItem `json:"inventoryItem"`
		} `json:"nodes"`
	} `json:"variants"`
}

type productsPageResponse struct {
	Shop struct {
		CurrencyCode string `json:"currencyCode"`
	} `json:"shop"`
	Products struct {
		PageInfo pageInfo      `json:"pageInfo"`
		Nodes    []productNode `json:"nodes"`
	} `json:"products"`
}

func (n orderNode) toRecord(storeID string) domain.ExternalRecord {
	order := &domain.ExternalOrder{
		Name:              n.Name,
		Email:             n.Email,
		FinancialStatus:   n.DisplayFinancialStatus,
		FulfillmentStatus: n.DisplayFulfillmentStatus,
		Cancelled:         n.CancelledAt != nil,
		TotalAmount:       n.TotalPriceSet.ShopMoney.Amount,
		CurrencyCode:      n.TotalPriceSet.ShopMoney.CurrencyCode,
		CreatedAt:         n.CreatedAt,
	}
	if n.ShippingAddress != nil {
		order.RegionCode = n.ShippingAddress.ProvinceCode
		order.CountryCode = n.ShippingAddress.CountryCodeV2
	}
	for _, li := range n.LineItems.Nodes {
		line := domain.ExternalOrderLine{
			ExternalID:   li.ID,
			SKU:          li.SKU,
			Title:        li.Title,
			Quantity:     li.Quantity,
			UnitAmount:   li.OriginalUnitPriceSet.ShopMoney.Amount,
			CurrencyCode: li.OriginalUnitPriceSet.ShopMoney.CurrencyCode,
		}
		if li.Variant != nil {
			line.WeightValue, line.WeightUnit = li.Variant.InventoryItem.weight()
		}
		order.Lines = append(order.Lines, line)
	}

	return domain.ExternalRecord{
		ExternalID: n.ID,
		Platform:   domain.PlatformShopify,
		StoreID:    storeID,
		UpdatedAt:  n.UpdatedAt,
		Order:      order,
	}
}

func (n productNode) toRecord(storeID, currency string) domain.ExternalRecord {
	product := &domain.ExternalProduct{
		Title:       n.Title,
		Status:      n.Status,
		Vendor:      n.Vendor,
		ProductType: n.ProductType,
		Handle:      strings.TrimSpace(n.Handle),
	}
	for _, v := range n.Variants.Nodes {
		variant := domain.ExternalVariant{
			ExternalID:        v.ID,
			SKU:               v.SKU,
			Title:             v.Title,
			Price:             v.Price,
			CurrencyCode:      currency,
			InventoryQuantity: v.InventoryQuantity,
		}
		variant.WeightValue, variant.WeightUnit = v.InventoryItem.weight()
		product.Variants = append(product.Variants, variant)
	}

	return domain.ExternalRecord{
		ExternalID: n.ID,
		Platform:   domain.PlatformShopify,
		StoreID:    storeID,
		UpdatedAt:  n.UpdatedAt,
		Product:    product,
	}
}
