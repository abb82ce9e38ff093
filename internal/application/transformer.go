package application

import (
	"strings"

	"warehouse-channel-sync/internal/domain"

	"github.com/shopspring/decimal"
)

// Grams per unit of each accepted weight unit
var gramsPerUnit = map[string]decimal.Decimal{
	"GRAMS":     decimal.NewFromInt(1),
	"G":         decimal.NewFromInt(1),
	"KILOGRAMS": decimal.NewFromInt(1000),
	"KG":        decimal.NewFromInt(1000),
	"OUNCES":    decimal.RequireFromString("28.349523125"),
	"OZ":        decimal.RequireFromString("28.349523125"),
	"POUNDS":    decimal.RequireFromString("453.59237"),
	"LB":        decimal.RequireFromString("453.59237"),
	"LBS":       decimal.RequireFromString("453.59237"),
}

// TransformOrder maps one external order into the internal shape. It has no side
// effects: local ids, timestamps and routing are filled in by the pipeline.
func TransformOrder(channel *domain.ChannelIntegration, rec domain.ExternalRecord) (domain.Order, []domain.TransformWarning) {
	var warnings []domain.TransformWarning
	src := rec.Order
	if src == nil {
		src = &domain.ExternalOrder{}
	}

	status, ok := mapOrderStatus(src.FinancialStatus, src.FulfillmentStatus, src.Cancelled)
	if !ok {
		warnings = append(warnings, domain.TransformWarning{
			ExternalID: rec.ExternalID,
			Field:      "status",
			Value:      src.FinancialStatus + "/" + src.FulfillmentStatus,
			Message:    "unrecognized order status, defaulted to unknown",
		})
	}

	total, warn := parseAmount(rec.ExternalID, "totalAmount", src.TotalAmount)
	warnings = appendWarning(warnings, warn)

	order := domain.Order{
		StoreID:           firstNonEmpty(rec.StoreID, channel.StoreID),
		ChannelID:         channel.ID,
		Platform:          rec.Platform,
		ExternalID:        rec.ExternalID,
		Name:              src.Name,
		Email:             src.Email,
		Status:            status,
		Total:             domain.Money{Amount: total, Currency: src.CurrencyCode},
		ShippingRegion:    domain.NormalizeRegion(src.RegionCode),
		ShippingCountry:   domain.NormalizeRegion(src.CountryCode),
		TotalWeightGrams:  decimal.Zero,
		PlacedAt:          src.CreatedAt,
		ExternalUpdatedAt: rec.UpdatedAt,
	}

	for _, line := range src.Lines {
		price, warn := parseAmount(rec.ExternalID, "lines.unitAmount", line.UnitAmount)
		warnings = appendWarning(warnings, warn)

		grams, warn := toGrams(rec.ExternalID, "lines.weight", line.WeightValue, line.WeightUnit)
		warnings = appendWarning(warnings, warn)

		order.Lines = append(order.Lines, domain.OrderLine{
			ExternalID:  line.ExternalID,
			SKU:         line.SKU,
			Title:       line.Title,
			Quantity:    line.Quantity,
			UnitPrice:   domain.Money{Amount: price, Currency: firstNonEmpty(line.CurrencyCode, src.CurrencyCode)},
			WeightGrams: grams,
		})
		order.TotalWeightGrams = order.TotalWeightGrams.Add(grams.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return order, warnings
}

// TransformProduct maps one external product into the internal shape
func TransformProduct(channel *domain.ChannelIntegration, rec domain.ExternalRecord) (domain.Product, []domain.TransformWarning) {
	var warnings []domain.TransformWarning
	src := rec.Product
	if src == nil {
		src = &domain.ExternalProduct{}
	}

	status, ok := mapProductStatus(src.Status)
	if !ok {
		warnings = append(warnings, domain.TransformWarning{
			ExternalID: rec.ExternalID,
			Field:      "status",
			Value:      src.Status,
			Message:    "unrecognized product status, defaulted to unknown",
		})
	}

	product := domain.Product{
		StoreID:           firstNonEmpty(rec.StoreID, channel.StoreID),
		ChannelID:         channel.ID,
		Platform:          rec.Platform,
		ExternalID:        rec.ExternalID,
		Title:             src.Title,
		Vendor:            src.Vendor,
		ProductType:       src.ProductType,
		Handle:            src.Handle,
		Status:            status,
		IsActive:          true,
		ExternalUpdatedAt: rec.UpdatedAt,
	}

	for _, v := range src.Variants {
		price, warn := parseAmount(rec.ExternalID, "variants.price", v.Price)
		warnings = appendWarning(warnings, warn)

		grams, warn := toGrams(rec.ExternalID, "variants.weight", v.WeightValue, v.WeightUnit)
		warnings = appendWarning(warnings, warn)

		product.Variants = append(product.Variants, domain.Variant{
			ExternalID:        v.ExternalID,
			SKU:               v.SKU,
			Title:             v.Title,
			Price:             domain.Money{Amount: price, Currency: v.CurrencyCode},
			WeightGrams:       grams,
			InventoryQuantity: v.InventoryQuantity,
		})
	}

	return product, warnings
}

func mapOrderStatus(financial, fulfillment string, cancelled bool) (domain.OrderStatus, bool) {
	financial = strings.ToUpper(strings.TrimSpace(financial))
	fulfillment = strings.ToUpper(strings.TrimSpace(fulfillment))

	if cancelled || financial == "VOIDED" {
		return domain.OrderStatusCancelled, true
	}
	if financial == "REFUNDED" {
		return domain.OrderStatusRefunded, true
	}
	switch fulfillment {
	case "FULFILLED":
		return domain.OrderStatusFulfilled, true
	case "PARTIALLY_FULFILLED", "PARTIAL":
		return domain.OrderStatusPartiallyFulfilled, true
	case "", "UNFULFILLED", "PENDING_FULFILLMENT", "OPEN", "IN_PROGRESS", "ON_HOLD", "SCHEDULED", "RESTOCKED", "REQUEST_DECLINED":
	default:
		return domain.OrderStatusUnknown, false
	}
	switch financial {
	case "PAID", "PARTIALLY_REFUNDED":
		return domain.OrderStatusPaid, true
	case "", "PENDING", "AUTHORIZED", "PARTIALLY_PAID", "EXPIRED":
		return domain.OrderStatusPending, true
	default:
		return domain.OrderStatusUnknown, false
	}
}

func mapProductStatus(status string) (domain.ProductStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "ACTIVE":
		return domain.ProductStatusActive, true
	case "DRAFT":
		return domain.ProductStatusDraft, true
	case "ARCHIVED":
		return domain.ProductStatusArchived, true
	default:
		return domain.ProductStatusUnknown, false
	}
}

func parseAmount(externalID, field, raw string) (decimal.Decimal, *domain.TransformWarning) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &domain.TransformWarning{ExternalID: externalID, Field: field, Value: raw, Message: "unparseable amount, defaulted to zero"}
	}
	return d, nil
}

// toGrams converts a weight to grams. An unknown or missing unit yields zero.
func toGrams(externalID, field, value, unit string) (decimal.Decimal, *domain.TransformWarning) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, &domain.TransformWarning{ExternalID: externalID, Field: field, Value: value, Message: "unparseable weight, defaulted to zero"}
	}
	if amount.IsZero() {
		return decimal.Zero, nil
	}
	factor, ok := gramsPerUnit[strings.ToUpper(strings.TrimSpace(unit))]
	if !ok {
		return decimal.Zero, &domain.TransformWarning{ExternalID: externalID, Field: field + "Unit", Value: unit, Message: "unknown weight unit, defaulted to zero"}
	}
	return amount.Mul(factor), nil
}

func appendWarning(warnings []domain.TransformWarning, w *domain.TransformWarning) []domain.TransformWarning {
	if w == nil {
		return warnings
	}
	return append(warnings, *w)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
