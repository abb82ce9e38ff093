package domain

import "strings"

// MergeRule describes how an entity is matched against local storage and which
// fields stay under local ownership when a fresh copy arrives from the platform.
type MergeRule[T any] struct {
	// Key returns the natural key of a record
	Key func(T) string
	// KeepLocal copies the locally-owned fields of existing onto merged
	KeepLocal func(merged *T, existing T)
}

// Merge reconciles one incoming record with the stored one. The incoming record wins
// for every field except the locally-owned ones. Merge is pure: calling it twice
// with the same inputs yields the same output.
func Merge[T any](existing *T, incoming T, rule MergeRule[T]) T {
	if existing == nil {
		return incoming
	}
	merged := incoming
	rule.KeepLocal(&merged, *existing)
	return merged
}

// MergeAll merges a page of incoming records against the stored records of the same page.
// Incoming records with an empty key are dropped; duplicates within the page keep the last copy.
func MergeAll[T any](existing []T, incoming []T, rule MergeRule[T]) []T {
	stored := make(map[string]T, len(existing))
	for _, e := range existing {
		stored[rule.Key(e)] = e
	}

	position := make(map[string]int, len(incoming))
	out := make([]T, 0, len(incoming))
	for _, in := range incoming {
		key := rule.Key(in)
		if key == "" {
			continue
		}
		var merged T
		if e, ok := stored[key]; ok {
			merged = Merge(&e, in, rule)
		} else {
			merged = Merge(nil, in, rule)
		}
		if i, dup := position[key]; dup {
			out[i] = merged
			continue
		}
		position[key] = len(out)
		out = append(out, merged)
	}
	return out
}

// CatalogKey joins a carrier with a carrier-scoped code
func CatalogKey(carrier, code string) string {
	if carrier == "" || code == "" {
		return ""
	}
	return strings.ToLower(carrier) + "/" + code
}

var OrderMergeRule = MergeRule[Order]{
	Key: func(o Order) string { return o.ExternalID },
	KeepLocal: func(merged *Order, existing Order) {
		merged.ID = existing.ID
		merged.CreatedAt = existing.CreatedAt
		if existing.WarehouseID != "" {
			merged.WarehouseID = existing.WarehouseID
		}
	},
}

var ProductMergeRule = MergeRule[Product]{
	Key: func(p Product) string { return p.ExternalID },
	KeepLocal: func(merged *Product, existing Product) {
		merged.ID = existing.ID
		merged.CreatedAt = existing.CreatedAt
		merged.IsActive = existing.IsActive
	},
}

var ShippingServiceMergeRule = MergeRule[ShippingService]{
	Key: func(s ShippingService) string { return CatalogKey(s.Carrier, s.ServiceCode) },
	KeepLocal: func(merged *ShippingService, existing ShippingService) {
		merged.ID = existing.ID
		merged.CreatedAt = existing.CreatedAt
		merged.IsActive = existing.IsActive
	},
}

var ShippingBoxMergeRule = MergeRule[ShippingBox]{
	Key: func(b ShippingBox) string { return CatalogKey(b.Carrier, b.PackageCode) },
	KeepLocal: func(merged *ShippingBox, existing ShippingBox) {
		merged.ID = existing.ID
		merged.CreatedAt = existing.CreatedAt
		merged.IsActive = existing.IsActive
	},
}
