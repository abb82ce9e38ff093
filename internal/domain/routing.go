package domain

import (
	"fmt"
	"strings"
)

// Warehouse is an entry of the store's warehouse registry
type Warehouse struct {
	ID         string `json:"id"`
	StoreID    string `json:"storeId"`
	Name       string `json:"name"`
	RegionCode string `json:"regionCode,omitempty"`
}

// RoutingMode selects how orders are mapped to warehouses
type RoutingMode string

const (
	RoutingModeSimple   RoutingMode = "simple"
	RoutingModeAdvanced RoutingMode = "advanced"
)

// RegionAssignment is a warehouse's claim on a set of destination regions
type RegionAssignment struct {
	WarehouseID string   `json:"warehouseId" validate:"required"`
	Regions     []string `json:"regions"`
	IsActive    bool     `json:"isActive"`
}

// RoutingConfig is the warehouse routing configuration of a channel
type RoutingConfig struct {
	Mode                RoutingMode        `json:"mode" validate:"required,oneof=simple advanced"`
	PrimaryWarehouseID  string             `json:"primaryWarehouseId"`
	FallbackWarehouseID string             `json:"fallbackWarehouseId,omitempty"`
	Assignments         []RegionAssignment `json:"assignments,omitempty" validate:"dive"`
}

// NormalizeRegion canonicalizes a region code for comparison
func NormalizeRegion(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsComplete reports whether a persisted routing config is structurally usable:
// a primary warehouse, and in advanced mode at least one non-empty assignment.
func (c RoutingConfig) IsComplete() bool {
	if c.PrimaryWarehouseID == "" {
		return false
	}
	if c.Mode == RoutingModeAdvanced {
		for _, a := range c.Assignments {
			if a.WarehouseID != "" && len(a.Regions) > 0 {
				return true
			}
		}
		return false
	}
	return c.Mode == RoutingModeSimple
}

// Validate checks the config against the store's warehouses. It is called at save time;
// resolution functions assume a config that passed it.
func (c RoutingConfig) Validate(warehouses []Warehouse) error {
	if c.Mode != RoutingModeSimple && c.Mode != RoutingModeAdvanced {
		return configErr("mode", "unknown routing mode %q", c.Mode)
	}
	known := warehouseSet(warehouses)
	if len(known) == 0 {
		return ErrNoWarehouses
	}
	if c.PrimaryWarehouseID == "" {
		return configErr("primaryWarehouseId", "a primary warehouse is required")
	}
	if _, ok := known[c.PrimaryWarehouseID]; !ok {
		return configErr("primaryWarehouseId", "warehouse %s does not exist", c.PrimaryWarehouseID)
	}
	if c.FallbackWarehouseID != "" {
		if c.FallbackWarehouseID == c.PrimaryWarehouseID {
			return configErr("fallbackWarehouseId", "fallback must differ from primary")
		}
		if _, ok := known[c.FallbackWarehouseID]; !ok {
			return configErr("fallbackWarehouseId", "warehouse %s does not exist", c.FallbackWarehouseID)
		}
	}
	if c.Mode != RoutingModeAdvanced {
		return nil
	}

	claimedBy := make(map[string]string)
	for i, a := range c.Assignments {
		field := fmt.Sprintf("assignments[%d]", i)
		if a.WarehouseID == "" {
			return configErr(field, "warehouse is required")
		}
		if _, ok := known[a.WarehouseID]; !ok {
			return configErr(field, "warehouse %s does not exist", a.WarehouseID)
		}
		if !a.IsActive {
			continue
		}
		for _, region := range uniqueRegions(a.Regions) {
			if owner, dup := claimedBy[region]; dup && owner != a.WarehouseID {
				return configErr(field, "region %s is already assigned to warehouse %s", region, owner)
			} else if dup {
				return configErr(field, "region %s is assigned twice to warehouse %s", region, owner)
			}
			claimedBy[region] = a.WarehouseID
		}
	}
	return nil
}

// ResolveRoutingWarehouses returns the ordered destination set for an order.
// Simple mode yields primary then fallback. Advanced mode yields the warehouse whose
// active assignment claims regionCode, or primary when none does.
func ResolveRoutingWarehouses(c RoutingConfig, warehouses []Warehouse, regionCode string) ([]string, error) {
	known := warehouseSet(warehouses)
	if err := checkPrimary(c, known); err != nil {
		return nil, err
	}

	if c.Mode == RoutingModeAdvanced {
		region := NormalizeRegion(regionCode)
		if region != "" {
			for _, a := range c.Assignments {
				if !a.IsActive {
					continue
				}
				if _, ok := known[a.WarehouseID]; !ok {
					continue
				}
				for _, r := range a.Regions {
					if NormalizeRegion(r) == region {
						return []string{a.WarehouseID}, nil
					}
				}
			}
		}
		return []string{c.PrimaryWarehouseID}, nil
	}

	result := []string{c.PrimaryWarehouseID}
	if fb := c.FallbackWarehouseID; fb != "" && fb != c.PrimaryWarehouseID {
		if _, ok := known[fb]; ok {
			result = append(result, fb)
		}
	}
	return result, nil
}

// ResolveOrderWarehouse picks the single warehouse an order is assigned to
func ResolveOrderWarehouse(c RoutingConfig, warehouses []Warehouse, regionCode string) (string, error) {
	ids, err := ResolveRoutingWarehouses(c, warehouses, regionCode)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// InRoutingSet returns every warehouse that participates in routing for the current mode.
// Primary is always first.
func InRoutingSet(c RoutingConfig) []string {
	out := newOrderedSet()
	out.add(c.PrimaryWarehouseID)
	switch c.Mode {
	case RoutingModeAdvanced:
		for _, a := range c.Assignments {
			if a.IsActive {
				out.add(a.WarehouseID)
			}
		}
	default:
		out.add(c.FallbackWarehouseID)
	}
	return out.items
}

func checkPrimary(c RoutingConfig, known map[string]struct{}) error {
	if len(known) == 0 {
		return ErrNoWarehouses
	}
	if c.PrimaryWarehouseID == "" {
		return configErr("primaryWarehouseId", "no primary warehouse configured")
	}
	if _, ok := known[c.PrimaryWarehouseID]; !ok {
		return configErr("primaryWarehouseId", "primary warehouse %s no longer exists", c.PrimaryWarehouseID)
	}
	return nil
}

func warehouseSet(warehouses []Warehouse) map[string]struct{} {
	set := make(map[string]struct{}, len(warehouses))
	for _, w := range warehouses {
		set[w.ID] = struct{}{}
	}
	return set
}

func uniqueRegions(regions []string) []string {
	seen := newOrderedSet()
	for _, r := range regions {
		seen.add(NormalizeRegion(r))
	}
	return seen.items
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
