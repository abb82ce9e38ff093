package domain

// ProductSyncMode selects which warehouses receive imported products
type ProductSyncMode string

const (
	ProductSyncAllRoutingWarehouses ProductSyncMode = "all_routing_warehouses"
	ProductSyncPrimaryOnly          ProductSyncMode = "primary_only"
	ProductSyncSpecificWarehouses   ProductSyncMode = "specific_warehouses"
)

// ProductSyncConfig is the product import destination configuration of a channel
type ProductSyncConfig struct {
	Mode                 ProductSyncMode `json:"mode" validate:"required,oneof=all_routing_warehouses primary_only specific_warehouses"`
	SelectedWarehouseIDs []string        `json:"selectedWarehouseIds,omitempty"`
}

// Validate checks the selection requirement of specific_warehouses mode
func (c ProductSyncConfig) Validate() error {
	switch c.Mode {
	case ProductSyncAllRoutingWarehouses, ProductSyncPrimaryOnly:
		return nil
	case ProductSyncSpecificWarehouses:
		if len(c.SelectedWarehouseIDs) == 0 {
			return configErr("selectedWarehouseIds", "at least one destination warehouse is required")
		}
		return nil
	default:
		return configErr("mode", "unknown product sync mode %q", c.Mode)
	}
}

// WithoutWarehouse removes one selected destination. Removing the last one is rejected.
func (c ProductSyncConfig) WithoutWarehouse(warehouseID string) (ProductSyncConfig, error) {
	kept := make([]string, 0, len(c.SelectedWarehouseIDs))
	for _, id := range c.SelectedWarehouseIDs {
		if id != warehouseID {
			kept = append(kept, id)
		}
	}
	if c.Mode == ProductSyncSpecificWarehouses && len(kept) == 0 {
		return c, configErr("selectedWarehouseIds", "cannot remove the last destination warehouse")
	}
	c.SelectedWarehouseIDs = kept
	return c, nil
}

// ResolveProductDestinations returns the warehouses a product import writes to.
// Selected ids that no longer exist are dropped silently.
func ResolveProductDestinations(p ProductSyncConfig, r RoutingConfig, warehouses []Warehouse) ([]string, error) {
	known := warehouseSet(warehouses)

	switch p.Mode {
	case ProductSyncSpecificWarehouses:
		out := newOrderedSet()
		for _, id := range p.SelectedWarehouseIDs {
			if _, ok := known[id]; ok {
				out.add(id)
			}
		}
		return out.items, nil
	case ProductSyncPrimaryOnly:
		if err := checkPrimary(r, known); err != nil {
			return nil, err
		}
		return []string{r.PrimaryWarehouseID}, nil
	case ProductSyncAllRoutingWarehouses, "":
		if err := checkPrimary(r, known); err != nil {
			return nil, err
		}
		out := newOrderedSet()
		for _, id := range InRoutingSet(r) {
			if _, ok := known[id]; ok {
				out.add(id)
			}
		}
		return out.items, nil
	default:
		return nil, configErr("mode", "unknown product sync mode %q", p.Mode)
	}
}
