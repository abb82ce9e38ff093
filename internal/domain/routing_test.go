package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWarehouses(ids ...string) []Warehouse {
	out := make([]Warehouse, 0, len(ids))
	for _, id := range ids {
		out = append(out, Warehouse{ID: id, StoreID: "store-1", Name: "Warehouse " + id})
	}
	return out
}

// ============================================
// ResolveRoutingWarehouses Tests
// ============================================

func TestResolveRoutingWarehouses_Simple(t *testing.T) {
	warehouses := testWarehouses("W1", "W2", "W3")

	tests := []struct {
		name     string
		config   RoutingConfig
		expected []string
	}{
		{
			name:     "primary only",
			config:   RoutingConfig{Mode: RoutingModeSimple, PrimaryWarehouseID: "W1"},
			expected: []string{"W1"},
		},
		{
			name:     "primary and fallback",
			config:   RoutingConfig{Mode: RoutingModeSimple, PrimaryWarehouseID: "W1", FallbackWarehouseID: "W2"},
			expected: []string{"W1", "W2"},
		},
		{
			name:     "fallback no longer exists",
			config:   RoutingConfig{Mode: RoutingModeSimple, PrimaryWarehouseID: "W1", FallbackWarehouseID: "W9"},
			expected: []string{"W1"},
		},
		{
			name: "advanced assignments ignored in simple mode",
			config: RoutingConfig{
				Mode:                RoutingModeSimple,
				PrimaryWarehouseID:  "W1",
				FallbackWarehouseID: "W2",
				Assignments:         []RegionAssignment{{WarehouseID: "W3", Regions: []string{"CA"}, IsActive: true}},
			},
			expected: []string{"W1", "W2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRoutingWarehouses(tt.config, warehouses, "CA")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Contains(t, got, tt.config.PrimaryWarehouseID)
		})
	}
}

func TestResolveRoutingWarehouses_Advanced(t *testing.T) {
	warehouses := testWarehouses("W1", "W2", "W3")
	config := RoutingConfig{
		Mode:                RoutingModeAdvanced,
		PrimaryWarehouseID:  "W1",
		FallbackWarehouseID: "W2",
		Assignments: []RegionAssignment{
			{WarehouseID: "W3", Regions: []string{"CA", "or"}, IsActive: true},
			{WarehouseID: "W2", Regions: []string{"NY"}, IsActive: false},
		},
	}

	tests := []struct {
		region   string
		expected []string
	}{
		{"CA", []string{"W3"}},
		{" or ", []string{"W3"}},
		{"NY", []string{"W1"}},
		{"TX", []string{"W1"}},
		{"", []string{"W1"}},
	}

	for _, tt := range tests {
		t.Run("region "+tt.region, func(t *testing.T) {
			got, err := ResolveRoutingWarehouses(config, warehouses, tt.region)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveRoutingWarehouses_Errors(t *testing.T) {
	t.Run("primary unset while warehouses exist", func(t *testing.T) {
		_, err := ResolveRoutingWarehouses(RoutingConfig{Mode: RoutingModeSimple}, testWarehouses("W1"), "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfigInvalid))

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "primaryWarehouseId", cfgErr.Field)
	})

	t.Run("primary deleted from registry", func(t *testing.T) {
		_, err := ResolveRoutingWarehouses(RoutingConfig{Mode: RoutingModeSimple, PrimaryWarehouseID: "W7"}, testWarehouses("W1"), "")
		assert.ErrorIs(t, err, ErrConfigInvalid)
	})

	t.Run("no warehouses", func(t *testing.T) {
		_, err := ResolveRoutingWarehouses(RoutingConfig{Mode: RoutingModeSimple, PrimaryWarehouseID: "W1"}, nil, "")
		assert.ErrorIs(t, err, ErrNoWarehouses)
		assert.ErrorIs(t, err, ErrConfigInvalid)
	})
}

func TestResolveOrderWarehouse(t *testing.T) {
	warehouses := testWarehouses("W1", "W2")
	simple := RoutingConfig{Mode: RoutingModeSimple, PrimaryWarehouseID: "W1", FallbackWarehouseID: "W2"}

	id, err := ResolveOrderWarehouse(simple, warehouses, "CA")
	require.NoError(t, err)
	assert.Equal(t, "W1", id)

	advanced := RoutingConfig{
		Mode:               RoutingModeAdvanced,
		PrimaryWarehouseID: "W1",
		Assignments:        []RegionAssignment{{WarehouseID: "W2", Regions: []string{"CA"}, IsActive: true}},
	}
	id, err = ResolveOrderWarehouse(advanced, warehouses, "ca")
	require.NoError(t, err)
	assert.Equal(t, "W2", id)
}

// ============================================
// RoutingConfig.Validate Tests
// ============================================

func TestRoutingConfig_Validate(t *testing.T) {
	warehouses := testWarehouses("W1", "W2", "W3")

	tests := []struct {
		name    string
		config  RoutingConfig
		field   string
		wantErr bool
	}{
		{
			name:   "valid simple",
			config: RoutingConfig{Mode: RoutingModeSimple, PrimaryWarehouseID: "W1", FallbackWarehouseID: "W2"},
		},
		{
			name:    "unknown mode",
			config:  RoutingConfig{Mode: "weighted", PrimaryWarehouseID: "W1"},
			field:   "mode",
			wantErr: true,
		},
		{
			name:    "missing primary",
			config:  RoutingConfig{Mode: RoutingModeSimple},
			field:   "primaryWarehouseId",
			wantErr: true,
		},
		{
			name:    "fallback equals primary",
			config:  RoutingConfig{Mode: RoutingModeSimple, PrimaryWarehouseID: "W1", FallbackWarehouseID: "W1"},
			field:   "fallbackWarehouseId",
			wantErr: true,
		},
		{
			name:    "unknown fallback",
			config:  RoutingConfig{Mode: RoutingModeSimple, PrimaryWarehouseID: "W1", FallbackWarehouseID: "W8"},
			field:   "fallbackWarehouseId",
			wantErr: true,
		},
		{
			name: "valid advanced",
			config: RoutingConfig{
				Mode:               RoutingModeAdvanced,
				PrimaryWarehouseID: "W1",
				Assignments: []RegionAssignment{
					{WarehouseID: "W2", Regions: []string{"CA"}, IsActive: true},
					{WarehouseID: "W3", Regions: []string{"NY"}, IsActive: true},
				},
			},
		},
		{
			name: "region claimed by two active assignments",
			config: RoutingConfig{
				Mode:               RoutingModeAdvanced,
				PrimaryWarehouseID: "W1",
				Assignments: []RegionAssignment{
					{WarehouseID: "W2", Regions: []string{"CA", "NV"}, IsActive: true},
					{WarehouseID: "W3", Regions: []string{"ca"}, IsActive: true},
				},
			},
			field:   "assignments[1]",
			wantErr: true,
		},
		{
			name: "shared region allowed when one assignment is inactive",
			config: RoutingConfig{
				Mode:               RoutingModeAdvanced,
				PrimaryWarehouseID: "W1",
				Assignments: []RegionAssignment{
					{WarehouseID: "W2", Regions: []string{"CA"}, IsActive: true},
					{WarehouseID: "W3", Regions: []string{"CA"}, IsActive: false},
				},
			},
		},
		{
			name: "assignment references unknown warehouse",
			config: RoutingConfig{
				Mode:               RoutingModeAdvanced,
				PrimaryWarehouseID: "W1",
				Assignments:        []RegionAssignment{{WarehouseID: "W9", Regions: []string{"CA"}, IsActive: true}},
			},
			field:   "assignments[0]",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate(warehouses)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfigInvalid)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestRoutingConfig_ValidateWithoutWarehouses(t *testing.T) {
	err := RoutingConfig{Mode: RoutingModeSimple, PrimaryWarehouseID: "W1"}.Validate(nil)
	assert.ErrorIs(t, err, ErrNoWarehouses)
}

func TestRoutingConfig_IsComplete(t *testing.T) {
	assert.False(t, RoutingConfig{}.IsComplete())
	assert.False(t, RoutingConfig{Mode: RoutingModeSimple}.IsComplete())
	assert.True(t, RoutingConfig{Mode: RoutingModeSimple, PrimaryWarehouseID: "W1"}.IsComplete())
	assert.False(t, RoutingConfig{Mode: RoutingModeAdvanced, PrimaryWarehouseID: "W1"}.IsComplete())
	assert.False(t, RoutingConfig{
		Mode:               RoutingModeAdvanced,
		PrimaryWarehouseID: "W1",
		Assignments:        []RegionAssignment{{WarehouseID: "W2"}},
	}.IsComplete())
	assert.True(t, RoutingConfig{
		Mode:               RoutingModeAdvanced,
		PrimaryWarehouseID: "W1",
		Assignments:        []RegionAssignment{{WarehouseID: "W2", Regions: []string{"CA"}}},
	}.IsComplete())
}

func TestInRoutingSet(t *testing.T) {
	simple := RoutingConfig{
		Mode:                RoutingModeSimple,
		PrimaryWarehouseID:  "W1",
		FallbackWarehouseID: "W2",
		Assignments:         []RegionAssignment{{WarehouseID: "W3", Regions: []string{"CA"}, IsActive: true}},
	}
	assert.Equal(t, []string{"W1", "W2"}, InRoutingSet(simple))

	advanced := simple
	advanced.Mode = RoutingModeAdvanced
	advanced.Assignments = []RegionAssignment{
		{WarehouseID: "W3", Regions: []string{"CA"}, IsActive: true},
		{WarehouseID: "W1", Regions: []string{"NY"}, IsActive: true},
		{WarehouseID: "W4", Regions: []string{"TX"}, IsActive: false},
	}
	assert.Equal(t, []string{"W1", "W3"}, InRoutingSet(advanced))
}
