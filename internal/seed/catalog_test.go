package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories/memory"
)

const sampleCatalog = `
services:
  - id: cuci-kering
    name: Cuci Kering
    price: "7000"
    type: per_kilo
    duration: biasa
  - id: cuci-satuan
    name: Cuci Satuan
    price: "0"
    type: PER_ITEM
    duration: express
items:
  - id: kemeja
    name: Kemeja
    price: "15000"
discounts:
  - id: loyal-5
    name: Pelanggan Setia
    min_orders: 5
    percent: "10"
  - id: retired
    name: Promo Lama
    min_orders: 1
    percent: "5"
    active: false
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)

	require.Len(t, catalog.Services, 2)
	require.Len(t, catalog.Items, 1)
	require.Len(t, catalog.Discounts, 2)
	assert.Equal(t, "PER_ITEM", catalog.Services[1].Type)
	require.NotNil(t, catalog.Discounts[1].Active)
	assert.False(t, *catalog.Discounts[1].Active)
}

func TestParseCatalogRejectsUnknownKeys(t *testing.T) {
	_, err := ParseCatalog([]byte("services:\n  - id: a\n    prise: \"1\"\n"))
	require.Error(t, err)
}

func TestParseCatalogEmptyDocument(t *testing.T) {
	catalog, err := ParseCatalog(nil)
	require.NoError(t, err)
	assert.Empty(t, catalog.Services)
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, catalog.Services, 2)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestApplierCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry(time.Now)
	first := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	now := first
	applier := NewApplier(TargetFromRegistry(reg), WithClock(func() time.Time { return now }))

	catalog, err := ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)

	result, err := applier.Apply(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 5}, result)

	svc, err := reg.Services().FindByID(ctx, "cuci-satuan")
	require.NoError(t, err)
	assert.Equal(t, domain.ServiceTypePerItem, svc.Type)
	assert.True(t, svc.Price.IsZero())

	active, err := reg.Discounts().List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "loyal-5", active[0].ID)
	assert.True(t, active[0].Percent.Equal(decimal.NewFromInt(10)))

	now = second
	catalog.Items[0].Price = "17500"
	result, err = applier.Apply(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 5}, result)

	item, err := reg.Items().FindByID(ctx, "kemeja")
	require.NoError(t, err)
	assert.True(t, item.Price.Equal(decimal.NewFromInt(17500)))
	assert.True(t, item.CreatedAt.Equal(first))
	assert.True(t, item.UpdatedAt.Equal(second))
}

func TestApplierValidatesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry(time.Now)
	applier := NewApplier(TargetFromRegistry(reg))

	catalog := Catalog{
		Services: []ServiceEntry{
			{ID: "ok", Name: "Cuci", Price: "5000", Type: "per_kilo", Duration: "biasa"},
			{ID: "bad", Name: "Setrika", Price: "-1", Type: "per_meter", Duration: "kilat"},
		},
		Discounts: []DiscountEntry{
			{ID: "too-much", Name: "Gratis", Percent: "150"},
			{ID: "too-much", Name: "Dup", Percent: "5"},
		},
	}

	_, err := applier.Apply(ctx, catalog)
	require.ErrorIs(t, err, ErrInvalidCatalog)
	assert.Contains(t, err.Error(), "unsupported type")
	assert.Contains(t, err.Error(), "must not exceed 100")
	assert.Contains(t, err.Error(), "declared twice")

	services, err := reg.Services().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, services)
}
