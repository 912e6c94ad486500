package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories/memory"
)

func TestSelectDiscount(t *testing.T) {
	tiers := []Discount{
		{ID: "d1", MinOrders: 5, Percent: decimal.NewFromInt(5), Active: true},
		{ID: "d2", MinOrders: 10, Percent: decimal.NewFromInt(10), Active: true},
		{ID: "d3", MinOrders: 20, Percent: decimal.NewFromInt(20), Active: false},
		{ID: "d5", MinOrders: 15, Percent: decimal.NewFromInt(12), Active: true},
		{ID: "d4", MinOrders: 15, Percent: decimal.NewFromInt(15), Active: true},
	}

	tests := []struct {
		name   string
		count  int
		wantID string
		found  bool
	}{
		{name: "below every tier", count: 4, found: false},
		{name: "exact threshold", count: 5, wantID: "d1", found: true},
		{name: "highest qualifying tier", count: 12, wantID: "d2", found: true},
		{name: "inactive tier ignored", count: 25, wantID: "d4", found: true},
		{name: "tie breaks on lowest id", count: 15, wantID: "d4", found: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SelectDiscount(tiers, tc.count)
			assert.Equal(t, tc.found, ok)
			if tc.found {
				assert.Equal(t, tc.wantID, got.ID)
			}
		})
	}
}

func TestApplyDiscount(t *testing.T) {
	breakdown := PricingBreakdown{Subtotal: decimal.NewFromInt(150000), Total: decimal.NewFromInt(150000)}

	discounted := ApplyDiscount(breakdown, &Discount{ID: "d2", Percent: decimal.NewFromInt(10)})
	assert.Equal(t, "135000", discounted.Total.String())
	assert.Equal(t, "15000", discounted.DiscountAmount.String())
	require.NotNil(t, discounted.DiscountPercent)
	assert.Equal(t, "10", discounted.DiscountPercent.String())

	plain := ApplyDiscount(breakdown, nil)
	assert.Equal(t, "150000", plain.Total.String())
	assert.Nil(t, plain.DiscountPercent)
}

func TestDiscountResolverCountPolicies(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewRegistry(nil)
	require.NoError(t, registry.Discounts().Insert(ctx, Discount{ID: "d1", MinOrders: 3, Percent: decimal.NewFromInt(5), Active: true}))

	statuses := []domain.OrderStatus{domain.OrderStatusCancelled, domain.OrderStatusCancelled, domain.OrderStatusDelivered}
	for _, status := range statuses {
		_, err := registry.Orders().Insert(ctx, Order{CustomerID: "cust-1", OrderStatus: status})
		require.NoError(t, err)
	}

	all := NewDiscountResolver(registry.Discounts(), registry.Orders(), DiscountCountAll)
	tier, count, err := all.Resolve(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NotNil(t, tier)
	assert.Equal(t, "d1", tier.ID)

	excluding := NewDiscountResolver(registry.Discounts(), registry.Orders(), DiscountCountExcludeCancelled)
	tier, count, err = excluding.Resolve(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Nil(t, tier)
}
