package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/wahyu285/loundry/internal/domain"
)

func TestOrderStatsService_OrderStats(t *testing.T) {
	f := newOrderFixture(t)
	f.insert(t, Order{ServiceID: "svc_kilo", ServiceName: "Cuci Kering", OrderStatus: domain.OrderStatusDelivered, PaymentStatus: domain.PaymentStatusPaid, PriceTotal: decimal.NewFromInt(50000)})
	f.insert(t, Order{ServiceID: "svc_kilo", ServiceName: "Cuci Kering", PaymentStatus: domain.PaymentStatusSettlement, PriceTotal: decimal.NewFromInt(25000)})
	f.insert(t, Order{ServiceID: "svc_item", ServiceName: "Satuan", OrderStatus: domain.OrderStatusCancelled, PriceTotal: decimal.NewFromInt(7000)})
	f.insert(t, Order{CustomerID: "cust-2", ServiceID: "svc_item", ServiceName: "Satuan", PriceTotal: decimal.NewFromInt(12000)})
	f.insert(t, Order{ServiceID: "svc_kilo", ServiceName: "Cuci Kering", OrderStatus: domain.OrderStatusDelivered, PaymentStatus: domain.PaymentStatusPaid, PriceTotal: decimal.NewFromInt(10000), CreatedAt: fixedNow.AddDate(0, 0, -2)})
	f.insert(t, Order{ServiceID: "svc_kilo", ServiceName: "Cuci Kering", OrderStatus: domain.OrderStatusDelivered, PaymentStatus: domain.PaymentStatusPaid, PriceTotal: decimal.NewFromInt(40000), CreatedAt: fixedNow.AddDate(0, 0, -10)})

	svc, err := NewOrderStatsService(OrderStatsServiceDeps{
		Orders:   f.registry.Orders(),
		Accounts: f.registry.Accounts(),
		Services: f.registry.Services(),
		Clock:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	ctx := context.Background()

	all, err := svc.OrderStats(ctx, staffActor, "")
	require.NoError(t, err)
	assert.Equal(t, 6, all.Total)
	assert.Equal(t, 3, all.Delivered)
	assert.Equal(t, 2, all.Pending)
	assert.Equal(t, 1, all.Cancelled)
	assert.Equal(t, "125000", all.PaidRevenue.String())
	assert.Equal(t, 4, all.PaidTransactions)
	assert.Equal(t, "75000", all.TodayRevenue.String())
	require.Len(t, all.FrequentServices, 2)
	assert.Equal(t, "Cuci Kering", all.FrequentServices[0].ServiceName)
	assert.Equal(t, 2, all.FrequentServices[1].Orders)

	require.Len(t, all.DailyRevenue, 7)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), all.DailyRevenue[0].Date)
	assert.Equal(t, time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC), all.DailyRevenue[6].Date)
	assert.Equal(t, "10000", all.DailyRevenue[4].Amount.String())
	assert.Equal(t, "75000", all.DailyRevenue[6].Amount.String())
	assert.True(t, all.DailyRevenue[5].Amount.IsZero())

	assert.Equal(t, 3, all.TotalAccounts)
	assert.Equal(t, 1, all.TotalCouriers)
	assert.Equal(t, 2, all.TotalServices)

	own, err := svc.OrderStats(ctx, customerActor, "cust-2")
	require.NoError(t, err)
	assert.Equal(t, 5, own.Total)
	assert.Zero(t, own.TotalAccounts)
	assert.Zero(t, own.TotalServices)

	filtered, err := svc.OrderStats(ctx, staffActor, "cust-2")
	require.NoError(t, err)
	assert.Equal(t, 1, filtered.Total)
	assert.Equal(t, 0, filtered.PaidTransactions)
	assert.True(t, filtered.TodayRevenue.IsZero())
	assert.Zero(t, filtered.TotalAccounts)

	_, err = svc.OrderStats(ctx, courierActor, "")
	assert.True(t, errors.Is(err, ErrOrderPermissionDenied))
}

func TestOrderStatsService_RevenueUsesBusinessDay(t *testing.T) {
	f := newOrderFixture(t)
	jakarta := time.FixedZone("WIB", 7*3600)
	// 2024-05-07 18:00 UTC is already 2024-05-08 in Jakarta.
	f.insert(t, Order{PaymentStatus: domain.PaymentStatusPaid, PriceTotal: decimal.NewFromInt(20000), CreatedAt: time.Date(2024, 5, 7, 18, 0, 0, 0, time.UTC)})
	f.insert(t, Order{PaymentStatus: domain.PaymentStatusPaid, PriceTotal: decimal.NewFromInt(5000), CreatedAt: time.Date(2024, 5, 7, 16, 0, 0, 0, time.UTC)})

	svc, err := NewOrderStatsService(OrderStatsServiceDeps{Orders: f.registry.Orders(), Clock: func() time.Time { return fixedNow }, Location: jakarta})
	require.NoError(t, err)

	stats, err := svc.OrderStats(context.Background(), staffActor, "")
	require.NoError(t, err)
	assert.Equal(t, "20000", stats.TodayRevenue.String())
	assert.Equal(t, "5000", stats.DailyRevenue[5].Amount.String())
	assert.Equal(t, time.Date(2024, 5, 8, 0, 0, 0, 0, jakarta), stats.DailyRevenue[6].Date)
	assert.Zero(t, stats.TotalAccounts)
}

func TestOrderStatsService_CourierStats(t *testing.T) {
	f := newOrderFixture(t)
	// fixedNow is Wednesday 2024-05-08.
	f.insert(t, Order{AssignedCourierID: "courier-1", CreatedAt: fixedNow.Add(-time.Hour)})
	f.insert(t, Order{AssignedCourierID: "courier-1", CreatedAt: time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)})
	f.insert(t, Order{AssignedCourierID: "courier-1", CreatedAt: time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)})
	f.insert(t, Order{AssignedCourierID: "courier-1", CreatedAt: time.Date(2024, 4, 29, 12, 0, 0, 0, time.UTC)})
	f.insert(t, Order{AssignedCourierID: "courier-2", CreatedAt: fixedNow})

	svc, err := NewOrderStatsService(OrderStatsServiceDeps{Orders: f.registry.Orders(), Clock: func() time.Time { return fixedNow }})
	require.NoError(t, err)

	stats, err := svc.CourierStats(context.Background(), courierActor)
	require.NoError(t, err)
	assert.Equal(t, CourierStats{Daily: 1, Weekly: 2, Monthly: 3}, stats)

	_, err = svc.CourierStats(context.Background(), customerActor)
	assert.True(t, errors.Is(err, ErrOrderPermissionDenied))
}
