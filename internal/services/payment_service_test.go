package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/wahyu285/loundry/internal/domain"
)

func TestMapGatewayStatus(t *testing.T) {
	tests := map[string]PaymentStatus{
		"capture":    domain.PaymentStatusPaid,
		"settlement": domain.PaymentStatusPaid,
		"Settlement": domain.PaymentStatusPaid,
		"cancel":     domain.PaymentStatusUnpaid,
		"deny":       domain.PaymentStatusUnpaid,
		"expire":     domain.PaymentStatusUnpaid,
		"pending":    PaymentStatus("pending"),
		"refund":     PaymentStatus("refund"),
	}
	for external, want := range tests {
		assert.Equal(t, want, MapGatewayStatus(external), external)
	}
}

func TestPaymentService_Reconcile(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.insert(t, Order{PaymentMethod: domain.PaymentMethodQRIS, NotifiedCustomer: true})

	svc, err := NewPaymentService(PaymentServiceDeps{
		Orders: f.registry.Orders(),
		Events: f.events,
		Logger: func(_ context.Context, event string, _ map[string]any) {
			f.logged = append(f.logged, event)
		},
	})
	require.NoError(t, err)

	txID := domain.NewTransactionID(order.ID, fixedNow)
	result, err := svc.Reconcile(ctx, ReconcilePaymentCommand{Source: "webhook", TransactionID: txID, TransactionStatus: "settlement"})
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.True(t, result.Changed)
	assert.Equal(t, domain.PaymentStatusPaid, result.PaymentStatus)

	stored, err := f.registry.Orders().FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, stored.PaymentStatus)
	assert.True(t, stored.NotifiedCustomer, "payment reconciliation must not reset the notification flag")
	require.Len(t, f.events.events, 1)
	assert.Equal(t, orderEventPaymentChanged, f.events.events[0].Type)

	// duplicate delivery
	again, err := svc.Reconcile(ctx, ReconcilePaymentCommand{Source: "webhook", TransactionID: txID, TransactionStatus: "settlement"})
	require.NoError(t, err)
	assert.True(t, again.Found)
	assert.False(t, again.Changed)
	assert.Equal(t, domain.PaymentStatusPaid, again.PaymentStatus)
	assert.Len(t, f.events.events, 1)

	pending, err := svc.Reconcile(ctx, ReconcilePaymentCommand{Source: "callback", TransactionID: txID, TransactionStatus: "pending"})
	require.NoError(t, err)
	assert.Equal(t, PaymentStatus("pending"), pending.PaymentStatus)
}

func TestPaymentService_ReconcileMissingOrder(t *testing.T) {
	f := newOrderFixture(t)
	svc, err := NewPaymentService(PaymentServiceDeps{
		Orders: f.registry.Orders(),
		Logger: func(_ context.Context, event string, _ map[string]any) {
			f.logged = append(f.logged, event)
		},
	})
	require.NoError(t, err)

	result, err := svc.Reconcile(context.Background(), ReconcilePaymentCommand{TransactionID: "ORDER-999-1715160600", TransactionStatus: "settlement"})
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, int64(999), result.OrderID)
	assert.Contains(t, f.logged, "payment.reconcile_order_missing")
}

func TestPaymentService_ReconcileRejectsMalformedReference(t *testing.T) {
	f := newOrderFixture(t)
	svc, err := NewPaymentService(PaymentServiceDeps{Orders: f.registry.Orders()})
	require.NoError(t, err)

	_, err = svc.Reconcile(context.Background(), ReconcilePaymentCommand{TransactionID: "INV-abc", TransactionStatus: "settlement"})
	assert.True(t, errors.Is(err, domain.ErrMalformedTransactionID))

	order := f.insert(t, Order{})
	_, err = svc.Reconcile(context.Background(), ReconcilePaymentCommand{TransactionID: domain.NewTransactionID(order.ID, fixedNow)})
	assert.Error(t, err)
}
