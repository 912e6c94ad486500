package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/payments"
	"github.com/wahyu285/loundry/internal/repositories"
	"github.com/wahyu285/loundry/internal/repositories/memory"
)

var fixedNow = time.Date(2024, 5, 8, 9, 30, 0, 0, time.UTC)

type stubPaymentManager struct {
	createFn func(context.Context, string, payments.SessionRequest) (payments.Session, error)
	requests []payments.SessionRequest
}

func (s *stubPaymentManager) CreateSession(ctx context.Context, preferred string, req payments.SessionRequest) (payments.Session, error) {
	s.requests = append(s.requests, req)
	if s.createFn != nil {
		return s.createFn(ctx, preferred, req)
	}
	return payments.Session{Provider: payments.ProviderMidtrans, Token: "snap-" + req.TransactionID}, nil
}

func (s *stubPaymentManager) DefaultProvider() string { return payments.ProviderMidtrans }

type captureOrderEvents struct {
	events []OrderEvent
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	c.events = append(c.events, event)
	return nil
}

type orderFixture struct {
	registry *memory.Registry
	payments *stubPaymentManager
	events   *captureOrderEvents
	service  OrderService
	logged   []string
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	ctx := context.Background()
	f := &orderFixture{
		registry: memory.NewRegistry(func() time.Time { return fixedNow }),
		payments: &stubPaymentManager{},
		events:   &captureOrderEvents{},
	}

	mustNoErr(t, f.registry.Services().Insert(ctx, Service{ID: "svc_kilo", Name: "Cuci Kering", Type: domain.ServiceTypePerKilo, Price: decimal.NewFromInt(50000), Duration: domain.DurationRegular}))
	mustNoErr(t, f.registry.Services().Insert(ctx, Service{ID: "svc_item", Name: "Satuan", Type: domain.ServiceTypePerItem, Price: decimal.NewFromInt(5000), Duration: domain.DurationFast}))
	mustNoErr(t, f.registry.Items().Insert(ctx, LaundryItem{ID: "itm_shirt", Name: "Kemeja", Price: decimal.NewFromInt(7000)}))
	mustNoErr(t, f.registry.Discounts().Insert(ctx, Discount{ID: "dsc_10", Name: "Loyal", MinOrders: 10, Percent: decimal.NewFromInt(10), Active: true}))
	mustNoErr(t, f.registry.Accounts().Upsert(ctx, Account{ID: "cust-1", Username: "sari", Email: "sari@example.com", IsCustomer: true}))
	mustNoErr(t, f.registry.Accounts().Upsert(ctx, Account{ID: "courier-1", Username: "budi", IsCourier: true}))
	mustNoErr(t, f.registry.Accounts().Upsert(ctx, Account{ID: "cust-2", Username: "andi", IsCustomer: true}))

	svc, err := NewOrderService(OrderServiceDeps{
		Orders:    f.registry.Orders(),
		Services:  f.registry.Services(),
		Items:     f.registry.Items(),
		Discounts: f.registry.Discounts(),
		Accounts:  f.registry.Accounts(),
		Payments:  f.payments,
		FinishURL: "https://laundry.example.com/api/v1/public/payments/finish",
		Clock:     func() time.Time { return fixedNow },
		Events:    f.events,
		Logger: func(_ context.Context, event string, _ map[string]any) {
			f.logged = append(f.logged, event)
		},
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	f.service = svc
	return f
}

func (f *orderFixture) insert(t *testing.T, order Order) Order {
	t.Helper()
	if order.OrderStatus == "" {
		order.OrderStatus = domain.OrderStatusPending
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = domain.PaymentStatusUnpaid
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = domain.PaymentMethodCOD
	}
	if order.CustomerID == "" {
		order.CustomerID = "cust-1"
	}
	created, err := f.registry.Orders().Insert(context.Background(), order)
	if err != nil {
		t.Fatalf("insert order: %v", err)
	}
	return created
}

var (
	customerActor = Actor{ID: "cust-1", Customer: true}
	otherCustomer = Actor{ID: "cust-2", Customer: true}
	courierActor  = Actor{ID: "courier-1", Courier: true}
	otherCourier  = Actor{ID: "courier-2", Courier: true}
	staffActor    = Actor{ID: "staff-1", Staff: true}
)

func coordinates() (*float64, *float64) {
	lat, lng := -6.2, 106.816666
	return &lat, &lng
}

func TestOrderService_CreateAppliesLoyaltyDiscount(t *testing.T) {
	f := newOrderFixture(t)
	for i := 0; i < 12; i++ {
		f.insert(t, Order{OrderStatus: domain.OrderStatusDelivered})
	}

	lat, lng := coordinates()
	result, err := f.service.CreateOrder(context.Background(), CreateOrderCommand{
		Actor:         customerActor,
		ServiceID:     "svc_kilo",
		PaymentMethod: domain.PaymentMethodCOD,
		Latitude:      lat,
		Longitude:     lng,
		Weight:        decimalPtr("3"),
		PickupAddress: "Jl. Melati <b>No. 5</b>",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	order := result.Order
	if !order.PriceTotal.Equal(decimal.NewFromInt(135000)) {
		t.Fatalf("expected total 135000, got %s", order.PriceTotal)
	}
	if order.DiscountPercent == nil || !order.DiscountPercent.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected 10%% discount, got %v", order.DiscountPercent)
	}
	if order.OrderStatus != domain.OrderStatusPending || order.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Fatalf("expected pending/unpaid, got %s/%s", order.OrderStatus, order.PaymentStatus)
	}
	if order.PickupAddress != "Jl. Melati No. 5" {
		t.Fatalf("expected sanitised address, got %q", order.PickupAddress)
	}
	if !order.ScheduledPickup.Equal(fixedNow) {
		t.Fatalf("expected scheduled pickup to default to now, got %s", order.ScheduledPickup)
	}
	if len(f.payments.requests) != 0 {
		t.Fatalf("cod order must not open a payment session")
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != orderEventCreated {
		t.Fatalf("expected order.created event, got %+v", f.events.events)
	}
}

func TestOrderService_CreateWithoutDiscount(t *testing.T) {
	f := newOrderFixture(t)

	lat, lng := coordinates()
	result, err := f.service.CreateOrder(context.Background(), CreateOrderCommand{
		Actor:     customerActor,
		ServiceID: "svc_item",
		Latitude:  lat,
		Longitude: lng,
		Items:     []OrderItemInput{{Name: "Kemeja", Quantity: 2}, {Name: "Jas", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if result.Order.DiscountPercent != nil {
		t.Fatalf("expected no discount")
	}
	if !result.Order.PriceTotal.Equal(decimal.NewFromInt(19000)) {
		t.Fatalf("expected 19000, got %s", result.Order.PriceTotal)
	}
	if len(result.Order.Items) != 1 || result.Order.Items[0].Name != "Kemeja" {
		t.Fatalf("expected item snapshot, got %+v", result.Order.Items)
	}
	if result.Order.PickupAddress != "Lat: -6.2, Lng: 106.816666" {
		t.Fatalf("expected coordinate fallback address, got %q", result.Order.PickupAddress)
	}
}

func TestOrderService_CreateSnapshotsSurviveCatalogChanges(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	lat, lng := coordinates()
	result, err := f.service.CreateOrder(ctx, CreateOrderCommand{
		Actor:     customerActor,
		ServiceID: "svc_item",
		Latitude:  lat,
		Longitude: lng,
		Items:     []OrderItemInput{{Name: "Kemeja", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	mustNoErr(t, f.registry.Items().Update(ctx, LaundryItem{ID: "itm_shirt", Name: "Kemeja", Price: decimal.NewFromInt(99000)}))
	mustNoErr(t, f.registry.Services().Update(ctx, Service{ID: "svc_item", Name: "Satuan", Type: domain.ServiceTypePerItem, Price: decimal.NewFromInt(1)}))

	stored, err := f.service.GetOrder(ctx, customerActor, result.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if !stored.PriceTotal.Equal(decimal.NewFromInt(12000)) {
		t.Fatalf("expected price snapshot 12000, got %s", stored.PriceTotal)
	}
	if !stored.Items[0].UnitPrice.Equal(decimal.NewFromInt(7000)) {
		t.Fatalf("expected unit price snapshot 7000, got %s", stored.Items[0].UnitPrice)
	}
}

func TestOrderService_CreateValidation(t *testing.T) {
	f := newOrderFixture(t)
	lat, lng := coordinates()

	tests := []struct {
		name string
		cmd  CreateOrderCommand
		want error
	}{
		{name: "missing service", cmd: CreateOrderCommand{Actor: customerActor, Latitude: lat, Longitude: lng}, want: ErrOrderInvalidInput},
		{name: "missing coordinates", cmd: CreateOrderCommand{Actor: customerActor, ServiceID: "svc_kilo"}, want: ErrOrderInvalidInput},
		{name: "unknown service", cmd: CreateOrderCommand{Actor: customerActor, ServiceID: "svc_none", Latitude: lat, Longitude: lng}, want: ErrOrderInvalidInput},
		{name: "unknown payment method", cmd: CreateOrderCommand{Actor: customerActor, ServiceID: "svc_kilo", Latitude: lat, Longitude: lng, PaymentMethod: "bitcoin"}, want: ErrOrderInvalidInput},
		{name: "courier cannot order", cmd: CreateOrderCommand{Actor: courierActor, ServiceID: "svc_kilo", Latitude: lat, Longitude: lng}, want: ErrOrderPermissionDenied},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.CreateOrder(context.Background(), tc.cmd)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	orders, _ := f.registry.Orders().List(context.Background(), domain.OrderListFilter{})
	if len(orders) != 0 {
		t.Fatalf("rejected submissions must not persist orders, found %d", len(orders))
	}
}

func TestOrderService_CreateStaffOnBehalfOfCustomer(t *testing.T) {
	f := newOrderFixture(t)
	lat, lng := coordinates()

	result, err := f.service.CreateOrder(context.Background(), CreateOrderCommand{
		Actor:      staffActor,
		CustomerID: "cust-2",
		ServiceID:  "svc_kilo",
		Latitude:   lat,
		Longitude:  lng,
		Weight:     decimalPtr("1"),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if result.Order.CustomerID != "cust-2" {
		t.Fatalf("expected order for cust-2, got %q", result.Order.CustomerID)
	}

	cases := []struct {
		name       string
		customerID string
	}{
		{"missing customer", ""},
		{"unknown customer", "ghost-999"},
		{"courier account", "courier-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.CreateOrder(context.Background(), CreateOrderCommand{
				Actor:      staffActor,
				CustomerID: tc.customerID,
				ServiceID:  "svc_kilo",
				Latitude:   lat,
				Longitude:  lng,
				Weight:     decimalPtr("3"),
			})
			if !errors.Is(err, ErrOrderInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
	orders, err := f.registry.Orders().List(context.Background(), domain.OrderListFilter{})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("rejected staff submissions must not persist orders, found %d", len(orders))
	}

	self, err := f.service.CreateOrder(context.Background(), CreateOrderCommand{
		Actor:     Actor{ID: "cust-1", Customer: true, Staff: true},
		ServiceID: "svc_kilo",
		Latitude:  lat,
		Longitude: lng,
		Weight:    decimalPtr("1"),
	})
	if err != nil {
		t.Fatalf("staff customer creating own order: %v", err)
	}
	if self.Order.CustomerID != "cust-1" {
		t.Fatalf("expected own order, got %q", self.Order.CustomerID)
	}
}

func TestOrderService_CreateOnlineOpensPaymentSession(t *testing.T) {
	f := newOrderFixture(t)
	lat, lng := coordinates()

	result, err := f.service.CreateOrder(context.Background(), CreateOrderCommand{
		Actor:         customerActor,
		ServiceID:     "svc_kilo",
		PaymentMethod: domain.PaymentMethodQRIS,
		Latitude:      lat,
		Longitude:     lng,
		Weight:        decimalPtr("2"),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if result.Payment == nil {
		t.Fatalf("expected payment session, got error %q", result.PaymentError)
	}

	wantTx := domain.NewTransactionID(result.Order.ID, fixedNow)
	if result.Order.TransactionID != wantTx || result.Payment.TransactionID != wantTx {
		t.Fatalf("expected transaction id %q, got %q", wantTx, result.Order.TransactionID)
	}
	if result.Order.SnapToken != "snap-"+wantTx {
		t.Fatalf("expected snap token stored, got %q", result.Order.SnapToken)
	}

	req := f.payments.requests[0]
	if req.GrossAmount != 100000 {
		t.Fatalf("expected gross amount 100000, got %d", req.GrossAmount)
	}
	if req.Customer.Name != "sari" || req.Customer.Email != "sari@example.com" {
		t.Fatalf("unexpected customer %+v", req.Customer)
	}
	if req.FinishURL == "" || req.IdempotencyKey == "" {
		t.Fatalf("expected finish url and idempotency key, got %+v", req)
	}
}

func TestOrderService_CreateGatewayFailureKeepsOrder(t *testing.T) {
	f := newOrderFixture(t)
	f.payments.createFn = func(context.Context, string, payments.SessionRequest) (payments.Session, error) {
		return payments.Session{}, errors.New("midtrans unavailable")
	}
	lat, lng := coordinates()

	result, err := f.service.CreateOrder(context.Background(), CreateOrderCommand{
		Actor:         customerActor,
		ServiceID:     "svc_kilo",
		PaymentMethod: domain.PaymentMethodQRIS,
		Latitude:      lat,
		Longitude:     lng,
		Weight:        decimalPtr("1"),
	})
	if err != nil {
		t.Fatalf("gateway failure must not fail creation: %v", err)
	}
	if result.Payment != nil || !strings.Contains(result.PaymentError, "midtrans unavailable") {
		t.Fatalf("expected payment error, got %+v", result)
	}

	stored, err := f.registry.Orders().FindByID(context.Background(), result.Order.ID)
	if err != nil {
		t.Fatalf("order must persist: %v", err)
	}
	if stored.SnapToken != "" || stored.PaymentStatus != domain.PaymentStatusUnpaid || stored.OrderStatus != domain.OrderStatusPending {
		t.Fatalf("expected pending/unpaid order without token, got %+v", stored)
	}
	if !containsString(f.logged, "order.payment_token_failed") {
		t.Fatalf("expected payment failure to be logged, got %v", f.logged)
	}

	// recovery through retry
	f.payments.createFn = nil
	retried, err := f.service.RetryPayment(context.Background(), RetryPaymentCommand{Actor: customerActor, OrderID: stored.ID})
	if err != nil {
		t.Fatalf("retry payment: %v", err)
	}
	if retried.Payment == nil || retried.Order.SnapToken == "" {
		t.Fatalf("expected token after retry, got %+v", retried)
	}
}

func TestOrderService_RetryPaymentRules(t *testing.T) {
	f := newOrderFixture(t)
	cod := f.insert(t, Order{})
	paid := f.insert(t, Order{PaymentMethod: domain.PaymentMethodQRIS, PaymentStatus: domain.PaymentStatusPaid})
	online := f.insert(t, Order{PaymentMethod: domain.PaymentMethodQRIS, TransactionID: domain.NewTransactionID(3, fixedNow)})

	if _, err := f.service.RetryPayment(context.Background(), RetryPaymentCommand{Actor: customerActor, OrderID: cod.ID}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state for cod, got %v", err)
	}
	if _, err := f.service.RetryPayment(context.Background(), RetryPaymentCommand{Actor: customerActor, OrderID: paid.ID}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state for paid order, got %v", err)
	}
	if _, err := f.service.RetryPayment(context.Background(), RetryPaymentCommand{Actor: otherCustomer, OrderID: online.ID}); !errors.Is(err, ErrOrderPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	result, err := f.service.RetryPayment(context.Background(), RetryPaymentCommand{Actor: staffActor, OrderID: online.ID})
	if err != nil {
		t.Fatalf("retry payment: %v", err)
	}
	if result.Order.TransactionID == online.TransactionID {
		t.Fatalf("expected a fresh transaction id, got %q", result.Order.TransactionID)
	}
}

func TestOrderService_CancelRules(t *testing.T) {
	f := newOrderFixture(t)
	pending := f.insert(t, Order{})
	processing := f.insert(t, Order{OrderStatus: domain.OrderStatusProcessing})
	paid := f.insert(t, Order{PaymentStatus: domain.PaymentStatusSettlement})
	ctx := context.Background()

	if _, err := f.service.CancelOrder(ctx, CancelOrderCommand{Actor: otherCustomer, OrderID: pending.ID}); !errors.Is(err, ErrOrderPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := f.service.CancelOrder(ctx, CancelOrderCommand{Actor: customerActor, OrderID: processing.ID}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state for processing order, got %v", err)
	}
	if _, err := f.service.CancelOrder(ctx, CancelOrderCommand{Actor: customerActor, OrderID: paid.ID}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state for settled order, got %v", err)
	}

	stored, _ := f.registry.Orders().FindByID(ctx, processing.ID)
	if stored.OrderStatus != domain.OrderStatusProcessing {
		t.Fatalf("rejected cancel must not change state, got %s", stored.OrderStatus)
	}

	cancelled, err := f.service.CancelOrder(ctx, CancelOrderCommand{Actor: customerActor, OrderID: pending.ID})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.OrderStatus != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.OrderStatus)
	}
	if _, err := f.service.CancelOrder(ctx, CancelOrderCommand{Actor: staffActor, OrderID: 999}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderService_CourierStatusRequiresAssignment(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.insert(t, Order{AssignedCourierID: "courier-1", NotifiedCustomer: true})

	if _, err := f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{Actor: otherCourier, OrderID: order.ID, Status: "picked_up"}); !errors.Is(err, ErrOrderPermissionDenied) {
		t.Fatalf("expected permission denied for unassigned courier, got %v", err)
	}
	stored, _ := f.registry.Orders().FindByID(ctx, order.ID)
	if stored.OrderStatus != domain.OrderStatusPending || !stored.NotifiedCustomer {
		t.Fatalf("rejected update must leave order untouched, got %+v", stored)
	}

	if _, err := f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{Actor: courierActor, OrderID: order.ID, Status: "cancelled"}); !errors.Is(err, ErrOrderPermissionDenied) {
		t.Fatalf("couriers may not cancel, got %v", err)
	}
	if _, err := f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{Actor: courierActor, OrderID: order.ID, Status: "lost"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for unknown status, got %v", err)
	}
	if _, err := f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{Actor: customerActor, OrderID: order.ID, Status: "ready"}); !errors.Is(err, ErrOrderPermissionDenied) {
		t.Fatalf("customers may not update status, got %v", err)
	}

	updated, err := f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{Actor: courierActor, OrderID: order.ID, Status: "picked_up"})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.OrderStatus != domain.OrderStatusPickedUp || updated.NotifiedCustomer {
		t.Fatalf("expected picked_up and notification reset, got %+v", updated)
	}
}

func TestOrderService_StatusChangeResetsNotificationButPaymentDoesNot(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.insert(t, Order{NotifiedCustomer: true})

	afterPayment, err := f.service.UpdatePaymentStatus(ctx, UpdatePaymentStatusCommand{Actor: staffActor, OrderID: order.ID, Status: "paid"})
	if err != nil {
		t.Fatalf("update payment: %v", err)
	}
	if !afterPayment.NotifiedCustomer {
		t.Fatalf("payment change must not reset notification flag")
	}

	same, err := f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{Actor: staffActor, OrderID: order.ID, Status: "pending"})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if !same.NotifiedCustomer {
		t.Fatalf("writing the same status must not reset notification flag")
	}

	changed, err := f.service.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{Actor: staffActor, OrderID: order.ID, Status: "ready"})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if changed.NotifiedCustomer {
		t.Fatalf("status change must reset notification flag")
	}
	if _, err := f.service.UpdatePaymentStatus(ctx, UpdatePaymentStatusCommand{Actor: staffActor, OrderID: order.ID, Status: "refunded"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid payment status, got %v", err)
	}
	if _, err := f.service.UpdatePaymentStatus(ctx, UpdatePaymentStatusCommand{Actor: courierActor, OrderID: order.ID, Status: "paid"}); !errors.Is(err, ErrOrderPermissionDenied) {
		t.Fatalf("expected staff-only payment override, got %v", err)
	}
}

// contendedOrders runs each mutation once against a stale snapshot, lets a
// concurrent writer commit, then retries, like a contended transaction.
type contendedOrders struct {
	repositories.OrderRepository
	concurrent func(*domain.Order)
}

func (r *contendedOrders) Mutate(ctx context.Context, orderID int64, fn repositories.OrderMutation) (domain.Order, error) {
	stale, err := r.OrderRepository.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	_ = fn(&stale)
	if _, err := r.OrderRepository.Mutate(ctx, orderID, func(order *domain.Order) error {
		r.concurrent(order)
		return nil
	}); err != nil {
		return domain.Order{}, err
	}
	return r.OrderRepository.Mutate(ctx, orderID, fn)
}

func TestOrderService_RetriedMutationPublishesOnlyRealChanges(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.insert(t, Order{})

	orders := &contendedOrders{OrderRepository: f.registry.Orders()}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:   orders,
		Services: f.registry.Services(),
		Items:    f.registry.Items(),
		Clock:    func() time.Time { return fixedNow },
		Events:   f.events,
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}

	orders.concurrent = func(o *domain.Order) { o.OrderStatus = domain.OrderStatusReady }
	updated, err := svc.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{Actor: staffActor, OrderID: order.ID, Status: "ready"})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.OrderStatus != domain.OrderStatusReady {
		t.Fatalf("expected ready, got %s", updated.OrderStatus)
	}

	orders.concurrent = func(o *domain.Order) { o.PaymentStatus = domain.PaymentStatusPaid }
	if _, err := svc.UpdatePaymentStatus(ctx, UpdatePaymentStatusCommand{Actor: staffActor, OrderID: order.ID, Status: "paid"}); err != nil {
		t.Fatalf("update payment: %v", err)
	}
	if len(f.events.events) != 0 {
		t.Fatalf("expected no events when the retry found nothing to change, got %+v", f.events.events)
	}

	orders.concurrent = func(*domain.Order) {}
	if _, err := svc.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{Actor: staffActor, OrderID: order.ID, Status: "delivered"}); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if len(f.events.events) != 1 || f.events.events[0].PreviousStatus != "ready" || f.events.events[0].CurrentStatus != "delivered" {
		t.Fatalf("expected one ready->delivered event, got %+v", f.events.events)
	}
}

func TestOrderService_MarkCODPaid(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cod := f.insert(t, Order{AssignedCourierID: "courier-1"})
	online := f.insert(t, Order{AssignedCourierID: "courier-1", PaymentMethod: domain.PaymentMethodQRIS})

	if _, err := f.service.MarkCODPaid(ctx, MarkCODPaidCommand{Actor: otherCourier, OrderID: cod.ID}); !errors.Is(err, ErrOrderPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := f.service.MarkCODPaid(ctx, MarkCODPaidCommand{Actor: courierActor, OrderID: online.ID}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state for online order, got %v", err)
	}

	paid, err := f.service.MarkCODPaid(ctx, MarkCODPaidCommand{Actor: courierActor, OrderID: cod.ID})
	if err != nil {
		t.Fatalf("mark cod paid: %v", err)
	}
	if paid.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", paid.PaymentStatus)
	}
	if _, err := f.service.MarkCODPaid(ctx, MarkCODPaidCommand{Actor: courierActor, OrderID: cod.ID}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state when already paid, got %v", err)
	}
}

func TestOrderService_AssignCourier(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.insert(t, Order{})

	if _, err := f.service.AssignCourier(ctx, AssignCourierCommand{Actor: staffActor, OrderID: order.ID, CourierID: "cust-2"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected non-courier rejection, got %v", err)
	}
	if _, err := f.service.AssignCourier(ctx, AssignCourierCommand{Actor: staffActor, OrderID: order.ID, CourierID: "ghost"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected unknown courier rejection, got %v", err)
	}
	if _, err := f.service.AssignCourier(ctx, AssignCourierCommand{Actor: courierActor, OrderID: order.ID, CourierID: "courier-1"}); !errors.Is(err, ErrOrderPermissionDenied) {
		t.Fatalf("expected staff-only assignment, got %v", err)
	}

	assigned, err := f.service.AssignCourier(ctx, AssignCourierCommand{Actor: staffActor, OrderID: order.ID, CourierID: "courier-1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.AssignedCourierID != "courier-1" {
		t.Fatalf("expected courier-1, got %q", assigned.AssignedCourierID)
	}

	unassigned, err := f.service.AssignCourier(ctx, AssignCourierCommand{Actor: staffActor, OrderID: order.ID})
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if unassigned.AssignedCourierID != "" {
		t.Fatalf("expected courier cleared, got %q", unassigned.AssignedCourierID)
	}
}

func TestOrderService_GetAndListVisibility(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	own := f.insert(t, Order{AssignedCourierID: "courier-1"})
	foreign := f.insert(t, Order{CustomerID: "cust-2"})
	delivered := f.insert(t, Order{AssignedCourierID: "courier-1", OrderStatus: domain.OrderStatusDelivered})

	if _, err := f.service.GetOrder(ctx, customerActor, foreign.ID); !errors.Is(err, ErrOrderPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := f.service.GetOrder(ctx, courierActor, own.ID); err != nil {
		t.Fatalf("assigned courier should see order: %v", err)
	}
	if _, err := f.service.GetOrder(ctx, staffActor, foreign.ID); err != nil {
		t.Fatalf("staff should see any order: %v", err)
	}

	mine, err := f.service.ListOrders(ctx, customerActor, domain.OrderListFilter{CustomerID: "cust-2"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("customer filter must be forced to caller, got %d orders", len(mine))
	}

	all, err := f.service.ListOrders(ctx, staffActor, domain.OrderListFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("expected staff to list 3 orders, got %d (%v)", len(all), err)
	}

	courierOrders, err := f.service.ListCourierOrders(ctx, courierActor)
	if err != nil {
		t.Fatalf("courier orders: %v", err)
	}
	if len(courierOrders.Active) != 1 || courierOrders.Active[0].ID != own.ID {
		t.Fatalf("unexpected active orders %+v", courierOrders.Active)
	}
	if len(courierOrders.Completed) != 1 || courierOrders.Completed[0].ID != delivered.ID {
		t.Fatalf("unexpected completed orders %+v", courierOrders.Completed)
	}
}

func TestOrderService_InvoiceRequiresPayment(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	unpaid := f.insert(t, Order{})
	paid := f.insert(t, Order{PaymentStatus: domain.PaymentStatusSettlement})

	if _, err := f.service.GetInvoice(ctx, customerActor, unpaid.ID); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	invoice, err := f.service.GetInvoice(ctx, customerActor, paid.ID)
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if invoice.CustomerName != "sari" {
		t.Fatalf("expected customer display name, got %q", invoice.CustomerName)
	}
}

func TestOrderService_DeleteIsStaffOnly(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.insert(t, Order{})

	if err := f.service.DeleteOrder(ctx, DeleteOrderCommand{Actor: customerActor, OrderID: order.ID}); !errors.Is(err, ErrOrderPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if err := f.service.DeleteOrder(ctx, DeleteOrderCommand{Actor: staffActor, OrderID: order.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.registry.Orders().FindByID(ctx, order.ID); err == nil {
		t.Fatalf("expected order removed")
	}
	last := f.events.events[len(f.events.events)-1]
	if last.Type != orderEventDeleted || last.OrderID != order.ID {
		t.Fatalf("expected order.deleted event, got %+v", last)
	}
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
