package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/platform/auth"
	"github.com/wahyu285/loundry/internal/services"
)

func newMeRouter(orders services.OrderService, notifications services.NotificationService, uid string, roles ...string) http.Handler {
	h := NewOrderHandlers(nil, orders, notifications)
	return NewRouter(
		WithMiddlewares(withIdentity(uid, roles...)),
		WithMeRoutes(h.Routes),
	)
}

func TestCreateOrderReturnsPricingAndPaymentError(t *testing.T) {
	var captured services.CreateOrderCommand
	percent := decimal.NewFromInt(10)
	orders := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.CreateOrderResult, error) {
			captured = cmd
			return services.CreateOrderResult{
				Order: services.Order{
					ID:              7,
					CustomerID:      cmd.Actor.ID,
					ServiceID:       cmd.ServiceID,
					PriceTotal:      decimal.NewFromInt(135000),
					DiscountPercent: &percent,
					OrderStatus:     domain.OrderStatusPending,
					PaymentStatus:   domain.PaymentStatusUnpaid,
					PaymentMethod:   domain.PaymentMethodQRIS,
					CreatedAt:       time.Date(2024, 5, 8, 9, 30, 0, 0, time.UTC),
				},
				Pricing: services.PricingBreakdown{
					Subtotal:        decimal.NewFromInt(150000),
					DiscountPercent: &percent,
					DiscountAmount:  decimal.NewFromInt(15000),
					Total:           decimal.NewFromInt(135000),
				},
				PaymentError: "gateway unavailable",
			}, nil
		},
	}
	router := newMeRouter(orders, nil, "cust-1", auth.RoleCustomer)

	body := `{"service_id":"svc_kilo","payment_method":"QRIS","latitude":-6.2,"longitude":106.8,"weight":"3","scheduled_pickup":"2024-05-09T08:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/me/orders", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "key-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.PaymentMethod != domain.PaymentMethodQRIS {
		t.Fatalf("expected payment method normalised to qris, got %q", captured.PaymentMethod)
	}
	if captured.Weight == nil || !captured.Weight.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected weight 3, got %v", captured.Weight)
	}
	if captured.IdempotencyKey != "key-1" {
		t.Fatalf("expected idempotency key forwarded, got %q", captured.IdempotencyKey)
	}
	if !captured.Actor.Customer || captured.Actor.ID != "cust-1" {
		t.Fatalf("unexpected actor %+v", captured.Actor)
	}
	if captured.ScheduledPickup.IsZero() {
		t.Fatalf("expected scheduled pickup to be parsed")
	}

	var resp struct {
		Order struct {
			ID              int64  `json:"id"`
			PriceTotal      string `json:"price_total"`
			DiscountPercent string `json:"discount_percent"`
			Payment         struct {
				Error string `json:"error"`
			} `json:"payment"`
		} `json:"order"`
		Pricing struct {
			Subtotal string `json:"subtotal"`
		} `json:"pricing"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.ID != 7 || resp.Order.PriceTotal != "135000" || resp.Order.DiscountPercent != "10" {
		t.Fatalf("unexpected order payload %+v", resp.Order)
	}
	if resp.Order.Payment.Error != "gateway unavailable" {
		t.Fatalf("expected payment error surfaced, got %q", resp.Order.Payment.Error)
	}
	if resp.Pricing.Subtotal != "150000" {
		t.Fatalf("expected subtotal 150000, got %s", resp.Pricing.Subtotal)
	}
}

func TestCreateOrderValidationError(t *testing.T) {
	orders := &stubOrderService{
		createFn: func(context.Context, services.CreateOrderCommand) (services.CreateOrderResult, error) {
			return services.CreateOrderResult{}, fmt.Errorf("%w: pickup coordinates are required", services.ErrOrderInvalidInput)
		},
	}
	router := newMeRouter(orders, nil, "cust-1", auth.RoleCustomer)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/me/orders", strings.NewReader(`{"service_id":"svc_kilo"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	assertErrorCode(t, rr.Body.Bytes(), "invalid_request")
}

func TestCreateOrderRejectsMalformedBody(t *testing.T) {
	router := newMeRouter(&stubOrderService{}, nil, "cust-1", auth.RoleCustomer)

	for _, body := range []string{"", "{not json"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/me/orders", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestOrderRoutesRequireIdentity(t *testing.T) {
	h := NewOrderHandlers(nil, &stubOrderService{}, &stubNotificationService{})
	router := NewRouter(WithMeRoutes(h.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestListOrdersScopesToCaller(t *testing.T) {
	orders := &stubOrderService{
		listFn: func(context.Context, services.Actor, domain.OrderListFilter) ([]services.Order, error) {
			return []services.Order{{ID: 2, OrderStatus: domain.OrderStatusReady}, {ID: 1}}, nil
		},
	}
	router := newMeRouter(orders, nil, "staff-1", auth.RoleStaff, auth.RoleCustomer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/orders?status=ready,pending&page_size=500", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if orders.lastListActor.Staff || !orders.lastListActor.Customer {
		t.Fatalf("expected customer-only actor, got %+v", orders.lastListActor)
	}
	if len(orders.lastListFilter.OrderStatuses) != 2 {
		t.Fatalf("expected two status filters, got %v", orders.lastListFilter.OrderStatuses)
	}
	if orders.lastListFilter.Limit != maxOrderPageSize {
		t.Fatalf("expected limit clamped to %d, got %d", maxOrderPageSize, orders.lastListFilter.Limit)
	}

	var resp struct {
		Items []struct {
			ID               int64  `json:"id"`
			OrderStatusLabel string `json:"order_status_label"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].OrderStatusLabel != "Siap Diantar" {
		t.Fatalf("unexpected items %+v", resp.Items)
	}
}

func TestListOrdersRejectsBadTimestamp(t *testing.T) {
	router := newMeRouter(&stubOrderService{}, nil, "cust-1", auth.RoleCustomer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/orders?created_after=yesterday", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCancelOrderMapsErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not pending", err: services.ErrOrderInvalidState, status: http.StatusUnprocessableEntity, code: "order_invalid_state"},
		{name: "not owner", err: services.ErrOrderPermissionDenied, status: http.StatusForbidden, code: "permission_denied"},
		{name: "missing", err: services.ErrOrderNotFound, status: http.StatusNotFound, code: "order_not_found"},
		{name: "storage down", err: services.ErrOrderUnavailable, status: http.StatusServiceUnavailable, code: "service_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := &stubOrderService{
				cancelFn: func(_ context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
					if cmd.OrderID != 42 {
						t.Fatalf("expected order 42, got %d", cmd.OrderID)
					}
					return services.Order{}, tc.err
				},
			}
			router := newMeRouter(orders, nil, "cust-1", auth.RoleCustomer)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/me/orders/42:cancel", nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			assertErrorCode(t, rr.Body.Bytes(), tc.code)
		})
	}
}

func TestGetOrderRejectsNonNumericID(t *testing.T) {
	router := newMeRouter(&stubOrderService{}, nil, "cust-1", auth.RoleCustomer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/orders/abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRetryPaymentReturnsSession(t *testing.T) {
	orders := &stubOrderService{
		retryFn: func(_ context.Context, cmd services.RetryPaymentCommand) (services.CreateOrderResult, error) {
			return services.CreateOrderResult{
				Order:   services.Order{ID: cmd.OrderID, PaymentMethod: domain.PaymentMethodQRIS},
				Payment: &services.PaymentSession{Provider: "midtrans", Token: "snap-1", TransactionID: "ORDER-5-1715160600"},
			}, nil
		},
	}
	router := newMeRouter(orders, nil, "cust-1", auth.RoleCustomer)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/me/orders/5:retry-payment", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"snap_token":"snap-1"`) {
		t.Fatalf("expected snap token in body, got %s", rr.Body.String())
	}
}

func TestInvoiceRequiresPayment(t *testing.T) {
	orders := &stubOrderService{
		invoiceFn: func(context.Context, services.Actor, int64) (services.Invoice, error) {
			return services.Invoice{}, fmt.Errorf("%w: invoice is available once the order is paid", services.ErrOrderInvalidState)
		},
	}
	router := newMeRouter(orders, nil, "cust-1", auth.RoleCustomer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/orders/5/invoice", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	notifications := &stubNotificationService{count: 3, updated: 3}
	router := newMeRouter(&stubOrderService{}, notifications, "cust-1", auth.RoleCustomer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/notifications/count", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var count map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &count); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if count["count"] != 3 {
		t.Fatalf("expected count 3, got %v", count)
	}
	if notifications.actor.ID != "cust-1" {
		t.Fatalf("expected caller forwarded, got %+v", notifications.actor)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/me/notifications:mark-read", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var marked map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &marked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if marked["status"] != "ok" || marked["updated"] != float64(3) {
		t.Fatalf("unexpected mark-read body %v", marked)
	}
}

func assertErrorCode(t *testing.T, body []byte, code string) {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload["error"] != code {
		t.Fatalf("expected error code %q, got %v", code, payload["error"])
	}
}

func TestCreateOrderReadsLocalPickupInBusinessTimezone(t *testing.T) {
	var captured services.CreateOrderCommand
	orders := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.CreateOrderResult, error) {
			captured = cmd
			return services.CreateOrderResult{Order: services.Order{ID: 9}}, nil
		},
	}
	h := NewOrderHandlers(nil, orders, nil, WithBusinessLocation(time.FixedZone("WIB", 7*3600)))
	router := NewRouter(
		WithMiddlewares(withIdentity("cust-1", auth.RoleCustomer)),
		WithMeRoutes(h.Routes),
	)

	body := `{"service_id":"svc_kilo","latitude":-6.2,"longitude":106.8,"weight":"2","scheduled_pickup":"2024-05-08T09:30"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/me/orders", strings.NewReader(body)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if want := time.Date(2024, 5, 8, 2, 30, 0, 0, time.UTC); !captured.ScheduledPickup.Equal(want) {
		t.Fatalf("expected pickup %s, got %s", want, captured.ScheduledPickup)
	}

	body = `{"service_id":"svc_kilo","latitude":-6.2,"longitude":106.8,"weight":"2","scheduled_pickup":"besok pagi"}`
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/me/orders", strings.NewReader(body)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
