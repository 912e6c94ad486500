package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/platform/auth"
	"github.com/wahyu285/loundry/internal/services"
)

type stubOrderService struct {
	createFn       func(context.Context, services.CreateOrderCommand) (services.CreateOrderResult, error)
	getFn          func(context.Context, services.Actor, int64) (services.Order, error)
	listFn         func(context.Context, services.Actor, domain.OrderListFilter) ([]services.Order, error)
	courierFn      func(context.Context, services.Actor) (services.CourierOrders, error)
	cancelFn       func(context.Context, services.CancelOrderCommand) (services.Order, error)
	statusFn       func(context.Context, services.UpdateOrderStatusCommand) (services.Order, error)
	codFn          func(context.Context, services.MarkCODPaidCommand) (services.Order, error)
	paymentFn      func(context.Context, services.UpdatePaymentStatusCommand) (services.Order, error)
	assignFn       func(context.Context, services.AssignCourierCommand) (services.Order, error)
	deleteFn       func(context.Context, services.DeleteOrderCommand) error
	retryFn        func(context.Context, services.RetryPaymentCommand) (services.CreateOrderResult, error)
	invoiceFn      func(context.Context, services.Actor, int64) (services.Invoice, error)
	lastStatusCmd  services.UpdateOrderStatusCommand
	lastListFilter domain.OrderListFilter
	lastListActor  services.Actor
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.CreateOrderResult, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.CreateOrderResult{}, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, actor services.Actor, id int64) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, actor, id)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) ListOrders(ctx context.Context, actor services.Actor, filter domain.OrderListFilter) ([]services.Order, error) {
	s.lastListActor = actor
	s.lastListFilter = filter
	if s.listFn != nil {
		return s.listFn(ctx, actor, filter)
	}
	return nil, nil
}

func (s *stubOrderService) ListCourierOrders(ctx context.Context, actor services.Actor) (services.CourierOrders, error) {
	if s.courierFn != nil {
		return s.courierFn(ctx, actor)
	}
	return services.CourierOrders{}, nil
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	s.lastStatusCmd = cmd
	if s.statusFn != nil {
		return s.statusFn(ctx, cmd)
	}
	return services.Order{ID: cmd.OrderID, OrderStatus: domain.OrderStatus(cmd.Status)}, nil
}

func (s *stubOrderService) MarkCODPaid(ctx context.Context, cmd services.MarkCODPaidCommand) (services.Order, error) {
	if s.codFn != nil {
		return s.codFn(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) UpdatePaymentStatus(ctx context.Context, cmd services.UpdatePaymentStatusCommand) (services.Order, error) {
	if s.paymentFn != nil {
		return s.paymentFn(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) AssignCourier(ctx context.Context, cmd services.AssignCourierCommand) (services.Order, error) {
	if s.assignFn != nil {
		return s.assignFn(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, cmd services.DeleteOrderCommand) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, cmd)
	}
	return nil
}

func (s *stubOrderService) RetryPayment(ctx context.Context, cmd services.RetryPaymentCommand) (services.CreateOrderResult, error) {
	if s.retryFn != nil {
		return s.retryFn(ctx, cmd)
	}
	return services.CreateOrderResult{}, nil
}

func (s *stubOrderService) GetInvoice(ctx context.Context, actor services.Actor, id int64) (services.Invoice, error) {
	if s.invoiceFn != nil {
		return s.invoiceFn(ctx, actor, id)
	}
	return services.Invoice{}, nil
}

type stubNotificationService struct {
	count   int
	updated int
	err     error
	actor   services.Actor
}

func (s *stubNotificationService) CountUnread(_ context.Context, actor services.Actor) (int, error) {
	s.actor = actor
	return s.count, s.err
}

func (s *stubNotificationService) MarkAllRead(_ context.Context, actor services.Actor) (int, error) {
	s.actor = actor
	return s.updated, s.err
}

type stubPaymentService struct {
	reconcileFn func(context.Context, services.ReconcilePaymentCommand) (services.ReconcileResult, error)
	calls       []services.ReconcilePaymentCommand
}

func (s *stubPaymentService) Reconcile(ctx context.Context, cmd services.ReconcilePaymentCommand) (services.ReconcileResult, error) {
	s.calls = append(s.calls, cmd)
	if s.reconcileFn != nil {
		return s.reconcileFn(ctx, cmd)
	}
	return services.ReconcileResult{OrderID: 1, Found: true, Changed: true, PaymentStatus: services.MapGatewayStatus(cmd.TransactionStatus)}, nil
}

type stubChatService struct {
	reply string
	seen  string
}

func (s *stubChatService) Reply(_ context.Context, message string) (string, error) {
	s.seen = message
	return s.reply, nil
}

type stubMaintenanceService struct {
	result services.SweepResult
	err    error
}

func (s *stubMaintenanceService) SweepCancelledOrders(context.Context) (services.SweepResult, error) {
	return s.result, s.err
}

// withIdentity stands in for the Firebase middleware in handler tests.
func withIdentity(uid string, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := &auth.Identity{UID: uid, Roles: roles}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	assertErrorCode(t, rr.Body.Bytes(), code)
}
