package handlers

import (
	"context"
	"encoding/json"
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

type stubStatsService struct {
	orderStats     services.OrderStats
	courierStats   services.CourierStats
	lastCustomerID string
	lastActor      services.Actor
}

func (s *stubStatsService) OrderStats(_ context.Context, actor services.Actor, customerID string) (services.OrderStats, error) {
	s.lastActor = actor
	s.lastCustomerID = customerID
	return s.orderStats, nil
}

func (s *stubStatsService) CourierStats(_ context.Context, actor services.Actor) (services.CourierStats, error) {
	s.lastActor = actor
	return s.courierStats, nil
}

type stubCatalogService struct {
	services.CatalogService

	lastService  services.UpsertServiceCommand
	lastDiscount services.UpsertDiscountCommand
	deleted      []string
	deleteErr    error
}

func (s *stubCatalogService) UpsertService(_ context.Context, cmd services.UpsertServiceCommand) (services.Service, error) {
	s.lastService = cmd
	id := cmd.ID
	if id == "" {
		id = "svc-new"
	}
	return services.Service{
		ID:       id,
		Name:     cmd.Name,
		Price:    cmd.Price,
		Type:     domain.ServiceType(cmd.Type),
		Duration: domain.DurationTier(cmd.Duration),
	}, nil
}

func (s *stubCatalogService) UpsertDiscount(_ context.Context, cmd services.UpsertDiscountCommand) (services.Discount, error) {
	s.lastDiscount = cmd
	return services.Discount{ID: "disc-1", Name: cmd.Name, MinOrders: cmd.MinOrders, Percent: cmd.Percent, Active: cmd.Active}, nil
}

func (s *stubCatalogService) DeleteService(_ context.Context, _ services.Actor, id string) error {
	s.deleted = append(s.deleted, id)
	return s.deleteErr
}

type stubAccountService struct {
	services.AccountService

	accounts []services.Account
	lastRole domain.AccountRole
}

func (s *stubAccountService) ListAccounts(_ context.Context, _ services.Actor, role domain.AccountRole) ([]services.Account, error) {
	s.lastRole = role
	return s.accounts, nil
}

func newAdminRouter(orders *stubOrderService, stats *stubStatsService, catalog services.CatalogService, accounts services.AccountService) http.Handler {
	adminOrders := NewAdminOrderHandlers(nil, orders, stats)
	admin := NewAdminHandlers(nil, adminOrders, catalog, accounts)
	return NewRouter(
		WithMiddlewares(withIdentity("staff-1", auth.RoleStaff)),
		WithAdminRoutes(admin.Routes),
	)
}

func TestAdminCreateServiceReturnsCreated(t *testing.T) {
	catalog := &stubCatalogService{}
	router := newAdminRouter(&stubOrderService{}, &stubStatsService{}, catalog, &stubAccountService{})

	body := `{"name":"Cuci Kering","price":"7000","type":"per_kilo","duration":"express"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/services", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if !catalog.lastService.Price.Equal(decimal.NewFromInt(7000)) {
		t.Fatalf("expected price 7000, got %s", catalog.lastService.Price)
	}
	if !catalog.lastService.Actor.Staff || catalog.lastService.Actor.ID != "staff-1" {
		t.Fatalf("expected staff actor, got %+v", catalog.lastService.Actor)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/admin/services/svc-9", strings.NewReader(body))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d", rr.Code)
	}
	if catalog.lastService.ID != "svc-9" {
		t.Fatalf("expected id from path, got %q", catalog.lastService.ID)
	}
}

func TestAdminDiscountDefaultsToActive(t *testing.T) {
	catalog := &stubCatalogService{}
	router := newAdminRouter(&stubOrderService{}, &stubStatsService{}, catalog, &stubAccountService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/discounts", strings.NewReader(`{"name":"Loyal","min_orders":5,"percent":"10"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if !catalog.lastDiscount.Active || catalog.lastDiscount.MinOrders != 5 {
		t.Fatalf("unexpected discount command %+v", catalog.lastDiscount)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/admin/discounts/disc-1", strings.NewReader(`{"name":"Loyal","min_orders":5,"percent":"10","active":false}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if catalog.lastDiscount.Active {
		t.Fatalf("expected explicit active=false to be honoured")
	}
}

func TestAdminDeleteService(t *testing.T) {
	catalog := &stubCatalogService{}
	router := newAdminRouter(&stubOrderService{}, &stubStatsService{}, catalog, &stubAccountService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/services/svc-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	catalog.deleteErr = services.ErrCatalogInUse
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/services/svc-2", nil))
	assertErrorResponse(t, rr, http.StatusConflict, "catalog_in_use")

	if len(catalog.deleted) != 2 || catalog.deleted[0] != "svc-1" {
		t.Fatalf("unexpected deletes %v", catalog.deleted)
	}
}

func TestAdminOrderStats(t *testing.T) {
	stats := &stubStatsService{orderStats: services.OrderStats{
		Total:            4,
		Delivered:        2,
		Pending:          1,
		Cancelled:        1,
		PaidRevenue:      decimal.RequireFromString("270000"),
		PaidTransactions: 3,
		TodayRevenue:     decimal.RequireFromString("90000"),
		DailyRevenue: []domain.DailyRevenue{
			{Date: time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC), Amount: decimal.Zero},
			{Date: time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("90000")},
		},
		FrequentServices: []domain.ServiceFrequency{
			{ServiceID: "svc-1", ServiceName: "Cuci Kering", Orders: 3},
		},
		TotalAccounts: 12,
		TotalCouriers: 2,
		TotalServices: 5,
	}}
	router := newAdminRouter(&stubOrderService{}, stats, &stubCatalogService{}, &stubAccountService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders/stats?customer_id=cust-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp orderStatsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 4 || resp.PaidRevenue != "270000" || len(resp.FrequentServices) != 1 {
		t.Fatalf("unexpected stats %+v", resp)
	}
	if resp.PaidTransactions != 3 || resp.TodayRevenue != "90000" {
		t.Fatalf("unexpected income figures %+v", resp)
	}
	want := []dailyRevenueItem{{Date: "2024-05-07", Amount: "0"}, {Date: "2024-05-08", Amount: "90000"}}
	if len(resp.DailyRevenue) != len(want) || resp.DailyRevenue[0] != want[0] || resp.DailyRevenue[1] != want[1] {
		t.Fatalf("unexpected daily revenue %+v", resp.DailyRevenue)
	}
	if resp.TotalAccounts != 12 || resp.TotalCouriers != 2 || resp.TotalServices != 5 {
		t.Fatalf("unexpected directory totals %+v", resp)
	}
	if stats.lastCustomerID != "cust-1" {
		t.Fatalf("expected customer filter forwarded, got %q", stats.lastCustomerID)
	}
}

func TestAdminStatusUpdateKeepsStaffActor(t *testing.T) {
	orders := &stubOrderService{}
	router := newAdminRouter(orders, &stubStatsService{}, &stubCatalogService{}, &stubAccountService{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/orders/8/status", strings.NewReader(`{"status":"washing"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !orders.lastStatusCmd.Actor.Staff || orders.lastStatusCmd.OrderID != 8 {
		t.Fatalf("unexpected status command %+v", orders.lastStatusCmd)
	}
}

func TestAdminDeleteOrder(t *testing.T) {
	var deleted int64
	orders := &stubOrderService{deleteFn: func(_ context.Context, cmd services.DeleteOrderCommand) error {
		deleted = cmd.OrderID
		return nil
	}}
	router := newAdminRouter(orders, &stubStatsService{}, &stubCatalogService{}, &stubAccountService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/orders/15", nil))

	if rr.Code != http.StatusNoContent || deleted != 15 {
		t.Fatalf("expected 204 deleting order 15, got %d for %d", rr.Code, deleted)
	}
}

func TestAdminListAccountsByRole(t *testing.T) {
	accounts := &stubAccountService{accounts: []services.Account{{ID: "c-1", Username: "budi", IsCourier: true}}}
	router := newAdminRouter(&stubOrderService{}, &stubStatsService{}, &stubCatalogService{}, accounts)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/accounts?role=Courier", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if accounts.lastRole != domain.AccountRole("courier") {
		t.Fatalf("expected normalised role, got %q", accounts.lastRole)
	}
	if !strings.Contains(rr.Body.String(), `"c-1"`) {
		t.Fatalf("expected account in body, got %s", rr.Body.String())
	}
}

func TestAdminListOrdersAcceptsGatewayPaymentStatus(t *testing.T) {
	orders := &stubOrderService{}
	router := newAdminRouter(orders, &stubStatsService{}, &stubCatalogService{}, &stubAccountService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders?payment_status=pending,Expire&payment_status=paid", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := []domain.PaymentStatus{"pending", "expire", domain.PaymentStatusPaid}
	got := orders.lastListFilter.PaymentStatuses
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
