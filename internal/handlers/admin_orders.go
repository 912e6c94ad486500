package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wahyu285/loundry/internal/platform/auth"
	"github.com/wahyu285/loundry/internal/services"
)

type assignCourierRequest struct {
	CourierID string `json:"courier_id"`
}

type orderStatsResponse struct {
	Total            int                    `json:"total"`
	Delivered        int                    `json:"delivered"`
	Pending          int                    `json:"pending"`
	Cancelled        int                    `json:"cancelled"`
	PaidRevenue      string                 `json:"paid_revenue"`
	PaidTransactions int                    `json:"paid_transactions"`
	TodayRevenue     string                 `json:"today_revenue"`
	DailyRevenue     []dailyRevenueItem     `json:"daily_revenue"`
	FrequentServices []serviceFrequencyItem `json:"frequent_services"`
	TotalAccounts    int                    `json:"total_accounts"`
	TotalCouriers    int                    `json:"total_couriers"`
	TotalServices    int                    `json:"total_services"`
}

type dailyRevenueItem struct {
	Date   string `json:"date"`
	Amount string `json:"amount"`
}

type serviceFrequencyItem struct {
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`
	Orders      int    `json:"orders"`
}

// AdminOrderHandlers exposes staff order management.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	stats  services.OrderStatsService
}

// NewAdminOrderHandlers constructs the staff order handlers.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService, stats services.OrderStatsService) *AdminOrderHandlers {
	return &AdminOrderHandlers{authn: authn, orders: orders, stats: stats}
}

// Routes registers /admin/orders endpoints. The caller is expected to have
// applied the staff role check on the enclosing group.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/stats", h.orderStats)
	r.Put("/orders/{orderID}/status", h.updateStatus)
	r.Put("/orders/{orderID}/payment-status", h.updatePaymentStatus)
	r.Put("/orders/{orderID}/courier", h.assignCourier)
	r.Delete("/orders/{orderID}", h.deleteOrder)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	filter, ok := parseOrderFilter(w, r)
	if !ok {
		return
	}
	filter.CustomerID = strings.TrimSpace(r.URL.Query().Get("customer_id"))
	orders, err := h.orders.ListOrders(ctx, actor, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderList(orders))
}

func (h *AdminOrderHandlers) orderStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.stats == nil {
		serviceUnavailable(ctx, w, "stats")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	stats, err := h.stats.OrderStats(ctx, actor, strings.TrimSpace(r.URL.Query().Get("customer_id")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	resp := orderStatsResponse{
		Total:            stats.Total,
		Delivered:        stats.Delivered,
		Pending:          stats.Pending,
		Cancelled:        stats.Cancelled,
		PaidRevenue:      stats.PaidRevenue.String(),
		PaidTransactions: stats.PaidTransactions,
		TodayRevenue:     stats.TodayRevenue.String(),
		DailyRevenue:     make([]dailyRevenueItem, 0, len(stats.DailyRevenue)),
		FrequentServices: make([]serviceFrequencyItem, 0, len(stats.FrequentServices)),
		TotalAccounts:    stats.TotalAccounts,
		TotalCouriers:    stats.TotalCouriers,
		TotalServices:    stats.TotalServices,
	}
	for _, day := range stats.DailyRevenue {
		resp.DailyRevenue = append(resp.DailyRevenue, dailyRevenueItem{
			Date:   day.Date.Format(time.DateOnly),
			Amount: day.Amount.String(),
		})
	}
	for _, f := range stats.FrequentServices {
		resp.FrequentServices = append(resp.FrequentServices, serviceFrequencyItem{
			ServiceID:   f.ServiceID,
			ServiceName: f.ServiceName,
			Orders:      f.Orders,
		})
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req statusUpdateRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	order, err := h.orders.UpdateOrderStatus(ctx, services.UpdateOrderStatusCommand{
		Actor:   actor,
		OrderID: orderID,
		Status:  req.Status,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req statusUpdateRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	order, err := h.orders.UpdatePaymentStatus(ctx, services.UpdatePaymentStatusCommand{
		Actor:   actor,
		OrderID: orderID,
		Status:  req.Status,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) assignCourier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req assignCourierRequest
	if !decodeJSONBody(w, r, &req, true) {
		return
	}
	order, err := h.orders.AssignCourier(ctx, services.AssignCourierCommand{
		Actor:     actor,
		OrderID:   orderID,
		CourierID: strings.TrimSpace(req.CourierID),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(ctx, services.DeleteOrderCommand{Actor: actor, OrderID: orderID}); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
