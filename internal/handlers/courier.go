package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wahyu285/loundry/internal/platform/auth"
	"github.com/wahyu285/loundry/internal/services"
)

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// CourierHandlers exposes the courier work queue.
type CourierHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	stats  services.OrderStatsService
}

// NewCourierHandlers constructs the /courier handlers.
func NewCourierHandlers(authn *auth.Authenticator, orders services.OrderService, stats services.OrderStatsService) *CourierHandlers {
	return &CourierHandlers{authn: authn, orders: orders, stats: stats}
}

// Routes registers the /courier endpoints.
func (h *CourierHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleCourier))
	}
	r.Get("/orders", h.listOrders)
	r.Get("/stats", h.getStats)
	r.Put("/orders/{orderID}/status", h.updateStatus)
	r.Post("/orders/{orderID}:mark-cod-paid", h.markCODPaid)
}

type courierOrdersResponse struct {
	Active    []orderPayload `json:"active"`
	Completed []orderPayload `json:"completed"`
}

func (h *CourierHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListCourierOrders(ctx, actor)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, courierOrdersResponse{
		Active:    buildOrderList(orders.Active).Items,
		Completed: buildOrderList(orders.Completed).Items,
	})
}

func (h *CourierHandlers) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.stats == nil {
		serviceUnavailable(ctx, w, "stats")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	stats, err := h.stats.CourierStats(ctx, actor)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int{
		"daily":   stats.Daily,
		"weekly":  stats.Weekly,
		"monthly": stats.Monthly,
	})
}

func (h *CourierHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
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
	// courier-scoped: never act with staff privileges on this route
	actor = services.Actor{ID: actor.ID, Courier: true}
	order, err := h.orders.UpdateOrderStatus(ctx, services.UpdateOrderStatusCommand{
		Actor:   actor,
		OrderID: orderID,
		Status:  strings.TrimSpace(req.Status),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *CourierHandlers) markCODPaid(w http.ResponseWriter, r *http.Request) {
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
	order, err := h.orders.MarkCODPaid(ctx, services.MarkCODPaidCommand{Actor: actor, OrderID: orderID})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}
