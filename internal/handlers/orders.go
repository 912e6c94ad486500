package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/platform/auth"
	"github.com/wahyu285/loundry/internal/platform/httpx"
	"github.com/wahyu285/loundry/internal/services"
)

const (
	defaultOrderPageSize = 50
	maxOrderPageSize     = 200
	idempotencyHeader    = "Idempotency-Key"
)

type createOrderRequest struct {
	CustomerID      string                   `json:"customer_id"`
	ServiceID       string                   `json:"service_id"`
	PaymentMethod   string                   `json:"payment_method"`
	PaymentGateway  string                   `json:"payment_gateway"`
	ScheduledPickup string                   `json:"scheduled_pickup"`
	Latitude        *float64                 `json:"latitude"`
	Longitude       *float64                 `json:"longitude"`
	PickupAddress   string                   `json:"pickup_address"`
	ItemType        string                   `json:"item_type"`
	Quantity        int                      `json:"quantity"`
	Weight          *decimal.Decimal         `json:"weight"`
	Items           []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type retryPaymentRequest struct {
	Gateway string `json:"gateway"`
}

// OrderHandlers exposes the customer-facing /me endpoints: orders and notifications.
type OrderHandlers struct {
	authn         *auth.Authenticator
	orders        services.OrderService
	notifications services.NotificationService
	idempotency   func(http.Handler) http.Handler
	location      *time.Location
}

// OrderHandlersOption customises OrderHandlers.
type OrderHandlersOption func(*OrderHandlers)

// WithCreateOrderMiddleware wraps order creation, typically with idempotency replay.
func WithCreateOrderMiddleware(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// WithBusinessLocation sets the timezone used for form timestamps without an offset.
func WithBusinessLocation(loc *time.Location) OrderHandlersOption {
	return func(h *OrderHandlers) {
		if loc != nil {
			h.location = loc
		}
	}
}

// NewOrderHandlers constructs the /me handlers.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, notifications services.NotificationService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:         authn,
		orders:        orders,
		notifications: notifications,
		location:      time.UTC,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /me endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/orders", h.listOrders)
	if h.idempotency != nil {
		r.With(h.idempotency).Post("/orders", h.createOrder)
	} else {
		r.Post("/orders", h.createOrder)
	}
	r.Get("/orders/{orderID}", h.getOrder)
	r.Post("/orders/{orderID}:cancel", h.cancelOrder)
	r.Post("/orders/{orderID}:retry-payment", h.retryPayment)
	r.Get("/orders/{orderID}/invoice", h.getInvoice)
	r.Get("/notifications/count", h.countNotifications)
	r.Post("/notifications:mark-read", h.markNotificationsRead)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	// the /me listing is always scoped to the caller's own orders
	actor = services.Actor{ID: actor.ID, Customer: true}

	filter, ok := parseOrderFilter(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListOrders(ctx, actor, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderList(orders))
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	cmd := services.CreateOrderCommand{
		Actor:          actor,
		CustomerID:     strings.TrimSpace(req.CustomerID),
		ServiceID:      strings.TrimSpace(req.ServiceID),
		PaymentMethod:  domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		PaymentGateway: strings.TrimSpace(req.PaymentGateway),
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		PickupAddress:  req.PickupAddress,
		ItemTypeID:     strings.TrimSpace(req.ItemType),
		Quantity:       req.Quantity,
		Weight:         req.Weight,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyHeader)),
	}
	if raw := strings.TrimSpace(req.ScheduledPickup); raw != "" {
		ts, err := parseLocalTimeParam(raw, h.location)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "scheduled_pickup must be an RFC3339 or YYYY-MM-DDTHH:MM timestamp", http.StatusBadRequest))
			return
		}
		cmd.ScheduledPickup = ts
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.OrderItemInput{Name: item.Name, Quantity: item.Quantity})
	}

	result, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCreateOrderResponse(result))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
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
	order, err := h.orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
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
	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{Actor: actor, OrderID: orderID})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) retryPayment(w http.ResponseWriter, r *http.Request) {
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
	var req retryPaymentRequest
	if !decodeJSONBody(w, r, &req, true) {
		return
	}
	result, err := h.orders.RetryPayment(ctx, services.RetryPaymentCommand{
		Actor:   actor,
		OrderID: orderID,
		Gateway: strings.TrimSpace(req.Gateway),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCreateOrderResponse(result))
}

type invoiceResponse struct {
	Order        orderPayload `json:"order"`
	CustomerName string       `json:"customer_name"`
	Email        string       `json:"email,omitempty"`
	IssuedAt     string       `json:"issued_at"`
}

func (h *OrderHandlers) getInvoice(w http.ResponseWriter, r *http.Request) {
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
	invoice, err := h.orders.GetInvoice(ctx, actor, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, invoiceResponse{
		Order:        buildOrderPayload(invoice.Order),
		CustomerName: invoice.CustomerName,
		Email:        invoice.Customer.Email,
		IssuedAt:     formatTime(invoice.IssuedAt),
	})
}

func (h *OrderHandlers) countNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.notifications == nil {
		serviceUnavailable(ctx, w, "notification")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	count, err := h.notifications.CountUnread(ctx, actor)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int{"count": count})
}

func (h *OrderHandlers) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.notifications == nil {
		serviceUnavailable(ctx, w, "notification")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	updated, err := h.notifications.MarkAllRead(ctx, actor)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok", "updated": updated})
}

// parseOrderFilter reads status, payment_status, created_after, created_before
// and page_size query parameters.
func parseOrderFilter(w http.ResponseWriter, r *http.Request) (domain.OrderListFilter, bool) {
	ctx := r.Context()
	query := r.URL.Query()
	filter := domain.OrderListFilter{Limit: defaultOrderPageSize}

	for _, raw := range parseFilterValues(query["status"]) {
		filter.OrderStatuses = append(filter.OrderStatuses, domain.OrderStatus(strings.ToLower(raw)))
	}
	// gateway statuses such as pending or expire are stored verbatim
	for _, raw := range parseFilterValues(query["payment_status"]) {
		filter.PaymentStatuses = append(filter.PaymentStatuses, domain.PaymentStatus(strings.ToLower(raw)))
	}

	parseBound := func(name string) (*time.Time, bool) {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			return nil, true
		}
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", name+" must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return nil, false
		}
		return &ts, true
	}
	var ok bool
	if filter.CreatedAfter, ok = parseBound("created_after"); !ok {
		return filter, false
	}
	if filter.CreatedBefore, ok = parseBound("created_before"); !ok {
		return filter, false
	}

	if raw := strings.TrimSpace(query.Get("page_size")); raw != "" {
		size, err := parsePositiveInt(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return filter, false
		}
		switch {
		case size == 0:
		case size > maxOrderPageSize:
			filter.Limit = maxOrderPageSize
		default:
			filter.Limit = size
		}
	}
	return filter, true
}
