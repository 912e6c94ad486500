package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/platform/auth"
	"github.com/wahyu285/loundry/internal/platform/httpx"
	"github.com/wahyu285/loundry/internal/services"
)

type serviceRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Type        string          `json:"type"`
	Duration    string          `json:"duration"`
	ImageURL    string          `json:"image_url"`
}

type itemRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url"`
}

type discountRequest struct {
	Name      string          `json:"name"`
	MinOrders int             `json:"min_orders"`
	Percent   decimal.Decimal `json:"percent"`
	Active    *bool           `json:"active"`
}

// AdminHandlers groups the staff-only endpoints: orders, catalog and accounts.
type AdminHandlers struct {
	authn    *auth.Authenticator
	orders   *AdminOrderHandlers
	catalog  services.CatalogService
	accounts services.AccountService
}

// NewAdminHandlers constructs the /admin handlers.
func NewAdminHandlers(authn *auth.Authenticator, orders *AdminOrderHandlers, catalog services.CatalogService, accounts services.AccountService) *AdminHandlers {
	return &AdminHandlers{authn: authn, orders: orders, catalog: catalog, accounts: accounts}
}

// Routes registers the /admin endpoints behind the staff role.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleStaff))
	}
	if h.orders != nil {
		h.orders.Routes(r)
	}

	r.Get("/services", h.listServices)
	r.Post("/services", h.upsertService)
	r.Put("/services/{id}", h.upsertService)
	r.Delete("/services/{id}", h.deleteService)

	r.Get("/items", h.listItems)
	r.Post("/items", h.upsertItem)
	r.Put("/items/{id}", h.upsertItem)
	r.Delete("/items/{id}", h.deleteItem)

	r.Get("/discounts", h.listDiscounts)
	r.Post("/discounts", h.upsertDiscount)
	r.Put("/discounts/{id}", h.upsertDiscount)
	r.Delete("/discounts/{id}", h.deleteDiscount)

	r.Get("/accounts", h.listAccounts)
}

func (h *AdminHandlers) listServices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	views, err := h.catalog.ListServices(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]servicePayload, 0, len(views))
	for _, view := range views {
		items = append(items, buildServicePayload(view))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *AdminHandlers) upsertService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req serviceRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	service, err := h.catalog.UpsertService(ctx, services.UpsertServiceCommand{
		Actor:       actor,
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Type:        req.Type,
		Duration:    req.Duration,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, upsertStatus(id), map[string]any{"service": buildServicePayload(services.CatalogServiceView{Service: service})})
}

func (h *AdminHandlers) deleteService(w http.ResponseWriter, r *http.Request) {
	h.deleteCatalogEntry(w, r, func(actor services.Actor, id string) error {
		return h.catalog.DeleteService(r.Context(), actor, id)
	})
}

func (h *AdminHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	items, err := h.catalog.ListItems(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := make([]itemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, buildItemPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": payload})
}

func (h *AdminHandlers) upsertItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	item, err := h.catalog.UpsertItem(ctx, services.UpsertItemCommand{
		Actor:    actor,
		ID:       id,
		Name:     req.Name,
		Price:    req.Price,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, upsertStatus(id), map[string]any{"item": buildItemPayload(item)})
}

func (h *AdminHandlers) deleteItem(w http.ResponseWriter, r *http.Request) {
	h.deleteCatalogEntry(w, r, func(actor services.Actor, id string) error {
		return h.catalog.DeleteItem(r.Context(), actor, id)
	})
}

func (h *AdminHandlers) listDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	discounts, err := h.catalog.ListDiscounts(ctx, actor)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := make([]discountPayload, 0, len(discounts))
	for _, d := range discounts {
		payload = append(payload, buildDiscountPayload(d))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": payload})
}

func (h *AdminHandlers) upsertDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req discountRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	discount, err := h.catalog.UpsertDiscount(ctx, services.UpsertDiscountCommand{
		Actor:     actor,
		ID:        id,
		Name:      req.Name,
		MinOrders: req.MinOrders,
		Percent:   req.Percent,
		Active:    active,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, upsertStatus(id), map[string]any{"discount": buildDiscountPayload(discount)})
}

func (h *AdminHandlers) deleteDiscount(w http.ResponseWriter, r *http.Request) {
	h.deleteCatalogEntry(w, r, func(actor services.Actor, id string) error {
		return h.catalog.DeleteDiscount(r.Context(), actor, id)
	})
}

func (h *AdminHandlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		serviceUnavailable(ctx, w, "account")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	role := domain.AccountRole(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))))
	accounts, err := h.accounts.ListAccounts(ctx, actor, role)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := make([]accountPayload, 0, len(accounts))
	for _, a := range accounts {
		payload = append(payload, buildAccountPayload(a))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": payload})
}

func (h *AdminHandlers) deleteCatalogEntry(w http.ResponseWriter, r *http.Request, remove func(services.Actor, string) error) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "id is required", http.StatusBadRequest))
		return
	}
	if err := remove(actor, id); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func upsertStatus(id string) int {
	if id == "" {
		return http.StatusCreated
	}
	return http.StatusOK
}
