package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/platform/httpx"
	"github.com/wahyu285/loundry/internal/platform/observability"
	"github.com/wahyu285/loundry/internal/services"
)

// PublicHandlers serves unauthenticated catalog reads and the gateway redirect.
type PublicHandlers struct {
	catalog  services.CatalogService
	payments services.PaymentService
}

// NewPublicHandlers constructs the /public handlers.
func NewPublicHandlers(catalog services.CatalogService, payments services.PaymentService) *PublicHandlers {
	return &PublicHandlers{catalog: catalog, payments: payments}
}

// Routes registers the /public endpoints.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/services", h.listServices)
	r.Get("/services/{id}", h.getService)
	r.Get("/items", h.listItems)
	r.Get("/payments/finish", h.paymentFinish)
}

func (h *PublicHandlers) listServices(w http.ResponseWriter, r *http.Request) {
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

func (h *PublicHandlers) getService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		serviceUnavailable(ctx, w, "catalog")
		return
	}
	view, err := h.catalog.GetService(ctx, strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"service": buildServicePayload(view)})
}

func (h *PublicHandlers) listItems(w http.ResponseWriter, r *http.Request) {
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

type paymentFinishResponse struct {
	OrderID       int64  `json:"order_id,omitempty"`
	TransactionID string `json:"transaction_id"`
	PaymentStatus string `json:"payment_status,omitempty"`
	Outcome       string `json:"outcome"`
	Message       string `json:"message"`
}

// paymentFinish handles the browser returning from the gateway. It applies the
// same mapping as the webhook and reports the status it actually mapped to.
func (h *PublicHandlers) paymentFinish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		serviceUnavailable(ctx, w, "payment")
		return
	}
	query := r.URL.Query()
	transactionID := strings.TrimSpace(query.Get("order_id"))
	transactionStatus := strings.TrimSpace(query.Get("transaction_status"))
	if transactionID == "" || transactionStatus == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_id and transaction_status are required", http.StatusBadRequest))
		return
	}

	result, err := h.payments.Reconcile(ctx, services.ReconcilePaymentCommand{
		Source:            "redirect",
		TransactionID:     transactionID,
		TransactionStatus: transactionStatus,
	})
	if err != nil {
		observability.FromContext(ctx).Warn("payment redirect reconcile failed",
			zap.String("transactionId", transactionID),
			zap.Error(err),
		)
		writeJSONResponse(w, http.StatusOK, paymentFinishResponse{
			TransactionID: transactionID,
			Outcome:       "unknown",
			Message:       "Status pembayaran belum dapat dikonfirmasi.",
		})
		return
	}
	if !result.Found {
		writeJSONResponse(w, http.StatusOK, paymentFinishResponse{
			OrderID:       result.OrderID,
			TransactionID: transactionID,
			Outcome:       "unknown",
			Message:       "Pesanan tidak ditemukan.",
		})
		return
	}

	resp := paymentFinishResponse{
		OrderID:       result.OrderID,
		TransactionID: transactionID,
		PaymentStatus: string(result.PaymentStatus),
	}
	switch {
	case result.PaymentStatus.Settled():
		resp.Outcome = "success"
		resp.Message = "Pembayaran berhasil!"
	case result.PaymentStatus == domain.PaymentStatusUnpaid:
		resp.Outcome = "failed"
		resp.Message = "Pembayaran gagal atau dibatalkan."
	default:
		resp.Outcome = "pending"
		resp.Message = "Pembayaran sedang diproses."
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
