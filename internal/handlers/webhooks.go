package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wahyu285/loundry/internal/payments"
	"github.com/wahyu285/loundry/internal/platform/observability"
	"github.com/wahyu285/loundry/internal/services"
)

const maxWebhookBodySize = 64 * 1024

// NotificationVerifier checks a gateway notification signature.
type NotificationVerifier interface {
	Verify(n payments.Notification) error
}

// WebhookParser verifies and decodes a signed webhook delivery.
type WebhookParser interface {
	ParseWebhook(payload []byte, signatureHeader string) (payments.Notification, error)
}

type midtransNotification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	PaymentType       string `json:"payment_type"`
}

// WebhookHandlers receives server-to-server payment notifications. Responses
// are bare text: "OK", "Error" or "Invalid method".
type WebhookHandlers struct {
	payments services.PaymentService
	midtrans NotificationVerifier
	stripe   WebhookParser
}

// WebhookOption customises WebhookHandlers.
type WebhookOption func(*WebhookHandlers)

// WithMidtransVerifier enables Midtrans signature verification.
func WithMidtransVerifier(v NotificationVerifier) WebhookOption {
	return func(h *WebhookHandlers) {
		h.midtrans = v
	}
}

// WithStripeWebhooks enables the Stripe Checkout webhook.
func WithStripeWebhooks(parser WebhookParser) WebhookOption {
	return func(h *WebhookHandlers) {
		h.stripe = parser
	}
}

// NewWebhookHandlers constructs the gateway webhook handlers.
func NewWebhookHandlers(payments services.PaymentService, opts ...WebhookOption) *WebhookHandlers {
	h := &WebhookHandlers{payments: payments}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers /webhooks/payments/*. Every method is routed so that the
// handlers can answer "Invalid method" themselves.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.HandleFunc("/payments/midtrans", h.midtransNotification)
	r.HandleFunc("/payments/stripe", h.stripeNotification)
}

func (h *WebhookHandlers) midtransNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)
	if r.Method != http.MethodPost {
		writePlain(w, http.StatusMethodNotAllowed, "Invalid method")
		return
	}
	if h.payments == nil {
		writePlain(w, http.StatusInternalServerError, "Error")
		return
	}

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		logger.Warn("midtrans webhook body rejected", zap.Error(err))
		writePlain(w, http.StatusInternalServerError, "Error")
		return
	}
	var payload midtransNotification
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Warn("midtrans webhook decode failed", zap.Error(err))
		writePlain(w, http.StatusInternalServerError, "Error")
		return
	}
	if strings.TrimSpace(payload.OrderID) == "" {
		logger.Info("midtrans webhook without order id ignored")
		writePlain(w, http.StatusOK, "OK")
		return
	}

	notification := payments.Notification{
		Provider:          payments.ProviderMidtrans,
		TransactionID:     strings.TrimSpace(payload.OrderID),
		TransactionStatus: strings.TrimSpace(payload.TransactionStatus),
		StatusCode:        strings.TrimSpace(payload.StatusCode),
		GrossAmount:       strings.TrimSpace(payload.GrossAmount),
		SignatureKey:      strings.TrimSpace(payload.SignatureKey),
		PaymentType:       strings.TrimSpace(payload.PaymentType),
	}
	if h.midtrans != nil {
		if err := h.midtrans.Verify(notification); err != nil {
			logger.Warn("midtrans webhook signature rejected",
				zap.String("transactionId", notification.TransactionID),
				zap.Error(err),
			)
			writePlain(w, http.StatusForbidden, "Error")
			return
		}
	}
	h.reconcile(w, r, notification)
}

func (h *WebhookHandlers) stripeNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)
	if r.Method != http.MethodPost {
		writePlain(w, http.StatusMethodNotAllowed, "Invalid method")
		return
	}
	if h.stripe == nil || h.payments == nil {
		writePlain(w, http.StatusNotFound, "Error")
		return
	}
	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		writePlain(w, http.StatusBadRequest, "Error")
		return
	}
	notification, err := h.stripe.ParseWebhook(body, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payments.ErrIgnoredNotification):
		writePlain(w, http.StatusOK, "OK")
		return
	case errors.Is(err, payments.ErrInvalidSignature):
		logger.Warn("stripe webhook signature rejected", zap.Error(err))
		writePlain(w, http.StatusBadRequest, "Error")
		return
	case err != nil:
		logger.Warn("stripe webhook decode failed", zap.Error(err))
		writePlain(w, http.StatusBadRequest, "Error")
		return
	}
	h.reconcile(w, r, notification)
}

func (h *WebhookHandlers) reconcile(w http.ResponseWriter, r *http.Request, n payments.Notification) {
	ctx := r.Context()
	result, err := h.payments.Reconcile(ctx, services.ReconcilePaymentCommand{
		Source:            n.Provider,
		TransactionID:     n.TransactionID,
		TransactionStatus: n.TransactionStatus,
	})
	if err != nil {
		observability.FromContext(ctx).Error("payment webhook reconcile failed",
			zap.String("provider", n.Provider),
			zap.String("transactionId", n.TransactionID),
			zap.Error(err),
		)
		writePlain(w, http.StatusInternalServerError, "Error")
		return
	}
	observability.FromContext(ctx).Info("payment webhook reconciled",
		zap.String("provider", n.Provider),
		zap.Int64("orderId", result.OrderID),
		zap.Bool("found", result.Found),
		zap.Bool("changed", result.Changed),
		zap.String("paymentStatus", string(result.PaymentStatus)),
	)
	writePlain(w, http.StatusOK, "OK")
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
