package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

const defaultStripeCurrency = "idr"

var zeroDecimalCurrencies = map[string]bool{
	"jpy": true,
	"krw": true,
	"vnd": true,
}

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures the Stripe Checkout adapter.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
	Backends      *stripe.Backends
	Logger        Logger
	Sessions      stripeSessionAPI
}

// StripeProvider opens Stripe Checkout sessions and verifies their webhooks.
type StripeProvider struct {
	sessions      stripeSessionAPI
	webhookSecret string
	successURL    string
	cancelURL     string
	currency      string
	logger        Logger
}

// NewStripeProvider constructs a Stripe adapter.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	sessions := cfg.Sessions
	if sessions == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		sessions = client.New(apiKey, cfg.Backends).CheckoutSessions
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultStripeCurrency
	}

	return &StripeProvider{
		sessions:      sessions,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		successURL:    strings.TrimSpace(cfg.SuccessURL),
		cancelURL:     strings.TrimSpace(cfg.CancelURL),
		currency:      currency,
		logger:        logger,
	}, nil
}

// CreateSession creates a single line item Checkout session correlated by client_reference_id.
func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if p == nil || p.sessions == nil {
		return Session{}, errors.New("stripe: provider is nil")
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = p.currency
	}
	amount := req.GrossAmount
	if !zeroDecimalCurrencies[currency] {
		amount *= 100
	}

	successURL := firstNonEmpty(req.FinishURL, p.successURL)
	cancelURL := firstNonEmpty(req.CancelURL, p.cancelURL, successURL)

	name := req.Description
	if name == "" {
		name = "Laundry order " + req.TransactionID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(req.TransactionID),
		Metadata:          map[string]string{"transaction_id": req.TransactionID},
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		}},
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}

	session, err := p.sessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId":     session.ID,
		"transactionId": req.TransactionID,
	})

	return Session{
		Provider:    ProviderStripe,
		Token:       session.ID,
		RedirectURL: session.URL,
	}, nil
}

// ParseWebhook verifies the Stripe-Signature header and maps Checkout session
// events onto gateway transaction statuses.
func (p *StripeProvider) ParseWebhook(payload []byte, signatureHeader string) (Notification, error) {
	if p == nil || p.webhookSecret == "" {
		return Notification{}, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return Notification{}, fmt.Errorf("stripe: decode checkout session: %w", err)
	}

	status := ""
	switch event.Type {
	case "checkout.session.completed":
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			status = "settlement"
		} else {
			status = "pending"
		}
	case "checkout.session.async_payment_succeeded":
		status = "settlement"
	case "checkout.session.async_payment_failed":
		status = "deny"
	case "checkout.session.expired":
		status = "expire"
	default:
		return Notification{}, fmt.Errorf("%w: %s", ErrIgnoredNotification, event.Type)
	}

	transactionID := session.ClientReferenceID
	if transactionID == "" {
		transactionID = session.Metadata["transaction_id"]
	}

	return Notification{
		Provider:          ProviderStripe,
		TransactionID:     transactionID,
		TransactionStatus: status,
		PaymentType:       "stripe_checkout",
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
