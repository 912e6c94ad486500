package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// ProviderMidtrans identifies the Midtrans Snap gateway.
	ProviderMidtrans = "midtrans"
	// ProviderStripe identifies the Stripe Checkout gateway.
	ProviderStripe = "stripe"
)

var (
	// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
	ErrUnsupportedProvider = errors.New("payments: unsupported provider")
	// ErrInvalidSignature is returned when a gateway notification fails verification.
	ErrInvalidSignature = errors.New("payments: invalid notification signature")
	// ErrIgnoredNotification marks webhook events that carry no payment status.
	ErrIgnoredNotification = errors.New("payments: notification ignored")
)

// Customer identifies the payer shown on the gateway checkout page.
type Customer struct {
	Name  string
	Email string
}

// SessionRequest captures what a gateway needs to open a payment session.
type SessionRequest struct {
	TransactionID  string
	GrossAmount    int64
	Currency       string
	Description    string
	Customer       Customer
	FinishURL      string
	CancelURL      string
	IdempotencyKey string
}

// Session is the gateway handle returned to the customer.
type Session struct {
	Provider    string
	Token       string
	RedirectURL string
}

// Notification is a gateway status report normalised to the Midtrans vocabulary
// (capture, settlement, pending, cancel, deny, expire, ...).
type Notification struct {
	Provider          string
	TransactionID     string
	TransactionStatus string
	StatusCode        string
	GrossAmount       string
	SignatureKey      string
	PaymentType       string
}

// Provider is implemented by every gateway adapter.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// Manager routes session requests to a configured provider.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the provider used when callers have no preference.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = strings.ToLower(strings.TrimSpace(provider))
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	registered := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		registered[key] = v
	}
	m := &Manager{providers: registered}
	if _, ok := registered[ProviderMidtrans]; ok {
		m.defaultProvider = ProviderMidtrans
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

func (m *Manager) resolve(preferred string) (string, Provider, error) {
	if m == nil || len(m.providers) == 0 {
		return "", nil, errors.New("payments: no providers registered")
	}
	if key := strings.ToLower(strings.TrimSpace(preferred)); key != "" {
		if p, ok := m.providers[key]; ok {
			return key, p, nil
		}
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, key)
	}
	if p, ok := m.providers[m.defaultProvider]; ok {
		return m.defaultProvider, p, nil
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// CreateSession delegates to the preferred provider, or the default one when empty.
func (m *Manager) CreateSession(ctx context.Context, preferred string, req SessionRequest) (Session, error) {
	key, provider, err := m.resolve(preferred)
	if err != nil {
		return Session{}, err
	}
	session, err := provider.CreateSession(ctx, req)
	if err != nil {
		return Session{}, err
	}
	session.Provider = key
	return session, nil
}

// DefaultProvider reports the provider used when callers have no preference.
func (m *Manager) DefaultProvider() string {
	key, _, err := m.resolve("")
	if err != nil {
		return ""
	}
	return key
}
