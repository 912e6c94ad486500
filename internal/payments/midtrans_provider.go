package payments

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// Logger is the structured logging contract shared by gateway adapters.
type Logger func(ctx context.Context, event string, fields map[string]any)

type snapAPI interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// MidtransConfig configures the Snap adapter.
type MidtransConfig struct {
	ServerKey       string
	Environment     string
	EnabledPayments []string
	Logger          Logger
	Client          snapAPI
}

// MidtransProvider opens Snap payment sessions.
type MidtransProvider struct {
	api             snapAPI
	enabledPayments []snap.SnapPaymentType
	logger          Logger
}

// NewMidtransProvider constructs a Snap adapter.
func NewMidtransProvider(cfg MidtransConfig) (*MidtransProvider, error) {
	api := cfg.Client
	if api == nil {
		serverKey := strings.TrimSpace(cfg.ServerKey)
		if serverKey == "" {
			return nil, errors.New("midtrans: server key is required")
		}
		env := midtrans.Sandbox
		if strings.EqualFold(strings.TrimSpace(cfg.Environment), "production") {
			env = midtrans.Production
		}
		client := &snap.Client{}
		client.New(serverKey, env)
		api = client
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	enabled := make([]snap.SnapPaymentType, 0, len(cfg.EnabledPayments))
	for _, p := range cfg.EnabledPayments {
		if p = strings.TrimSpace(p); p != "" {
			enabled = append(enabled, snap.SnapPaymentType(p))
		}
	}

	return &MidtransProvider{api: api, enabledPayments: enabled, logger: logger}, nil
}

// CreateSession requests a Snap token for the transaction.
func (p *MidtransProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if p == nil || p.api == nil {
		return Session{}, errors.New("midtrans: provider is nil")
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		return Session{}, errors.New("midtrans: transaction id is required")
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.TransactionID,
			GrossAmt: req.GrossAmount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.Customer.Name,
			Email: req.Customer.Email,
		},
		EnabledPayments: p.enabledPayments,
	}
	if req.FinishURL != "" {
		snapReq.Callbacks = &snap.Callbacks{Finish: req.FinishURL}
	}

	resp, mErr := p.api.CreateTransaction(snapReq)
	if mErr != nil {
		p.logger(ctx, "payments.midtrans.session.failed", map[string]any{
			"transactionId": req.TransactionID,
			"statusCode":    mErr.StatusCode,
			"message":       mErr.Message,
		})
		return Session{}, fmt.Errorf("midtrans: create transaction: status %d: %s", mErr.StatusCode, mErr.Message)
	}
	if resp == nil || resp.Token == "" {
		return Session{}, errors.New("midtrans: empty snap token")
	}

	p.logger(ctx, "payments.midtrans.session.created", map[string]any{
		"transactionId": req.TransactionID,
		"grossAmount":   req.GrossAmount,
	})

	return Session{
		Provider:    ProviderMidtrans,
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}

// MidtransSignature computes the notification signature
// sha512(order_id + status_code + gross_amount + server_key).
func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// MidtransVerifier checks notification signatures against the server key.
type MidtransVerifier struct {
	serverKey string
}

// NewMidtransVerifier builds a verifier for the given server key.
func NewMidtransVerifier(serverKey string) *MidtransVerifier {
	return &MidtransVerifier{serverKey: strings.TrimSpace(serverKey)}
}

// Verify returns ErrInvalidSignature when the notification was not signed with the server key.
func (v *MidtransVerifier) Verify(n Notification) error {
	if v == nil || v.serverKey == "" {
		return fmt.Errorf("%w: server key not configured", ErrInvalidSignature)
	}
	expected := MidtransSignature(n.TransactionID, n.StatusCode, n.GrossAmount, v.serverKey)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(n.SignatureKey)))) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
