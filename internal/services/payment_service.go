package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories"
)

// PaymentServiceDeps bundles collaborators for gateway reconciliation.
type PaymentServiceDeps struct {
	Orders repositories.OrderRepository
	Clock  func() time.Time
	Events OrderEventPublisher
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders repositories.OrderRepository
	clock  func() time.Time
	events OrderEventPublisher
	logger func(context.Context, string, map[string]any)
}

// NewPaymentService constructs the reconciliation service shared by the redirect
// callback and the webhooks.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &paymentService{
		orders: deps.Orders,
		clock: func() time.Time {
			return clock().UTC()
		},
		events: deps.Events,
		logger: logger,
	}, nil
}

// MapGatewayStatus translates a gateway transaction status into a payment status.
// capture and settlement become paid; cancel, deny and expire become unpaid; any
// other value is kept verbatim.
func MapGatewayStatus(external string) PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(external)) {
	case "capture", "settlement":
		return domain.PaymentStatusPaid
	case "cancel", "deny", "expire":
		return domain.PaymentStatusUnpaid
	default:
		return PaymentStatus(strings.TrimSpace(external))
	}
}

// Reconcile applies the mapped status to the order named by the transaction id.
// A missing order is logged and reported with Found=false rather than an error.
func (s *paymentService) Reconcile(ctx context.Context, cmd ReconcilePaymentCommand) (ReconcileResult, error) {
	orderID, err := domain.ParseTransactionID(cmd.TransactionID)
	if err != nil {
		s.logger(ctx, "payment.reconcile_invalid_reference", map[string]any{
			"source":        cmd.Source,
			"transactionId": cmd.TransactionID,
		})
		return ReconcileResult{}, err
	}

	target := MapGatewayStatus(cmd.TransactionStatus)
	if target == "" {
		return ReconcileResult{OrderID: orderID}, errors.New("payment: transaction status is required")
	}

	var previous PaymentStatus
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		previous = order.PaymentStatus
		if order.PaymentStatus == target {
			return repositories.ErrNoChange
		}
		order.PaymentStatus = target
		return nil
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			s.logger(ctx, "payment.reconcile_order_missing", map[string]any{
				"source":        cmd.Source,
				"transactionId": cmd.TransactionID,
				"orderId":       orderID,
			})
			return ReconcileResult{OrderID: orderID, PaymentStatus: target}, nil
		}
		return ReconcileResult{OrderID: orderID}, mapRepositoryError(err, orderRepositoryErrors)
	}

	changed := previous != order.PaymentStatus
	s.logger(ctx, "payment.reconciled", map[string]any{
		"source":            cmd.Source,
		"orderId":           orderID,
		"transactionStatus": cmd.TransactionStatus,
		"paymentStatus":     string(order.PaymentStatus),
		"changed":           changed,
	})

	if changed && s.events != nil {
		event := OrderEvent{
			Type:           orderEventPaymentChanged,
			OrderID:        order.ID,
			CustomerID:     order.CustomerID,
			PreviousStatus: string(previous),
			CurrentStatus:  string(order.PaymentStatus),
			OccurredAt:     s.clock(),
			Metadata:       map[string]any{"source": cmd.Source, "transactionId": cmd.TransactionID},
		}
		if err := s.events.PublishOrderEvent(ctx, event); err != nil {
			s.logger(ctx, "order.event.publish.failed", map[string]any{
				"type":  event.Type,
				"order": event.OrderID,
				"error": err.Error(),
			})
		}
	}

	return ReconcileResult{
		OrderID:       order.ID,
		PaymentStatus: order.PaymentStatus,
		Found:         true,
		Changed:       changed,
	}, nil
}
