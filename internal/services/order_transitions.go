package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories"
)

// courierTargets are the statuses a courier may move an assigned order into.
var courierTargets = []OrderStatus{
	domain.OrderStatusPickedUp,
	domain.OrderStatusProcessing,
	domain.OrderStatusReady,
	domain.OrderStatusDelivered,
}

func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	actor := normaliseActor(cmd.Actor)
	if cmd.OrderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var previous OrderStatus
	order, err := s.orders.Mutate(ctx, cmd.OrderID, func(order *domain.Order) error {
		if !isOwnerOrStaff(actor, *order) {
			return fmt.Errorf("%w: only the owner or staff may cancel", ErrOrderPermissionDenied)
		}
		if !order.Cancellable() {
			return fmt.Errorf("%w: order %d is %s/%s and cannot be cancelled", ErrOrderInvalidState, order.ID, order.OrderStatus, order.PaymentStatus)
		}
		previous = order.OrderStatus
		order.OrderStatus = domain.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return Order{}, mapRepositoryError(err, orderRepositoryErrors)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventCancelled,
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		PreviousStatus: string(previous),
		CurrentStatus:  string(order.OrderStatus),
		ActorID:        actor.ID,
		OccurredAt:     s.now(),
	})
	return order, nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	actor := normaliseActor(cmd.Actor)
	if cmd.OrderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := OrderStatus(strings.ToLower(strings.TrimSpace(cmd.Status)))
	if !target.Valid() {
		return Order{}, fmt.Errorf("%w: unknown order status %q", ErrOrderInvalidInput, cmd.Status)
	}
	if !actor.Staff && !actor.Courier {
		return Order{}, fmt.Errorf("%w: only couriers and staff may update order status", ErrOrderPermissionDenied)
	}
	if !actor.Staff && !slices.Contains(courierTargets, target) {
		return Order{}, fmt.Errorf("%w: couriers may not set status %q", ErrOrderPermissionDenied, target)
	}

	var previous OrderStatus
	order, err := s.orders.Mutate(ctx, cmd.OrderID, func(order *domain.Order) error {
		if !actor.Staff {
			if !order.AssignedTo(actor.ID) {
				return fmt.Errorf("%w: order %d is not assigned to courier", ErrOrderPermissionDenied, order.ID)
			}
			if order.OrderStatus == domain.OrderStatusCancelled {
				return fmt.Errorf("%w: order %d is cancelled", ErrOrderInvalidState, order.ID)
			}
		}
		previous = order.OrderStatus
		if order.OrderStatus == target {
			return repositories.ErrNoChange
		}
		order.OrderStatus = target
		return nil
	})
	if err != nil {
		return Order{}, mapRepositoryError(err, orderRepositoryErrors)
	}

	if previous != order.OrderStatus {
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        order.ID,
			CustomerID:     order.CustomerID,
			PreviousStatus: string(previous),
			CurrentStatus:  string(order.OrderStatus),
			ActorID:        actor.ID,
			OccurredAt:     s.now(),
		})
	}
	return order, nil
}

func (s *orderService) MarkCODPaid(ctx context.Context, cmd MarkCODPaidCommand) (Order, error) {
	actor := normaliseActor(cmd.Actor)
	if cmd.OrderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !actor.Courier {
		return Order{}, fmt.Errorf("%w: courier role required", ErrOrderPermissionDenied)
	}

	order, err := s.orders.Mutate(ctx, cmd.OrderID, func(order *domain.Order) error {
		if !order.AssignedTo(actor.ID) {
			return fmt.Errorf("%w: order %d is not assigned to courier", ErrOrderPermissionDenied, order.ID)
		}
		if order.PaymentMethod != domain.PaymentMethodCOD || order.PaymentStatus != domain.PaymentStatusUnpaid {
			return fmt.Errorf("%w: order %d is %s/%s, only unpaid cod orders can be marked paid", ErrOrderInvalidState, order.ID, order.PaymentMethod, order.PaymentStatus)
		}
		order.PaymentStatus = domain.PaymentStatusPaid
		return nil
	})
	if err != nil {
		return Order{}, mapRepositoryError(err, orderRepositoryErrors)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventPaymentChanged,
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		PreviousStatus: string(domain.PaymentStatusUnpaid),
		CurrentStatus:  string(order.PaymentStatus),
		ActorID:        actor.ID,
		OccurredAt:     s.now(),
		Metadata:       map[string]any{"source": "cod"},
	})
	return order, nil
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (Order, error) {
	actor := normaliseActor(cmd.Actor)
	if cmd.OrderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := PaymentStatus(strings.ToLower(strings.TrimSpace(cmd.Status)))
	if !target.Valid() {
		return Order{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, cmd.Status)
	}
	if !actor.Staff {
		return Order{}, fmt.Errorf("%w: staff role required", ErrOrderPermissionDenied)
	}

	var previous PaymentStatus
	order, err := s.orders.Mutate(ctx, cmd.OrderID, func(order *domain.Order) error {
		previous = order.PaymentStatus
		if order.PaymentStatus == target {
			return repositories.ErrNoChange
		}
		order.PaymentStatus = target
		return nil
	})
	if err != nil {
		return Order{}, mapRepositoryError(err, orderRepositoryErrors)
	}

	if previous != order.PaymentStatus {
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventPaymentChanged,
			OrderID:        order.ID,
			CustomerID:     order.CustomerID,
			PreviousStatus: string(previous),
			CurrentStatus:  string(order.PaymentStatus),
			ActorID:        actor.ID,
			OccurredAt:     s.now(),
			Metadata:       map[string]any{"source": "staff"},
		})
	}
	return order, nil
}

func (s *orderService) AssignCourier(ctx context.Context, cmd AssignCourierCommand) (Order, error) {
	actor := normaliseActor(cmd.Actor)
	if cmd.OrderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !actor.Staff {
		return Order{}, fmt.Errorf("%w: staff role required", ErrOrderPermissionDenied)
	}

	courierID := strings.TrimSpace(cmd.CourierID)
	if courierID != "" {
		if s.accounts == nil {
			return Order{}, fmt.Errorf("%w: account directory unavailable", ErrOrderUnavailable)
		}
		account, err := s.accounts.FindByID(ctx, courierID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return Order{}, fmt.Errorf("%w: courier %q not found", ErrOrderInvalidInput, courierID)
			}
			return Order{}, mapRepositoryError(err, accountRepositoryErrors)
		}
		if !account.IsCourier {
			return Order{}, fmt.Errorf("%w: account %q is not a courier", ErrOrderInvalidInput, courierID)
		}
	}

	var previous string
	order, err := s.orders.Mutate(ctx, cmd.OrderID, func(order *domain.Order) error {
		previous = order.AssignedCourierID
		if order.AssignedCourierID == courierID {
			return repositories.ErrNoChange
		}
		order.AssignedCourierID = courierID
		return nil
	})
	if err != nil {
		return Order{}, mapRepositoryError(err, orderRepositoryErrors)
	}

	if previous != courierID {
		s.publishEvent(ctx, OrderEvent{
			Type:          orderEventCourierChanged,
			OrderID:       order.ID,
			CustomerID:    order.CustomerID,
			CurrentStatus: string(order.OrderStatus),
			ActorID:       actor.ID,
			OccurredAt:    s.now(),
			Metadata:      map[string]any{"previousCourier": previous, "courier": courierID},
		})
	}
	return order, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error {
	actor := normaliseActor(cmd.Actor)
	if cmd.OrderID <= 0 {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !actor.Staff {
		return fmt.Errorf("%w: staff role required", ErrOrderPermissionDenied)
	}
	order, err := s.load(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, cmd.OrderID); err != nil {
		return mapRepositoryError(err, orderRepositoryErrors)
	}
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventDeleted,
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		PreviousStatus: string(order.OrderStatus),
		ActorID:        actor.ID,
		OccurredAt:     s.now(),
	})
	return nil
}
