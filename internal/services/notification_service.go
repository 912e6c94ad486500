package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/wahyu285/loundry/internal/repositories"
)

// NotificationServiceDeps bundles collaborators for the notification flag service.
type NotificationServiceDeps struct {
	Orders repositories.OrderRepository
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type notificationService struct {
	orders repositories.OrderRepository
	logger func(context.Context, string, map[string]any)
}

// NewNotificationService constructs the notification flag service.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Orders == nil {
		return nil, errors.New("notification service: order repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &notificationService{orders: deps.Orders, logger: logger}, nil
}

// CountUnread returns how many of the caller's orders changed status since they last looked.
func (s *notificationService) CountUnread(ctx context.Context, actor Actor) (int, error) {
	actor = normaliseActor(actor)
	if actor.ID == "" {
		return 0, fmt.Errorf("%w: actor is required", ErrOrderPermissionDenied)
	}
	count, err := s.orders.CountUnnotified(ctx, actor.ID)
	if err != nil {
		return 0, mapRepositoryError(err, orderRepositoryErrors)
	}
	return count, nil
}

// MarkAllRead acknowledges every unread order of the caller in one batch.
func (s *notificationService) MarkAllRead(ctx context.Context, actor Actor) (int, error) {
	actor = normaliseActor(actor)
	if actor.ID == "" {
		return 0, fmt.Errorf("%w: actor is required", ErrOrderPermissionDenied)
	}
	updated, err := s.orders.MarkNotified(ctx, actor.ID)
	if err != nil {
		return 0, mapRepositoryError(err, orderRepositoryErrors)
	}
	s.logger(ctx, "order.notifications.read", map[string]any{
		"customerId": actor.ID,
		"updated":    updated,
	})
	return updated, nil
}
