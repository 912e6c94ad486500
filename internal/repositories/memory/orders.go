package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories"
)

// OrderRepository implements repositories.OrderRepository with a single lock.
type OrderRepository struct {
	mu     sync.Mutex
	orders map[int64]domain.Order
	nextID int64
	now    func() time.Time
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository builds an empty order table.
func NewOrderRepository(clock func() time.Time) *OrderRepository {
	if clock == nil {
		clock = time.Now
	}
	return &OrderRepository{orders: make(map[int64]domain.Order), now: clock}
}

func (r *OrderRepository) Insert(_ context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == 0 {
		r.nextID++
		order.ID = r.nextID
	} else if _, exists := r.orders[order.ID]; exists {
		return domain.Order{}, repositories.NewConflictError("orders.insert", errDuplicateID)
	} else if order.ID > r.nextID {
		r.nextID = order.ID
	}
	now := r.now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	r.orders[order.ID] = order.Clone()
	return order, nil
}

func (r *OrderRepository) FindByID(_ context.Context, orderID int64) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.NewNotFoundError("orders.get")
	}
	return order.Clone(), nil
}

func (r *OrderRepository) Mutate(_ context.Context, orderID int64, fn repositories.OrderMutation) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.NewNotFoundError("orders.mutate")
	}
	working := current.Clone()
	if err := fn(&working); err != nil {
		if errors.Is(err, repositories.ErrNoChange) {
			return current.Clone(), nil
		}
		return domain.Order{}, err
	}
	working.ID = current.ID
	working.CreatedAt = current.CreatedAt
	working.TrackStatusChange(current.OrderStatus)
	working.UpdatedAt = r.now().UTC()
	r.orders[orderID] = working.Clone()
	return working, nil
}

func (r *OrderRepository) Delete(_ context.Context, orderID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[orderID]; !ok {
		return repositories.NewNotFoundError("orders.delete")
	}
	delete(r.orders, orderID)
	return nil
}

func (r *OrderRepository) List(_ context.Context, filter domain.OrderListFilter) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if matches(order, filter) {
			out = append(out, order.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *OrderRepository) CountByCustomer(_ context.Context, customerID string, excluded []domain.OrderStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, order := range r.orders {
		if order.CustomerID == customerID && !slices.Contains(excluded, order.OrderStatus) {
			count++
		}
	}
	return count, nil
}

func (r *OrderRepository) CountUnnotified(_ context.Context, customerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, order := range r.orders {
		if order.CustomerID == customerID && !order.NotifiedCustomer {
			count++
		}
	}
	return count, nil
}

func (r *OrderRepository) MarkNotified(_ context.Context, customerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	updated := 0
	for id, order := range r.orders {
		if order.CustomerID != customerID || order.NotifiedCustomer {
			continue
		}
		order.NotifiedCustomer = true
		r.orders[id] = order
		updated++
	}
	return updated, nil
}

func (r *OrderRepository) DeleteCancelledBefore(_ context.Context, cutoff time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, order := range r.orders {
		if limit > 0 && removed >= limit {
			break
		}
		if order.OrderStatus != domain.OrderStatusCancelled || order.CreatedAt.After(cutoff) {
			continue
		}
		delete(r.orders, id)
		removed++
	}
	return removed, nil
}

func (r *OrderRepository) ExistsForService(_ context.Context, serviceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.ServiceID == serviceID {
			return true, nil
		}
	}
	return false, nil
}

func matches(order domain.Order, filter domain.OrderListFilter) bool {
	if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
		return false
	}
	if filter.CourierID != "" && order.AssignedCourierID != filter.CourierID {
		return false
	}
	if len(filter.OrderStatuses) > 0 && !slices.Contains(filter.OrderStatuses, order.OrderStatus) {
		return false
	}
	if len(filter.PaymentStatuses) > 0 && !slices.Contains(filter.PaymentStatuses, order.PaymentStatus) {
		return false
	}
	if filter.CreatedAfter != nil && order.CreatedAt.Before(*filter.CreatedAfter) {
		return false
	}
	if filter.CreatedBefore != nil && !order.CreatedAt.Before(*filter.CreatedBefore) {
		return false
	}
	return true
}
