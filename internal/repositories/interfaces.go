package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/wahyu285/loundry/internal/domain"
)

// ErrNoChange may be returned from an OrderMutation to skip the write without failing.
var ErrNoChange = errors.New("repositories: no change")

// Registry exposes the repositories of one storage backend.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Services() ServiceRepository
	Items() LaundryItemRepository
	Discounts() DiscountRepository
	Accounts() AccountRepository
	Ping(ctx context.Context) error
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderMutation edits an order loaded inside a serialised read-modify-write.
type OrderMutation func(order *domain.Order) error

// OrderRepository persists orders. Mutate serialises writers of the same order and
// clears NotifiedCustomer whenever the persisted order status changes.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID int64) (domain.Order, error)
	Mutate(ctx context.Context, orderID int64, fn OrderMutation) (domain.Order, error)
	Delete(ctx context.Context, orderID int64) error
	List(ctx context.Context, filter domain.OrderListFilter) ([]domain.Order, error)
	CountByCustomer(ctx context.Context, customerID string, excluded []domain.OrderStatus) (int, error)
	CountUnnotified(ctx context.Context, customerID string) (int, error)
	MarkNotified(ctx context.Context, customerID string) (int, error)
	DeleteCancelledBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)
	ExistsForService(ctx context.Context, serviceID string) (bool, error)
}

// ServiceRepository stores laundry service definitions.
type ServiceRepository interface {
	Insert(ctx context.Context, service domain.Service) error
	Update(ctx context.Context, service domain.Service) error
	Delete(ctx context.Context, serviceID string) error
	FindByID(ctx context.Context, serviceID string) (domain.Service, error)
	List(ctx context.Context) ([]domain.Service, error)
}

// LaundryItemRepository stores the per-item price catalog.
type LaundryItemRepository interface {
	Insert(ctx context.Context, item domain.LaundryItem) error
	Update(ctx context.Context, item domain.LaundryItem) error
	Delete(ctx context.Context, itemID string) error
	FindByID(ctx context.Context, itemID string) (domain.LaundryItem, error)
	FindByName(ctx context.Context, name string) (domain.LaundryItem, error)
	List(ctx context.Context) ([]domain.LaundryItem, error)
}

// DiscountRepository stores loyalty discount tiers.
type DiscountRepository interface {
	Insert(ctx context.Context, discount domain.Discount) error
	Update(ctx context.Context, discount domain.Discount) error
	Delete(ctx context.Context, discountID string) error
	FindByID(ctx context.Context, discountID string) (domain.Discount, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Discount, error)
}

// AccountRepository stores customer, courier and staff profiles.
type AccountRepository interface {
	Upsert(ctx context.Context, account domain.Account) error
	FindByID(ctx context.Context, accountID string) (domain.Account, error)
	List(ctx context.Context, role domain.AccountRole) ([]domain.Account, error)
}
