package sqlstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wahyu285/loundry/internal/repositories"
)

// Registry bundles the MySQL repositories around one connection pool.
type Registry struct {
	db        *gorm.DB
	orders    *OrderRepository
	services  *ServiceRepository
	items     *LaundryItemRepository
	discounts *DiscountRepository
	accounts  *AccountRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every repository to db. A nil clock uses time.Now.
func NewRegistry(db *gorm.DB, clock func() time.Time) (*Registry, error) {
	if db == nil {
		return nil, errNilDatabase
	}
	orders, err := NewOrderRepository(db, clock)
	if err != nil {
		return nil, err
	}
	return &Registry{
		db:        db,
		orders:    orders,
		services:  &ServiceRepository{db: db},
		items:     &LaundryItemRepository{db: db},
		discounts: &DiscountRepository{db: db},
		accounts:  &AccountRepository{db: db},
	}, nil
}

func (r *Registry) Orders() repositories.OrderRepository       { return r.orders }
func (r *Registry) Services() repositories.ServiceRepository   { return r.services }
func (r *Registry) Items() repositories.LaundryItemRepository  { return r.items }
func (r *Registry) Discounts() repositories.DiscountRepository { return r.discounts }
func (r *Registry) Accounts() repositories.AccountRepository   { return r.accounts }

// Ping checks the connection pool.
func (r *Registry) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return repositories.NewUnavailableError("mysql.ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return repositories.NewUnavailableError("mysql.ping", err)
	}
	return nil
}

// Close closes the connection pool.
func (r *Registry) Close(context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
