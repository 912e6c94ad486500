// Package firestore implements the repositories on Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"time"

	pfirestore "github.com/wahyu285/loundry/internal/platform/firestore"
	"github.com/wahyu285/loundry/internal/repositories"
)

// Registry bundles the Firestore repositories around one shared provider.
type Registry struct {
	provider  *pfirestore.Provider
	orders    *OrderRepository
	services  *ServiceRepository
	items     *LaundryItemRepository
	discounts *DiscountRepository
	accounts  *AccountRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every repository to provider. A nil clock uses time.Now.
func NewRegistry(provider *pfirestore.Provider, clock func() time.Time) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	orders, err := NewOrderRepository(provider, clock)
	if err != nil {
		return nil, err
	}
	services, err := NewServiceRepository(provider)
	if err != nil {
		return nil, err
	}
	items, err := NewLaundryItemRepository(provider)
	if err != nil {
		return nil, err
	}
	discounts, err := NewDiscountRepository(provider)
	if err != nil {
		return nil, err
	}
	accounts, err := NewAccountRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider:  provider,
		orders:    orders,
		services:  services,
		items:     items,
		discounts: discounts,
		accounts:  accounts,
	}, nil
}

func (r *Registry) Orders() repositories.OrderRepository       { return r.orders }
func (r *Registry) Services() repositories.ServiceRepository   { return r.services }
func (r *Registry) Items() repositories.LaundryItemRepository  { return r.items }
func (r *Registry) Discounts() repositories.DiscountRepository { return r.discounts }
func (r *Registry) Accounts() repositories.AccountRepository   { return r.accounts }

// Ping checks that Firestore is reachable.
func (r *Registry) Ping(ctx context.Context) error {
	return r.provider.Ping(ctx)
}

// Close releases the shared client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}
