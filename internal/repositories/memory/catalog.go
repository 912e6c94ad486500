package memory

import (
	"context"
	"strings"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories"
)

// ServiceRepository implements repositories.ServiceRepository.
type ServiceRepository struct {
	store *keyedStore[domain.Service]
}

// NewServiceRepository builds an empty service catalog.
func NewServiceRepository() *ServiceRepository {
	return &ServiceRepository{store: newKeyedStore("services", func(s domain.Service) string { return s.ID })}
}

func (r *ServiceRepository) Insert(_ context.Context, service domain.Service) error {
	return r.store.insert(service)
}

func (r *ServiceRepository) Update(_ context.Context, service domain.Service) error {
	return r.store.update(service)
}

func (r *ServiceRepository) Delete(_ context.Context, serviceID string) error {
	return r.store.remove(serviceID)
}

func (r *ServiceRepository) FindByID(_ context.Context, serviceID string) (domain.Service, error) {
	return r.store.get(serviceID)
}

func (r *ServiceRepository) List(context.Context) ([]domain.Service, error) {
	return r.store.all(nil), nil
}

// LaundryItemRepository implements repositories.LaundryItemRepository.
type LaundryItemRepository struct {
	store *keyedStore[domain.LaundryItem]
}

// NewLaundryItemRepository builds an empty item catalog.
func NewLaundryItemRepository() *LaundryItemRepository {
	return &LaundryItemRepository{store: newKeyedStore("items", func(i domain.LaundryItem) string { return i.ID })}
}

func (r *LaundryItemRepository) Insert(_ context.Context, item domain.LaundryItem) error {
	return r.store.insert(item)
}

func (r *LaundryItemRepository) Update(_ context.Context, item domain.LaundryItem) error {
	return r.store.update(item)
}

func (r *LaundryItemRepository) Delete(_ context.Context, itemID string) error {
	return r.store.remove(itemID)
}

func (r *LaundryItemRepository) FindByID(_ context.Context, itemID string) (domain.LaundryItem, error) {
	return r.store.get(itemID)
}

// FindByName returns the first item, by id, whose name matches exactly.
func (r *LaundryItemRepository) FindByName(_ context.Context, name string) (domain.LaundryItem, error) {
	name = strings.TrimSpace(name)
	matches := r.store.all(func(item domain.LaundryItem) bool { return item.Name == name })
	if len(matches) == 0 {
		return domain.LaundryItem{}, repositories.NewNotFoundError("items.find_by_name")
	}
	return matches[0], nil
}

func (r *LaundryItemRepository) List(context.Context) ([]domain.LaundryItem, error) {
	return r.store.all(nil), nil
}

// DiscountRepository implements repositories.DiscountRepository.
type DiscountRepository struct {
	store *keyedStore[domain.Discount]
}

// NewDiscountRepository builds an empty tier table.
func NewDiscountRepository() *DiscountRepository {
	return &DiscountRepository{store: newKeyedStore("discounts", func(d domain.Discount) string { return d.ID })}
}

func (r *DiscountRepository) Insert(_ context.Context, discount domain.Discount) error {
	return r.store.insert(discount)
}

func (r *DiscountRepository) Update(_ context.Context, discount domain.Discount) error {
	return r.store.update(discount)
}

func (r *DiscountRepository) Delete(_ context.Context, discountID string) error {
	return r.store.remove(discountID)
}

func (r *DiscountRepository) FindByID(_ context.Context, discountID string) (domain.Discount, error) {
	return r.store.get(discountID)
}

func (r *DiscountRepository) List(_ context.Context, activeOnly bool) ([]domain.Discount, error) {
	if !activeOnly {
		return r.store.all(nil), nil
	}
	return r.store.all(func(d domain.Discount) bool { return d.Active }), nil
}

// AccountRepository implements repositories.AccountRepository.
type AccountRepository struct {
	store *keyedStore[domain.Account]
}

// NewAccountRepository builds an empty account table.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{store: newKeyedStore("accounts", func(a domain.Account) string { return a.ID })}
}

func (r *AccountRepository) Upsert(_ context.Context, account domain.Account) error {
	r.store.upsert(account)
	return nil
}

func (r *AccountRepository) FindByID(_ context.Context, accountID string) (domain.Account, error) {
	return r.store.get(accountID)
}

func (r *AccountRepository) List(_ context.Context, role domain.AccountRole) ([]domain.Account, error) {
	return r.store.all(func(a domain.Account) bool { return accountHasRole(a, role) }), nil
}

func accountHasRole(account domain.Account, role domain.AccountRole) bool {
	switch role {
	case domain.AccountRoleCustomer:
		return account.IsCustomer
	case domain.AccountRoleCourier:
		return account.IsCourier
	case domain.AccountRoleStaff:
		return account.IsStaff
	default:
		return true
	}
}
