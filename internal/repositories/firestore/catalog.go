package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/wahyu285/loundry/internal/domain"
	pfirestore "github.com/wahyu285/loundry/internal/platform/firestore"
	"github.com/wahyu285/loundry/internal/repositories"
)

const (
	servicesCollection  = "services"
	itemsCollection     = "laundryItems"
	discountsCollection = "discounts"
	accountsCollection  = "accounts"
)

// ServiceRepository stores laundry services.
type ServiceRepository struct {
	services *pfirestore.Collection[serviceDocument]
}

var _ repositories.ServiceRepository = (*ServiceRepository)(nil)

// NewServiceRepository constructs a Firestore-backed service repository.
func NewServiceRepository(provider *pfirestore.Provider) (*ServiceRepository, error) {
	if provider == nil {
		return nil, errors.New("service repository requires firestore provider")
	}
	return &ServiceRepository{services: pfirestore.NewCollection[serviceDocument](provider, servicesCollection)}, nil
}

func (r *ServiceRepository) Insert(ctx context.Context, service domain.Service) error {
	return r.services.Create(ctx, service.ID, serviceToDocument(service))
}

func (r *ServiceRepository) Update(ctx context.Context, service domain.Service) error {
	return r.services.Replace(ctx, service.ID, serviceToDocument(service))
}

func (r *ServiceRepository) Delete(ctx context.Context, serviceID string) error {
	return r.services.Delete(ctx, serviceID)
}

func (r *ServiceRepository) FindByID(ctx context.Context, serviceID string) (domain.Service, error) {
	doc, err := r.services.Get(ctx, strings.TrimSpace(serviceID))
	if err != nil {
		return domain.Service{}, err
	}
	return serviceFromDocument(serviceID, doc)
}

func (r *ServiceRepository) List(ctx context.Context) ([]domain.Service, error) {
	docs, err := r.services.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Service, 0, len(docs))
	for _, doc := range docs {
		service, err := serviceFromDocument(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, service)
	}
	return out, nil
}

// LaundryItemRepository stores the per-item price list.
type LaundryItemRepository struct {
	items *pfirestore.Collection[itemDocument]
}

var _ repositories.LaundryItemRepository = (*LaundryItemRepository)(nil)

// NewLaundryItemRepository constructs a Firestore-backed item repository.
func NewLaundryItemRepository(provider *pfirestore.Provider) (*LaundryItemRepository, error) {
	if provider == nil {
		return nil, errors.New("laundry item repository requires firestore provider")
	}
	return &LaundryItemRepository{items: pfirestore.NewCollection[itemDocument](provider, itemsCollection)}, nil
}

func (r *LaundryItemRepository) Insert(ctx context.Context, item domain.LaundryItem) error {
	return r.items.Create(ctx, item.ID, itemToDocument(item))
}

func (r *LaundryItemRepository) Update(ctx context.Context, item domain.LaundryItem) error {
	return r.items.Replace(ctx, item.ID, itemToDocument(item))
}

func (r *LaundryItemRepository) Delete(ctx context.Context, itemID string) error {
	return r.items.Delete(ctx, itemID)
}

func (r *LaundryItemRepository) FindByID(ctx context.Context, itemID string) (domain.LaundryItem, error) {
	doc, err := r.items.Get(ctx, strings.TrimSpace(itemID))
	if err != nil {
		return domain.LaundryItem{}, err
	}
	return itemFromDocument(itemID, doc)
}

// FindByName returns the lowest-id item whose name matches exactly.
func (r *LaundryItemRepository) FindByName(ctx context.Context, name string) (domain.LaundryItem, error) {
	docs, err := r.items.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("name", "==", strings.TrimSpace(name)).OrderBy(firestore.DocumentID, firestore.Asc).Limit(1)
	})
	if err != nil {
		return domain.LaundryItem{}, err
	}
	if len(docs) == 0 {
		return domain.LaundryItem{}, repositories.NewNotFoundError("laundryItems.find_by_name")
	}
	return itemFromDocument(docs[0].ID, docs[0].Data)
}

func (r *LaundryItemRepository) List(ctx context.Context) ([]domain.LaundryItem, error) {
	docs, err := r.items.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.LaundryItem, 0, len(docs))
	for _, doc := range docs {
		item, err := itemFromDocument(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// DiscountRepository stores loyalty tiers.
type DiscountRepository struct {
	discounts *pfirestore.Collection[discountDocument]
}

var _ repositories.DiscountRepository = (*DiscountRepository)(nil)

// NewDiscountRepository constructs a Firestore-backed discount repository.
func NewDiscountRepository(provider *pfirestore.Provider) (*DiscountRepository, error) {
	if provider == nil {
		return nil, errors.New("discount repository requires firestore provider")
	}
	return &DiscountRepository{discounts: pfirestore.NewCollection[discountDocument](provider, discountsCollection)}, nil
}

func (r *DiscountRepository) Insert(ctx context.Context, discount domain.Discount) error {
	return r.discounts.Create(ctx, discount.ID, discountToDocument(discount))
}

func (r *DiscountRepository) Update(ctx context.Context, discount domain.Discount) error {
	return r.discounts.Replace(ctx, discount.ID, discountToDocument(discount))
}

func (r *DiscountRepository) Delete(ctx context.Context, discountID string) error {
	return r.discounts.Delete(ctx, discountID)
}

func (r *DiscountRepository) FindByID(ctx context.Context, discountID string) (domain.Discount, error) {
	doc, err := r.discounts.Get(ctx, strings.TrimSpace(discountID))
	if err != nil {
		return domain.Discount{}, err
	}
	return discountFromDocument(discountID, doc)
}

func (r *DiscountRepository) List(ctx context.Context, activeOnly bool) ([]domain.Discount, error) {
	docs, err := r.discounts.Query(ctx, func(q firestore.Query) firestore.Query {
		if activeOnly {
			q = q.Where("active", "==", true)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Discount, 0, len(docs))
	for _, doc := range docs {
		discount, err := discountFromDocument(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, discount)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MinOrders != out[j].MinOrders {
			return out[i].MinOrders < out[j].MinOrders
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AccountRepository stores customer, courier and staff profiles keyed by identity uid.
type AccountRepository struct {
	accounts *pfirestore.Collection[accountDocument]
}

var _ repositories.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository constructs a Firestore-backed account repository.
func NewAccountRepository(provider *pfirestore.Provider) (*AccountRepository, error) {
	if provider == nil {
		return nil, errors.New("account repository requires firestore provider")
	}
	return &AccountRepository{accounts: pfirestore.NewCollection[accountDocument](provider, accountsCollection)}, nil
}

func (r *AccountRepository) Upsert(ctx context.Context, account domain.Account) error {
	return r.accounts.Set(ctx, account.ID, accountToDocument(account))
}

func (r *AccountRepository) FindByID(ctx context.Context, accountID string) (domain.Account, error) {
	doc, err := r.accounts.Get(ctx, strings.TrimSpace(accountID))
	if err != nil {
		return domain.Account{}, err
	}
	return accountFromDocument(accountID, doc), nil
}

func (r *AccountRepository) List(ctx context.Context, role domain.AccountRole) ([]domain.Account, error) {
	docs, err := r.accounts.Query(ctx, func(q firestore.Query) firestore.Query {
		switch role {
		case domain.AccountRoleCustomer:
			q = q.Where("isCustomer", "==", true)
		case domain.AccountRoleCourier:
			q = q.Where("isCourier", "==", true)
		case domain.AccountRoleStaff:
			q = q.Where("isStaff", "==", true)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0, len(docs))
	for _, doc := range docs {
		out = append(out, accountFromDocument(doc.ID, doc.Data))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
