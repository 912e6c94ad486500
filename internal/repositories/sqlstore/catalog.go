package sqlstore

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories"
)

// ServiceRepository stores laundry services.
type ServiceRepository struct {
	db *gorm.DB
}

var _ repositories.ServiceRepository = (*ServiceRepository)(nil)

func (r *ServiceRepository) Insert(ctx context.Context, service domain.Service) error {
	model := newServiceModel(service)
	return wrapError("services.insert", r.db.WithContext(ctx).Create(&model).Error)
}

func (r *ServiceRepository) Update(ctx context.Context, service domain.Service) error {
	model := newServiceModel(service)
	return replace(ctx, r.db, "services.update", &serviceModel{}, model.ID, &model)
}

func (r *ServiceRepository) Delete(ctx context.Context, serviceID string) error {
	return remove(ctx, r.db, "services.delete", &serviceModel{}, serviceID)
}

func (r *ServiceRepository) FindByID(ctx context.Context, serviceID string) (domain.Service, error) {
	var model serviceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", strings.TrimSpace(serviceID)).Error; err != nil {
		return domain.Service{}, wrapError("services.get", err)
	}
	return model.toDomain(), nil
}

func (r *ServiceRepository) List(ctx context.Context) ([]domain.Service, error) {
	var models []serviceModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, wrapError("services.list", err)
	}
	out := make([]domain.Service, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// LaundryItemRepository stores the per-item price list.
type LaundryItemRepository struct {
	db *gorm.DB
}

var _ repositories.LaundryItemRepository = (*LaundryItemRepository)(nil)

func (r *LaundryItemRepository) Insert(ctx context.Context, item domain.LaundryItem) error {
	model := newLaundryItemModel(item)
	return wrapError("laundry_items.insert", r.db.WithContext(ctx).Create(&model).Error)
}

func (r *LaundryItemRepository) Update(ctx context.Context, item domain.LaundryItem) error {
	model := newLaundryItemModel(item)
	return replace(ctx, r.db, "laundry_items.update", &laundryItemModel{}, model.ID, &model)
}

func (r *LaundryItemRepository) Delete(ctx context.Context, itemID string) error {
	return remove(ctx, r.db, "laundry_items.delete", &laundryItemModel{}, itemID)
}

func (r *LaundryItemRepository) FindByID(ctx context.Context, itemID string) (domain.LaundryItem, error) {
	var model laundryItemModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", strings.TrimSpace(itemID)).Error; err != nil {
		return domain.LaundryItem{}, wrapError("laundry_items.get", err)
	}
	return model.toDomain(), nil
}

func (r *LaundryItemRepository) FindByName(ctx context.Context, name string) (domain.LaundryItem, error) {
	var model laundryItemModel
	err := r.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).Order("id ASC").First(&model).Error
	if err != nil {
		return domain.LaundryItem{}, wrapError("laundry_items.find_by_name", err)
	}
	return model.toDomain(), nil
}

func (r *LaundryItemRepository) List(ctx context.Context) ([]domain.LaundryItem, error) {
	var models []laundryItemModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, wrapError("laundry_items.list", err)
	}
	out := make([]domain.LaundryItem, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// DiscountRepository stores loyalty tiers.
type DiscountRepository struct {
	db *gorm.DB
}

var _ repositories.DiscountRepository = (*DiscountRepository)(nil)

func (r *DiscountRepository) Insert(ctx context.Context, discount domain.Discount) error {
	model := newDiscountModel(discount)
	return wrapError("discounts.insert", r.db.WithContext(ctx).Create(&model).Error)
}

func (r *DiscountRepository) Update(ctx context.Context, discount domain.Discount) error {
	model := newDiscountModel(discount)
	return replace(ctx, r.db, "discounts.update", &discountModel{}, model.ID, &model)
}

func (r *DiscountRepository) Delete(ctx context.Context, discountID string) error {
	return remove(ctx, r.db, "discounts.delete", &discountModel{}, discountID)
}

func (r *DiscountRepository) FindByID(ctx context.Context, discountID string) (domain.Discount, error) {
	var model discountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", strings.TrimSpace(discountID)).Error; err != nil {
		return domain.Discount{}, wrapError("discounts.get", err)
	}
	return model.toDomain(), nil
}

func (r *DiscountRepository) List(ctx context.Context, activeOnly bool) ([]domain.Discount, error) {
	query := r.db.WithContext(ctx).Order("min_orders ASC").Order("id ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var models []discountModel
	if err := query.Find(&models).Error; err != nil {
		return nil, wrapError("discounts.list", err)
	}
	out := make([]domain.Discount, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// AccountRepository stores customer, courier and staff profiles.
type AccountRepository struct {
	db *gorm.DB
}

var _ repositories.AccountRepository = (*AccountRepository)(nil)

func (r *AccountRepository) Upsert(ctx context.Context, account domain.Account) error {
	model := newAccountModel(account)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
	return wrapError("accounts.upsert", err)
}

func (r *AccountRepository) FindByID(ctx context.Context, accountID string) (domain.Account, error) {
	var model accountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", strings.TrimSpace(accountID)).Error; err != nil {
		return domain.Account{}, wrapError("accounts.get", err)
	}
	return model.toDomain(), nil
}

func (r *AccountRepository) List(ctx context.Context, role domain.AccountRole) ([]domain.Account, error) {
	query := r.db.WithContext(ctx).Order("id ASC")
	switch role {
	case domain.AccountRoleCustomer:
		query = query.Where("is_customer = ?", true)
	case domain.AccountRoleCourier:
		query = query.Where("is_courier = ?", true)
	case domain.AccountRoleStaff:
		query = query.Where("is_staff = ?", true)
	}
	var models []accountModel
	if err := query.Find(&models).Error; err != nil {
		return nil, wrapError("accounts.list", err)
	}
	out := make([]domain.Account, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// replace overwrites an existing row and reports not found when it is missing.
func replace(ctx context.Context, db *gorm.DB, op string, model any, id string, value any) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
			return wrapError(op, err)
		}
		if count == 0 {
			return repositories.NewNotFoundError(op)
		}
		return wrapError(op, tx.Save(value).Error)
	})
}

func remove(ctx context.Context, db *gorm.DB, op string, model any, id string) error {
	res := db.WithContext(ctx).Delete(model, "id = ?", strings.TrimSpace(id))
	if res.Error != nil {
		return wrapError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return repositories.NewNotFoundError(op)
	}
	return nil
}

var errNilDatabase = errors.New("sqlstore: database is required")
