package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories"
)

// OrderRepository stores orders in MySQL. Mutate takes a row lock so writers of
// one order serialise.
type OrderRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs the MySQL order repository.
func NewOrderRepository(db *gorm.DB, clock func() time.Time) (*OrderRepository, error) {
	if db == nil {
		return nil, errors.New("order repository requires database")
	}
	if clock == nil {
		clock = time.Now
	}
	return &OrderRepository{db: db, now: clock}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	now := r.now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	model := newOrderModel(order)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Order{}, wrapError("orders.insert", err)
	}
	return model.toDomain(), nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID int64) (domain.Order, error) {
	var model orderModel
	err := r.db.WithContext(ctx).Preload("Items", orderItemsByPosition).First(&model, "id = ?", orderID).Error
	if err != nil {
		return domain.Order{}, wrapError("orders.get", err)
	}
	return model.toDomain(), nil
}

func (r *OrderRepository) Mutate(ctx context.Context, orderID int64, fn repositories.OrderMutation) (domain.Order, error) {
	var (
		result domain.Order
		fnErr  error
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model orderModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items", orderItemsByPosition).
			First(&model, "id = ?", orderID).Error
		if err != nil {
			return err
		}
		current := model.toDomain()

		working := current.Clone()
		if err := fn(&working); err != nil {
			if errors.Is(err, repositories.ErrNoChange) {
				result = current
				return nil
			}
			fnErr = err
			return err
		}
		working.ID = current.ID
		working.CreatedAt = current.CreatedAt
		working.TrackStatusChange(current.OrderStatus)
		working.UpdatedAt = r.now().UTC()

		updated := newOrderModel(working)
		if err := tx.Omit(clause.Associations).Save(&updated).Error; err != nil {
			return err
		}
		result = working
		return nil
	})
	if fnErr != nil {
		return domain.Order{}, fnErr
	}
	if err != nil {
		return domain.Order{}, wrapError("orders.mutate", err)
	}
	return result, nil
}

func (r *OrderRepository) Delete(ctx context.Context, orderID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&orderItemModel{}).Error; err != nil {
			return wrapError("orders.delete", err)
		}
		res := tx.Delete(&orderModel{}, "id = ?", orderID)
		if res.Error != nil {
			return wrapError("orders.delete", res.Error)
		}
		if res.RowsAffected == 0 {
			return repositories.NewNotFoundError("orders.delete")
		}
		return nil
	})
}

func (r *OrderRepository) List(ctx context.Context, filter domain.OrderListFilter) ([]domain.Order, error) {
	query := r.db.WithContext(ctx).Model(&orderModel{}).Preload("Items", orderItemsByPosition)
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.CourierID != "" {
		query = query.Where("assigned_courier_id = ?", filter.CourierID)
	}
	if len(filter.OrderStatuses) > 0 {
		query = query.Where("order_status IN ?", filter.OrderStatuses)
	}
	if len(filter.PaymentStatuses) > 0 {
		query = query.Where("payment_status IN ?", filter.PaymentStatuses)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", filter.CreatedAfter.UTC())
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", filter.CreatedBefore.UTC())
	}
	query = query.Order("created_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []orderModel
	if err := query.Find(&models).Error; err != nil {
		return nil, wrapError("orders.list", err)
	}
	out := make([]domain.Order, 0, len(models))
	for _, model := range models {
		out = append(out, model.toDomain())
	}
	return out, nil
}

func (r *OrderRepository) CountByCustomer(ctx context.Context, customerID string, excluded []domain.OrderStatus) (int, error) {
	query := r.db.WithContext(ctx).Model(&orderModel{}).Where("customer_id = ?", customerID)
	if len(excluded) > 0 {
		query = query.Where("order_status NOT IN ?", excluded)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, wrapError("orders.count_by_customer", err)
	}
	return int(count), nil
}

func (r *OrderRepository) CountUnnotified(ctx context.Context, customerID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&orderModel{}).
		Where("customer_id = ? AND notified_customer = ?", customerID, false).
		Count(&count).Error
	if err != nil {
		return 0, wrapError("orders.count_unnotified", err)
	}
	return int(count), nil
}

func (r *OrderRepository) MarkNotified(ctx context.Context, customerID string) (int, error) {
	res := r.db.WithContext(ctx).Model(&orderModel{}).
		Where("customer_id = ? AND notified_customer = ?", customerID, false).
		Updates(map[string]any{"notified_customer": true, "updated_at": r.now().UTC()})
	if res.Error != nil {
		return 0, wrapError("orders.mark_notified", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *OrderRepository) DeleteCancelledBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	removed := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&orderModel{}).
			Where("order_status = ? AND created_at <= ?", string(domain.OrderStatusCancelled), cutoff.UTC()).
			Order("created_at ASC")
		if limit > 0 {
			query = query.Limit(limit)
		}
		var ids []int64
		if err := query.Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("order_id IN ?", ids).Delete(&orderItemModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&orderModel{})
		if res.Error != nil {
			return res.Error
		}
		removed = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, wrapError("orders.delete_cancelled", err)
	}
	return removed, nil
}

func (r *OrderRepository) ExistsForService(ctx context.Context, serviceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&orderModel{}).Where("service_id = ?", serviceID).Limit(1).Count(&count).Error
	if err != nil {
		return false, wrapError("orders.exists_for_service", err)
	}
	return count > 0, nil
}

func orderItemsByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
