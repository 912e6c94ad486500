package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/wahyu285/loundry/internal/domain"
)

type serviceModel struct {
	ID          string          `gorm:"primaryKey;size:64"`
	Name        string          `gorm:"size:120;not null"`
	Description string          `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Type        string          `gorm:"size:16;not null"`
	Duration    string          `gorm:"size:16;not null"`
	ImageURL    string          `gorm:"size:512"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (serviceModel) TableName() string { return "services" }

type laundryItemModel struct {
	ID        string          `gorm:"primaryKey;size:64"`
	Name      string          `gorm:"size:120;not null;index"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ImageURL  string          `gorm:"size:512"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (laundryItemModel) TableName() string { return "laundry_items" }

type discountModel struct {
	ID        string          `gorm:"primaryKey;size:64"`
	Name      string          `gorm:"size:120;not null"`
	MinOrders int             `gorm:"not null"`
	Percent   decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	Active    bool            `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (discountModel) TableName() string { return "discounts" }

type accountModel struct {
	ID         string `gorm:"primaryKey;size:128"`
	Username   string `gorm:"size:150"`
	FirstName  string `gorm:"size:150"`
	Email      string `gorm:"size:254"`
	Phone      string `gorm:"size:32"`
	Address    string `gorm:"type:text"`
	IsCustomer bool   `gorm:"not null"`
	IsCourier  bool   `gorm:"not null;index"`
	IsStaff    bool   `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (accountModel) TableName() string { return "accounts" }

type orderModel struct {
	ID                 int64               `gorm:"primaryKey;autoIncrement"`
	CustomerID         string              `gorm:"size:128;not null;index:idx_orders_customer_notified,priority:1"`
	ServiceID          string              `gorm:"size:64;not null;index"`
	ServiceName        string              `gorm:"size:120"`
	ServiceType        string              `gorm:"size:16"`
	ItemTypeID         string              `gorm:"size:64"`
	Quantity           int                 `gorm:"not null;default:0"`
	Weight             decimal.NullDecimal `gorm:"type:decimal(10,2)"`
	PriceTotal         decimal.Decimal     `gorm:"type:decimal(12,2);not null"`
	DiscountPercent    decimal.NullDecimal `gorm:"type:decimal(5,2)"`
	PickupAddress      string              `gorm:"type:text"`
	Latitude           float64
	Longitude          float64
	ScheduledPickup    time.Time
	OrderStatus        string           `gorm:"size:16;not null;index:idx_orders_status_created,priority:1"`
	PaymentStatus      string           `gorm:"size:32;not null"`
	PaymentMethod      string           `gorm:"size:8;not null"`
	PaymentGateway     string           `gorm:"size:16"`
	SnapToken          string           `gorm:"size:255"`
	PaymentRedirectURL string           `gorm:"size:512"`
	TransactionID      string           `gorm:"size:64;index"`
	NotifiedCustomer   bool             `gorm:"not null;default:false;index:idx_orders_customer_notified,priority:2"`
	AssignedCourierID  string           `gorm:"size:128;index"`
	Items              []orderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time        `gorm:"index:idx_orders_status_created,priority:2"`
	UpdatedAt          time.Time
}

func (orderModel) TableName() string { return "orders" }

type orderItemModel struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	OrderID   int64           `gorm:"not null;index"`
	Position  int             `gorm:"not null"`
	Name      string          `gorm:"size:120;not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (orderItemModel) TableName() string { return "order_items" }

func newOrderModel(order domain.Order) orderModel {
	model := orderModel{
		ID:                 order.ID,
		CustomerID:         order.CustomerID,
		ServiceID:          order.ServiceID,
		ServiceName:        order.ServiceName,
		ServiceType:        string(order.ServiceType),
		ItemTypeID:         order.ItemTypeID,
		Quantity:           order.Quantity,
		Weight:             nullDecimal(order.Weight),
		PriceTotal:         order.PriceTotal,
		DiscountPercent:    nullDecimal(order.DiscountPercent),
		PickupAddress:      order.PickupAddress,
		Latitude:           order.Latitude,
		Longitude:          order.Longitude,
		ScheduledPickup:    order.ScheduledPickup.UTC(),
		OrderStatus:        string(order.OrderStatus),
		PaymentStatus:      string(order.PaymentStatus),
		PaymentMethod:      string(order.PaymentMethod),
		PaymentGateway:     order.PaymentGateway,
		SnapToken:          order.SnapToken,
		PaymentRedirectURL: order.PaymentRedirectURL,
		TransactionID:      order.TransactionID,
		NotifiedCustomer:   order.NotifiedCustomer,
		AssignedCourierID:  order.AssignedCourierID,
		CreatedAt:          order.CreatedAt.UTC(),
		UpdatedAt:          order.UpdatedAt.UTC(),
	}
	for i, item := range order.Items {
		model.Items = append(model.Items, orderItemModel{
			OrderID:   order.ID,
			Position:  i,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return model
}

func (m orderModel) toDomain() domain.Order {
	order := domain.Order{
		ID:                 m.ID,
		CustomerID:         m.CustomerID,
		ServiceID:          m.ServiceID,
		ServiceName:        m.ServiceName,
		ServiceType:        domain.ServiceType(m.ServiceType),
		ItemTypeID:         m.ItemTypeID,
		Quantity:           m.Quantity,
		Weight:             decimalPointer(m.Weight),
		PriceTotal:         m.PriceTotal,
		DiscountPercent:    decimalPointer(m.DiscountPercent),
		PickupAddress:      m.PickupAddress,
		Latitude:           m.Latitude,
		Longitude:          m.Longitude,
		ScheduledPickup:    m.ScheduledPickup.UTC(),
		OrderStatus:        domain.OrderStatus(m.OrderStatus),
		PaymentStatus:      domain.PaymentStatus(m.PaymentStatus),
		PaymentMethod:      domain.PaymentMethod(m.PaymentMethod),
		PaymentGateway:     m.PaymentGateway,
		SnapToken:          m.SnapToken,
		PaymentRedirectURL: m.PaymentRedirectURL,
		TransactionID:      m.TransactionID,
		NotifiedCustomer:   m.NotifiedCustomer,
		AssignedCourierID:  m.AssignedCourierID,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
	for _, item := range m.Items {
		order.Items = append(order.Items, domain.OrderItem{Name: item.Name, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return order
}

func newServiceModel(s domain.Service) serviceModel {
	return serviceModel{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Price:       s.Price,
		Type:        string(s.Type),
		Duration:    string(s.Duration),
		ImageURL:    s.ImageURL,
		CreatedAt:   s.CreatedAt.UTC(),
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

func (m serviceModel) toDomain() domain.Service {
	return domain.Service{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		Type:        domain.ServiceType(m.Type),
		Duration:    domain.DurationTier(m.Duration),
		ImageURL:    m.ImageURL,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func newLaundryItemModel(i domain.LaundryItem) laundryItemModel {
	return laundryItemModel{
		ID:        i.ID,
		Name:      i.Name,
		Price:     i.Price,
		ImageURL:  i.ImageURL,
		CreatedAt: i.CreatedAt.UTC(),
		UpdatedAt: i.UpdatedAt.UTC(),
	}
}

func (m laundryItemModel) toDomain() domain.LaundryItem {
	return domain.LaundryItem{
		ID:        m.ID,
		Name:      m.Name,
		Price:     m.Price,
		ImageURL:  m.ImageURL,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func newDiscountModel(d domain.Discount) discountModel {
	return discountModel{
		ID:        d.ID,
		Name:      d.Name,
		MinOrders: d.MinOrders,
		Percent:   d.Percent,
		Active:    d.Active,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func (m discountModel) toDomain() domain.Discount {
	return domain.Discount{
		ID:        m.ID,
		Name:      m.Name,
		MinOrders: m.MinOrders,
		Percent:   m.Percent,
		Active:    m.Active,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func newAccountModel(a domain.Account) accountModel {
	return accountModel{
		ID:         a.ID,
		Username:   a.Username,
		FirstName:  a.FirstName,
		Email:      a.Email,
		Phone:      a.Phone,
		Address:    a.Address,
		IsCustomer: a.IsCustomer,
		IsCourier:  a.IsCourier,
		IsStaff:    a.IsStaff,
		CreatedAt:  a.CreatedAt.UTC(),
		UpdatedAt:  a.UpdatedAt.UTC(),
	}
}

func (m accountModel) toDomain() domain.Account {
	return domain.Account{
		ID:         m.ID,
		Username:   m.Username,
		FirstName:  m.FirstName,
		Email:      m.Email,
		Phone:      m.Phone,
		Address:    m.Address,
		IsCustomer: m.IsCustomer,
		IsCourier:  m.IsCourier,
		IsStaff:    m.IsStaff,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

func nullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *value, Valid: true}
}

func decimalPointer(value decimal.NullDecimal) *decimal.Decimal {
	if !value.Valid {
		return nil
	}
	d := value.Decimal
	return &d
}
