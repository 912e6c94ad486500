package firestore

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/wahyu285/loundry/internal/domain"
)

// Money and weights are stored as decimal strings so no precision is lost to float64.

type orderItemDocument struct {
	Name      string `firestore:"name"`
	Quantity  int    `firestore:"quantity"`
	UnitPrice string `firestore:"unitPrice"`
}

type orderDocument struct {
	ID                 int64               `firestore:"id"`
	CustomerID         string              `firestore:"customerId"`
	ServiceID          string              `firestore:"serviceId"`
	ServiceName        string              `firestore:"serviceName"`
	ServiceType        string              `firestore:"serviceType"`
	ItemTypeID         string              `firestore:"itemTypeId,omitempty"`
	Quantity           int                 `firestore:"quantity"`
	Weight             *string             `firestore:"weight"`
	Items              []orderItemDocument `firestore:"items"`
	PriceTotal         string              `firestore:"priceTotal"`
	DiscountPercent    *string             `firestore:"discountPercent"`
	PickupAddress      string              `firestore:"pickupAddress"`
	Latitude           float64             `firestore:"latitude"`
	Longitude          float64             `firestore:"longitude"`
	ScheduledPickup    time.Time           `firestore:"scheduledPickup"`
	OrderStatus        string              `firestore:"orderStatus"`
	PaymentStatus      string              `firestore:"paymentStatus"`
	PaymentMethod      string              `firestore:"paymentMethod"`
	PaymentGateway     string              `firestore:"paymentGateway,omitempty"`
	SnapToken          string              `firestore:"snapToken,omitempty"`
	PaymentRedirectURL string              `firestore:"paymentRedirectUrl,omitempty"`
	TransactionID      string              `firestore:"transactionId,omitempty"`
	NotifiedCustomer   bool                `firestore:"notifiedCustomer"`
	AssignedCourierID  string              `firestore:"assignedCourierId"`
	CreatedAt          time.Time           `firestore:"createdAt"`
	UpdatedAt          time.Time           `firestore:"updatedAt"`
}

func orderToDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		ID:                 order.ID,
		CustomerID:         order.CustomerID,
		ServiceID:          order.ServiceID,
		ServiceName:        order.ServiceName,
		ServiceType:        string(order.ServiceType),
		ItemTypeID:         order.ItemTypeID,
		Quantity:           order.Quantity,
		Weight:             decimalString(order.Weight),
		PriceTotal:         order.PriceTotal.String(),
		DiscountPercent:    decimalString(order.DiscountPercent),
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
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
		})
	}
	return doc
}

func orderFromDocument(doc orderDocument) (domain.Order, error) {
	total, err := parseDecimal(doc.PriceTotal)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %d priceTotal: %w", doc.ID, err)
	}
	weight, err := parseOptionalDecimal(doc.Weight)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %d weight: %w", doc.ID, err)
	}
	percent, err := parseOptionalDecimal(doc.DiscountPercent)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %d discountPercent: %w", doc.ID, err)
	}

	order := domain.Order{
		ID:                 doc.ID,
		CustomerID:         doc.CustomerID,
		ServiceID:          doc.ServiceID,
		ServiceName:        doc.ServiceName,
		ServiceType:        domain.ServiceType(doc.ServiceType),
		ItemTypeID:         doc.ItemTypeID,
		Quantity:           doc.Quantity,
		Weight:             weight,
		PriceTotal:         total,
		DiscountPercent:    percent,
		PickupAddress:      doc.PickupAddress,
		Latitude:           doc.Latitude,
		Longitude:          doc.Longitude,
		ScheduledPickup:    doc.ScheduledPickup.UTC(),
		OrderStatus:        domain.OrderStatus(doc.OrderStatus),
		PaymentStatus:      domain.PaymentStatus(doc.PaymentStatus),
		PaymentMethod:      domain.PaymentMethod(doc.PaymentMethod),
		PaymentGateway:     doc.PaymentGateway,
		SnapToken:          doc.SnapToken,
		PaymentRedirectURL: doc.PaymentRedirectURL,
		TransactionID:      doc.TransactionID,
		NotifiedCustomer:   doc.NotifiedCustomer,
		AssignedCourierID:  doc.AssignedCourierID,
		CreatedAt:          doc.CreatedAt.UTC(),
		UpdatedAt:          doc.UpdatedAt.UTC(),
	}
	for _, item := range doc.Items {
		price, err := parseDecimal(item.UnitPrice)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %d item %q: %w", doc.ID, item.Name, err)
		}
		order.Items = append(order.Items, domain.OrderItem{Name: item.Name, Quantity: item.Quantity, UnitPrice: price})
	}
	return order, nil
}

type serviceDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	Price       string    `firestore:"price"`
	Type        string    `firestore:"type"`
	Duration    string    `firestore:"duration"`
	ImageURL    string    `firestore:"imageUrl,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func serviceToDocument(service domain.Service) serviceDocument {
	return serviceDocument{
		Name:        service.Name,
		Description: service.Description,
		Price:       service.Price.String(),
		Type:        string(service.Type),
		Duration:    string(service.Duration),
		ImageURL:    service.ImageURL,
		CreatedAt:   service.CreatedAt.UTC(),
		UpdatedAt:   service.UpdatedAt.UTC(),
	}
}

func serviceFromDocument(id string, doc serviceDocument) (domain.Service, error) {
	price, err := parseDecimal(doc.Price)
	if err != nil {
		return domain.Service{}, fmt.Errorf("service %s price: %w", id, err)
	}
	return domain.Service{
		ID:          id,
		Name:        doc.Name,
		Description: doc.Description,
		Price:       price,
		Type:        domain.ServiceType(doc.Type),
		Duration:    domain.DurationTier(doc.Duration),
		ImageURL:    doc.ImageURL,
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}, nil
}

type itemDocument struct {
	Name      string    `firestore:"name"`
	Price     string    `firestore:"price"`
	ImageURL  string    `firestore:"imageUrl,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func itemToDocument(item domain.LaundryItem) itemDocument {
	return itemDocument{
		Name:      item.Name,
		Price:     item.Price.String(),
		ImageURL:  item.ImageURL,
		CreatedAt: item.CreatedAt.UTC(),
		UpdatedAt: item.UpdatedAt.UTC(),
	}
}

func itemFromDocument(id string, doc itemDocument) (domain.LaundryItem, error) {
	price, err := parseDecimal(doc.Price)
	if err != nil {
		return domain.LaundryItem{}, fmt.Errorf("item %s price: %w", id, err)
	}
	return domain.LaundryItem{
		ID:        id,
		Name:      doc.Name,
		Price:     price,
		ImageURL:  doc.ImageURL,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}, nil
}

type discountDocument struct {
	Name      string    `firestore:"name"`
	MinOrders int       `firestore:"minOrders"`
	Percent   string    `firestore:"percent"`
	Active    bool      `firestore:"active"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func discountToDocument(discount domain.Discount) discountDocument {
	return discountDocument{
		Name:      discount.Name,
		MinOrders: discount.MinOrders,
		Percent:   discount.Percent.String(),
		Active:    discount.Active,
		CreatedAt: discount.CreatedAt.UTC(),
		UpdatedAt: discount.UpdatedAt.UTC(),
	}
}

func discountFromDocument(id string, doc discountDocument) (domain.Discount, error) {
	percent, err := parseDecimal(doc.Percent)
	if err != nil {
		return domain.Discount{}, fmt.Errorf("discount %s percent: %w", id, err)
	}
	return domain.Discount{
		ID:        id,
		Name:      doc.Name,
		MinOrders: doc.MinOrders,
		Percent:   percent,
		Active:    doc.Active,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}, nil
}

type accountDocument struct {
	Username   string    `firestore:"username"`
	FirstName  string    `firestore:"firstName"`
	Email      string    `firestore:"email"`
	Phone      string    `firestore:"phone"`
	Address    string    `firestore:"address"`
	IsCustomer bool      `firestore:"isCustomer"`
	IsCourier  bool      `firestore:"isCourier"`
	IsStaff    bool      `firestore:"isStaff"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func accountToDocument(account domain.Account) accountDocument {
	return accountDocument{
		Username:   account.Username,
		FirstName:  account.FirstName,
		Email:      account.Email,
		Phone:      account.Phone,
		Address:    account.Address,
		IsCustomer: account.IsCustomer,
		IsCourier:  account.IsCourier,
		IsStaff:    account.IsStaff,
		CreatedAt:  account.CreatedAt.UTC(),
		UpdatedAt:  account.UpdatedAt.UTC(),
	}
}

func accountFromDocument(id string, doc accountDocument) domain.Account {
	return domain.Account{
		ID:         id,
		Username:   doc.Username,
		FirstName:  doc.FirstName,
		Email:      doc.Email,
		Phone:      doc.Phone,
		Address:    doc.Address,
		IsCustomer: doc.IsCustomer,
		IsCourier:  doc.IsCourier,
		IsStaff:    doc.IsStaff,
		CreatedAt:  doc.CreatedAt.UTC(),
		UpdatedAt:  doc.UpdatedAt.UTC(),
	}
}

func decimalString(value *decimal.Decimal) *string {
	if value == nil {
		return nil
	}
	s := value.String()
	return &s
}

func parseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

func parseOptionalDecimal(value *string) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	parsed, err := parseDecimal(*value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
