package handlers

import (
	"github.com/shopspring/decimal"

	"github.com/wahyu285/loundry/internal/services"
)

type orderPayload struct {
	ID                 int64                `json:"id"`
	CustomerID         string               `json:"customer_id"`
	ServiceID          string               `json:"service_id"`
	ServiceName        string               `json:"service_name,omitempty"`
	ServiceType        string               `json:"service_type,omitempty"`
	ItemTypeID         string               `json:"item_type,omitempty"`
	Quantity           int                  `json:"quantity"`
	Weight             *decimal.Decimal     `json:"weight"`
	Items              []orderItemPayload   `json:"items,omitempty"`
	PriceTotal         decimal.Decimal      `json:"price_total"`
	DiscountPercent    *decimal.Decimal     `json:"discount_percent"`
	PickupAddress      string               `json:"pickup_address"`
	Latitude           float64              `json:"latitude"`
	Longitude          float64              `json:"longitude"`
	ScheduledPickup    string               `json:"scheduled_pickup,omitempty"`
	OrderStatus        string               `json:"order_status"`
	OrderStatusLabel   string               `json:"order_status_label"`
	PaymentStatus      string               `json:"payment_status"`
	PaymentStatusLabel string               `json:"payment_status_label"`
	PaymentMethod      string               `json:"payment_method"`
	Payment            *orderPaymentPayload `json:"payment,omitempty"`
	NotifiedCustomer   bool                 `json:"notified_customer"`
	AssignedCourierID  string               `json:"assigned_courier_id,omitempty"`
	CreatedAt          string               `json:"created_at"`
	UpdatedAt          string               `json:"updated_at,omitempty"`
}

type orderItemPayload struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type orderPaymentPayload struct {
	Gateway       string `json:"gateway,omitempty"`
	SnapToken     string `json:"snap_token,omitempty"`
	RedirectURL   string `json:"redirect_url,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Items []orderPayload `json:"items"`
}

type pricingPayload struct {
	Subtotal        decimal.Decimal  `json:"subtotal"`
	DiscountID      string           `json:"discount_id,omitempty"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal  `json:"discount_amount"`
	Total           decimal.Decimal  `json:"total"`
	SkippedItems    []string         `json:"skipped_items,omitempty"`
}

type createOrderResponse struct {
	Order   orderPayload   `json:"order"`
	Pricing pricingPayload `json:"pricing"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:                 order.ID,
		CustomerID:         order.CustomerID,
		ServiceID:          order.ServiceID,
		ServiceName:        order.ServiceName,
		ServiceType:        string(order.ServiceType),
		ItemTypeID:         order.ItemTypeID,
		Quantity:           order.Quantity,
		Weight:             order.Weight,
		PriceTotal:         order.PriceTotal,
		DiscountPercent:    order.DiscountPercent,
		PickupAddress:      order.PickupAddress,
		Latitude:           order.Latitude,
		Longitude:          order.Longitude,
		ScheduledPickup:    formatTime(order.ScheduledPickup),
		OrderStatus:        string(order.OrderStatus),
		OrderStatusLabel:   order.OrderStatus.Label(),
		PaymentStatus:      string(order.PaymentStatus),
		PaymentStatusLabel: order.PaymentStatus.Label(),
		PaymentMethod:      string(order.PaymentMethod),
		NotifiedCustomer:   order.NotifiedCustomer,
		AssignedCourierID:  order.AssignedCourierID,
		CreatedAt:          formatTime(order.CreatedAt),
		UpdatedAt:          formatTime(order.UpdatedAt),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{Name: item.Name, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	if order.SnapToken != "" || order.TransactionID != "" {
		payload.Payment = &orderPaymentPayload{
			Gateway:       order.PaymentGateway,
			SnapToken:     order.SnapToken,
			RedirectURL:   order.PaymentRedirectURL,
			TransactionID: order.TransactionID,
		}
	}
	return payload
}

func buildOrderList(orders []services.Order) orderListResponse {
	items := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, buildOrderPayload(order))
	}
	return orderListResponse{Items: items}
}

func buildCreateOrderResponse(result services.CreateOrderResult) createOrderResponse {
	order := buildOrderPayload(result.Order)
	if result.Payment != nil {
		order.Payment = &orderPaymentPayload{
			Gateway:       result.Payment.Provider,
			SnapToken:     result.Payment.Token,
			RedirectURL:   result.Payment.RedirectURL,
			TransactionID: result.Payment.TransactionID,
		}
	}
	if result.PaymentError != "" {
		if order.Payment == nil {
			order.Payment = &orderPaymentPayload{}
		}
		order.Payment.Error = result.PaymentError
	}
	return createOrderResponse{
		Order: order,
		Pricing: pricingPayload{
			Subtotal:        result.Pricing.Subtotal,
			DiscountID:      result.Pricing.DiscountID,
			DiscountPercent: result.Pricing.DiscountPercent,
			DiscountAmount:  result.Pricing.DiscountAmount,
			Total:           result.Pricing.Total,
			SkippedItems:    result.Pricing.SkippedItems,
		},
	}
}

type servicePayload struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	DescriptionHTML string          `json:"description_html,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Type            string          `json:"type"`
	Duration        string          `json:"duration"`
	ImageURL        string          `json:"image_url,omitempty"`
}

func buildServicePayload(view services.CatalogServiceView) servicePayload {
	return servicePayload{
		ID:              view.ID,
		Name:            view.Name,
		Description:     view.Description,
		DescriptionHTML: view.DescriptionHTML,
		Price:           view.Price,
		Type:            string(view.Type),
		Duration:        string(view.Duration),
		ImageURL:        view.ImageURL,
	}
}

type itemPayload struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url,omitempty"`
}

func buildItemPayload(item services.LaundryItem) itemPayload {
	return itemPayload{ID: item.ID, Name: item.Name, Price: item.Price, ImageURL: item.ImageURL}
}

type discountPayload struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	MinOrders int             `json:"min_orders"`
	Percent   decimal.Decimal `json:"percent"`
	Active    bool            `json:"active"`
}

func buildDiscountPayload(d services.Discount) discountPayload {
	return discountPayload{ID: d.ID, Name: d.Name, MinOrders: d.MinOrders, Percent: d.Percent, Active: d.Active}
}

type accountPayload struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	IsCustomer bool   `json:"is_customer"`
	IsCourier  bool   `json:"is_courier"`
	IsStaff    bool   `json:"is_staff"`
}

func buildAccountPayload(a services.Account) accountPayload {
	return accountPayload{
		ID:         a.ID,
		Username:   a.Username,
		FirstName:  a.FirstName,
		Email:      a.Email,
		Phone:      a.Phone,
		IsCustomer: a.IsCustomer,
		IsCourier:  a.IsCourier,
		IsStaff:    a.IsStaff,
	}
}
