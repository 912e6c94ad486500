package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus tracks the fulfilment axis of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPickedUp   OrderStatus = "picked_up"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus tracks the payment axis of an order. Values reported by a payment
// gateway outside the recognised set are stored verbatim.
type PaymentStatus string

const (
	PaymentStatusUnpaid     PaymentStatus = "unpaid"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusSettlement PaymentStatus = "settlement"
)

// PaymentMethod selects how the customer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "cod"
	PaymentMethodQRIS PaymentMethod = "qris"
)

var (
	orderStatuses   = []OrderStatus{OrderStatusPending, OrderStatusPickedUp, OrderStatusProcessing, OrderStatusReady, OrderStatusDelivered, OrderStatusCancelled}
	paymentStatuses = []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusSettlement}
)

// OrderStatuses lists the recognised order statuses in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// PaymentStatuses lists the recognised payment statuses.
func PaymentStatuses() []PaymentStatus {
	out := make([]PaymentStatus, len(paymentStatuses))
	copy(out, paymentStatuses)
	return out
}

// Valid reports whether the status is part of the recognised set.
func (s OrderStatus) Valid() bool {
	for _, candidate := range orderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Valid reports whether the status is part of the recognised set.
func (s PaymentStatus) Valid() bool {
	for _, candidate := range paymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Settled reports whether the payment has been collected.
func (s PaymentStatus) Settled() bool {
	return s == PaymentStatusPaid || s == PaymentStatusSettlement
}

var (
	orderStatusLabels = map[OrderStatus]string{
		OrderStatusPending:    "Pending",
		OrderStatusPickedUp:   "Diambil",
		OrderStatusProcessing: "Diproses",
		OrderStatusReady:      "Siap Diantar",
		OrderStatusDelivered:  "Selesai",
		OrderStatusCancelled:  "Dibatalkan",
	}
	paymentStatusLabels = map[PaymentStatus]string{
		PaymentStatusUnpaid:     "Belum Dibayar",
		PaymentStatusPaid:       "Dibayar",
		PaymentStatusSettlement: "Selesai",
	}
)

// Label returns the customer-facing status text, or the raw value when unknown.
func (s OrderStatus) Label() string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Label returns the customer-facing payment text, or the raw value when unknown.
func (s PaymentStatus) Label() string {
	if label, ok := paymentStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether the payment method is supported.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodQRIS
}

// Online reports whether the method is collected through the payment gateway.
func (m PaymentMethod) Online() bool {
	return m == PaymentMethodQRIS
}

// OrderItem is a snapshot of a catalog item captured when the order was priced.
type OrderItem struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Order represents one laundry job.
type Order struct {
	ID                 int64
	CustomerID         string
	ServiceID          string
	ServiceName        string
	ServiceType        ServiceType
	ItemTypeID         string
	Quantity           int
	Weight             *decimal.Decimal
	Items              []OrderItem
	PriceTotal         decimal.Decimal
	DiscountPercent    *decimal.Decimal
	PickupAddress      string
	Latitude           float64
	Longitude          float64
	ScheduledPickup    time.Time
	OrderStatus        OrderStatus
	PaymentStatus      PaymentStatus
	PaymentMethod      PaymentMethod
	PaymentGateway     string
	SnapToken          string
	PaymentRedirectURL string
	TransactionID      string
	NotifiedCustomer   bool
	AssignedCourierID  string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TrackStatusChange clears the customer notification flag when the order status
// differs from the previously persisted value. Payment changes never touch it.
func (o *Order) TrackStatusChange(previous OrderStatus) bool {
	if o == nil || o.OrderStatus == previous {
		return false
	}
	o.NotifiedCustomer = false
	return true
}

// Cancellable reports whether the order may still be cancelled.
func (o Order) Cancellable() bool {
	return o.OrderStatus == OrderStatusPending && !o.PaymentStatus.Settled()
}

// AssignedTo reports whether the courier is assigned to the order.
func (o Order) AssignedTo(courierID string) bool {
	courierID = strings.TrimSpace(courierID)
	return courierID != "" && o.AssignedCourierID == courierID
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	CustomerID      string
	CourierID       string
	OrderStatuses   []OrderStatus
	PaymentStatuses []PaymentStatus
	CreatedBefore   *time.Time
	CreatedAfter    *time.Time
	Limit           int
}

const externalTransactionPrefix = "ORDER"

// ErrMalformedTransactionID indicates that an external transaction id did not carry an order id.
var ErrMalformedTransactionID = errors.New("domain: malformed transaction id")

// NewTransactionID builds the gateway correlation id ORDER-{id}-{unix}.
func NewTransactionID(orderID int64, now time.Time) string {
	return fmt.Sprintf("%s-%d-%d", externalTransactionPrefix, orderID, now.Unix())
}

// ParseTransactionID extracts the order id from a gateway correlation id.
func ParseTransactionID(value string) (int64, error) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) < 2 || !strings.EqualFold(parts[0], externalTransactionPrefix) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTransactionID, value)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTransactionID, value)
	}
	return id, nil
}

// Clone returns a deep copy so callers can mutate it without aliasing.
func (o Order) Clone() Order {
	out := o
	if o.Weight != nil {
		weight := *o.Weight
		out.Weight = &weight
	}
	if o.DiscountPercent != nil {
		percent := *o.DiscountPercent
		out.DiscountPercent = &percent
	}
	if o.Items != nil {
		out.Items = make([]OrderItem, len(o.Items))
		copy(out.Items, o.Items)
	}
	return out
}
