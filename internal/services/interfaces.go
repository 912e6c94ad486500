package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/wahyu285/loundry/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order            = domain.Order
	OrderItem        = domain.OrderItem
	OrderStatus      = domain.OrderStatus
	PaymentStatus    = domain.PaymentStatus
	PaymentMethod    = domain.PaymentMethod
	Service          = domain.Service
	LaundryItem      = domain.LaundryItem
	Discount         = domain.Discount
	Account          = domain.Account
	OrderStats       = domain.OrderStats
	CourierStats     = domain.CourierStats
	PricingBreakdown = domain.PricingBreakdown
)

// Actor identifies who is performing an operation. Role flags are resolved by the
// transport layer and passed explicitly into every transition.
type Actor struct {
	ID       string
	Customer bool
	Courier  bool
	Staff    bool
}

// OrderService drives the order lifecycle: creation, queries and every transition
// triggered by customers, couriers and staff.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error)
	GetOrder(ctx context.Context, actor Actor, orderID int64) (Order, error)
	ListOrders(ctx context.Context, actor Actor, filter domain.OrderListFilter) ([]Order, error)
	ListCourierOrders(ctx context.Context, actor Actor) (CourierOrders, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	MarkCODPaid(ctx context.Context, cmd MarkCODPaidCommand) (Order, error)
	UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (Order, error)
	AssignCourier(ctx context.Context, cmd AssignCourierCommand) (Order, error)
	DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error
	RetryPayment(ctx context.Context, cmd RetryPaymentCommand) (CreateOrderResult, error)
	GetInvoice(ctx context.Context, actor Actor, orderID int64) (Invoice, error)
}

// OrderStatsService aggregates dashboard statistics.
type OrderStatsService interface {
	OrderStats(ctx context.Context, actor Actor, customerID string) (OrderStats, error)
	CourierStats(ctx context.Context, actor Actor) (CourierStats, error)
}

// PaymentService reconciles gateway callbacks into order payment state.
type PaymentService interface {
	Reconcile(ctx context.Context, cmd ReconcilePaymentCommand) (ReconcileResult, error)
}

// NotificationService exposes the customer notification flag.
type NotificationService interface {
	CountUnread(ctx context.Context, actor Actor) (int, error)
	MarkAllRead(ctx context.Context, actor Actor) (int, error)
}

// CatalogService manages services, laundry items and discount tiers.
type CatalogService interface {
	ListServices(ctx context.Context) ([]CatalogServiceView, error)
	GetService(ctx context.Context, serviceID string) (CatalogServiceView, error)
	UpsertService(ctx context.Context, cmd UpsertServiceCommand) (Service, error)
	DeleteService(ctx context.Context, actor Actor, serviceID string) error
	ListItems(ctx context.Context) ([]LaundryItem, error)
	UpsertItem(ctx context.Context, cmd UpsertItemCommand) (LaundryItem, error)
	DeleteItem(ctx context.Context, actor Actor, itemID string) error
	ListDiscounts(ctx context.Context, actor Actor) ([]Discount, error)
	UpsertDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error)
	DeleteDiscount(ctx context.Context, actor Actor, discountID string) error
}

// AccountService keeps the local account directory in sync with the identity provider.
type AccountService interface {
	EnsureAccount(ctx context.Context, cmd EnsureAccountCommand) (Account, error)
	GetAccount(ctx context.Context, accountID string) (Account, error)
	ListAccounts(ctx context.Context, actor Actor, role domain.AccountRole) ([]Account, error)
}

// ChatService answers order status queries sent through a chat bot.
type ChatService interface {
	Reply(ctx context.Context, message string) (string, error)
}

// MaintenanceService runs housekeeping jobs.
type MaintenanceService interface {
	SweepCancelledOrders(ctx context.Context) (SweepResult, error)
}

// OrderItemInput is one itemized line submitted with a per-item order.
type OrderItemInput struct {
	Name     string `validate:"required,max=120"`
	Quantity int    `validate:"gte=1,lte=1000"`
}

// CreateOrderCommand captures the order submission form.
type CreateOrderCommand struct {
	Actor           Actor
	CustomerID      string
	ServiceID       string `validate:"required"`
	PaymentMethod   PaymentMethod
	PaymentGateway  string
	ScheduledPickup time.Time
	Latitude        *float64 `validate:"required,latitude"`
	Longitude       *float64 `validate:"required,longitude"`
	PickupAddress   string   `validate:"max=500"`
	ItemTypeID      string
	Quantity        int `validate:"gte=0,lte=1000"`
	Weight          *decimal.Decimal
	Items           []OrderItemInput `validate:"dive"`
	IdempotencyKey  string
}

// PaymentSession is the gateway handle handed to the customer.
type PaymentSession struct {
	Provider      string
	Token         string
	RedirectURL   string
	TransactionID string
}

// CreateOrderResult is returned by order creation and payment retry. A gateway failure
// leaves Payment nil and PaymentError set; the order itself is persisted.
type CreateOrderResult struct {
	Order        Order
	Pricing      PricingBreakdown
	Payment      *PaymentSession
	PaymentError string
}

// CourierOrders splits a courier's assignments into active and completed work.
type CourierOrders struct {
	Active    []Order
	Completed []Order
}

// CancelOrderCommand cancels a pending order.
type CancelOrderCommand struct {
	Actor   Actor
	OrderID int64
}

// UpdateOrderStatusCommand moves an order along the fulfilment axis.
type UpdateOrderStatusCommand struct {
	Actor   Actor
	OrderID int64
	Status  string
}

// MarkCODPaidCommand records a cash collection.
type MarkCODPaidCommand struct {
	Actor   Actor
	OrderID int64
}

// UpdatePaymentStatusCommand overrides the payment axis.
type UpdatePaymentStatusCommand struct {
	Actor   Actor
	OrderID int64
	Status  string
}

// AssignCourierCommand sets or clears the courier. An empty CourierID unassigns.
type AssignCourierCommand struct {
	Actor     Actor
	OrderID   int64
	CourierID string
}

// DeleteOrderCommand permanently removes an order.
type DeleteOrderCommand struct {
	Actor   Actor
	OrderID int64
}

// RetryPaymentCommand requests a fresh payment session for an unpaid online order.
type RetryPaymentCommand struct {
	Actor   Actor
	OrderID int64
	Gateway string
}

// Invoice summarises a paid order.
type Invoice struct {
	Order        Order
	CustomerName string
	Customer     Account
	IssuedAt     time.Time
}

// ReconcilePaymentCommand carries a gateway status report.
type ReconcilePaymentCommand struct {
	Source            string
	TransactionID     string
	TransactionStatus string
}

// ReconcileResult reports what reconciliation did.
type ReconcileResult struct {
	OrderID       int64
	PaymentStatus PaymentStatus
	Found         bool
	Changed       bool
}

// CatalogServiceView is a service with its description rendered for display.
type CatalogServiceView struct {
	Service
	DescriptionHTML string
}

// UpsertServiceCommand creates a service when ID is empty and updates it otherwise.
type UpsertServiceCommand struct {
	Actor       Actor
	ID          string
	Name        string `validate:"required,max=120"`
	Description string `validate:"max=4000"`
	Price       decimal.Decimal
	Type        string `validate:"required,oneof=per_kilo per_item"`
	Duration    string `validate:"required,oneof=biasa sicepat express"`
	ImageURL    string `validate:"omitempty,url"`
}

// UpsertItemCommand creates or updates a laundry item.
type UpsertItemCommand struct {
	Actor    Actor
	ID       string
	Name     string `validate:"required,max=120"`
	Price    decimal.Decimal
	ImageURL string `validate:"omitempty,url"`
}

// UpsertDiscountCommand creates or updates a discount tier.
type UpsertDiscountCommand struct {
	Actor     Actor
	ID        string
	Name      string `validate:"required,max=120"`
	MinOrders int    `validate:"gte=0"`
	Percent   decimal.Decimal
	Active    bool
}

// EnsureAccountCommand mirrors an authenticated identity into the account directory.
type EnsureAccountCommand struct {
	ID       string
	Email    string
	Name     string
	Phone    string
	Customer bool
	Courier  bool
	Staff    bool
}

// SweepResult reports a cancelled-order sweep.
type SweepResult struct {
	Removed int
	Cutoff  time.Time
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        int64
	CustomerID     string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}
