package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/payments"
	"github.com/wahyu285/loundry/internal/repositories"
)

const (
	orderEventCreated        = "order.created"
	orderEventStatusChanged  = "order.status_changed"
	orderEventPaymentChanged = "order.payment_changed"
	orderEventCancelled      = "order.cancelled"
	orderEventCourierChanged = "order.courier_changed"
	orderEventDeleted        = "order.deleted"
)

// paymentSessionManager is the subset of payments.Manager used by orders.
type paymentSessionManager interface {
	CreateSession(ctx context.Context, preferred string, req payments.SessionRequest) (payments.Session, error)
	DefaultProvider() string
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders              repositories.OrderRepository
	Services            repositories.ServiceRepository
	Items               repositories.LaundryItemRepository
	Discounts           repositories.DiscountRepository
	Accounts            repositories.AccountRepository
	Payments            paymentSessionManager
	UnknownItemPolicy   UnknownItemPolicy
	DiscountCountPolicy DiscountCountPolicy
	FinishURL           string
	Validator           *validator.Validate
	Clock               func() time.Time
	IDGenerator         func() string
	Events              OrderEventPublisher
	Logger              func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	services  repositories.ServiceRepository
	accounts  repositories.AccountRepository
	payments  paymentSessionManager
	pricing   *PricingCalculator
	discounts *DiscountResolver
	finishURL string
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	clock     func() time.Time
	newID     func() string
	events    OrderEventPublisher
	logger    func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Services == nil {
		return nil, errors.New("order service: service repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	validate := deps.Validator
	if validate == nil {
		validate = NewValidator()
	}

	return &orderService{
		orders:    deps.Orders,
		services:  deps.Services,
		accounts:  deps.Accounts,
		payments:  deps.Payments,
		pricing:   NewPricingCalculator(deps.Items, deps.UnknownItemPolicy),
		discounts: NewDiscountResolver(deps.Discounts, deps.Orders, deps.DiscountCountPolicy),
		finishURL: strings.TrimSpace(deps.FinishURL),
		validate:  validate,
		sanitizer: bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	actor := normaliseActor(cmd.Actor)
	if actor.ID == "" {
		return CreateOrderResult{}, fmt.Errorf("%w: actor is required", ErrOrderPermissionDenied)
	}
	if !actor.Customer && !actor.Staff {
		return CreateOrderResult{}, fmt.Errorf("%w: only customers and staff may create orders", ErrOrderPermissionDenied)
	}

	cmd.ServiceID = strings.TrimSpace(cmd.ServiceID)
	if err := s.validate.Struct(cmd); err != nil {
		return CreateOrderResult{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}

	customerID, err := s.orderCustomer(ctx, actor, cmd.CustomerID)
	if err != nil {
		return CreateOrderResult{}, err
	}

	method := PaymentMethod(strings.ToLower(strings.TrimSpace(string(cmd.PaymentMethod))))
	if method == "" {
		method = domain.PaymentMethodCOD
	}
	if !method.Valid() {
		return CreateOrderResult{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}

	service, err := s.services.FindByID(ctx, cmd.ServiceID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return CreateOrderResult{}, fmt.Errorf("%w: service %q not found", ErrOrderInvalidInput, cmd.ServiceID)
		}
		return CreateOrderResult{}, mapRepositoryError(err, orderRepositoryErrors)
	}

	breakdown, err := s.pricing.Calculate(ctx, PricingInput{
		Service:    service,
		ItemTypeID: cmd.ItemTypeID,
		Quantity:   cmd.Quantity,
		Weight:     cmd.Weight,
		Items:      cmd.Items,
	})
	if err != nil {
		return CreateOrderResult{}, err
	}

	tier, orderCount, err := s.discounts.Resolve(ctx, customerID)
	if err != nil {
		return CreateOrderResult{}, err
	}
	breakdown = ApplyDiscount(breakdown, tier)

	now := s.now()
	scheduled := cmd.ScheduledPickup.UTC()
	if cmd.ScheduledPickup.IsZero() {
		scheduled = now
	}

	order := Order{
		CustomerID:      customerID,
		ServiceID:       service.ID,
		ServiceName:     service.Name,
		ServiceType:     service.Type,
		ItemTypeID:      strings.TrimSpace(cmd.ItemTypeID),
		Quantity:        cmd.Quantity,
		Items:           breakdown.Items,
		PriceTotal:      breakdown.Total,
		DiscountPercent: breakdown.DiscountPercent,
		PickupAddress:   s.pickupAddress(cmd.PickupAddress, *cmd.Latitude, *cmd.Longitude),
		Latitude:        *cmd.Latitude,
		Longitude:       *cmd.Longitude,
		ScheduledPickup: scheduled,
		OrderStatus:     domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusUnpaid,
		PaymentMethod:   method,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if service.Type == domain.ServiceTypePerKilo && cmd.Weight != nil {
		weight := *cmd.Weight
		order.Weight = &weight
	}

	created, err := s.orders.Insert(ctx, order)
	if err != nil {
		return CreateOrderResult{}, mapRepositoryError(err, orderRepositoryErrors)
	}

	fields := map[string]any{
		"orderId":    created.ID,
		"customerId": customerID,
		"serviceId":  service.ID,
		"total":      created.PriceTotal.String(),
		"orderCount": orderCount,
	}
	if len(breakdown.SkippedItems) > 0 {
		fields["skippedItems"] = breakdown.SkippedItems
	}
	s.logger(ctx, "order.created", fields)

	metadata := map[string]any{
		"total":         created.PriceTotal.String(),
		"paymentMethod": string(method),
	}
	if breakdown.DiscountPercent != nil {
		metadata["discountPercent"] = breakdown.DiscountPercent.String()
	}
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       created.ID,
		CustomerID:    customerID,
		CurrentStatus: string(created.OrderStatus),
		ActorID:       actor.ID,
		OccurredAt:    now,
		Metadata:      metadata,
	})

	result := CreateOrderResult{Order: created, Pricing: breakdown}
	if !method.Online() {
		return result, nil
	}

	updated, session, err := s.openPaymentSession(ctx, created, cmd.PaymentGateway)
	if err != nil {
		s.logger(ctx, "order.payment_token_failed", map[string]any{
			"orderId": created.ID,
			"error":   err.Error(),
		})
		result.PaymentError = err.Error()
		return result, nil
	}
	result.Order = updated
	result.Payment = session
	return result, nil
}

// orderCustomer resolves who owns a new order. Staff placing an order for
// someone else must name an existing customer account.
func (s *orderService) orderCustomer(ctx context.Context, actor Actor, requested string) (string, error) {
	if !actor.Staff {
		return actor.ID, nil
	}
	requested = strings.TrimSpace(requested)
	if actor.Customer && (requested == "" || requested == actor.ID) {
		return actor.ID, nil
	}
	if requested == "" {
		return "", fmt.Errorf("%w: customer_id is required", ErrOrderInvalidInput)
	}
	if s.accounts == nil {
		return "", fmt.Errorf("%w: account directory unavailable", ErrOrderUnavailable)
	}
	account, err := s.accounts.FindByID(ctx, requested)
	if err != nil {
		if repositories.IsNotFound(err) {
			return "", fmt.Errorf("%w: customer %q not found", ErrOrderInvalidInput, requested)
		}
		return "", mapRepositoryError(err, accountRepositoryErrors)
	}
	if !account.IsCustomer {
		return "", fmt.Errorf("%w: account %q is not a customer", ErrOrderInvalidInput, requested)
	}
	return account.ID, nil
}

func (s *orderService) GetOrder(ctx context.Context, actor Actor, orderID int64) (Order, error) {
	actor = normaliseActor(actor)
	order, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !canView(actor, order) {
		return Order{}, fmt.Errorf("%w: order %d is not visible to caller", ErrOrderPermissionDenied, orderID)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor Actor, filter domain.OrderListFilter) ([]Order, error) {
	actor = normaliseActor(actor)
	switch {
	case actor.Staff:
	case actor.Customer:
		filter.CustomerID = actor.ID
	case actor.Courier:
		filter.CourierID = actor.ID
	default:
		return nil, fmt.Errorf("%w: caller has no order access", ErrOrderPermissionDenied)
	}
	for _, status := range filter.OrderStatuses {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown order status %q", ErrOrderInvalidInput, status)
		}
	}
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, mapRepositoryError(err, orderRepositoryErrors)
	}
	return orders, nil
}

func (s *orderService) ListCourierOrders(ctx context.Context, actor Actor) (CourierOrders, error) {
	actor = normaliseActor(actor)
	if !actor.Courier || actor.ID == "" {
		return CourierOrders{}, fmt.Errorf("%w: courier role required", ErrOrderPermissionDenied)
	}
	assigned, err := s.orders.List(ctx, domain.OrderListFilter{CourierID: actor.ID})
	if err != nil {
		return CourierOrders{}, mapRepositoryError(err, orderRepositoryErrors)
	}

	result := CourierOrders{Active: []Order{}, Completed: []Order{}}
	for _, order := range assigned {
		switch order.OrderStatus {
		case domain.OrderStatusDelivered:
			result.Completed = append(result.Completed, order)
		case domain.OrderStatusCancelled:
		default:
			result.Active = append(result.Active, order)
		}
	}
	sort.SliceStable(result.Completed, func(i, j int) bool {
		return result.Completed[i].UpdatedAt.After(result.Completed[j].UpdatedAt)
	})
	return result, nil
}

func (s *orderService) RetryPayment(ctx context.Context, cmd RetryPaymentCommand) (CreateOrderResult, error) {
	actor := normaliseActor(cmd.Actor)
	order, err := s.load(ctx, cmd.OrderID)
	if err != nil {
		return CreateOrderResult{}, err
	}
	if !isOwnerOrStaff(actor, order) {
		return CreateOrderResult{}, fmt.Errorf("%w: only the owner or staff may retry payment", ErrOrderPermissionDenied)
	}
	if !order.PaymentMethod.Online() {
		return CreateOrderResult{}, fmt.Errorf("%w: payment method %q is not collected online", ErrOrderInvalidState, order.PaymentMethod)
	}
	if order.OrderStatus != domain.OrderStatusPending || order.PaymentStatus.Settled() {
		return CreateOrderResult{}, fmt.Errorf("%w: order %d no longer accepts payment", ErrOrderInvalidState, order.ID)
	}

	gateway := cmd.Gateway
	if strings.TrimSpace(gateway) == "" {
		gateway = order.PaymentGateway
	}
	updated, session, err := s.openPaymentSession(ctx, order, gateway)
	if err != nil {
		s.logger(ctx, "order.payment_token_failed", map[string]any{
			"orderId": order.ID,
			"retry":   true,
			"error":   err.Error(),
		})
		return CreateOrderResult{Order: order, PaymentError: err.Error()}, err
	}
	return CreateOrderResult{Order: updated, Payment: session}, nil
}

func (s *orderService) GetInvoice(ctx context.Context, actor Actor, orderID int64) (Invoice, error) {
	actor = normaliseActor(actor)
	order, err := s.load(ctx, orderID)
	if err != nil {
		return Invoice{}, err
	}
	if !isOwnerOrStaff(actor, order) {
		return Invoice{}, fmt.Errorf("%w: invoice is not visible to caller", ErrOrderPermissionDenied)
	}
	if !order.PaymentStatus.Settled() {
		return Invoice{}, fmt.Errorf("%w: invoice is available once the order is paid", ErrOrderInvalidState)
	}

	invoice := Invoice{Order: order, CustomerName: order.CustomerID, IssuedAt: s.now()}
	if s.accounts != nil {
		account, err := s.accounts.FindByID(ctx, order.CustomerID)
		switch {
		case err == nil:
			invoice.Customer = account
			invoice.CustomerName = account.DisplayName()
		case !repositories.IsNotFound(err):
			return Invoice{}, mapRepositoryError(err, accountRepositoryErrors)
		}
	}
	return invoice, nil
}

// openPaymentSession requests a gateway session under a fresh transaction id and
// stores the token on the order.
func (s *orderService) openPaymentSession(ctx context.Context, order Order, gateway string) (Order, *PaymentSession, error) {
	if s.payments == nil {
		return order, nil, fmt.Errorf("%w: no payment gateway configured", ErrPaymentGatewayFailed)
	}

	now := s.now()
	transactionID := domain.NewTransactionID(order.ID, now)
	if transactionID == order.TransactionID {
		transactionID = domain.NewTransactionID(order.ID, now.Add(time.Second))
	}

	customer := payments.Customer{Name: order.CustomerID}
	if s.accounts != nil {
		if account, err := s.accounts.FindByID(ctx, order.CustomerID); err == nil {
			customer = payments.Customer{Name: account.Username, Email: account.Email}
			if customer.Name == "" {
				customer.Name = account.DisplayName()
			}
		}
	}

	session, err := s.payments.CreateSession(ctx, gateway, payments.SessionRequest{
		TransactionID:  transactionID,
		GrossAmount:    order.PriceTotal.IntPart(),
		Description:    "Laundry order #" + strconv.FormatInt(order.ID, 10) + " " + order.ServiceName,
		Customer:       customer,
		FinishURL:      s.finishURL,
		IdempotencyKey: s.newID(),
	})
	if err != nil {
		return order, nil, fmt.Errorf("%w: %v", ErrPaymentGatewayFailed, err)
	}

	updated, err := s.orders.Mutate(ctx, order.ID, func(current *domain.Order) error {
		current.SnapToken = session.Token
		current.PaymentRedirectURL = session.RedirectURL
		current.PaymentGateway = session.Provider
		current.TransactionID = transactionID
		return nil
	})
	if err != nil {
		return order, nil, mapRepositoryError(err, orderRepositoryErrors)
	}

	return updated, &PaymentSession{
		Provider:      session.Provider,
		Token:         session.Token,
		RedirectURL:   session.RedirectURL,
		TransactionID: transactionID,
	}, nil
}

func (s *orderService) pickupAddress(raw string, lat, lng float64) string {
	address := strings.TrimSpace(s.sanitizer.Sanitize(raw))
	if address != "" {
		return address
	}
	return fmt.Sprintf("Lat: %v, Lng: %v", lat, lng)
}

func (s *orderService) load(ctx context.Context, orderID int64) (Order, error) {
	if orderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapRepositoryError(err, orderRepositoryErrors)
	}
	return order, nil
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

func normaliseActor(actor Actor) Actor {
	actor.ID = strings.TrimSpace(actor.ID)
	return actor
}

func isOwnerOrStaff(actor Actor, order Order) bool {
	if actor.Staff {
		return true
	}
	return actor.Customer && actor.ID != "" && order.CustomerID == actor.ID
}

func canView(actor Actor, order Order) bool {
	if isOwnerOrStaff(actor, order) {
		return true
	}
	return actor.Courier && order.AssignedTo(actor.ID)
}
