package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories"
)

const (
	frequentServiceLimit = 5
	revenueChartDays     = 7
)

// OrderStatsServiceDeps bundles collaborators for the stats service.
type OrderStatsServiceDeps struct {
	Orders   repositories.OrderRepository
	Accounts repositories.AccountRepository
	Services repositories.ServiceRepository
	Clock    func() time.Time
	Location *time.Location
}

type orderStatsService struct {
	orders   repositories.OrderRepository
	accounts repositories.AccountRepository
	services repositories.ServiceRepository
	clock    func() time.Time
	location *time.Location
}

// NewOrderStatsService constructs the dashboard statistics service.
func NewOrderStatsService(deps OrderStatsServiceDeps) (OrderStatsService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order stats service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	return &orderStatsService{
		orders:   deps.Orders,
		accounts: deps.Accounts,
		services: deps.Services,
		clock:    clock,
		location: location,
	}, nil
}

// OrderStats summarises every order for staff, or the caller's own orders for customers.
func (s *orderStatsService) OrderStats(ctx context.Context, actor Actor, customerID string) (OrderStats, error) {
	actor = normaliseActor(actor)
	filter := domain.OrderListFilter{}
	switch {
	case actor.Staff:
		filter.CustomerID = strings.TrimSpace(customerID)
	case actor.Customer && actor.ID != "":
		filter.CustomerID = actor.ID
	default:
		return OrderStats{}, fmt.Errorf("%w: caller has no stats access", ErrOrderPermissionDenied)
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return OrderStats{}, mapRepositoryError(err, orderRepositoryErrors)
	}
	now := s.clock().In(s.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	stats := summariseOrders(orders, today, s.location)

	if actor.Staff && filter.CustomerID == "" {
		if err := s.fillDirectoryTotals(ctx, &stats); err != nil {
			return OrderStats{}, err
		}
	}
	return stats, nil
}

func (s *orderStatsService) fillDirectoryTotals(ctx context.Context, stats *OrderStats) error {
	if s.accounts != nil {
		accounts, err := s.accounts.List(ctx, "")
		if err != nil {
			return mapRepositoryError(err, accountRepositoryErrors)
		}
		stats.TotalAccounts = len(accounts)
		for _, account := range accounts {
			if account.IsCourier {
				stats.TotalCouriers++
			}
		}
	}
	if s.services != nil {
		svcs, err := s.services.List(ctx)
		if err != nil {
			return mapRepositoryError(err, catalogRepositoryErrors)
		}
		stats.TotalServices = len(svcs)
	}
	return nil
}

// CourierStats counts the courier's assigned orders created today, this week and this month.
func (s *orderStatsService) CourierStats(ctx context.Context, actor Actor) (CourierStats, error) {
	actor = normaliseActor(actor)
	if !actor.Courier || actor.ID == "" {
		return CourierStats{}, fmt.Errorf("%w: courier role required", ErrOrderPermissionDenied)
	}

	now := s.clock().In(s.location)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	week := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.location)
	earliest := week
	if month.Before(earliest) {
		earliest = month
	}

	orders, err := s.orders.List(ctx, domain.OrderListFilter{CourierID: actor.ID, CreatedAfter: &earliest})
	if err != nil {
		return CourierStats{}, mapRepositoryError(err, orderRepositoryErrors)
	}

	var stats CourierStats
	for _, order := range orders {
		created := order.CreatedAt.In(s.location)
		if !created.Before(day) {
			stats.Daily++
		}
		if !created.Before(week) {
			stats.Weekly++
		}
		if !created.Before(month) {
			stats.Monthly++
		}
	}
	return stats, nil
}

// summariseOrders aggregates orders; today is local midnight and anchors the
// revenue chart, which always carries revenueChartDays entries ending today.
func summariseOrders(orders []Order, today time.Time, location *time.Location) OrderStats {
	stats := OrderStats{
		PaidRevenue:      decimal.Zero,
		TodayRevenue:     decimal.Zero,
		DailyRevenue:     make([]domain.DailyRevenue, revenueChartDays),
		FrequentServices: []domain.ServiceFrequency{},
	}
	chartStart := today.AddDate(0, 0, -(revenueChartDays - 1))
	chartIndex := make(map[string]int, revenueChartDays)
	for i := range stats.DailyRevenue {
		day := chartStart.AddDate(0, 0, i)
		stats.DailyRevenue[i] = domain.DailyRevenue{Date: day, Amount: decimal.Zero}
		chartIndex[day.Format(time.DateOnly)] = i
	}

	frequency := map[string]*domain.ServiceFrequency{}
	for _, order := range orders {
		stats.Total++
		switch order.OrderStatus {
		case domain.OrderStatusDelivered:
			stats.Delivered++
		case domain.OrderStatusPending:
			stats.Pending++
		case domain.OrderStatusCancelled:
			stats.Cancelled++
		}
		if order.PaymentStatus.Settled() {
			stats.PaidRevenue = stats.PaidRevenue.Add(order.PriceTotal)
			stats.PaidTransactions++
			if i, ok := chartIndex[order.CreatedAt.In(location).Format(time.DateOnly)]; ok {
				day := &stats.DailyRevenue[i]
				day.Amount = day.Amount.Add(order.PriceTotal)
			}
		}
		entry, ok := frequency[order.ServiceID]
		if !ok {
			entry = &domain.ServiceFrequency{ServiceID: order.ServiceID, ServiceName: order.ServiceName}
			frequency[order.ServiceID] = entry
		}
		entry.Orders++
	}

	for _, entry := range frequency {
		stats.FrequentServices = append(stats.FrequentServices, *entry)
	}
	sort.Slice(stats.FrequentServices, func(i, j int) bool {
		a, b := stats.FrequentServices[i], stats.FrequentServices[j]
		if a.Orders != b.Orders {
			return a.Orders > b.Orders
		}
		return a.ServiceName < b.ServiceName
	})
	if len(stats.FrequentServices) > frequentServiceLimit {
		stats.FrequentServices = stats.FrequentServices[:frequentServiceLimit]
	}
	stats.TodayRevenue = stats.DailyRevenue[revenueChartDays-1].Amount
	return stats
}
