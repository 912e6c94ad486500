package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories"
)

// DiscountCountPolicy decides which historical orders count toward loyalty tiers.
type DiscountCountPolicy string

const (
	// DiscountCountAll counts every order the customer ever placed.
	DiscountCountAll DiscountCountPolicy = "all"
	// DiscountCountExcludeCancelled ignores cancelled orders.
	DiscountCountExcludeCancelled DiscountCountPolicy = "exclude_cancelled"
)

var hundred = decimal.NewFromInt(100)

type orderCounter interface {
	CountByCustomer(ctx context.Context, customerID string, excluded []domain.OrderStatus) (int, error)
}

// DiscountResolver picks the loyalty tier a customer qualifies for.
type DiscountResolver struct {
	discounts repositories.DiscountRepository
	orders    orderCounter
	policy    DiscountCountPolicy
}

// NewDiscountResolver builds a resolver over the discount tiers and order history.
func NewDiscountResolver(discounts repositories.DiscountRepository, orders orderCounter, policy DiscountCountPolicy) *DiscountResolver {
	if policy != DiscountCountExcludeCancelled {
		policy = DiscountCountAll
	}
	return &DiscountResolver{discounts: discounts, orders: orders, policy: policy}
}

// Resolve returns the applicable tier, if any, and the order count it was selected with.
func (r *DiscountResolver) Resolve(ctx context.Context, customerID string) (*Discount, int, error) {
	if r == nil || r.discounts == nil || r.orders == nil {
		return nil, 0, nil
	}
	var excluded []domain.OrderStatus
	if r.policy == DiscountCountExcludeCancelled {
		excluded = []domain.OrderStatus{domain.OrderStatusCancelled}
	}
	count, err := r.orders.CountByCustomer(ctx, strings.TrimSpace(customerID), excluded)
	if err != nil {
		return nil, 0, mapRepositoryError(err, orderRepositoryErrors)
	}
	tiers, err := r.discounts.List(ctx, true)
	if err != nil {
		return nil, count, mapRepositoryError(err, catalogRepositoryErrors)
	}
	tier, ok := SelectDiscount(tiers, count)
	if !ok {
		return nil, count, nil
	}
	return &tier, count, nil
}

// SelectDiscount returns the active tier with the greatest MinOrders not above
// orderCount. Ties resolve to the lowest id.
func SelectDiscount(tiers []Discount, orderCount int) (Discount, bool) {
	var (
		best  Discount
		found bool
	)
	for _, tier := range tiers {
		if !tier.Active || tier.MinOrders > orderCount {
			continue
		}
		if !found || tier.MinOrders > best.MinOrders || (tier.MinOrders == best.MinOrders && tier.ID < best.ID) {
			best = tier
			found = true
		}
	}
	return best, found
}

// ApplyDiscount reduces the breakdown total by the tier percentage.
func ApplyDiscount(breakdown PricingBreakdown, tier *Discount) PricingBreakdown {
	breakdown.Total = breakdown.Subtotal
	breakdown.DiscountAmount = decimal.Zero
	breakdown.DiscountID = ""
	breakdown.DiscountPercent = nil
	if tier == nil {
		return breakdown
	}
	percent := tier.Percent
	if percent.IsNegative() {
		percent = decimal.Zero
	}
	if percent.GreaterThan(hundred) {
		percent = hundred
	}
	breakdown.DiscountAmount = breakdown.Subtotal.Mul(percent).Div(hundred).Round(2)
	breakdown.Total = breakdown.Subtotal.Sub(breakdown.DiscountAmount)
	breakdown.DiscountID = tier.ID
	breakdown.DiscountPercent = &percent
	return breakdown
}
