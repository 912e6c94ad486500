package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories"
)

// UnknownItemPolicy decides what happens to item lines missing from the catalog.
type UnknownItemPolicy string

const (
	// UnknownItemSkip prices unknown lines at zero and reports them as skipped.
	UnknownItemSkip UnknownItemPolicy = "skip"
	// UnknownItemReject fails pricing with ErrOrderInvalidInput.
	UnknownItemReject UnknownItemPolicy = "reject"
)

// PricingInput is everything needed to price one order.
type PricingInput struct {
	Service    Service
	ItemTypeID string
	Quantity   int
	Weight     *decimal.Decimal
	Items      []OrderItemInput
}

// PricingCalculator derives the pre-discount order total and the item snapshots
// stored on the order.
type PricingCalculator struct {
	items  repositories.LaundryItemRepository
	policy UnknownItemPolicy
}

// NewPricingCalculator builds a calculator over the laundry item catalog.
func NewPricingCalculator(items repositories.LaundryItemRepository, policy UnknownItemPolicy) *PricingCalculator {
	if policy != UnknownItemReject {
		policy = UnknownItemSkip
	}
	return &PricingCalculator{items: items, policy: policy}
}

// Calculate prices the input. per_kilo multiplies the service price by the weight;
// per_item charges the service fee plus the current catalog price of every line.
func (c *PricingCalculator) Calculate(ctx context.Context, in PricingInput) (PricingBreakdown, error) {
	breakdown := PricingBreakdown{Subtotal: decimal.Zero, DiscountAmount: decimal.Zero}

	switch in.Service.Type {
	case domain.ServiceTypePerKilo:
		if in.Weight == nil {
			break
		}
		if in.Weight.IsNegative() {
			return PricingBreakdown{}, fmt.Errorf("%w: weight must not be negative", ErrOrderInvalidInput)
		}
		breakdown.Subtotal = in.Service.Price.Mul(*in.Weight)
	case domain.ServiceTypePerItem:
		lines, err := c.itemLines(ctx, in)
		if err != nil {
			return PricingBreakdown{}, err
		}
		total := in.Service.Price
		for _, line := range lines {
			item, found, err := c.lookup(ctx, line.Name)
			if err != nil {
				return PricingBreakdown{}, err
			}
			if !found {
				if c.policy == UnknownItemReject {
					return PricingBreakdown{}, fmt.Errorf("%w: unknown laundry item %q", ErrOrderInvalidInput, line.Name)
				}
				breakdown.SkippedItems = append(breakdown.SkippedItems, line.Name)
				continue
			}
			total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
			breakdown.Items = append(breakdown.Items, OrderItem{
				Name:      item.Name,
				Quantity:  line.Quantity,
				UnitPrice: item.Price,
			})
		}
		breakdown.Subtotal = total
	}

	if breakdown.Subtotal.IsNegative() {
		breakdown.Subtotal = decimal.Zero
	}
	breakdown.Total = breakdown.Subtotal
	return breakdown, nil
}

// itemLines returns the submitted lines, falling back to a single ItemTypeID line.
func (c *PricingCalculator) itemLines(ctx context.Context, in PricingInput) ([]OrderItemInput, error) {
	lines := make([]OrderItemInput, 0, len(in.Items))
	for _, line := range in.Items {
		name := strings.TrimSpace(line.Name)
		if name == "" {
			continue
		}
		if line.Quantity < 0 {
			return nil, fmt.Errorf("%w: quantity for %q must not be negative", ErrOrderInvalidInput, name)
		}
		lines = append(lines, OrderItemInput{Name: name, Quantity: line.Quantity})
	}
	if len(lines) > 0 || strings.TrimSpace(in.ItemTypeID) == "" || in.Quantity <= 0 {
		return lines, nil
	}
	if c.items == nil {
		return nil, fmt.Errorf("%w: item catalog unavailable", ErrOrderUnavailable)
	}
	item, err := c.items.FindByID(ctx, strings.TrimSpace(in.ItemTypeID))
	if err != nil {
		if repositories.IsNotFound(err) {
			if c.policy == UnknownItemReject {
				return nil, fmt.Errorf("%w: unknown laundry item %q", ErrOrderInvalidInput, in.ItemTypeID)
			}
			return nil, nil
		}
		return nil, mapRepositoryError(err, orderRepositoryErrors)
	}
	return []OrderItemInput{{Name: item.Name, Quantity: in.Quantity}}, nil
}

func (c *PricingCalculator) lookup(ctx context.Context, name string) (LaundryItem, bool, error) {
	if c.items == nil {
		return LaundryItem{}, false, fmt.Errorf("%w: item catalog unavailable", ErrOrderUnavailable)
	}
	item, err := c.items.FindByName(ctx, name)
	if err != nil {
		if repositories.IsNotFound(err) {
			return LaundryItem{}, false, nil
		}
		return LaundryItem{}, false, mapRepositoryError(err, orderRepositoryErrors)
	}
	return item, true, nil
}
