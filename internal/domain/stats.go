package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStats summarises orders for the staff dashboard.
type OrderStats struct {
	Total            int
	Delivered        int
	Pending          int
	Cancelled        int
	PaidRevenue      decimal.Decimal
	PaidTransactions int
	TodayRevenue     decimal.Decimal
	DailyRevenue     []DailyRevenue
	FrequentServices []ServiceFrequency

	// Shop-wide totals, filled only for the unfiltered staff view.
	TotalAccounts int
	TotalCouriers int
	TotalServices int
}

// DailyRevenue is the paid income of orders created on one business day.
type DailyRevenue struct {
	Date   time.Time
	Amount decimal.Decimal
}

// ServiceFrequency counts how often a service was ordered.
type ServiceFrequency struct {
	ServiceID   string
	ServiceName string
	Orders      int
}

// CourierStats counts orders assigned to a courier over calendar windows.
type CourierStats struct {
	Daily   int
	Weekly  int
	Monthly int
}

// PricingBreakdown captures how an order total was derived.
type PricingBreakdown struct {
	Subtotal        decimal.Decimal
	DiscountID      string
	DiscountPercent *decimal.Decimal
	DiscountAmount  decimal.Decimal
	Total           decimal.Decimal
	Items           []OrderItem
	SkippedItems    []string
}
