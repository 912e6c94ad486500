package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceType declares how a service is priced.
type ServiceType string

const (
	ServiceTypePerKilo ServiceType = "per_kilo"
	ServiceTypePerItem ServiceType = "per_item"
)

// Valid reports whether the service type is supported.
func (t ServiceType) Valid() bool {
	return t == ServiceTypePerKilo || t == ServiceTypePerItem
}

// DurationTier is the turnaround promised by a service.
type DurationTier string

const (
	DurationRegular DurationTier = "biasa"
	DurationFast    DurationTier = "sicepat"
	DurationExpress DurationTier = "express"
)

// Valid reports whether the duration tier is supported.
func (d DurationTier) Valid() bool {
	switch d {
	case DurationRegular, DurationFast, DurationExpress:
		return true
	default:
		return false
	}
}

// Service is a laundry offering in the catalog.
type Service struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Type        ServiceType
	Duration    DurationTier
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LaundryItem is a catalog entry used to price per-item orders.
type LaundryItem struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Discount is a loyalty tier unlocked by a customer's order count.
type Discount struct {
	ID        string
	Name      string
	MinOrders int
	Percent   decimal.Decimal
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
