package domain

import "time"

// Account is a customer, courier or staff member of the laundry.
type Account struct {
	ID         string
	Username   string
	FirstName  string
	Email      string
	Phone      string
	Address    string
	IsCustomer bool
	IsCourier  bool
	IsStaff    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName prefers the first name and falls back to the username.
func (a Account) DisplayName() string {
	if a.FirstName != "" {
		return a.FirstName
	}
	return a.Username
}

// AccountRole filters account listings by capability.
type AccountRole string

const (
	AccountRoleCustomer AccountRole = "customer"
	AccountRoleCourier  AccountRole = "courier"
	AccountRoleStaff    AccountRole = "staff"
)
