package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories"
)

// AccountServiceDeps bundles collaborators for the account directory.
type AccountServiceDeps struct {
	Accounts repositories.AccountRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type accountService struct {
	accounts repositories.AccountRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewAccountService constructs the account directory service.
func NewAccountService(deps AccountServiceDeps) (AccountService, error) {
	if deps.Accounts == nil {
		return nil, errors.New("account service: account repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &accountService{
		accounts: deps.Accounts,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// EnsureAccount creates the account on first sight and refreshes role flags and
// contact details afterwards. Profile fields already set locally are kept.
func (s *accountService) EnsureAccount(ctx context.Context, cmd EnsureAccountCommand) (Account, error) {
	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		return Account{}, fmt.Errorf("%w: account id is required", ErrAccountInvalidInput)
	}
	now := s.clock()
	email := strings.TrimSpace(cmd.Email)

	account, err := s.accounts.FindByID(ctx, id)
	switch {
	case err == nil:
		if account.IsCustomer == cmd.Customer && account.IsCourier == cmd.Courier && account.IsStaff == cmd.Staff &&
			(email == "" || account.Email == email) {
			return account, nil
		}
	case repositories.IsNotFound(err):
		account = Account{
			ID:        id,
			Username:  usernameFor(email, id),
			FirstName: strings.TrimSpace(cmd.Name),
			Phone:     strings.TrimSpace(cmd.Phone),
			CreatedAt: now,
		}
		s.logger(ctx, "account.created", map[string]any{"accountId": id})
	default:
		return Account{}, mapRepositoryError(err, accountRepositoryErrors)
	}

	if email != "" {
		account.Email = email
	}
	account.IsCustomer = cmd.Customer
	account.IsCourier = cmd.Courier
	account.IsStaff = cmd.Staff
	account.UpdatedAt = now

	if err := s.accounts.Upsert(ctx, account); err != nil {
		return Account{}, mapRepositoryError(err, accountRepositoryErrors)
	}
	return account, nil
}

func (s *accountService) GetAccount(ctx context.Context, accountID string) (Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Account{}, fmt.Errorf("%w: account id is required", ErrAccountInvalidInput)
	}
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return Account{}, mapRepositoryError(err, accountRepositoryErrors)
	}
	return account, nil
}

func (s *accountService) ListAccounts(ctx context.Context, actor Actor, role domain.AccountRole) ([]Account, error) {
	if !actor.Staff {
		return nil, fmt.Errorf("%w: staff role required", ErrAccountPermissionDenied)
	}
	switch role {
	case "", domain.AccountRoleCustomer, domain.AccountRoleCourier, domain.AccountRoleStaff:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrAccountInvalidInput, role)
	}
	accounts, err := s.accounts.List(ctx, role)
	if err != nil {
		return nil, mapRepositoryError(err, accountRepositoryErrors)
	}
	return accounts, nil
}

func usernameFor(email, id string) string {
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return id
}
