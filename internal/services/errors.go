package services

import (
	"errors"
	"fmt"

	"github.com/wahyu285/loundry/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderPermissionDenied indicates the actor may not perform the operation.
	ErrOrderPermissionDenied = errors.New("order: permission denied")
	// ErrOrderInvalidState indicates the order is not in a state that allows the transition.
	ErrOrderInvalidState = errors.New("order: invalid state")
	// ErrOrderConflict indicates a concurrent write or duplicate record.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates the backing store is unreachable.
	ErrOrderUnavailable = errors.New("order: unavailable")
	// ErrPaymentGatewayFailed indicates the gateway rejected a session request.
	ErrPaymentGatewayFailed = errors.New("order: payment gateway failed")

	// ErrCatalogInvalidInput signals invalid catalog data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the catalog entry does not exist.
	ErrCatalogNotFound = errors.New("catalog: not found")
	// ErrCatalogPermissionDenied indicates a non-staff actor attempted a catalog change.
	ErrCatalogPermissionDenied = errors.New("catalog: permission denied")
	// ErrCatalogInUse indicates a service is still referenced by orders.
	ErrCatalogInUse = errors.New("catalog: in use")
	// ErrCatalogConflict indicates a duplicate catalog id.
	ErrCatalogConflict = errors.New("catalog: conflict")

	// ErrAccountInvalidInput signals invalid account data.
	ErrAccountInvalidInput = errors.New("account: invalid input")
	// ErrAccountNotFound indicates the account does not exist.
	ErrAccountNotFound = errors.New("account: not found")
	// ErrAccountPermissionDenied indicates the actor may not list accounts.
	ErrAccountPermissionDenied = errors.New("account: permission denied")
)

type repositoryErrorSet struct {
	notFound    error
	conflict    error
	unavailable error
}

var (
	orderRepositoryErrors   = repositoryErrorSet{notFound: ErrOrderNotFound, conflict: ErrOrderConflict, unavailable: ErrOrderUnavailable}
	catalogRepositoryErrors = repositoryErrorSet{notFound: ErrCatalogNotFound, conflict: ErrCatalogConflict, unavailable: ErrOrderUnavailable}
	accountRepositoryErrors = repositoryErrorSet{notFound: ErrAccountNotFound, conflict: ErrOrderConflict, unavailable: ErrOrderUnavailable}
)

func mapRepositoryError(err error, set repositoryErrorSet) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", set.notFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", set.conflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", set.unavailable, err)
		}
	}

	return err
}
