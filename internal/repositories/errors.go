package repositories

import (
	"errors"
	"fmt"
)

type errorKind int

const (
	kindUnknown errorKind = iota
	kindNotFound
	kindConflict
	kindUnavailable
)

// StoreError is the RepositoryError used by the memory and SQL backends.
type StoreError struct {
	Op   string
	Err  error
	kind errorKind
}

var _ RepositoryError = (*StoreError)(nil)

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StoreError) IsNotFound() bool    { return e != nil && e.kind == kindNotFound }
func (e *StoreError) IsConflict() bool    { return e != nil && e.kind == kindConflict }
func (e *StoreError) IsUnavailable() bool { return e != nil && e.kind == kindUnavailable }

var errNotFound = errors.New("not found")

// NewNotFoundError reports a missing record.
func NewNotFoundError(op string) *StoreError {
	return &StoreError{Op: op, Err: errNotFound, kind: kindNotFound}
}

// NewConflictError reports a uniqueness or concurrency conflict.
func NewConflictError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err, kind: kindConflict}
}

// NewUnavailableError reports a backend outage.
func NewUnavailableError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err, kind: kindUnavailable}
}

// NewError wraps an uncategorised failure.
func NewError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// IsNotFound reports whether err carries the not-found category.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
