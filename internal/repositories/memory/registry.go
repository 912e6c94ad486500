// Package memory keeps every repository in process memory for local development and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wahyu285/loundry/internal/repositories"
)

// Registry bundles the in-memory repositories.
type Registry struct {
	orders    *OrderRepository
	services  *ServiceRepository
	items     *LaundryItemRepository
	discounts *DiscountRepository
	accounts  *AccountRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds an empty in-memory registry. A nil clock uses time.Now.
func NewRegistry(clock func() time.Time) *Registry {
	return &Registry{
		orders:    NewOrderRepository(clock),
		services:  NewServiceRepository(),
		items:     NewLaundryItemRepository(),
		discounts: NewDiscountRepository(),
		accounts:  NewAccountRepository(),
	}
}

func (r *Registry) Orders() repositories.OrderRepository       { return r.orders }
func (r *Registry) Services() repositories.ServiceRepository   { return r.services }
func (r *Registry) Items() repositories.LaundryItemRepository  { return r.items }
func (r *Registry) Discounts() repositories.DiscountRepository { return r.discounts }
func (r *Registry) Accounts() repositories.AccountRepository   { return r.accounts }

// Ping always succeeds.
func (r *Registry) Ping(context.Context) error { return nil }

// Close is a no-op.
func (r *Registry) Close(context.Context) error { return nil }

var errDuplicateID = errors.New("duplicate id")

// keyedStore is a string-keyed record map shared by the catalog repositories.
type keyedStore[T any] struct {
	mu      sync.RWMutex
	records map[string]T
	idOf    func(T) string
	entity  string
}

func newKeyedStore[T any](entity string, idOf func(T) string) *keyedStore[T] {
	return &keyedStore[T]{records: make(map[string]T), idOf: idOf, entity: entity}
}

func (s *keyedStore[T]) insert(record T) error {
	id := strings.TrimSpace(s.idOf(record))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; ok {
		return repositories.NewConflictError(s.entity+".insert", errDuplicateID)
	}
	s.records[id] = record
	return nil
}

func (s *keyedStore[T]) update(record T) error {
	id := strings.TrimSpace(s.idOf(record))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return repositories.NewNotFoundError(s.entity + ".update")
	}
	s.records[id] = record
	return nil
}

func (s *keyedStore[T]) upsert(record T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[strings.TrimSpace(s.idOf(record))] = record
}

func (s *keyedStore[T]) remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return repositories.NewNotFoundError(s.entity + ".delete")
	}
	delete(s.records, id)
	return nil
}

func (s *keyedStore[T]) get(id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		var zero T
		return zero, repositories.NewNotFoundError(s.entity + ".get")
	}
	return record, nil
}

// all returns records ordered by id.
func (s *keyedStore[T]) all(keep func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.records))
	for _, record := range s.records {
		if keep == nil || keep(record) {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.idOf(out[i]) < s.idOf(out[j]) })
	return out
}
