//go:build integration

package firestore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/wahyu285/loundry/internal/domain"
	pconfig "github.com/wahyu285/loundry/internal/platform/config"
	pfirestore "github.com/wahyu285/loundry/internal/platform/firestore"
	"github.com/wahyu285/loundry/internal/repositories"
)

func newEmulatorRegistry(t *testing.T) *Registry {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    fmt.Sprintf("loundry-test-%d", time.Now().UnixNano()),
		EmulatorHost: host,
	})
	registry, err := NewRegistry(provider, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { _ = registry.Close(context.Background()) })
	return registry
}

func TestOrderRepositoryIntegration(t *testing.T) {
	registry := newEmulatorRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	orders := registry.Orders()

	const workers = 8
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			created, err := orders.Insert(ctx, domain.Order{
				CustomerID:    "cust-1",
				ServiceID:     "svc_kilo",
				PriceTotal:    decimal.NewFromInt(50000),
				OrderStatus:   domain.OrderStatusPending,
				PaymentStatus: domain.PaymentStatusUnpaid,
			})
			if err != nil {
				t.Errorf("insert: %v", err)
				return
			}
			ids[i] = created.ID
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, id := range ids {
		if id == 0 || seen[id] {
			t.Fatalf("expected unique ids, got %v", ids)
		}
		seen[id] = true
	}

	if n, err := orders.CountUnnotified(ctx, "cust-1"); err != nil || n != workers {
		t.Fatalf("expected %d unnotified, got %d (%v)", workers, n, err)
	}
	if n, err := orders.MarkNotified(ctx, "cust-1"); err != nil || n != workers {
		t.Fatalf("expected %d marked, got %d (%v)", workers, n, err)
	}

	updated, err := orders.Mutate(ctx, ids[0], func(order *domain.Order) error {
		order.OrderStatus = domain.OrderStatusCancelled
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if updated.NotifiedCustomer {
		t.Fatalf("status change must reset the notification flag")
	}

	unchanged, err := orders.Mutate(ctx, ids[1], func(*domain.Order) error { return repositories.ErrNoChange })
	if err != nil || !unchanged.NotifiedCustomer {
		t.Fatalf("expected untouched order, got %+v (%v)", unchanged, err)
	}

	if _, err := orders.FindByID(ctx, 99999); !repositories.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	removed, err := orders.DeleteCancelledBefore(ctx, time.Now().Add(time.Hour), 10)
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 removed, got %d (%v)", removed, err)
	}
}
