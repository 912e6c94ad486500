package main

import (
	"context"
	"errors"
	"time"

	"github.com/wahyu285/loundry/internal/platform/idempotency"
	"github.com/wahyu285/loundry/internal/platform/secrets"
	"github.com/wahyu285/loundry/internal/platform/storage"
	"github.com/wahyu285/loundry/internal/repositories"
)

func newIdempotencyStore(backend storage.Backend) idempotency.Store {
	if backend.Firestore != nil {
		return idempotency.NewFirestoreStore(backend.Firestore)
	}
	return idempotency.NewMemoryStore()
}

func newHealthChecker(backend storage.Backend, fetcher *secrets.Fetcher, secretRef string) (*repositories.HealthChecker, error) {
	probes := []repositories.Probe{{
		Name:    "storage:" + backend.Driver,
		Timeout: 2 * time.Second,
		Check:   backend.Registry.Ping,
	}}
	if fetcher != nil && secretRef != "" {
		probes = append(probes, repositories.Probe{
			Name:    "secrets",
			Timeout: 2 * time.Second,
			Check: func(ctx context.Context) error {
				value, err := fetcher.Resolve(ctx, secretRef)
				if err != nil {
					return err
				}
				if value == "" {
					return errors.New("secret resolved empty")
				}
				return nil
			},
		})
	}
	return repositories.NewHealthChecker(probes, time.Now)
}
