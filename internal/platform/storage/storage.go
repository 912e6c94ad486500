// Package storage opens the repository registry selected by configuration.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wahyu285/loundry/internal/platform/config"
	pfirestore "github.com/wahyu285/loundry/internal/platform/firestore"
	"github.com/wahyu285/loundry/internal/repositories"
	firestorerepo "github.com/wahyu285/loundry/internal/repositories/firestore"
	"github.com/wahyu285/loundry/internal/repositories/memory"
	"github.com/wahyu285/loundry/internal/repositories/sqlstore"
)

// Backend bundles the registry with the driver handles other components need.
type Backend struct {
	Driver   string
	Registry repositories.Registry
	// Firestore is set only for the firestore driver.
	Firestore *pfirestore.Provider
}

// Close releases the registry and its underlying connections.
func (b Backend) Close(ctx context.Context) error {
	if b.Registry == nil {
		return nil
	}
	return b.Registry.Close(ctx)
}

// Open builds the registry for cfg.Storage.Driver.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger, clock func() time.Time) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	switch cfg.Storage.Driver {
	case config.StorageDriverFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		registry, err := firestorerepo.NewRegistry(provider, clock)
		if err != nil {
			_ = provider.Close(ctx)
			return Backend{}, err
		}
		logger.Info("storage: firestore", zap.String("project", cfg.Firestore.ProjectID))
		return Backend{Driver: cfg.Storage.Driver, Registry: registry, Firestore: provider}, nil
	case config.StorageDriverMySQL:
		db, err := sqlstore.Open(ctx, cfg.MySQL)
		if err != nil {
			return Backend{}, err
		}
		registry, err := sqlstore.NewRegistry(db, clock)
		if err != nil {
			return Backend{}, err
		}
		logger.Info("storage: mysql", zap.String("host", cfg.MySQL.Host), zap.String("database", cfg.MySQL.Database))
		return Backend{Driver: cfg.Storage.Driver, Registry: registry}, nil
	case config.StorageDriverMemory:
		logger.Warn("storage: in-memory registry; data is lost on restart")
		return Backend{Driver: cfg.Storage.Driver, Registry: memory.NewRegistry(clock)}, nil
	default:
		return Backend{}, fmt.Errorf("storage: unsupported driver %q", cfg.Storage.Driver)
	}
}
