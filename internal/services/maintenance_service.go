package services

import (
	"context"
	"errors"
	"time"

	"github.com/wahyu285/loundry/internal/repositories"
)

const (
	defaultCancelledRetention = 48 * time.Hour
	defaultSweepBatchSize     = 200
	maxSweepBatches           = 50
)

// MaintenanceServiceDeps bundles collaborators for housekeeping jobs.
type MaintenanceServiceDeps struct {
	Orders             repositories.OrderRepository
	CancelledRetention time.Duration
	BatchSize          int
	Clock              func() time.Time
	Logger             func(ctx context.Context, event string, fields map[string]any)
}

type maintenanceService struct {
	orders    repositories.OrderRepository
	retention time.Duration
	batchSize int
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewMaintenanceService constructs the housekeeping service.
func NewMaintenanceService(deps MaintenanceServiceDeps) (MaintenanceService, error) {
	if deps.Orders == nil {
		return nil, errors.New("maintenance service: order repository is required")
	}
	retention := deps.CancelledRetention
	if retention <= 0 {
		retention = defaultCancelledRetention
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &maintenanceService{
		orders:    deps.Orders,
		retention: retention,
		batchSize: batch,
		clock:     clock,
		logger:    logger,
	}, nil
}

// SweepCancelledOrders deletes cancelled orders created before now minus the retention,
// batch by batch until a short batch signals the backlog is drained.
func (s *maintenanceService) SweepCancelledOrders(ctx context.Context) (SweepResult, error) {
	cutoff := s.clock().UTC().Add(-s.retention)
	result := SweepResult{Cutoff: cutoff}

	for i := 0; i < maxSweepBatches; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		removed, err := s.orders.DeleteCancelledBefore(ctx, cutoff, s.batchSize)
		result.Removed += removed
		if err != nil {
			s.logger(ctx, "order.sweep.failed", map[string]any{
				"removed": result.Removed,
				"error":   err.Error(),
			})
			return result, mapRepositoryError(err, orderRepositoryErrors)
		}
		if removed < s.batchSize {
			break
		}
	}

	s.logger(ctx, "order.sweep.completed", map[string]any{
		"removed": result.Removed,
		"cutoff":  cutoff,
	})
	return result, nil
}
