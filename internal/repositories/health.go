package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/wahyu285/loundry/internal/domain"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// Probe checks a single downstream dependency.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// HealthChecker runs dependency probes concurrently.
type HealthChecker struct {
	probes  []Probe
	timeout time.Duration
	now     func() time.Time
}

// NewHealthChecker validates the probe set.
func NewHealthChecker(probes []Probe, clock func() time.Time) (*HealthChecker, error) {
	if len(probes) == 0 {
		return nil, errors.New("health checker: at least one probe is required")
	}
	for _, probe := range probes {
		if strings.TrimSpace(probe.Name) == "" {
			return nil, errors.New("health checker: probe missing name")
		}
		if probe.Check == nil {
			return nil, fmt.Errorf("health checker: probe %s missing check", probe.Name)
		}
	}
	if clock == nil {
		clock = time.Now
	}
	return &HealthChecker{
		probes:  append([]Probe(nil), probes...),
		timeout: defaultProbeTimeout,
		now:     clock,
	}, nil
}

// Collect runs every probe and folds the results into one report.
func (h *HealthChecker) Collect(ctx context.Context) domain.HealthReport {
	results := make(map[string]domain.HealthCheck, len(h.probes))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, probe := range h.probes {
		wg.Add(1)
		go func(probe Probe) {
			defer wg.Done()
			result := h.run(ctx, probe)
			mu.Lock()
			results[probe.Name] = result
			mu.Unlock()
		}(probe)
	}
	wg.Wait()

	status := domain.HealthStatusOK
	for _, result := range results {
		switch result.Status {
		case domain.HealthStatusError:
			status = domain.HealthStatusError
		case domain.HealthStatusDegraded:
			if status == domain.HealthStatusOK {
				status = domain.HealthStatusDegraded
			}
		}
	}

	return domain.HealthReport{
		Status:      status,
		Checks:      results,
		GeneratedAt: h.now().UTC(),
	}
}

func (h *HealthChecker) run(ctx context.Context, probe Probe) domain.HealthCheck {
	timeout := probe.Timeout
	if timeout <= 0 {
		timeout = h.timeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := h.now()
	err := probe.Check(probeCtx)
	end := h.now()

	result := domain.HealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end.UTC(),
	}
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		result.Status = domain.HealthStatusError
		result.Detail = "timeout"
	case errors.Is(err, context.Canceled):
		result.Status = domain.HealthStatusError
		result.Detail = "cancelled"
	default:
		result.Status = domain.HealthStatusDegraded
		result.Detail = err.Error()
	}
	return result
}
