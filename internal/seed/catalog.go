// Package seed loads the laundry catalog (services, items and discount tiers)
// from a YAML document and writes it into the repositories.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories"
)

// ErrInvalidCatalog is returned when the document fails validation.
var ErrInvalidCatalog = errors.New("seed: invalid catalog")

// Catalog is the parsed seed document.
type Catalog struct {
	Services  []ServiceEntry  `yaml:"services"`
	Items     []ItemEntry     `yaml:"items"`
	Discounts []DiscountEntry `yaml:"discounts"`
}

// ServiceEntry seeds a priced service. Price is a decimal string.
type ServiceEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Type        string `yaml:"type"`
	Duration    string `yaml:"duration"`
	ImageURL    string `yaml:"image_url"`
}

// ItemEntry seeds a per-item catalog entry.
type ItemEntry struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	ImageURL string `yaml:"image_url"`
}

// DiscountEntry seeds a loyalty tier. Active defaults to true.
type DiscountEntry struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	MinOrders int    `yaml:"min_orders"`
	Percent   string `yaml:"percent"`
	Active    *bool  `yaml:"active"`
}

// LoadCatalog reads and parses the YAML file at path.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return Catalog{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a seed document. Unknown keys are rejected so typos do
// not silently drop entries.
func ParseCatalog(data []byte) (Catalog, error) {
	var catalog Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil {
		if errors.Is(err, io.EOF) {
			return Catalog{}, nil
		}
		return Catalog{}, fmt.Errorf("seed: parse catalog: %w", err)
	}
	return catalog, nil
}

// Target is the set of repositories the catalog is written into.
type Target struct {
	Services  repositories.ServiceRepository
	Items     repositories.LaundryItemRepository
	Discounts repositories.DiscountRepository
}

// TargetFromRegistry selects the catalog repositories of a registry.
func TargetFromRegistry(reg repositories.Registry) Target {
	return Target{Services: reg.Services(), Items: reg.Items(), Discounts: reg.Discounts()}
}

// Result counts what Apply wrote.
type Result struct {
	Created int
	Updated int
}

// Applier writes seed catalogs into repositories.
type Applier struct {
	target Target
	logger *zap.Logger
	clock  func() time.Time
}

// Option customises an Applier.
type Option func(*Applier)

// WithLogger sets the logger used for per-entry diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Applier) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(a *Applier) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// NewApplier constructs an Applier for target.
func NewApplier(target Target, opts ...Option) *Applier {
	a := &Applier{
		target: target,
		logger: zap.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Apply validates the whole catalog first, then upserts every entry by id.
// Existing entries keep their CreatedAt.
func (a *Applier) Apply(ctx context.Context, catalog Catalog) (Result, error) {
	if a.target.Services == nil || a.target.Items == nil || a.target.Discounts == nil {
		return Result{}, errors.New("seed: catalog repositories are required")
	}
	svcs, items, discounts, err := catalog.normalise()
	if err != nil {
		return Result{}, err
	}

	now := a.clock().UTC()
	var result Result
	for _, svc := range svcs {
		created, err := upsert(ctx, now, svc.ID,
			func(ctx context.Context) (time.Time, error) {
				existing, err := a.target.Services.FindByID(ctx, svc.ID)
				return existing.CreatedAt, err
			},
			func(ctx context.Context, createdAt time.Time) error {
				svc.CreatedAt, svc.UpdatedAt = createdAt, now
				return a.target.Services.Insert(ctx, svc)
			},
			func(ctx context.Context, createdAt time.Time) error {
				svc.CreatedAt, svc.UpdatedAt = createdAt, now
				return a.target.Services.Update(ctx, svc)
			},
		)
		if err != nil {
			return result, fmt.Errorf("seed: service %s: %w", svc.ID, err)
		}
		result.count(created)
		a.logger.Debug("seeded service", zap.String("serviceId", svc.ID), zap.Bool("created", created))
	}
	for _, item := range items {
		created, err := upsert(ctx, now, item.ID,
			func(ctx context.Context) (time.Time, error) {
				existing, err := a.target.Items.FindByID(ctx, item.ID)
				return existing.CreatedAt, err
			},
			func(ctx context.Context, createdAt time.Time) error {
				item.CreatedAt, item.UpdatedAt = createdAt, now
				return a.target.Items.Insert(ctx, item)
			},
			func(ctx context.Context, createdAt time.Time) error {
				item.CreatedAt, item.UpdatedAt = createdAt, now
				return a.target.Items.Update(ctx, item)
			},
		)
		if err != nil {
			return result, fmt.Errorf("seed: item %s: %w", item.ID, err)
		}
		result.count(created)
		a.logger.Debug("seeded item", zap.String("itemId", item.ID), zap.Bool("created", created))
	}
	for _, discount := range discounts {
		created, err := upsert(ctx, now, discount.ID,
			func(ctx context.Context) (time.Time, error) {
				existing, err := a.target.Discounts.FindByID(ctx, discount.ID)
				return existing.CreatedAt, err
			},
			func(ctx context.Context, createdAt time.Time) error {
				discount.CreatedAt, discount.UpdatedAt = createdAt, now
				return a.target.Discounts.Insert(ctx, discount)
			},
			func(ctx context.Context, createdAt time.Time) error {
				discount.CreatedAt, discount.UpdatedAt = createdAt, now
				return a.target.Discounts.Update(ctx, discount)
			},
		)
		if err != nil {
			return result, fmt.Errorf("seed: discount %s: %w", discount.ID, err)
		}
		result.count(created)
		a.logger.Debug("seeded discount", zap.String("discountId", discount.ID), zap.Bool("created", created))
	}

	a.logger.Info("catalog seed applied",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
	)
	return result, nil
}

func (r *Result) count(created bool) {
	if created {
		r.Created++
		return
	}
	r.Updated++
}

func upsert(
	ctx context.Context,
	now time.Time,
	id string,
	find func(context.Context) (time.Time, error),
	insert func(context.Context, time.Time) error,
	update func(context.Context, time.Time) error,
) (bool, error) {
	createdAt, err := find(ctx)
	switch {
	case repositories.IsNotFound(err):
		return true, insert(ctx, now)
	case err != nil:
		return false, err
	}
	if createdAt.IsZero() {
		createdAt = now
	}
	return false, update(ctx, createdAt)
}

func (c Catalog) normalise() ([]domain.Service, []domain.LaundryItem, []domain.Discount, error) {
	var problems []string
	seen := map[string]struct{}{}
	claim := func(kind, id string) {
		key := kind + "/" + id
		if _, dup := seen[key]; dup {
			problems = append(problems, fmt.Sprintf("%s %q declared twice", kind, id))
		}
		seen[key] = struct{}{}
	}

	svcs := make([]domain.Service, 0, len(c.Services))
	for i, entry := range c.Services {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			problems = append(problems, fmt.Sprintf("services[%d]: id is required", i))
			continue
		}
		claim("service", id)
		price, err := parseAmount(entry.Price)
		if err != nil {
			problems = append(problems, fmt.Sprintf("service %s: %v", id, err))
		}
		svc := domain.Service{
			ID:          id,
			Name:        strings.TrimSpace(entry.Name),
			Description: strings.TrimSpace(entry.Description),
			Price:       price,
			Type:        domain.ServiceType(strings.ToLower(strings.TrimSpace(entry.Type))),
			Duration:    domain.DurationTier(strings.ToLower(strings.TrimSpace(entry.Duration))),
			ImageURL:    strings.TrimSpace(entry.ImageURL),
		}
		if svc.Name == "" {
			problems = append(problems, fmt.Sprintf("service %s: name is required", id))
		}
		if !svc.Type.Valid() {
			problems = append(problems, fmt.Sprintf("service %s: unsupported type %q", id, entry.Type))
		}
		if !svc.Duration.Valid() {
			problems = append(problems, fmt.Sprintf("service %s: unsupported duration %q", id, entry.Duration))
		}
		svcs = append(svcs, svc)
	}

	items := make([]domain.LaundryItem, 0, len(c.Items))
	for i, entry := range c.Items {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			problems = append(problems, fmt.Sprintf("items[%d]: id is required", i))
			continue
		}
		claim("item", id)
		price, err := parseAmount(entry.Price)
		if err != nil {
			problems = append(problems, fmt.Sprintf("item %s: %v", id, err))
		}
		item := domain.LaundryItem{
			ID:       id,
			Name:     strings.TrimSpace(entry.Name),
			Price:    price,
			ImageURL: strings.TrimSpace(entry.ImageURL),
		}
		if item.Name == "" {
			problems = append(problems, fmt.Sprintf("item %s: name is required", id))
		}
		items = append(items, item)
	}

	discounts := make([]domain.Discount, 0, len(c.Discounts))
	for i, entry := range c.Discounts {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			problems = append(problems, fmt.Sprintf("discounts[%d]: id is required", i))
			continue
		}
		claim("discount", id)
		percent, err := parseAmount(entry.Percent)
		if err != nil {
			problems = append(problems, fmt.Sprintf("discount %s: %v", id, err))
		} else if percent.GreaterThan(decimal.NewFromInt(100)) {
			problems = append(problems, fmt.Sprintf("discount %s: percent must not exceed 100", id))
		}
		if entry.MinOrders < 0 {
			problems = append(problems, fmt.Sprintf("discount %s: min_orders must not be negative", id))
		}
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		discounts = append(discounts, domain.Discount{
			ID:        id,
			Name:      strings.TrimSpace(entry.Name),
			MinOrders: entry.MinOrders,
			Percent:   percent,
			Active:    active,
		})
	}

	if len(problems) > 0 {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(problems, "; "))
	}
	return svcs, items, discounts, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, errors.New("amount is required")
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %q must not be negative", raw)
	}
	return value, nil
}
