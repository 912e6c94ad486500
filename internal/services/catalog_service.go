package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	domain "github.com/wahyu285/loundry/internal/domain"
	"github.com/wahyu285/loundry/internal/repositories"
)

// CatalogServiceDeps bundles collaborators for catalog management.
type CatalogServiceDeps struct {
	Services    repositories.ServiceRepository
	Items       repositories.LaundryItemRepository
	Discounts   repositories.DiscountRepository
	Orders      repositories.OrderRepository
	Validator   *validator.Validate
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	services  repositories.ServiceRepository
	items     repositories.LaundryItemRepository
	discounts repositories.DiscountRepository
	orders    repositories.OrderRepository
	validate  *validator.Validate
	markdown  goldmark.Markdown
	policy    *bluemonday.Policy
	strict    *bluemonday.Policy
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewCatalogService constructs the catalog service.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Services == nil || deps.Items == nil || deps.Discounts == nil {
		return nil, errors.New("catalog service: service, item and discount repositories are required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	validate := deps.Validator
	if validate == nil {
		validate = NewValidator()
	}
	return &catalogService{
		services:  deps.Services,
		items:     deps.Items,
		discounts: deps.Discounts,
		orders:    deps.Orders,
		validate:  validate,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:    bluemonday.UGCPolicy(),
		strict:    bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *catalogService) ListServices(ctx context.Context) ([]CatalogServiceView, error) {
	services, err := s.services.List(ctx)
	if err != nil {
		return nil, mapRepositoryError(err, catalogRepositoryErrors)
	}
	views := make([]CatalogServiceView, 0, len(services))
	for _, service := range services {
		views = append(views, s.view(service))
	}
	return views, nil
}

func (s *catalogService) GetService(ctx context.Context, serviceID string) (CatalogServiceView, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return CatalogServiceView{}, fmt.Errorf("%w: service id is required", ErrCatalogInvalidInput)
	}
	service, err := s.services.FindByID(ctx, serviceID)
	if err != nil {
		return CatalogServiceView{}, mapRepositoryError(err, catalogRepositoryErrors)
	}
	return s.view(service), nil
}

func (s *catalogService) UpsertService(ctx context.Context, cmd UpsertServiceCommand) (Service, error) {
	if !cmd.Actor.Staff {
		return Service{}, fmt.Errorf("%w: staff role required", ErrCatalogPermissionDenied)
	}
	cmd.Name = s.clean(cmd.Name)
	cmd.Type = strings.ToLower(strings.TrimSpace(cmd.Type))
	cmd.Duration = strings.ToLower(strings.TrimSpace(cmd.Duration))
	if err := s.validate.Struct(cmd); err != nil {
		return Service{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	if cmd.Price.IsNegative() {
		return Service{}, fmt.Errorf("%w: price must not be negative", ErrCatalogInvalidInput)
	}

	now := s.clock()
	service := Service{
		ID:          strings.TrimSpace(cmd.ID),
		Name:        cmd.Name,
		Description: strings.TrimSpace(cmd.Description),
		Price:       cmd.Price,
		Type:        domain.ServiceType(cmd.Type),
		Duration:    domain.DurationTier(cmd.Duration),
		ImageURL:    strings.TrimSpace(cmd.ImageURL),
		UpdatedAt:   now,
	}

	if service.ID == "" {
		service.ID = s.newID()
		service.CreatedAt = now
		if err := s.services.Insert(ctx, service); err != nil {
			return Service{}, mapRepositoryError(err, catalogRepositoryErrors)
		}
		s.logger(ctx, "catalog.service.created", map[string]any{"serviceId": service.ID})
		return service, nil
	}

	existing, err := s.services.FindByID(ctx, service.ID)
	if err != nil {
		return Service{}, mapRepositoryError(err, catalogRepositoryErrors)
	}
	service.CreatedAt = existing.CreatedAt
	if err := s.services.Update(ctx, service); err != nil {
		return Service{}, mapRepositoryError(err, catalogRepositoryErrors)
	}
	s.logger(ctx, "catalog.service.updated", map[string]any{"serviceId": service.ID})
	return service, nil
}

func (s *catalogService) DeleteService(ctx context.Context, actor Actor, serviceID string) error {
	if !actor.Staff {
		return fmt.Errorf("%w: staff role required", ErrCatalogPermissionDenied)
	}
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return fmt.Errorf("%w: service id is required", ErrCatalogInvalidInput)
	}
	if s.orders != nil {
		inUse, err := s.orders.ExistsForService(ctx, serviceID)
		if err != nil {
			return mapRepositoryError(err, catalogRepositoryErrors)
		}
		if inUse {
			return fmt.Errorf("%w: service %q is referenced by orders", ErrCatalogInUse, serviceID)
		}
	}
	if err := s.services.Delete(ctx, serviceID); err != nil {
		return mapRepositoryError(err, catalogRepositoryErrors)
	}
	s.logger(ctx, "catalog.service.deleted", map[string]any{"serviceId": serviceID})
	return nil
}

func (s *catalogService) ListItems(ctx context.Context) ([]LaundryItem, error) {
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, mapRepositoryError(err, catalogRepositoryErrors)
	}
	return items, nil
}

func (s *catalogService) UpsertItem(ctx context.Context, cmd UpsertItemCommand) (LaundryItem, error) {
	if !cmd.Actor.Staff {
		return LaundryItem{}, fmt.Errorf("%w: staff role required", ErrCatalogPermissionDenied)
	}
	cmd.Name = s.clean(cmd.Name)
	if err := s.validate.Struct(cmd); err != nil {
		return LaundryItem{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	if cmd.Price.IsNegative() {
		return LaundryItem{}, fmt.Errorf("%w: price must not be negative", ErrCatalogInvalidInput)
	}

	now := s.clock()
	item := LaundryItem{
		ID:        strings.TrimSpace(cmd.ID),
		Name:      cmd.Name,
		Price:     cmd.Price,
		ImageURL:  strings.TrimSpace(cmd.ImageURL),
		UpdatedAt: now,
	}
	if item.ID == "" {
		item.ID = s.newID()
		item.CreatedAt = now
		if err := s.items.Insert(ctx, item); err != nil {
			return LaundryItem{}, mapRepositoryError(err, catalogRepositoryErrors)
		}
		return item, nil
	}

	existing, err := s.items.FindByID(ctx, item.ID)
	if err != nil {
		return LaundryItem{}, mapRepositoryError(err, catalogRepositoryErrors)
	}
	item.CreatedAt = existing.CreatedAt
	if err := s.items.Update(ctx, item); err != nil {
		return LaundryItem{}, mapRepositoryError(err, catalogRepositoryErrors)
	}
	return item, nil
}

// DeleteItem removes a catalog item. Orders keep their item snapshots.
func (s *catalogService) DeleteItem(ctx context.Context, actor Actor, itemID string) error {
	if !actor.Staff {
		return fmt.Errorf("%w: staff role required", ErrCatalogPermissionDenied)
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return fmt.Errorf("%w: item id is required", ErrCatalogInvalidInput)
	}
	if err := s.items.Delete(ctx, itemID); err != nil {
		return mapRepositoryError(err, catalogRepositoryErrors)
	}
	return nil
}

func (s *catalogService) ListDiscounts(ctx context.Context, actor Actor) ([]Discount, error) {
	if !actor.Staff {
		return nil, fmt.Errorf("%w: staff role required", ErrCatalogPermissionDenied)
	}
	discounts, err := s.discounts.List(ctx, false)
	if err != nil {
		return nil, mapRepositoryError(err, catalogRepositoryErrors)
	}
	return discounts, nil
}

func (s *catalogService) UpsertDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error) {
	if !cmd.Actor.Staff {
		return Discount{}, fmt.Errorf("%w: staff role required", ErrCatalogPermissionDenied)
	}
	cmd.Name = s.clean(cmd.Name)
	if err := s.validate.Struct(cmd); err != nil {
		return Discount{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	if cmd.Percent.IsNegative() || cmd.Percent.GreaterThan(decimal.NewFromInt(100)) {
		return Discount{}, fmt.Errorf("%w: percent must be between 0 and 100", ErrCatalogInvalidInput)
	}

	now := s.clock()
	discount := Discount{
		ID:        strings.TrimSpace(cmd.ID),
		Name:      cmd.Name,
		MinOrders: cmd.MinOrders,
		Percent:   cmd.Percent,
		Active:    cmd.Active,
		UpdatedAt: now,
	}
	if discount.ID == "" {
		discount.ID = s.newID()
		discount.CreatedAt = now
		if err := s.discounts.Insert(ctx, discount); err != nil {
			return Discount{}, mapRepositoryError(err, catalogRepositoryErrors)
		}
		return discount, nil
	}

	existing, err := s.discounts.FindByID(ctx, discount.ID)
	if err != nil {
		return Discount{}, mapRepositoryError(err, catalogRepositoryErrors)
	}
	discount.CreatedAt = existing.CreatedAt
	if err := s.discounts.Update(ctx, discount); err != nil {
		return Discount{}, mapRepositoryError(err, catalogRepositoryErrors)
	}
	return discount, nil
}

func (s *catalogService) DeleteDiscount(ctx context.Context, actor Actor, discountID string) error {
	if !actor.Staff {
		return fmt.Errorf("%w: staff role required", ErrCatalogPermissionDenied)
	}
	discountID = strings.TrimSpace(discountID)
	if discountID == "" {
		return fmt.Errorf("%w: discount id is required", ErrCatalogInvalidInput)
	}
	if err := s.discounts.Delete(ctx, discountID); err != nil {
		return mapRepositoryError(err, catalogRepositoryErrors)
	}
	return nil
}

func (s *catalogService) view(service Service) CatalogServiceView {
	return CatalogServiceView{Service: service, DescriptionHTML: s.renderDescription(service.Description)}
}

// renderDescription converts markdown to HTML and strips anything outside the UGC policy.
func (s *catalogService) renderDescription(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(description), &buf); err != nil {
		return s.strict.Sanitize(description)
	}
	return strings.TrimSpace(s.policy.Sanitize(buf.String()))
}

func (s *catalogService) clean(value string) string {
	return strings.TrimSpace(s.strict.Sanitize(value))
}
