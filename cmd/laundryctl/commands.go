package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wahyu285/loundry/internal/platform/observability"
	"github.com/wahyu285/loundry/internal/platform/storage"
	"github.com/wahyu285/loundry/internal/seed"
	"github.com/wahyu285/loundry/internal/services"
)

var operator = services.Actor{ID: "laundryctl", Staff: true}

var rupiah = message.NewPrinter(language.Indonesian)

func formatRupiah(amount decimal.Decimal) string {
	return "Rp" + rupiah.Sprintf("%d", amount.Round(0).IntPart())
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func (c *cli) catalog(ctx context.Context, backend storage.Backend, args []string) error {
	fs := newFlagSet("catalog", c.out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	registry := backend.Registry
	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Services:  registry.Services(),
		Items:     registry.Items(),
		Discounts: registry.Discounts(),
		Orders:    registry.Orders(),
		Clock:     c.clock,
	})
	if err != nil {
		return err
	}

	svcs, err := catalog.ListServices(ctx)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Service", "Type", "Duration", "Price")
	for _, svc := range svcs {
		if err := table.Append([]string{svc.ID, svc.Name, string(svc.Type), string(svc.Duration), formatRupiah(svc.Price)}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	items, err := catalog.ListItems(ctx)
	if err != nil {
		return err
	}
	table = tablewriter.NewWriter(c.out)
	table.Header("ID", "Item", "Price")
	for _, item := range items {
		if err := table.Append([]string{item.ID, item.Name, formatRupiah(item.Price)}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	discounts, err := catalog.ListDiscounts(ctx, operator)
	if err != nil {
		return err
	}
	table = tablewriter.NewWriter(c.out)
	table.Header("ID", "Discount", "Min Orders", "Percent", "Active")
	for _, discount := range discounts {
		row := []string{discount.ID, discount.Name, strconv.Itoa(discount.MinOrders), discount.Percent.String() + "%", strconv.FormatBool(discount.Active)}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func (c *cli) stats(ctx context.Context, backend storage.Backend, args []string) error {
	fs := newFlagSet("stats", c.out)
	customer := fs.String("customer", "", "limit statistics to one customer id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, err := services.NewOrderStatsService(services.OrderStatsServiceDeps{
		Orders:   backend.Registry.Orders(),
		Accounts: backend.Registry.Accounts(),
		Services: backend.Registry.Services(),
		Clock:    c.clock,
		Location: c.cfg.Orders.Location(),
	})
	if err != nil {
		return err
	}
	stats, err := svc.OrderStats(ctx, operator, *customer)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Total", "Delivered", "Pending", "Cancelled", "Paid", "Paid Revenue", "Today")
	if err := table.Append([]string{
		strconv.Itoa(stats.Total),
		strconv.Itoa(stats.Delivered),
		strconv.Itoa(stats.Pending),
		strconv.Itoa(stats.Cancelled),
		strconv.Itoa(stats.PaidTransactions),
		formatRupiah(stats.PaidRevenue),
		formatRupiah(stats.TodayRevenue),
	}); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if strings.TrimSpace(*customer) == "" {
		fmt.Fprintf(c.out, "accounts: %d, couriers: %d, services: %d\n", stats.TotalAccounts, stats.TotalCouriers, stats.TotalServices)
	}

	table = tablewriter.NewWriter(c.out)
	table.Header("Day", "Income")
	for _, day := range stats.DailyRevenue {
		if err := table.Append([]string{day.Date.Format("02 Jan"), formatRupiah(day.Amount)}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	if len(stats.FrequentServices) == 0 {
		return nil
	}

	table = tablewriter.NewWriter(c.out)
	table.Header("Service", "Orders")
	for _, freq := range stats.FrequentServices {
		if err := table.Append([]string{freq.ServiceName, strconv.Itoa(freq.Orders)}); err != nil {
			return err
		}
	}
	return table.Render()
}

func (c *cli) quote(ctx context.Context, backend storage.Backend, args []string) error {
	fs := newFlagSet("quote", c.out)
	serviceID := fs.String("service", "", "service id (required)")
	weight := fs.String("weight", "", "weight in kilograms for per_kilo services")
	itemType := fs.String("item-type", "", "catalog item id for single-type per_item orders")
	quantity := fs.Int("qty", 0, "quantity for -item-type")
	items := fs.String("items", "", "itemized lines, e.g. \"Kemeja=2,Celana=1\"")
	customer := fs.String("customer", "", "customer id used to resolve the loyalty discount")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*serviceID) == "" {
		return fmt.Errorf("%w: -service is required", errUsage)
	}

	registry := backend.Registry
	service, err := registry.Services().FindByID(ctx, strings.TrimSpace(*serviceID))
	if err != nil {
		return fmt.Errorf("load service %s: %w", *serviceID, err)
	}

	input := services.PricingInput{
		Service:    service,
		ItemTypeID: strings.TrimSpace(*itemType),
		Quantity:   *quantity,
	}
	if raw := strings.TrimSpace(*weight); raw != "" {
		w, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%w: invalid -weight %q", errUsage, raw)
		}
		input.Weight = &w
	}
	if input.Items, err = parseItemLines(*items); err != nil {
		return err
	}

	calculator := services.NewPricingCalculator(registry.Items(), services.UnknownItemPolicy(c.cfg.Orders.UnknownItemPolicy))
	breakdown, err := calculator.Calculate(ctx, input)
	if err != nil {
		return err
	}
	if id := strings.TrimSpace(*customer); id != "" {
		resolver := services.NewDiscountResolver(registry.Discounts(), registry.Orders(), services.DiscountCountPolicy(c.cfg.Orders.DiscountCountPolicy))
		tier, count, err := resolver.Resolve(ctx, id)
		if err != nil {
			return err
		}
		c.logger.Debug("discount resolved", zap.String("customer", observability.SanitizeUserID(id)), zap.Int("orders", count))
		breakdown = services.ApplyDiscount(breakdown, tier)
	} else {
		breakdown = services.ApplyDiscount(breakdown, nil)
	}

	if len(breakdown.Items) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Item", "Qty", "Unit Price")
		for _, line := range breakdown.Items {
			if err := table.Append([]string{line.Name, strconv.Itoa(line.Quantity), formatRupiah(line.UnitPrice)}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	discount := "-"
	if breakdown.DiscountPercent != nil {
		discount = fmt.Sprintf("%s%% (%s)", breakdown.DiscountPercent.String(), breakdown.DiscountID)
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Service", "Subtotal", "Discount", "Discount Amount", "Total")
	if err := table.Append([]string{
		service.Name,
		formatRupiah(breakdown.Subtotal),
		discount,
		formatRupiah(breakdown.DiscountAmount),
		formatRupiah(breakdown.Total),
	}); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if len(breakdown.SkippedItems) > 0 {
		fmt.Fprintf(c.out, "skipped unknown items: %s\n", strings.Join(breakdown.SkippedItems, ", "))
	}
	return nil
}

// parseItemLines reads "name=qty" pairs separated by commas.
func parseItemLines(raw string) ([]services.OrderItemInput, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var lines []services.OrderItemInput
	for _, part := range strings.Split(raw, ",") {
		name, qty, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: invalid item line %q", errUsage, part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(qty))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: invalid quantity in %q", errUsage, part)
		}
		lines = append(lines, services.OrderItemInput{Name: name, Quantity: n})
	}
	return lines, nil
}

func (c *cli) seed(ctx context.Context, backend storage.Backend, args []string) error {
	fs := newFlagSet("seed", c.out)
	path := fs.String("file", c.cfg.Seed.CatalogPath, "YAML catalog file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*path) == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}
	catalog, err := seed.LoadCatalog(*path)
	if err != nil {
		return err
	}
	applier := seed.NewApplier(seed.TargetFromRegistry(backend.Registry), seed.WithLogger(c.logger.Named("seed")), seed.WithClock(c.clock))
	result, err := applier.Apply(ctx, catalog)
	if err != nil {
		if errors.Is(err, seed.ErrInvalidCatalog) {
			return fmt.Errorf("%s: %w", *path, err)
		}
		return err
	}
	fmt.Fprintf(c.out, "catalog applied: %d created, %d updated\n", result.Created, result.Updated)
	return nil
}

func (c *cli) sweep(ctx context.Context, backend storage.Backend, args []string) error {
	fs := newFlagSet("sweep", c.out)
	retention := fs.Duration("retention", c.cfg.Orders.CancelledRetention, "age after which cancelled orders are deleted")
	batch := fs.Int("batch", c.cfg.Orders.SweepBatchSize, "maximum orders deleted per run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, err := services.NewMaintenanceService(services.MaintenanceServiceDeps{
		Orders:             backend.Registry.Orders(),
		CancelledRetention: *retention,
		BatchSize:          *batch,
		Clock:              c.clock,
		Logger:             observability.EventLogger(c.logger.Named("maintenance")),
	})
	if err != nil {
		return err
	}
	result, err := svc.SweepCancelledOrders(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "removed %d cancelled orders created before %s\n", result.Removed, result.Cutoff.Format(time.RFC3339))
	return nil
}
