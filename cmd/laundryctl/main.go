// Command laundryctl runs operator tasks against the configured storage backend:
// catalog listings, dashboard statistics, price quotes, catalog seeding and the
// cancelled-order sweep.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wahyu285/loundry/internal/platform/config"
	"github.com/wahyu285/loundry/internal/platform/observability"
	"github.com/wahyu285/loundry/internal/platform/storage"
)

const usage = `usage: laundryctl <command> [flags]

commands:
  catalog   list services, laundry items and discount tiers
  stats     print order statistics (-customer narrows to one customer)
  quote     price an order without creating it
  seed      apply a YAML catalog file (-file)
  sweep     delete cancelled orders older than the retention window
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	app := &cli{
		out:    os.Stdout,
		logger: logger.Named("laundryctl"),
		cfg:    cfg,
		clock:  time.Now,
		open: func(ctx context.Context) (storage.Backend, error) {
			return storage.Open(ctx, cfg, logger.Named("storage"), time.Now)
		},
	}
	if err := app.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

type cli struct {
	out    io.Writer
	logger *zap.Logger
	cfg    config.Config
	clock  func() time.Time
	open   func(ctx context.Context) (storage.Backend, error)
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	command, rest := args[0], args[1:]

	var handler func(context.Context, storage.Backend, []string) error
	switch command {
	case "catalog":
		handler = c.catalog
	case "stats":
		handler = c.stats
	case "quote":
		handler = c.quote
	case "seed":
		handler = c.seed
	case "sweep":
		handler = c.sweep
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	backend, err := c.open(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := backend.Close(closeCtx); err != nil {
			c.logger.Warn("storage close error", zap.Error(err))
		}
	}()
	return handler(ctx, backend, rest)
}
