package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/wahyu285/loundry/internal/handlers"
	"github.com/wahyu285/loundry/internal/payments"
	"github.com/wahyu285/loundry/internal/platform/auth"
	"github.com/wahyu285/loundry/internal/platform/config"
	"github.com/wahyu285/loundry/internal/platform/idempotency"
	"github.com/wahyu285/loundry/internal/platform/jobs"
	"github.com/wahyu285/loundry/internal/platform/observability"
	"github.com/wahyu285/loundry/internal/platform/secrets"
	"github.com/wahyu285/loundry/internal/platform/storage"
	"github.com/wahyu285/loundry/internal/repositories"
	"github.com/wahyu285/loundry/internal/seed"
	"github.com/wahyu285/loundry/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	logger = logger.With(zap.String("environment", cfg.Security.Environment))

	backend, err := storage.Open(ctx, cfg, logger.Named("storage"), time.Now)
	if err != nil {
		logger.Fatal("failed to initialise storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := backend.Close(closeCtx); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()
	registry := backend.Registry

	if path := strings.TrimSpace(cfg.Seed.CatalogPath); path != "" {
		if err := applyCatalogSeed(ctx, registry, path, logger.Named("seed")); err != nil {
			logger.Fatal("failed to apply catalog seed", zap.String("path", path), zap.Error(err))
		}
	}

	paymentsLogger := logger.Named("payments")
	paymentManager, midtransVerifier, stripeProvider, err := buildPayments(cfg, observability.EventLogger(paymentsLogger))
	if err != nil {
		logger.Fatal("failed to initialise payment gateways", zap.Error(err))
	}
	if paymentManager == nil {
		paymentsLogger.Warn("no payment gateway configured; online orders will be created without a payment session")
	}

	var events services.OrderEventPublisher
	if topicName := strings.TrimSpace(cfg.PubSub.EventsTopic); topicName != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, firebaseClientOptions(cfg)...)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		publisher, err := jobs.NewPubSubOrderEventPublisher(pubsubClient.Topic(topicName))
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		defer publisher.Stop()
		events = publisher
	}

	location := cfg.Orders.Location()
	orderDeps := services.OrderServiceDeps{
		Orders:              registry.Orders(),
		Services:            registry.Services(),
		Items:               registry.Items(),
		Discounts:           registry.Discounts(),
		Accounts:            registry.Accounts(),
		UnknownItemPolicy:   services.UnknownItemPolicy(cfg.Orders.UnknownItemPolicy),
		DiscountCountPolicy: services.DiscountCountPolicy(cfg.Orders.DiscountCountPolicy),
		FinishURL:           cfg.Payments.Midtrans.FinishURL,
		Clock:               time.Now,
		Events:              events,
		Logger:              observability.EventLogger(logger.Named("orders")),
	}
	if paymentManager != nil {
		orderDeps.Payments = paymentManager
	}
	orderService, err := services.NewOrderService(orderDeps)
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	statsService, err := services.NewOrderStatsService(services.OrderStatsServiceDeps{
		Orders:   registry.Orders(),
		Accounts: registry.Accounts(),
		Services: registry.Services(),
		Clock:    time.Now,
		Location: location,
	})
	if err != nil {
		logger.Fatal("failed to initialise order stats service", zap.Error(err))
	}

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders: registry.Orders(),
		Clock:  time.Now,
		Events: events,
		Logger: observability.EventLogger(paymentsLogger),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}

	notificationService, err := services.NewNotificationService(services.NotificationServiceDeps{
		Orders: registry.Orders(),
		Logger: observability.EventLogger(logger.Named("notifications")),
	})
	if err != nil {
		logger.Fatal("failed to initialise notification service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Services:  registry.Services(),
		Items:     registry.Items(),
		Discounts: registry.Discounts(),
		Orders:    registry.Orders(),
		Clock:     time.Now,
		Logger:    observability.EventLogger(logger.Named("catalog")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	accountService, err := services.NewAccountService(services.AccountServiceDeps{
		Accounts: registry.Accounts(),
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("accounts")),
	})
	if err != nil {
		logger.Fatal("failed to initialise account service", zap.Error(err))
	}

	chatService, err := services.NewChatService(services.ChatServiceDeps{
		Orders:   registry.Orders(),
		Accounts: registry.Accounts(),
		Location: location,
	})
	if err != nil {
		logger.Fatal("failed to initialise chat service", zap.Error(err))
	}

	maintenanceService, err := services.NewMaintenanceService(services.MaintenanceServiceDeps{
		Orders:             registry.Orders(),
		CancelledRetention: cfg.Orders.CancelledRetention,
		BatchSize:          cfg.Orders.SweepBatchSize,
		Clock:              time.Now,
		Logger:             observability.EventLogger(logger.Named("maintenance")),
	})
	if err != nil {
		logger.Fatal("failed to initialise maintenance service", zap.Error(err))
	}

	idempotencyStore := newIdempotencyStore(backend)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithOptionalKey(),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	var backgroundWG sync.WaitGroup
	runPeriodic(backgroundCtx, &backgroundWG, cfg.Idempotency.CleanupInterval, func(runCtx context.Context) {
		cleanupLogger := logger.Named("idempotency")
		removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
		if err != nil {
			cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
			return
		}
		if removed > 0 {
			cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
		}
	})
	runPeriodic(backgroundCtx, &backgroundWG, cfg.Orders.SweepInterval, func(runCtx context.Context) {
		sweepLogger := logger.Named("maintenance")
		result, err := maintenanceService.SweepCancelledOrders(runCtx)
		if err != nil {
			sweepLogger.Error("cancelled order sweep error", zap.Error(err))
			return
		}
		if result.Removed > 0 {
			sweepLogger.Info("cancelled order sweep removed orders", zap.Int("count", result.Removed), zap.Time("cutoff", result.Cutoff))
		}
	})

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	accountsLogger := logger.Named("accounts")
	authenticator := auth.NewAuthenticator(firebaseVerifier,
		auth.WithFallbackRole(auth.RoleCustomer),
		auth.WithIdentityObserver(func(ctx context.Context, identity *auth.Identity) {
			_, err := accountService.EnsureAccount(ctx, services.EnsureAccountCommand{
				ID:       identity.UID,
				Email:    identity.Email,
				Name:     identity.DisplayName(),
				Phone:    identity.Phone,
				Customer: identity.HasRole(auth.RoleCustomer),
				Courier:  identity.HasRole(auth.RoleCourier),
				Staff:    identity.HasRole(auth.RoleStaff),
			})
			if err != nil {
				accountsLogger.Warn("account sync failed", zap.String("uid", observability.SanitizeUserID(identity.UID)), zap.Error(err))
			}
		}),
	)

	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService, notificationService,
		handlers.WithCreateOrderMiddleware(idempotencyMiddleware),
		handlers.WithBusinessLocation(location),
	)
	courierHandlers := handlers.NewCourierHandlers(authenticator, orderService, statsService)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(authenticator, orderService, statsService)
	adminHandlers := handlers.NewAdminHandlers(authenticator, adminOrderHandlers, catalogService, accountService)
	publicHandlers := handlers.NewPublicHandlers(catalogService, paymentService)
	integrationHandlers := handlers.NewIntegrationHandlers(chatService,
		handlers.WithChatRateLimit(cfg.Integrations.ChatRateLimit, cfg.Integrations.ChatRateWindow, time.Now),
	)
	internalHandlers := handlers.NewInternalHandlers(maintenanceService)

	var webhookOpts []handlers.WebhookOption
	if midtransVerifier != nil {
		webhookOpts = append(webhookOpts, handlers.WithMidtransVerifier(midtransVerifier))
	}
	if stripeProvider != nil {
		webhookOpts = append(webhookOpts, handlers.WithStripeWebhooks(stripeProvider))
	}
	webhookHandlers := handlers.NewWebhookHandlers(paymentService, webhookOpts...)

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	healthOpts := []handlers.HealthOption{handlers.WithHealthBuildInfo(buildInfo)}
	if checker, err := newHealthChecker(backend, fetcher, strings.TrimSpace(envValues["API_HEALTH_SECRET_REF"])); err != nil {
		logger.Warn("health: dependency checker unavailable", zap.Error(err))
	} else {
		healthOpts = append(healthOpts, handlers.WithHealthReporter(checker))
	}

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithPublicRoutes(publicHandlers.Routes),
		handlers.WithMeRoutes(orderHandlers.Routes),
		handlers.WithCourierRoutes(courierHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithIntegrationRoutes(integrationHandlers.Routes),
	}
	if oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg); oidcMiddleware != nil {
		opts = append(opts,
			handlers.WithInternalMiddlewares(oidcMiddleware),
			handlers.WithInternalRoutes(internalHandlers.Routes),
		)
	} else {
		logger.Warn("auth: OIDC not configured; internal routes disabled")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(opts...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("laundry api listening", zap.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	backgroundCancel()
	backgroundWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// runPeriodic invokes fn every interval until ctx is cancelled. A non-positive
// interval disables the job.
func runPeriodic(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, time.Minute)
				fn(runCtx)
				cancel()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func applyCatalogSeed(ctx context.Context, registry repositories.Registry, path string, logger *zap.Logger) error {
	catalog, err := seed.LoadCatalog(path)
	if err != nil {
		return err
	}
	result, err := seed.NewApplier(seed.TargetFromRegistry(registry), seed.WithLogger(logger)).Apply(ctx, catalog)
	if err != nil {
		return err
	}
	logger.Info("catalog seeded", zap.Int("created", result.Created), zap.Int("updated", result.Updated))
	return nil
}

func buildPayments(cfg config.Config, log payments.Logger) (*payments.Manager, *payments.MidtransVerifier, *payments.StripeProvider, error) {
	providers := make(map[string]payments.Provider)
	var verifier *payments.MidtransVerifier
	var stripeProvider *payments.StripeProvider

	if key := strings.TrimSpace(cfg.Payments.Midtrans.ServerKey); key != "" {
		provider, err := payments.NewMidtransProvider(payments.MidtransConfig{
			ServerKey:       key,
			Environment:     cfg.Payments.Midtrans.Environment,
			EnabledPayments: cfg.Payments.Midtrans.EnabledPayments,
			Logger:          log,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		providers[payments.ProviderMidtrans] = provider
		if cfg.Payments.Midtrans.VerifySignature {
			verifier = payments.NewMidtransVerifier(key)
		}
	}

	if key := strings.TrimSpace(cfg.Payments.Stripe.APIKey); key != "" {
		provider, err := payments.NewStripeProvider(payments.StripeConfig{
			APIKey:        key,
			WebhookSecret: cfg.Payments.Stripe.WebhookSecret,
			SuccessURL:    cfg.Payments.Stripe.SuccessURL,
			CancelURL:     cfg.Payments.Stripe.CancelURL,
			Currency:      cfg.Payments.Stripe.Currency,
			Logger:        log,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		providers[payments.ProviderStripe] = provider
		if strings.TrimSpace(cfg.Payments.Stripe.WebhookSecret) != "" {
			stripeProvider = provider
		}
	}

	if len(providers) == 0 {
		return nil, verifier, stripeProvider, nil
	}
	var opts []payments.ManagerOption
	if _, ok := providers[cfg.Payments.DefaultGateway]; ok {
		opts = append(opts, payments.WithDefaultProvider(cfg.Payments.DefaultGateway))
	}
	manager, err := payments.NewManager(providers, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	return manager, verifier, stripeProvider, nil
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}
	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		return nil
	}
	adapter := observability.NewPrintfAdapter(logger)
	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, auth.WithJWKSLogger(adapter))
	validator := auth.NewOIDCValidator(cache, adapter)
	if len(cfg.Security.OIDC.Issuers) == 0 {
		logger.Warn("auth: OIDC issuers not configured; any issuer will be accepted")
	}
	return validator.RequireOIDC(audience, cfg.Security.OIDC.Issuers)
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Security.Environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func firebaseClientOptions(cfg config.Config) []option.ClientOption {
	if file := strings.TrimSpace(cfg.Firebase.CredentialsFile); file != "" {
		return []option.ClientOption{option.WithCredentialsFile(file)}
	}
	return nil
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}
	project := lookup("API_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
	}
	if path := lookup("API_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if file := lookup("API_FIREBASE_CREDENTIALS_FILE"); file != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(file)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the secrets that must resolve to a value. Local
// environments run without gateways, so nothing is mandatory there.
func requiredSecretNames(env map[string]string) []string {
	if !strings.EqualFold(strings.TrimSpace(env["API_SECURITY_ENVIRONMENT"]), "production") {
		return nil
	}
	var required []string
	if strings.EqualFold(strings.TrimSpace(env["API_STORAGE_DRIVER"]), config.StorageDriverMySQL) {
		required = append(required, "MySQL.Password")
	}
	switch strings.ToLower(strings.TrimSpace(env["API_PAYMENTS_GATEWAY"])) {
	case config.GatewayStripe:
		required = append(required, "Payments.Stripe.APIKey", "Payments.Stripe.WebhookSecret")
	default:
		required = append(required, "Payments.Midtrans.ServerKey")
	}
	return required
}
