package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultStorageDriver        = StorageDriverFirestore
	defaultMySQLPort            = "3306"
	defaultMySQLParams          = "charset=utf8mb4&parseTime=True&loc=UTC"
	defaultGateway              = GatewayMidtrans
	defaultMidtransEnvironment  = "sandbox"
	defaultStripeCurrency       = "idr"
	defaultUnknownItemPolicy    = UnknownItemSkip
	defaultDiscountCountPolicy  = DiscountCountAll
	defaultCancelledRetention   = 48 * time.Hour
	defaultSweepInterval        = time.Hour
	defaultSweepBatchSize       = 200
	defaultOrdersTimezone       = "Asia/Jakarta"
	defaultSecurityEnvironment  = "local"
	defaultOIDCJWKSURL          = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer       = "https://accounts.google.com"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	defaultChatRateLimit        = 30
	defaultChatRateWindow       = time.Minute
)

// Storage drivers.
const (
	StorageDriverFirestore = "firestore"
	StorageDriverMySQL     = "mysql"
	StorageDriverMemory    = "memory"
)

// Payment gateways.
const (
	GatewayMidtrans = "midtrans"
	GatewayStripe   = "stripe"
)

// Order policies.
const (
	UnknownItemSkip           = "skip"
	UnknownItemReject         = "reject"
	DiscountCountAll          = "all"
	DiscountCountExcludeVoids = "exclude_cancelled"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server       ServerConfig
	Firebase     FirebaseConfig
	Storage      StorageConfig
	Firestore    FirestoreConfig
	MySQL        MySQLConfig
	Payments     PaymentsConfig
	Orders       OrdersConfig
	PubSub       PubSubConfig
	Security     SecurityConfig
	Idempotency  IdempotencyConfig
	Integrations IntegrationsConfig
	Seed         SeedConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// MySQLConfig holds the connection parameters of the SQL backend.
type MySQLConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
	Params   string
}

// DSN renders the go-sql-driver connection string.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", c.User, c.Password, c.Host, c.Port, c.Database, c.Params)
}

// PaymentsConfig configures the online payment gateways.
type PaymentsConfig struct {
	DefaultGateway string
	Midtrans       MidtransConfig
	Stripe         StripeConfig
}

// MidtransConfig configures the Snap integration.
type MidtransConfig struct {
	ServerKey       string
	Environment     string
	FinishURL       string
	EnabledPayments []string
	VerifySignature bool
}

// StripeConfig configures the Stripe Checkout integration.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
}

// OrdersConfig holds order lifecycle policies.
type OrdersConfig struct {
	UnknownItemPolicy   string
	DiscountCountPolicy string
	CancelledRetention  time.Duration
	SweepInterval       time.Duration
	SweepBatchSize      int
	Timezone            string
}

// Location resolves Timezone, falling back to UTC.
func (c OrdersConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PubSubConfig configures order event publishing. An empty topic disables it.
type PubSubConfig struct {
	ProjectID   string
	EventsTopic string
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
}

// OIDCConfig controls Google-signed token verification for internal endpoints.
type OIDCConfig struct {
	JWKSURL  string
	Audience string
	Issuers  []string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// IntegrationsConfig throttles the chat bot status lookup per client. A
// non-positive limit disables throttling.
type IntegrationsConfig struct {
	ChatRateLimit  int
	ChatRateWindow time.Duration
}

// SeedConfig points at optional seed data applied at start-up.
type SeedConfig struct {
	CatalogPath string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved empty.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// Names returns the config field names of the missing secrets.
func (e *MissingSecretsError) Names() []string {
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

// RedactedNames returns hashed identifiers safe for logs.
func (e *MissingSecretsError) RedactedNames() []string {
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		sum := sha256.Sum256([]byte(name))
		out = append(out, hex.EncodeToString(sum[:8]))
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks secret fields (e.g. "Payments.Midtrans.ServerKey") as mandatory.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// EnvironmentValues returns the merged environment (.env < OS env < env map) so callers can
// initialise dependencies, such as the secret fetcher, before Load runs.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)
	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(dotEnv))
	for key, value := range dotEnv {
		values[key] = value
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if ok && strings.TrimSpace(key) != "" {
				values[key] = value
			}
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// Load assembles the configuration from defaults, .env overrides, the environment and
// Secret Manager references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnv[key]
		return value, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(stringWithDefault(lookup, "API_STORAGE_DRIVER", defaultStorageDriver)),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		MySQL: MySQLConfig{
			User:     stringWithDefault(lookup, "API_MYSQL_USER", "laundry"),
			Password: stringWithDefault(lookup, "API_MYSQL_PASSWORD", ""),
			Host:     stringWithDefault(lookup, "API_MYSQL_HOST", "127.0.0.1"),
			Port:     stringWithDefault(lookup, "API_MYSQL_PORT", defaultMySQLPort),
			Database: stringWithDefault(lookup, "API_MYSQL_DATABASE", "laundry"),
			Params:   stringWithDefault(lookup, "API_MYSQL_PARAMS", defaultMySQLParams),
		},
		Payments: PaymentsConfig{
			DefaultGateway: strings.ToLower(stringWithDefault(lookup, "API_PAYMENTS_GATEWAY", defaultGateway)),
			Midtrans: MidtransConfig{
				ServerKey:       stringWithDefault(lookup, "API_PAYMENTS_MIDTRANS_SERVER_KEY", ""),
				Environment:     strings.ToLower(stringWithDefault(lookup, "API_PAYMENTS_MIDTRANS_ENVIRONMENT", defaultMidtransEnvironment)),
				FinishURL:       stringWithDefault(lookup, "API_PAYMENTS_MIDTRANS_FINISH_URL", ""),
				EnabledPayments: csvWithDefault(lookup, "API_PAYMENTS_MIDTRANS_ENABLED_PAYMENTS", []string{"gopay", "qris", "bank_transfer"}),
				VerifySignature: boolWithDefault(lookup, "API_PAYMENTS_MIDTRANS_VERIFY_SIGNATURE", false),
			},
			Stripe: StripeConfig{
				APIKey:        stringWithDefault(lookup, "API_PAYMENTS_STRIPE_API_KEY", ""),
				WebhookSecret: stringWithDefault(lookup, "API_PAYMENTS_STRIPE_WEBHOOK_SECRET", ""),
				SuccessURL:    stringWithDefault(lookup, "API_PAYMENTS_STRIPE_SUCCESS_URL", ""),
				CancelURL:     stringWithDefault(lookup, "API_PAYMENTS_STRIPE_CANCEL_URL", ""),
				Currency:      strings.ToLower(stringWithDefault(lookup, "API_PAYMENTS_STRIPE_CURRENCY", defaultStripeCurrency)),
			},
		},
		Orders: OrdersConfig{
			UnknownItemPolicy:   strings.ToLower(stringWithDefault(lookup, "API_ORDERS_UNKNOWN_ITEM_POLICY", defaultUnknownItemPolicy)),
			DiscountCountPolicy: strings.ToLower(stringWithDefault(lookup, "API_ORDERS_DISCOUNT_COUNT_POLICY", defaultDiscountCountPolicy)),
			CancelledRetention:  durationWithDefault(lookup, "API_ORDERS_CANCELLED_RETENTION", defaultCancelledRetention),
			SweepInterval:       durationWithDefault(lookup, "API_ORDERS_SWEEP_INTERVAL", defaultSweepInterval),
			SweepBatchSize:      intWithDefault(lookup, "API_ORDERS_SWEEP_BATCH", defaultSweepBatchSize),
			Timezone:            stringWithDefault(lookup, "API_ORDERS_TIMEZONE", defaultOrdersTimezone),
		},
		PubSub: PubSubConfig{
			ProjectID:   stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			EventsTopic: stringWithDefault(lookup, "API_PUBSUB_EVENTS_TOPIC", ""),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:  stringWithDefault(lookup, "API_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience: stringWithDefault(lookup, "API_SECURITY_OIDC_AUDIENCE", ""),
				Issuers:  csvWithDefault(lookup, "API_SECURITY_OIDC_ISSUERS", []string{defaultSecurityIssuer}),
			},
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
		Integrations: IntegrationsConfig{
			ChatRateLimit:  intWithDefault(lookup, "API_INTEGRATIONS_CHAT_RATE_LIMIT", defaultChatRateLimit),
			ChatRateWindow: durationWithDefault(lookup, "API_INTEGRATIONS_CHAT_RATE_WINDOW", defaultChatRateWindow),
		},
		Seed: SeedConfig{
			CatalogPath: stringWithDefault(lookup, "API_SEED_CATALOG_PATH", ""),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firebase.ProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"MySQL.Password", &cfg.MySQL.Password},
		{"Payments.Midtrans.ServerKey", &cfg.Payments.Midtrans.ServerKey},
		{"Payments.Stripe.APIKey", &cfg.Payments.Stripe.APIKey},
		{"Payments.Stripe.WebhookSecret", &cfg.Payments.Stripe.WebhookSecret},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	var missing []string
	for _, name := range options.requiredSecrets {
		name = strings.TrimSpace(name)
		if name != "" && resolved[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Config{}, &MissingSecretsError{names: missing}
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		invalid = append(invalid, "Firebase.ProjectID")
	}
	switch cfg.Storage.Driver {
	case StorageDriverFirestore:
		if cfg.Firestore.ProjectID == "" {
			invalid = append(invalid, "Firestore.ProjectID")
		}
	case StorageDriverMySQL:
		if cfg.MySQL.Host == "" {
			invalid = append(invalid, "MySQL.Host")
		}
		if cfg.MySQL.Database == "" {
			invalid = append(invalid, "MySQL.Database")
		}
	case StorageDriverMemory:
	default:
		invalid = append(invalid, "Storage.Driver")
	}
	if cfg.Payments.DefaultGateway != GatewayMidtrans && cfg.Payments.DefaultGateway != GatewayStripe {
		invalid = append(invalid, "Payments.DefaultGateway")
	}
	if cfg.Payments.Midtrans.Environment != "sandbox" && cfg.Payments.Midtrans.Environment != "production" {
		invalid = append(invalid, "Payments.Midtrans.Environment")
	}
	if cfg.Orders.UnknownItemPolicy != UnknownItemSkip && cfg.Orders.UnknownItemPolicy != UnknownItemReject {
		invalid = append(invalid, "Orders.UnknownItemPolicy")
	}
	if cfg.Orders.DiscountCountPolicy != DiscountCountAll && cfg.Orders.DiscountCountPolicy != DiscountCountExcludeVoids {
		invalid = append(invalid, "Orders.DiscountCountPolicy")
	}
	if _, err := time.LoadLocation(cfg.Orders.Timezone); err != nil {
		invalid = append(invalid, "Orders.Timezone")
	}
	if cfg.Orders.CancelledRetention <= 0 {
		invalid = append(invalid, "Orders.CancelledRetention")
	}
	if cfg.Orders.SweepInterval <= 0 {
		invalid = append(invalid, "Orders.SweepInterval")
	}
	if cfg.Orders.SweepBatchSize <= 0 {
		invalid = append(invalid, "Orders.SweepBatchSize")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		invalid = append(invalid, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		invalid = append(invalid, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		invalid = append(invalid, "Idempotency.CleanupBatchSize")
	}
	if cfg.Integrations.ChatRateLimit > 0 && cfg.Integrations.ChatRateWindow <= 0 {
		invalid = append(invalid, "Integrations.ChatRateWindow")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string, fallback []string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
