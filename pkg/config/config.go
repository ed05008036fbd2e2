package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Pricing      PricingConfig
	Orders       OrdersConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
	PubSub       PubSubConfig
	GCP          GCPConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"TRAMAR_APP_ENV" required:"true"`
	Port         string   `envconfig:"TRAMAR_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"TRAMAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"TRAMAR_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"TRAMAR_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TRAMAR_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TRAMAR_DB_DSN"`
	Driver string `envconfig:"TRAMAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRAMAR_DB_HOST"`
	LegacyPort     int    `envconfig:"TRAMAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRAMAR_DB_USER"`
	LegacyPassword string `envconfig:"TRAMAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRAMAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRAMAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRAMAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRAMAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRAMAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRAMAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRAMAR_REDIS_URL"`
	Address      string        `envconfig:"TRAMAR_REDIS_ADDR"`
	Password     string        `envconfig:"TRAMAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRAMAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRAMAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRAMAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRAMAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRAMAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRAMAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TRAMAR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TRAMAR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TRAMAR_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TRAMAR_AUTO_MIGRATE" default:"false"`
}

// PricingConfig holds the storewide tax and shipping policy. Amounts are
// decimal strings in the store currency.
type PricingConfig struct {
	TaxRate               string `envconfig:"TRAMAR_PRICING_TAX_RATE" default:"0.15"`
	FreeShippingThreshold string `envconfig:"TRAMAR_PRICING_FREE_SHIPPING_THRESHOLD" default:"100.00"`
	ShippingFee           string `envconfig:"TRAMAR_PRICING_SHIPPING_FEE" default:"10.00"`
	Currency              string `envconfig:"TRAMAR_PRICING_CURRENCY" default:"usd"`
}

func (p PricingConfig) validate() error {
	if strings.TrimSpace(p.Currency) == "" {
		return fmt.Errorf("%s is required", EnvPricingCurrency)
	}
	return nil
}

type OrdersConfig struct {
	UnpaidTTL           time.Duration `envconfig:"TRAMAR_ORDERS_UNPAID_TTL" default:"24h"`
	PlacementRateLimit  int           `envconfig:"TRAMAR_ORDERS_PLACEMENT_RATE_LIMIT" default:"10"`
	PlacementRateWindow time.Duration `envconfig:"TRAMAR_ORDERS_PLACEMENT_RATE_WINDOW" default:"1m"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"TRAMAR_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"TRAMAR_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"TRAMAR_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"TRAMAR_OUTBOX_RETENTION" default:"720h"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"TRAMAR_PUBSUB_ORDERS_TOPIC" default:"tramar-order-events"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"TRAMAR_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"TRAMAR_GCP_CREDENTIALS_JSON"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TRAMAR_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"TRAMAR_CRON_LOCK_TTL" default:"10m"`
}

type StripeConfig struct {
	APIKey        string        `envconfig:"TRAMAR_STRIPE_API_KEY"`
	WebhookSecret string        `envconfig:"TRAMAR_STRIPE_WEBHOOK_SECRET"`
	Env           string        `envconfig:"TRAMAR_STRIPE_ENV" default:"test"`
	EventTTL      time.Duration `envconfig:"TRAMAR_STRIPE_EVENT_TTL" default:"72h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
