package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "SWAPMARKET_APP_ENV"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Webhook      WebhookConfig
	Payouts      PayoutsConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SWAPMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"SWAPMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SWAPMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SWAPMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SWAPMARKET_DB_DSN"`
	Driver string `envconfig:"SWAPMARKET_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SWAPMARKET_DB_HOST"`
	Port     int    `envconfig:"SWAPMARKET_DB_PORT" default:"5432"`
	User     string `envconfig:"SWAPMARKET_DB_USER"`
	Password string `envconfig:"SWAPMARKET_DB_PASSWORD"`
	Name     string `envconfig:"SWAPMARKET_DB_NAME"`
	SSLMode  string `envconfig:"SWAPMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SWAPMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SWAPMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SWAPMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SWAPMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// ensureDSN assembles a DSN from discrete fields when one is not provided.
func (d *DBConfig) ensureDSN() error {
	if strings.TrimSpace(d.DSN) != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either SWAPMARKET_DB_DSN or host/user/name must be set")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SWAPMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SWAPMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"SWAPMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"SWAPMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SWAPMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SWAPMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SWAPMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SWAPMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SWAPMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SWAPMARKET_STRIPE_API_KEY"`
	Secret string `envconfig:"SWAPMARKET_STRIPE_SECRET"`
	Env    string `envconfig:"SWAPMARKET_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"SWAPMARKET_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	PushTopic   string `envconfig:"SWAPMARKET_PUBSUB_PUSH_TOPIC" default:"sm-push-notifications"`
	EmailTopic  string `envconfig:"SWAPMARKET_PUBSUB_EMAIL_TOPIC" default:"sm-email-queue"`
	EventsTopic string `envconfig:"SWAPMARKET_PUBSUB_EVENTS_TOPIC" default:"sm-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SWAPMARKET_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SWAPMARKET_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SWAPMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type WebhookConfig struct {
	ShippingSecret string        `envconfig:"SWAPMARKET_SHIPPING_WEBHOOK_SECRET" required:"true"`
	EventDedupTTL  time.Duration `envconfig:"SWAPMARKET_WEBHOOK_EVENT_DEDUP_TTL" default:"168h"`
}

type PayoutsConfig struct {
	TransferRetryAttempts int           `envconfig:"SWAPMARKET_PAYOUT_RETRIEVE_RETRY_ATTEMPTS" default:"3"`
	TransferRetryBackoff  time.Duration `envconfig:"SWAPMARKET_PAYOUT_RETRIEVE_RETRY_BACKOFF" default:"250ms"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SWAPMARKET_AUTO_MIGRATE" default:"false"`
}
