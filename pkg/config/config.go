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
	DB           DBConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	Sendgrid     SendgridConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	FeatureFlags FeatureFlagsConfig
	Webhook      WebhookConfig
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
	Env          string `envconfig:"MAKERSROW_APP_ENV" required:"true"`
	Port         string `envconfig:"MAKERSROW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MAKERSROW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MAKERSROW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MAKERSROW_DB_DSN"`
	Driver string `envconfig:"MAKERSROW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MAKERSROW_DB_HOST"`
	LegacyPort     int    `envconfig:"MAKERSROW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MAKERSROW_DB_USER"`
	LegacyPassword string `envconfig:"MAKERSROW_DB_PASSWORD"`
	LegacyName     string `envconfig:"MAKERSROW_DB_NAME"`
	LegacySSLMode  string `envconfig:"MAKERSROW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MAKERSROW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MAKERSROW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MAKERSROW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MAKERSROW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MAKERSROW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MAKERSROW_REDIS_ADDR"`
	Password     string        `envconfig:"MAKERSROW_REDIS_PASSWORD"`
	DB           int           `envconfig:"MAKERSROW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MAKERSROW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MAKERSROW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MAKERSROW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MAKERSROW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MAKERSROW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"MAKERSROW_STRIPE_API_KEY"`
	Secret string `envconfig:"MAKERSROW_STRIPE_SECRET"`
	Env    string `envconfig:"MAKERSROW_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey                 string `envconfig:"MAKERSROW_SENDGRID_API_KEY"`
	DefaultFrom            string `envconfig:"MAKERSROW_SENDGRID_FROM_EMAIL"`
	OrderConfirmationTmpl  string `envconfig:"MAKERSROW_SENDGRID_ORDER_CONFIRMATION_TEMPLATE"`
	SellerNotificationTmpl string `envconfig:"MAKERSROW_SENDGRID_SELLER_NOTIFICATION_TEMPLATE"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MAKERSROW_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"MAKERSROW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MAKERSROW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AnalyticsTopic        string `envconfig:"MAKERSROW_PUBSUB_ANALYTICS_TOPIC" required:"true"`
	AnalyticsSubscription string `envconfig:"MAKERSROW_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset       string `envconfig:"MAKERSROW_BIGQUERY_DATASET" default:"makersrow"`
	CommerceTable string `envconfig:"MAKERSROW_BIGQUERY_COMMERCE_TABLE" default:"commerce_events"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MAKERSROW_AUTO_MIGRATE" default:"false"`
	SendEmails  bool `envconfig:"MAKERSROW_FEATURE_SEND_EMAILS" default:"true"`
	Capture     bool `envconfig:"MAKERSROW_FEATURE_ANALYTICS_CAPTURE" default:"true"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"MAKERSROW_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
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
