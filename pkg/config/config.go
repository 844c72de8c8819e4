package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Square       SquareConfig
	Marketplace  MarketplaceConfig
	Cron         CronConfig
	LogFile      LogFileConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Marketplace.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.PubSub.AnalyticsSubscription) != "" && !cfg.BigQuery.Enabled() {
		return nil, fmt.Errorf("%s requires %s", EnvPubSubAnalyticsSub, EnvBigQueryDataset)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"DESIGNDROP_APP_ENV" required:"true"`
	Port         string   `envconfig:"DESIGNDROP_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"DESIGNDROP_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"DESIGNDROP_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"DESIGNDROP_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"DESIGNDROP_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DESIGNDROP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DESIGNDROP_DB_DSN"`
	Driver string `envconfig:"DESIGNDROP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DESIGNDROP_DB_HOST"`
	LegacyPort     int    `envconfig:"DESIGNDROP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DESIGNDROP_DB_USER"`
	LegacyPassword string `envconfig:"DESIGNDROP_DB_PASSWORD"`
	LegacyName     string `envconfig:"DESIGNDROP_DB_NAME"`
	LegacySSLMode  string `envconfig:"DESIGNDROP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DESIGNDROP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DESIGNDROP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DESIGNDROP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DESIGNDROP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite one.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"DESIGNDROP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DESIGNDROP_REDIS_ADDR"`
	Password     string        `envconfig:"DESIGNDROP_REDIS_PASSWORD"`
	DB           int           `envconfig:"DESIGNDROP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DESIGNDROP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DESIGNDROP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DESIGNDROP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DESIGNDROP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DESIGNDROP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DESIGNDROP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DESIGNDROP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DESIGNDROP_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DESIGNDROP_AUTO_MIGRATE" default:"false"`
	LiveStream  bool `envconfig:"DESIGNDROP_FEATURE_LIVE_STREAM" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"DESIGNDROP_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DESIGNDROP_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"DESIGNDROP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DESIGNDROP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DesignsTopic             string `envconfig:"DESIGNDROP_PUBSUB_DESIGNS_TOPIC" default:"dd-design-events"`
	OrdersTopic              string `envconfig:"DESIGNDROP_PUBSUB_ORDERS_TOPIC" default:"dd-order-events"`
	NotificationTopic        string `envconfig:"DESIGNDROP_PUBSUB_NOTIFICATION_TOPIC" default:"dd-notification-events"`
	NotificationSubscription string `envconfig:"DESIGNDROP_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	AnalyticsTopic           string `envconfig:"DESIGNDROP_PUBSUB_ANALYTICS_TOPIC"`
	AnalyticsSubscription    string `envconfig:"DESIGNDROP_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

// BigQueryConfig enables the marketplace event sink when a dataset is set.
type BigQueryConfig struct {
	Dataset                string `envconfig:"DESIGNDROP_BIGQUERY_DATASET"`
	MarketplaceEventsTable string `envconfig:"DESIGNDROP_BIGQUERY_MARKETPLACE_EVENTS_TABLE" default:"marketplace_events"`
}

// Enabled reports whether analytics ingestion is configured.
func (b BigQueryConfig) Enabled() bool {
	return strings.TrimSpace(b.Dataset) != "" && strings.TrimSpace(b.MarketplaceEventsTable) != ""
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"DESIGNDROP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"DESIGNDROP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"DESIGNDROP_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int    `envconfig:"DESIGNDROP_OUTBOX_RETENTION_DAYS" default:"30"`
	MetricsAddr    string `envconfig:"DESIGNDROP_OUTBOX_METRICS_ADDR"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"DESIGNDROP_SQUARE_ACCESS_TOKEN"`
	Env           string `envconfig:"DESIGNDROP_SQUARE_ENV" default:"sandbox"`
	LocationID    string `envconfig:"DESIGNDROP_SQUARE_LOCATION_ID"`
	WebhookSecret string `envconfig:"DESIGNDROP_SQUARE_WEBHOOK_SECRET"`
	WebhookURL    string `envconfig:"DESIGNDROP_SQUARE_WEBHOOK_URL"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// MarketplaceConfig holds the campaign windows and the defaults applied to new designs.
type MarketplaceConfig struct {
	VotingWindow         time.Duration `envconfig:"DESIGNDROP_VOTING_WINDOW" default:"744h"`
	PreorderWindow       time.Duration `envconfig:"DESIGNDROP_PREORDER_WINDOW" default:"744h"`
	DefaultGoalThreshold int           `envconfig:"DESIGNDROP_VOTING_DEFAULT_GOAL" default:"100"`
	DefaultRoyaltyRate   string        `envconfig:"DESIGNDROP_DEFAULT_ROYALTY_RATE" default:"0.10"`
	DefaultQuarterlyCap  string        `envconfig:"DESIGNDROP_DEFAULT_QUARTERLY_CAP" default:"5000.00"`
	Currency             string        `envconfig:"DESIGNDROP_CURRENCY" default:"USD"`
}

// RoyaltyRate parses the default royalty rate.
func (m MarketplaceConfig) RoyaltyRate() decimal.Decimal {
	rate, err := decimal.NewFromString(m.DefaultRoyaltyRate)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

// QuarterlyCap parses the default designer quarterly bonus cap.
func (m MarketplaceConfig) QuarterlyCap() decimal.Decimal {
	limit, err := decimal.NewFromString(m.DefaultQuarterlyCap)
	if err != nil {
		return decimal.Zero
	}
	return limit
}

func (m MarketplaceConfig) validate() error {
	if m.VotingWindow <= 0 || m.PreorderWindow <= 0 {
		return fmt.Errorf("campaign windows must be positive")
	}
	if m.DefaultGoalThreshold <= 0 {
		return fmt.Errorf("%s must be positive", EnvVotingDefaultGoal)
	}
	rate, err := decimal.NewFromString(m.DefaultRoyaltyRate)
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be a fraction between 0 and 1", EnvDefaultRoyaltyRate)
	}
	limit, err := decimal.NewFromString(m.DefaultQuarterlyCap)
	if err != nil || limit.IsNegative() {
		return fmt.Errorf("%s must be a non-negative amount", EnvDefaultQuarterlyCap)
	}
	return nil
}

type CronConfig struct {
	SweepInterval             time.Duration `envconfig:"DESIGNDROP_CRON_SWEEP_INTERVAL" default:"5m"`
	LockTTL                   time.Duration `envconfig:"DESIGNDROP_CRON_LOCK_TTL" default:"4m"`
	StalePendingOrderAge      time.Duration `envconfig:"DESIGNDROP_CRON_STALE_PENDING_ORDER_AGE" default:"24h"`
	NotificationRetentionDays int           `envconfig:"DESIGNDROP_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
}

// LogFileConfig enables an optional rotating log file next to stdout.
type LogFileConfig struct {
	Path       string `envconfig:"DESIGNDROP_LOG_FILE"`
	MaxSizeMB  int    `envconfig:"DESIGNDROP_LOG_FILE_MAX_SIZE_MB" default:"100"`
	MaxBackups int    `envconfig:"DESIGNDROP_LOG_FILE_MAX_BACKUPS" default:"3"`
	MaxAgeDays int    `envconfig:"DESIGNDROP_LOG_FILE_MAX_AGE_DAYS" default:"28"`
	Compress   bool   `envconfig:"DESIGNDROP_LOG_FILE_COMPRESS" default:"true"`
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
