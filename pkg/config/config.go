package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "DELIVERYDASH"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "DELIVERYDASH_DB_DSN"
	EnvDBHost = "DELIVERYDASH_DB_HOST"
	EnvDBUser = "DELIVERYDASH_DB_USER"
	EnvDBName = "DELIVERYDASH_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Telegram     TelegramConfig
	Dispatch     DispatchConfig
	ActionLimit  ActionRateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Realtime     RealtimeConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"DELIVERYDASH_APP_ENV" required:"true"`
	Port         string `envconfig:"DELIVERYDASH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DELIVERYDASH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DELIVERYDASH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DELIVERYDASH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DELIVERYDASH_DB_DSN"`
	Driver string `envconfig:"DELIVERYDASH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DELIVERYDASH_DB_HOST"`
	LegacyPort     int    `envconfig:"DELIVERYDASH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DELIVERYDASH_DB_USER"`
	LegacyPassword string `envconfig:"DELIVERYDASH_DB_PASSWORD"`
	LegacyName     string `envconfig:"DELIVERYDASH_DB_NAME"`
	LegacySSLMode  string `envconfig:"DELIVERYDASH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DELIVERYDASH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DELIVERYDASH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DELIVERYDASH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DELIVERYDASH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DELIVERYDASH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DELIVERYDASH_REDIS_ADDR"`
	Password     string        `envconfig:"DELIVERYDASH_REDIS_PASSWORD"`
	DB           int           `envconfig:"DELIVERYDASH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DELIVERYDASH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DELIVERYDASH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DELIVERYDASH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DELIVERYDASH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DELIVERYDASH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type TelegramConfig struct {
	BotToken      string `envconfig:"DELIVERYDASH_TELEGRAM_BOT_TOKEN" required:"true"`
	WebhookSecret string `envconfig:"DELIVERYDASH_TELEGRAM_WEBHOOK_SECRET"`
	APIEndpoint   string `envconfig:"DELIVERYDASH_TELEGRAM_API_ENDPOINT"`
	Debug         bool   `envconfig:"DELIVERYDASH_TELEGRAM_DEBUG" default:"false"`
}

// DispatchConfig carries the dispatch engine tunables.
type DispatchConfig struct {
	MaxActiveOrdersPerDriver int           `envconfig:"DELIVERYDASH_DISPATCH_MAX_ACTIVE_ORDERS" default:"2"`
	RoundTimeout             time.Duration `envconfig:"DELIVERYDASH_DISPATCH_ROUND_TIMEOUT" default:"120s"`
	CommissionRate           string        `envconfig:"DELIVERYDASH_DISPATCH_COMMISSION_RATE" default:"0.15"`
	DriverStaleAfter         time.Duration `envconfig:"DELIVERYDASH_DISPATCH_DRIVER_STALE_AFTER" default:"10m"`
	NotificationRetention    time.Duration `envconfig:"DELIVERYDASH_DISPATCH_NOTIFICATION_RETENTION" default:"24h"`
}

type ActionRateLimitConfig struct {
	Window      time.Duration `envconfig:"DELIVERYDASH_ACTION_RATE_LIMIT_WINDOW" default:"10s"`
	DriverLimit int           `envconfig:"DELIVERYDASH_ACTION_RATE_LIMIT_DRIVER_LIMIT" default:"10"`
	IPLimit     int           `envconfig:"DELIVERYDASH_ACTION_RATE_LIMIT_IP_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite       bool `envconfig:"DELIVERYDASH_USE_SQLITE" default:"false"`
	AutoMigrate     bool `envconfig:"DELIVERYDASH_AUTO_MIGRATE" default:"false"`
	InlineDispatch  bool `envconfig:"DELIVERYDASH_INLINE_DISPATCH" default:"false"`
	TelegramEnabled bool `envconfig:"DELIVERYDASH_TELEGRAM_ENABLED" default:"true"`
}

type RealtimeConfig struct {
	PingInterval   time.Duration `envconfig:"DELIVERYDASH_REALTIME_PING_INTERVAL" default:"30s"`
	WriteTimeout   time.Duration `envconfig:"DELIVERYDASH_REALTIME_WRITE_TIMEOUT" default:"10s"`
	ReadBufferSize int           `envconfig:"DELIVERYDASH_REALTIME_READ_BUFFER" default:"1024"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"DELIVERYDASH_CRON_INTERVAL" default:"30s"`
	LockTTL         time.Duration `envconfig:"DELIVERYDASH_CRON_LOCK_TTL" default:"5m"`
	CleanupInterval time.Duration `envconfig:"DELIVERYDASH_CRON_CLEANUP_INTERVAL" default:"5m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DELIVERYDASH_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"DELIVERYDASH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DELIVERYDASH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DispatchTopic        string `envconfig:"DELIVERYDASH_PUBSUB_DISPATCH_TOPIC" default:"dd-dispatch-events"`
	DispatchSubscription string `envconfig:"DELIVERYDASH_PUBSUB_DISPATCH_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DELIVERYDASH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DELIVERYDASH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DELIVERYDASH_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
