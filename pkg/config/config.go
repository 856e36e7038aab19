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
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Maintenance  MaintenanceConfig
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
	Env             string        `envconfig:"AMERTA_APP_ENV" required:"true"`
	Port            string        `envconfig:"AMERTA_APP_PORT" required:"true"`
	LogLevel        string        `envconfig:"AMERTA_LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"AMERTA_LOG_FORMAT" default:"json"`
	LogWarnStack    bool          `envconfig:"AMERTA_LOG_WARN_STACK" default:"false"`
	RequestTimeout  time.Duration `envconfig:"AMERTA_REQUEST_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"AMERTA_SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string      `envconfig:"AMERTA_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AMERTA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AMERTA_DB_DSN"`
	Driver string `envconfig:"AMERTA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"AMERTA_DB_HOST"`
	Port     int    `envconfig:"AMERTA_DB_PORT" default:"5432"`
	User     string `envconfig:"AMERTA_DB_USER"`
	Password string `envconfig:"AMERTA_DB_PASSWORD"`
	Name     string `envconfig:"AMERTA_DB_NAME"`
	SSLMode  string `envconfig:"AMERTA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AMERTA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AMERTA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AMERTA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AMERTA_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	ApplicationName    string        `envconfig:"AMERTA_DB_APPLICATION_NAME" default:"amerta-coffee-api"`
	SlowQueryThreshold time.Duration `envconfig:"AMERTA_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AMERTA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AMERTA_REDIS_ADDR"`
	Password     string        `envconfig:"AMERTA_REDIS_PASSWORD"`
	DB           int           `envconfig:"AMERTA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AMERTA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AMERTA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AMERTA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AMERTA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AMERTA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig carries the verification settings for bearer tokens issued by
// the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"AMERTA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AMERTA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AMERTA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type CheckoutConfig struct {
	InvoiceMaxAttempts int           `envconfig:"AMERTA_CHECKOUT_INVOICE_MAX_ATTEMPTS" default:"5"`
	IdempotencyTTL     time.Duration `envconfig:"AMERTA_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
	RateLimit          int           `envconfig:"AMERTA_CHECKOUT_RATE_LIMIT" default:"10"`
	RateLimitWindow    time.Duration `envconfig:"AMERTA_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AMERTA_AUTO_MIGRATE" default:"false"`
	Metrics     bool `envconfig:"AMERTA_FEATURE_METRICS" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AMERTA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"AMERTA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic  string `envconfig:"AMERTA_PUBSUB_ORDERS_TOPIC" default:"amerta-order-events"`
	EmulatorHost string `envconfig:"AMERTA_PUBSUB_EMULATOR_HOST"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AMERTA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AMERTA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AMERTA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type MaintenanceConfig struct {
	Interval            time.Duration `envconfig:"AMERTA_MAINTENANCE_INTERVAL" default:"1h"`
	LockTTL             time.Duration `envconfig:"AMERTA_MAINTENANCE_LOCK_TTL" default:"55m"`
	JobTimeout          time.Duration `envconfig:"AMERTA_MAINTENANCE_JOB_TIMEOUT" default:"10m"`
	OutboxRetentionDays int           `envconfig:"AMERTA_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
