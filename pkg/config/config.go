package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	Session       SessionConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Orders        OrdersConfig
	Audit         AuditConfig
	Sweeper       SweeperConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Bootstrap     BootstrapConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.Password.Iterations < MinPasswordIterations {
		cfg.Password.Iterations = MinPasswordIterations
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERDESK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ORDERDESK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"ORDERDESK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"ORDERDESK_LOG_WARN_STACK" default:"false"`

	CORSOrigins     []string      `envconfig:"ORDERDESK_CORS_ORIGINS"`
	ShutdownTimeout time.Duration `envconfig:"ORDERDESK_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERDESK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERDESK_DB_DSN"`
	Driver string `envconfig:"ORDERDESK_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ORDERDESK_DB_HOST"`
	Port     int    `envconfig:"ORDERDESK_DB_PORT" default:"5432"`
	User     string `envconfig:"ORDERDESK_DB_USER"`
	Password string `envconfig:"ORDERDESK_DB_PASSWORD"`
	Name     string `envconfig:"ORDERDESK_DB_NAME"`
	SSLMode  string `envconfig:"ORDERDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERDESK_REDIS_URL"`
	Address      string        `envconfig:"ORDERDESK_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyNamespace string        `envconfig:"ORDERDESK_REDIS_NAMESPACE" default:"od"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type SessionConfig struct {
	TTL        time.Duration `envconfig:"ORDERDESK_SESSION_TTL" default:"168h"`
	TokenBytes int           `envconfig:"ORDERDESK_SESSION_TOKEN_BYTES" default:"32"`
}

type PasswordConfig struct {
	Iterations int `envconfig:"ORDERDESK_PASSWORD_ITERATIONS" default:"1000"`
	KeyLen     int `envconfig:"ORDERDESK_PASSWORD_KEY_LEN" default:"64"`
	SaltLen    int `envconfig:"ORDERDESK_PASSWORD_SALT_LEN" default:"16"`
	MinLength  int `envconfig:"ORDERDESK_PASSWORD_MIN_LENGTH" default:"6"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"ORDERDESK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit int           `envconfig:"ORDERDESK_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"ORDERDESK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type OrdersConfig struct {
	GiftTimerDuration time.Duration `envconfig:"ORDERDESK_ORDERS_GIFT_TIMER" default:"24h"`
	DefaultPageSize   int           `envconfig:"ORDERDESK_ORDERS_DEFAULT_PAGE_SIZE" default:"10"`
	MaxPageSize       int           `envconfig:"ORDERDESK_ORDERS_MAX_PAGE_SIZE" default:"100"`
}

type AuditConfig struct {
	QueueSize int `envconfig:"ORDERDESK_AUDIT_QUEUE_SIZE" default:"256"`
}

type SweeperConfig struct {
	Interval  time.Duration `envconfig:"ORDERDESK_SWEEPER_INTERVAL" default:"1m"`
	LockTTL   time.Duration `envconfig:"ORDERDESK_SWEEPER_LOCK_TTL" default:"50s"`
	BatchSize int           `envconfig:"ORDERDESK_SWEEPER_BATCH_SIZE" default:"200"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ORDERDESK_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ORDERDESK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ORDERDESK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ORDERDESK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"ORDERDESK_PUBSUB_NOTIFICATION_TOPIC"`
}

// NotificationsEnabled reports whether a pubsub topic can be reached for notifications.
func (c Config) NotificationsEnabled() bool {
	return strings.TrimSpace(c.GCP.ProjectID) != "" && strings.TrimSpace(c.PubSub.NotificationTopic) != ""
}

// BootstrapConfig seeds the first administrator account.
type BootstrapConfig struct {
	AdminUsername string `envconfig:"ORDERDESK_BOOTSTRAP_ADMIN_USERNAME" default:"admin"`
	AdminPassword string `envconfig:"ORDERDESK_BOOTSTRAP_ADMIN_PASSWORD"`
	AdminNickname string `envconfig:"ORDERDESK_BOOTSTRAP_ADMIN_NICKNAME" default:"Administrator"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = defaultSQLiteDSN
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
