package config

const EnvPrefix = "ORDERDESK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	MinPasswordIterations = 1000

	defaultSQLiteDSN = "file:orderdesk.db?_busy_timeout=5000&_foreign_keys=on"
)

const (
	EnvAppEnv   = "ORDERDESK_APP_ENV"
	EnvPort     = "ORDERDESK_APP_PORT"
	EnvLogLevel = "ORDERDESK_LOG_LEVEL"

	EnvDBDSN    = "ORDERDESK_DB_DSN"
	EnvDBDriver = "ORDERDESK_DB_DRIVER"
	EnvDBHost   = "ORDERDESK_DB_HOST"
	EnvDBPort   = "ORDERDESK_DB_PORT"
	EnvDBUser   = "ORDERDESK_DB_USER"
	EnvDBName   = "ORDERDESK_DB_NAME"

	EnvRedisURL = "ORDERDESK_REDIS_URL"

	EnvSessionTTL         = "ORDERDESK_SESSION_TTL"
	EnvPasswordIterations = "ORDERDESK_PASSWORD_ITERATIONS"
	EnvSweeperInterval    = "ORDERDESK_SWEEPER_INTERVAL"

	EnvGCPProjectID            = "ORDERDESK_GCP_PROJECT_ID"
	EnvPubSubNotificationTopic = "ORDERDESK_PUBSUB_NOTIFICATION_TOPIC"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
