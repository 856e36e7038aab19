package config

const (
	EnvPrefix = "AMERTA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "AMERTA_APP_ENV"
	EnvPort     = "AMERTA_APP_PORT"
	EnvLogLevel = "AMERTA_LOG_LEVEL"

	EnvDBDSN  = "AMERTA_DB_DSN"
	EnvDBHost = "AMERTA_DB_HOST"
	EnvDBPort = "AMERTA_DB_PORT"
	EnvDBUser = "AMERTA_DB_USER"
	EnvDBPass = "AMERTA_DB_PASSWORD"
	EnvDBName = "AMERTA_DB_NAME"

	EnvRedisURL = "AMERTA_REDIS_URL"

	EnvJWTSecret  = "AMERTA_JWT_SECRET"
	EnvJWTIssuer  = "AMERTA_JWT_ISSUER"
	EnvJWTExpMins = "AMERTA_JWT_EXPIRATION_MINUTES"

	EnvInvoiceMaxAttempts = "AMERTA_CHECKOUT_INVOICE_MAX_ATTEMPTS"
	EnvOrdersTopic        = "AMERTA_PUBSUB_ORDERS_TOPIC"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
