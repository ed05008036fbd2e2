package config

const (
	EnvPrefix = "TRAMAR"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv          = "TRAMAR_APP_ENV"
	EnvPort            = "TRAMAR_APP_PORT"
	EnvDBDSN           = "TRAMAR_DB_DSN"
	EnvDBHost          = "TRAMAR_DB_HOST"
	EnvDBUser          = "TRAMAR_DB_USER"
	EnvDBName          = "TRAMAR_DB_NAME"
	EnvDBPassword      = "TRAMAR_DB_PASSWORD"
	EnvRedisURL        = "TRAMAR_REDIS_URL"
	EnvJWTSecret       = "TRAMAR_JWT_SECRET"
	EnvJWTIssuer       = "TRAMAR_JWT_ISSUER"
	EnvPricingTaxRate  = "TRAMAR_PRICING_TAX_RATE"
	EnvPricingCurrency = "TRAMAR_PRICING_CURRENCY"
	EnvStripeAPIKey    = "TRAMAR_STRIPE_API_KEY"
	EnvStripeSecret    = "TRAMAR_STRIPE_WEBHOOK_SECRET"
	EnvOrdersUnpaidTTL = "TRAMAR_ORDERS_UNPAID_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
