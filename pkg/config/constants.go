package config

const (
	EnvPrefix = "MAKERSROW"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "MAKERSROW_DB_DSN"
	EnvDBHost = "MAKERSROW_DB_HOST"
	EnvDBUser = "MAKERSROW_DB_USER"
	EnvDBName = "MAKERSROW_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
