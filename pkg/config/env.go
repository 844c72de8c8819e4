package config

// EnvPrefix is passed to envconfig; every field carries its full name in the tag.
const EnvPrefix = "DESIGNDROP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "DESIGNDROP_APP_ENV"
	EnvPort     = "DESIGNDROP_APP_PORT"
	EnvLogLevel = "DESIGNDROP_LOG_LEVEL"

	EnvDBDSN    = "DESIGNDROP_DB_DSN"
	EnvDBDriver = "DESIGNDROP_DB_DRIVER"
	EnvDBHost   = "DESIGNDROP_DB_HOST"
	EnvDBUser   = "DESIGNDROP_DB_USER"
	EnvDBName   = "DESIGNDROP_DB_NAME"

	EnvRedisURL = "DESIGNDROP_REDIS_URL"

	EnvJWTSecret  = "DESIGNDROP_JWT_SECRET"
	EnvJWTIssuer  = "DESIGNDROP_JWT_ISSUER"
	EnvJWTExpMins = "DESIGNDROP_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "DESIGNDROP_GCP_PROJECT_ID"

	EnvPubSubNotificationSub = "DESIGNDROP_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubDesignsTopic    = "DESIGNDROP_PUBSUB_DESIGNS_TOPIC"
	EnvPubSubAnalyticsSub    = "DESIGNDROP_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvBigQueryDataset       = "DESIGNDROP_BIGQUERY_DATASET"

	EnvVotingWindow        = "DESIGNDROP_VOTING_WINDOW"
	EnvVotingDefaultGoal   = "DESIGNDROP_VOTING_DEFAULT_GOAL"
	EnvDefaultRoyaltyRate  = "DESIGNDROP_DEFAULT_ROYALTY_RATE"
	EnvDefaultQuarterlyCap = "DESIGNDROP_DEFAULT_QUARTERLY_CAP"
	EnvCronSweepInterval   = "DESIGNDROP_CRON_SWEEP_INTERVAL"
	EnvLogFile             = "DESIGNDROP_LOG_FILE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
