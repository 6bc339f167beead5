package config

const EnvPrefix = "MEDLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "MEDLEDGER_APP_ENV"
	EnvPort     = "MEDLEDGER_APP_PORT"
	EnvDBDSN    = "MEDLEDGER_DB_DSN"
	EnvDBHost   = "MEDLEDGER_DB_HOST"
	EnvDBUser   = "MEDLEDGER_DB_USER"
	EnvDBName   = "MEDLEDGER_DB_NAME"
	EnvRedisURL = "MEDLEDGER_REDIS_URL"

	EnvJWTSecret              = "MEDLEDGER_JWT_SECRET"
	EnvJWTIssuer              = "MEDLEDGER_JWT_ISSUER"
	EnvJWTExpMins             = "MEDLEDGER_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "MEDLEDGER_REFRESH_TOKEN_TTL_MINUTES"

	EnvGCPProjectID      = "MEDLEDGER_GCP_PROJECT_ID"
	EnvGCSBucket         = "MEDLEDGER_GCS_BUCKET_NAME"
	EnvGCSUploadExpiry   = "MEDLEDGER_GCS_UPLOAD_URL_EXPIRY"
	EnvGCSDownloadExpiry = "MEDLEDGER_GCS_DOWNLOAD_URL_EXPIRY"

	EnvPubSubLedgerTopic       = "MEDLEDGER_PUBSUB_LEDGER_TOPIC"
	EnvPubSubNotificationSub   = "MEDLEDGER_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubEvidenceTopic     = "MEDLEDGER_PUBSUB_EVIDENCE_TOPIC"
	EnvPubSubEvidenceDeleteSub = "MEDLEDGER_PUBSUB_EVIDENCE_DELETION_SUBSCRIPTION"
	EnvPubSubEmailTopic        = "MEDLEDGER_PUBSUB_EMAIL_TOPIC"

	EnvLedgerMaxTransfer = "MEDLEDGER_LEDGER_MAX_TRANSFER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
