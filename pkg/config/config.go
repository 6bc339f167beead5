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
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	GCS           GCSConfig
	Evidence      EvidenceConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Ledger        LedgerConfig
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
	Env          string `envconfig:"MEDLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"MEDLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MEDLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEDLEDGER_LOG_WARN_STACK" default:"false"`
	PublicURL    string `envconfig:"MEDLEDGER_PUBLIC_URL" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"MEDLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MEDLEDGER_DB_DSN"`
	Driver string `envconfig:"MEDLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MEDLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"MEDLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MEDLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"MEDLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"MEDLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"MEDLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEDLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEDLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEDLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEDLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEDLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MEDLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"MEDLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEDLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEDLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEDLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEDLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEDLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEDLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MEDLEDGER_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MEDLEDGER_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"MEDLEDGER_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"MEDLEDGER_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MEDLEDGER_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MEDLEDGER_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MEDLEDGER_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MEDLEDGER_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MEDLEDGER_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MEDLEDGER_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MEDLEDGER_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MEDLEDGER_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MEDLEDGER_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MEDLEDGER_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MEDLEDGER_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MEDLEDGER_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"MEDLEDGER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	HTTPIdempotencyTTL   time.Duration `envconfig:"MEDLEDGER_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MEDLEDGER_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"MEDLEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MEDLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"MEDLEDGER_GCS_BUCKET_NAME" required:"true"`
	UploadURLExpiry   time.Duration `envconfig:"MEDLEDGER_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"MEDLEDGER_GCS_DOWNLOAD_URL_EXPIRY" default:"30m"`
}

type EvidenceConfig struct {
	MaxUploadMB     int           `envconfig:"MEDLEDGER_EVIDENCE_MAX_UPLOAD_MB" default:"10"`
	PendingLifetime time.Duration `envconfig:"MEDLEDGER_EVIDENCE_PENDING_LIFETIME" default:"24h"`
}

// MaxUploadBytes converts the configured megabyte ceiling to bytes.
func (e EvidenceConfig) MaxUploadBytes() int64 {
	if e.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(e.MaxUploadMB) << 20
}

type PubSubConfig struct {
	LedgerTopic                  string `envconfig:"MEDLEDGER_PUBSUB_LEDGER_TOPIC" default:"medledger-ledger-events"`
	NotificationSubscription     string `envconfig:"MEDLEDGER_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	EvidenceTopic                string `envconfig:"MEDLEDGER_PUBSUB_EVIDENCE_TOPIC" default:"medledger-evidence-events"`
	EvidenceDeletionSubscription string `envconfig:"MEDLEDGER_PUBSUB_EVIDENCE_DELETION_SUBSCRIPTION" required:"true"`
	EmailTopic                   string `envconfig:"MEDLEDGER_PUBSUB_EMAIL_TOPIC" default:"medledger-email-dispatch"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MEDLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MEDLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MEDLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type LedgerConfig struct {
	MaxTransfer       string        `envconfig:"MEDLEDGER_LEDGER_MAX_TRANSFER" default:"100000"`
	StalePendingAfter time.Duration `envconfig:"MEDLEDGER_LEDGER_STALE_PENDING_AFTER" default:"72h"`
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
