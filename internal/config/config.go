// Package config defines the global configuration structure for the
// back-office notification pipeline. Configuration is loaded once at process
// startup and is immutable thereafter. It follows 12-Factor App principles by
// strictly separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the process to exit
// immediately on startup (fail fast).
package config

import (
	"time"

	"backoffice/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the notification worker.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"backoffice-notify"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain configurations
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AWS      AWSConfig
	Sms      SmsConfig
	Email    EmailConfig
	Jobs     JobsConfig

	// Build metadata (injected via ldflags, not env)
	Build BuildInfo
}

// ServerConfig holds the ops/health HTTP listener configuration.
type ServerConfig struct {
	OpsPort string `envconfig:"OPS_PORT" default:"8081"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RedisConfig holds the Redis connection used for distributed job locks.
// An empty Addr in the local environment falls back to in-process locks.
type RedisConfig struct {
	Addr     string       `envconfig:"REDIS_ADDR"`
	Password SecretString `envconfig:"REDIS_PASSWORD"`
	DB       int          `envconfig:"REDIS_DB" default:"0"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// InsiteGatewayQueue is the SQS queue consumed by the websocket gateway
	// that pushes in-site messages to connected back-office sessions.
	InsiteGatewayQueue string `envconfig:"SQS_INSITE_GATEWAY" validate:"required,url"`

	// MetricNamespace overrides the default CloudWatch namespace when set.
	MetricNamespace string `envconfig:"METRIC_NAMESPACE"`

	// LocalStack support (empty in prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SmsConfig holds SMS gateway provider credentials. An empty AccessKey
// swaps in a logging stub provider.
type SmsConfig struct {
	BaseURL   string       `envconfig:"SMS_GATEWAY_URL" validate:"omitempty,url"`
	AccessKey SecretString `envconfig:"SMS_GATEWAY_KEY"`
	// SignName is the registered sender signature prepended by the gateway.
	SignName string        `envconfig:"SMS_SIGN_NAME" default:"BackOffice"`
	Timeout  time.Duration `envconfig:"SMS_TIMEOUT" default:"5s"`
}

// EmailConfig holds email delivery provider credentials.
type EmailConfig struct {
	SendGridAPIKey SecretString  `envconfig:"SENDGRID_API_KEY"`
	FromAddress    string        `envconfig:"EMAIL_FROM_ADDRESS" default:"noreply@backoffice.local"`
	FromName       string        `envconfig:"EMAIL_FROM_NAME" default:"BackOffice"`
	Timeout        time.Duration `envconfig:"EMAIL_TIMEOUT" default:"10s"`
}

// / JobsConfig holds drain-job tuning: batch sizes, retry caps, inter-run
// delays, and lock TTLs. A job's lock TTL must exceed its expected
// worst-case run time so a slow run does not let a duplicate start.
type JobsConfig struct {
	EventBatchSize  int `envconfig:"JOB_EVENT_BATCH" default:"100"`
	EmailBatchSize  int `envconfig:"JOB_EMAIL_BATCH" default:"200"`
	InsiteBatchSize int `envconfig:"JOB_INSITE_BATCH" default:"200"`

	MaxAttempts int `envconfig:"JOB_MAX_ATTEMPTS" default:"3"`

	EventSendDelay   time.Duration `envconfig:"JOB_EVENT_SEND_DELAY" default:"10s"`
	EventRetryDelay  time.Duration `envconfig:"JOB_EVENT_RETRY_DELAY" default:"60s"`
	EmailSendDelay   time.Duration `envconfig:"JOB_EMAIL_SEND_DELAY" default:"15s"`
	EmailRetryDelay  time.Duration `envconfig:"JOB_EMAIL_RETRY_DELAY" default:"60s"`
	InsiteSendDelay  time.Duration `envconfig:"JOB_INSITE_SEND_DELAY" default:"15s"`
	InsiteRetryDelay time.Duration `envconfig:"JOB_INSITE_RETRY_DELAY" default:"60s"`

	LockTTL time.Duration `envconfig:"JOB_LOCK_TTL" default:"5m"`

	// BindingCacheTTL bounds resolver staleness after administrative updates.
	BindingCacheTTL time.Duration `envconfig:"BINDING_CACHE_TTL" default:"5m"`
}

// BuildInfo carries compile-time build metadata for startup logging.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}
