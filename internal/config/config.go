// Package config defines the global configuration structure for the
// StudioPulse platform. Configuration is loaded once at process start and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
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

	"studiopulse/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the StudioPulse platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"studiopulse-notifier"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain configurations
	Server        ServerConfig
	Database      DatabaseConfig
	Delivery      DeliveryConfig
	Scheduler     SchedulerConfig
	Email         EmailConfig
	SMS           SMSConfig
	Push          PushConfig
	TextGen       TextGenConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server settings for the API binary.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// DeliveryConfig tunes the delivery queue, dispatcher workers, and the retry
// backoff schedule shared by all channels.
type DeliveryConfig struct {
	WorkersPerChannel int           `envconfig:"DELIVERY_WORKERS_PER_CHANNEL" default:"2" validate:"min=1,max=32"`
	TransportTimeout  time.Duration `envconfig:"DELIVERY_TRANSPORT_TIMEOUT" default:"10s"`
	MaxAttempts       int           `envconfig:"DELIVERY_MAX_ATTEMPTS" default:"3" validate:"min=1,max=10"`
	BackoffBase       time.Duration `envconfig:"DELIVERY_BACKOFF_BASE" default:"2s"`
	BackoffCap        time.Duration `envconfig:"DELIVERY_BACKOFF_CAP" default:"60s"`
	RecoveryBatch     int           `envconfig:"DELIVERY_RECOVERY_BATCH" default:"500"`
}

// SchedulerConfig holds the trigger cadence and reminder lead times.
type SchedulerConfig struct {
	// Cron expressions in robfig/cron standard format (5 fields, UTC).
	DailySummarySpec   string `envconfig:"SCHEDULER_DAILY_SPEC" default:"0 3 * * *"`
	ReminderWindowSpec string `envconfig:"SCHEDULER_REMINDER_SPEC" default:"0 * * * *"`

	// Lead times at which appointment reminders fire.
	ReminderLeadTimes []time.Duration `envconfig:"SCHEDULER_REMINDER_LEADS" default:"24h,1h"`
}

// EmailConfig holds email delivery provider settings.
type EmailConfig struct {
	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" default:"studio@studiopulse.app"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"StudioPulse"`
	// SES configuration set name for open/bounce tracking. Optional.
	ConfigSetName string `envconfig:"EMAIL_SES_CONFIG_SET"`
	Region        string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// SMSConfig holds the HTTP SMS gateway credentials.
type SMSConfig struct {
	GatewayURL string       `envconfig:"SMS_GATEWAY_URL" validate:"omitempty,url"`
	APIKey     SecretString `envconfig:"SMS_API_KEY"`
	Sender     string       `envconfig:"SMS_SENDER" default:"StudioPulse"`
}

// PushConfig holds Web Push VAPID keys.
type PushConfig struct {
	VAPIDPublicKey  string       `envconfig:"PUSH_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey SecretString `envconfig:"PUSH_VAPID_PRIVATE_KEY"`
	Subscriber      string       `envconfig:"PUSH_SUBSCRIBER" default:"mailto:studio@studiopulse.app"`
}

// TextGenConfig holds the optional text-generation collaborator endpoint.
// When BaseURL is empty the summary builder always uses the templated
// fallback.
type TextGenConfig struct {
	BaseURL string        `envconfig:"TEXTGEN_BASE_URL" validate:"omitempty,url"`
	APIKey  SecretString  `envconfig:"TEXTGEN_API_KEY"`
	Timeout time.Duration `envconfig:"TEXTGEN_TIMEOUT" default:"5s"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"StudioPulse"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
