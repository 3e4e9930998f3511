// Package config defines the process configuration for the pen-pal delivery
// service. Configuration is loaded once at startup and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"fmt"
	"time"

	"penpal/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types for redacted values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the section they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"penpal-delivery"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Delivery      DeliveryConfig
	Cycle         CycleConfig
	AWS           AWSConfig
	Events        EventsConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"gt=0"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2" validate:"gte=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
	// AutoMigrate applies pending goose migrations before the API starts.
	AutoMigrate bool `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// DeliveryConfig tunes delay computation and the delivery runner.
type DeliveryConfig struct {
	Enabled     bool          `envconfig:"DELIVERY_RUNNER_ENABLED" default:"true"`
	Interval    time.Duration `envconfig:"DELIVERY_INTERVAL" default:"60s" validate:"gt=0"`
	BatchSize   int           `envconfig:"DELIVERY_BATCH_SIZE" default:"500" validate:"gt=0"`
	ItemTimeout time.Duration `envconfig:"DELIVERY_ITEM_TIMEOUT" default:"5s" validate:"gt=0"`
	// DefaultMode is the delay strategy used when a caller does not pick one.
	DefaultMode string `envconfig:"DELAY_MODE" default:"fast" validate:"oneof=fast realistic continent continent_far"`
	// RandomSeed seeds delay jitter and match tie-breaking. 0 seeds from the clock.
	RandomSeed uint64 `envconfig:"DELAY_RANDOM_SEED" default:"0"`
}

// CycleConfig tunes the daily archival and redistribution job.
type CycleConfig struct {
	Enabled bool `envconfig:"CYCLE_ENABLED" default:"true"`
	// Schedule is a six-field cron expression (with seconds) evaluated in UTC.
	Schedule        string        `envconfig:"CYCLE_SCHEDULE" default:"0 0 3 * * *" validate:"required"`
	StalenessWindow time.Duration `envconfig:"CYCLE_STALENESS_WINDOW" default:"24h" validate:"gt=0"`
	MatchesPerUser  int           `envconfig:"CYCLE_MATCHES_PER_USER" default:"3" validate:"gt=0"`
	Concurrency     int           `envconfig:"CYCLE_CONCURRENCY" default:"4" validate:"gt=0"`
	LockTTL         time.Duration `envconfig:"CYCLE_LOCK_TTL" default:"23h" validate:"gt=0"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// ArchiveBucket receives compressed manifests of archived letters. Empty disables export.
	ArchiveBucket string `envconfig:"ARCHIVE_BUCKET"`
	// DeliveryEventsQueue is the SQS queue for delivered-letter events.
	DeliveryEventsQueue string `envconfig:"SQS_DELIVERY_EVENTS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EventsConfig selects where delivered-letter events are published.
type EventsConfig struct {
	Backend      string   `envconfig:"EVENTS_BACKEND" default:"none" validate:"oneof=none sqs kafka"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"letters.delivered"`
}

// SecurityConfig holds the shared key guarding admin trigger endpoints.
type SecurityConfig struct {
	AdminAPIKey SecretString `envconfig:"ADMIN_API_KEY" validate:"required"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"PenPal"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// checkDependencies enforces rules that span fields and cannot be expressed
// with struct tags.
func (c *Config) checkDependencies() error {
	switch c.Events.Backend {
	case "sqs":
		if c.AWS.DeliveryEventsQueue == "" {
			return fmt.Errorf("EVENTS_BACKEND=sqs requires SQS_DELIVERY_EVENTS")
		}
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 {
			return fmt.Errorf("EVENTS_BACKEND=kafka requires KAFKA_BROKERS")
		}
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
