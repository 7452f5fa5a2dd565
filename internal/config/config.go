// Package config provides configuration management for the webhook
// subscriber. It loads settings from environment variables with sensible
// defaults and validates them so the process fails fast on bad deployments.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path; empty logs to stdout
//
// Benchling Integration:
//   - BENCHLING_BASE_URL: Base URL of the Benchling tenant, for example
//     https://tenant.benchling.com (required)
//   - ALLOWED_SOURCE_IPS: Comma-separated caller addresses permitted to
//     deliver webhooks; matched exactly, empty disables filtering
//   - KEY_FETCH_TIMEOUT: HTTP timeout for app key set fetches (default: 10s)
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./webhook_subscriber.db)
//   - POSTGRES_HOST: PostgreSQL host (required if using PostgreSQL)
//   - POSTGRES_PORT: PostgreSQL port (default: 5432)
//   - POSTGRES_DB: PostgreSQL database name (required if using PostgreSQL)
//   - POSTGRES_USER: PostgreSQL username (required if using PostgreSQL)
//   - POSTGRES_PASSWORD: PostgreSQL password
//   - POSTGRES_SSL_MODE: PostgreSQL SSL mode (default: disable)
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Security Configuration:
//   - JWT_SECRET: JWT signing secret for the ops API (required, minimum
//     32 characters)
//   - ENCRYPTION_KEY: Key for encrypting stored webhook payloads
//     (32 characters if provided; empty stores payloads in the clear)
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED: Enable rate limiting (default: true)
//   - RATE_LIMIT_DEFAULT: Default rate limit per window (default: 100)
//   - RATE_LIMIT_WINDOW: Rate limit time window (default: 60s)
//
// Event Forwarding:
//   - FORWARDING_ENABLED: Forward verified events to AWS (default: false)
//   - AWS_REGION: AWS region for SQS/SNS (required when forwarding)
//   - AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN:
//     Static credentials; empty falls back to the default chain
//   - SQS_QUEUE_URL: Target SQS queue
//   - SNS_TOPIC_ARN: Target SNS topic (set the queue or the topic, not both)
//
// Delivery Retention:
//   - RETENTION_ENABLED: Prune old delivery records (default: true)
//   - RETENTION_SCHEDULE: Cron schedule for the sweep (default: @hourly)
//   - RETENTION_MAX_AGE: Age before a delivery is pruned, supports day and
//     week suffixes like "30d" (default: 30d)
//
// TLS:
//   - TLS_CERT_FILE / TLS_KEY_FILE: Serve HTTPS when both are set
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/utils"
)

// Config holds all configuration values for the webhook subscriber. Every
// field corresponds to an environment variable documented in the package
// comment. Load fills it; Validate must pass before use.
type Config struct {
	// Application settings
	Port     string // Server port number
	LogLevel string // Logging level (debug, info, warn, error)

	// Benchling integration
	BenchlingBaseURL string   // Tenant base URL for app key set fetches
	AllowedSourceIPs []string // Exact-match caller allowlist, empty admits all
	KeyFetchTimeout  string   // HTTP timeout for key set fetches

	// Database configuration
	DatabaseType     string // "sqlite" or "postgres"
	DatabasePath     string // Path to SQLite database file
	PostgresHost     string // PostgreSQL host address
	PostgresPort     string // PostgreSQL port number
	PostgresDB       string // PostgreSQL database name
	PostgresUser     string // PostgreSQL username
	PostgresPassword string // PostgreSQL password
	PostgresSSLMode  string // PostgreSQL SSL mode (disable, require, etc.)

	// Redis configuration for rate limiting, token revocation and locks
	RedisAddress  string // Redis server address (host:port)
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size

	// Rate limiting configuration
	RateLimitEnabled bool   // Whether rate limiting is enabled
	RateLimitDefault string // Default requests per window
	RateLimitWindow  string // Rate limiting time window (e.g., "60s", "1m")

	// JWT authentication configuration for the ops API
	JWTSecret string // Secret key for JWT token signing (required)

	// Encryption configuration
	EncryptionKey string // Key for encrypting stored webhook payloads

	// Event forwarding configuration
	ForwardingEnabled  bool   // Forward verified deliveries to AWS
	AWSRegion          string // AWS region for SQS/SNS
	AWSAccessKeyID     string // Static AWS access key, optional
	AWSSecretAccessKey string // Static AWS secret key, optional
	AWSSessionToken    string // Static AWS session token, optional
	SQSQueueURL        string // Target SQS queue URL
	SNSTopicArn        string // Target SNS topic ARN

	// Delivery retention configuration
	RetentionEnabled  bool   // Prune old delivery records on a schedule
	RetentionSchedule string // Cron expression for the sweep
	RetentionMaxAge   string // Delivery age limit, e.g. "30d"

	// TLS configuration
	TLSCertFile string // Certificate file, empty serves plain HTTP
	TLSKeyFile  string // Key file
}

// Load creates a Config with values from environment variables, falling
// back to defaults for anything unset. Call Validate before using it.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Benchling integration
		BenchlingBaseURL: getEnv("BENCHLING_BASE_URL", ""),
		AllowedSourceIPs: splitList(getEnv("ALLOWED_SOURCE_IPS", "")),
		KeyFetchTimeout:  getEnv("KEY_FETCH_TIMEOUT", "10s"),

		// Database configuration
		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./webhook_subscriber.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "webhook_subscriber"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		// Redis configuration
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		// Rate limiting configuration
		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitDefault: getEnv("RATE_LIMIT_DEFAULT", "100"),
		RateLimitWindow:  getEnv("RATE_LIMIT_WINDOW", "60s"),

		// JWT configuration
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Encryption configuration
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		// Event forwarding configuration
		ForwardingEnabled:  getBoolEnv("FORWARDING_ENABLED", false),
		AWSRegion:          getEnv("AWS_REGION", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSSessionToken:    getEnv("AWS_SESSION_TOKEN", ""),
		SQSQueueURL:        getEnv("SQS_QUEUE_URL", ""),
		SNSTopicArn:        getEnv("SNS_TOPIC_ARN", ""),

		// Delivery retention configuration
		RetentionEnabled:  getBoolEnv("RETENTION_ENABLED", true),
		RetentionSchedule: getEnv("RETENTION_SCHEDULE", "@hourly"),
		RetentionMaxAge:   getEnv("RETENTION_MAX_AGE", "30d"),

		// TLS configuration
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),
	}
}

// getEnv retrieves an environment variable value or returns a default
// value if the variable is not set or empty.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value, accepting
// the strconv.ParseBool forms. Unset or unparseable values return the
// default.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// splitList splits a comma-separated value into trimmed entries, dropping
// empty ones. The entries themselves are preserved byte for byte.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var entries []string
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// Validate checks required fields, formats and cross-field dependencies.
// The error messages name environment variables so deployment mistakes are
// easy to trace.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}

	if c.BenchlingBaseURL == "" {
		return fmt.Errorf("BENCHLING_BASE_URL environment variable is required")
	}
	if parsed, err := url.Parse(c.BenchlingBaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("BENCHLING_BASE_URL must be an absolute URL like https://tenant.benchling.com")
	}

	if _, err := time.ParseDuration(c.KeyFetchTimeout); err != nil {
		return fmt.Errorf("KEY_FETCH_TIMEOUT must be a valid duration (e.g., '10s')")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
		// Valid database types
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.RateLimitEnabled {
		if limit, err := strconv.Atoi(c.RateLimitDefault); err != nil || limit < 1 {
			return fmt.Errorf("RATE_LIMIT_DEFAULT must be a positive number")
		}
		if _, err := time.ParseDuration(c.RateLimitWindow); err != nil {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be a valid duration (e.g., '60s', '1m')")
		}
	}

	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 characters (256 bits) when provided")
	}

	if c.ForwardingEnabled {
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION is required when forwarding is enabled")
		}
		if c.SQSQueueURL == "" && c.SNSTopicArn == "" {
			return fmt.Errorf("SQS_QUEUE_URL or SNS_TOPIC_ARN is required when forwarding is enabled")
		}
		if c.SQSQueueURL != "" && c.SNSTopicArn != "" {
			return fmt.Errorf("set only one of SQS_QUEUE_URL and SNS_TOPIC_ARN")
		}
	}

	if c.RetentionEnabled {
		if _, err := utils.ParseDuration(c.RetentionMaxAge); err != nil {
			return fmt.Errorf("RETENTION_MAX_AGE must be a valid duration (e.g., '72h', '30d')")
		}
		if c.RetentionSchedule == "" {
			return fmt.Errorf("RETENTION_SCHEDULE is required when retention is enabled")
		}
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	return nil
}
