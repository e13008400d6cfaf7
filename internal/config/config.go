// Package config defines the global configuration for the QR Studio API.
// Configuration is loaded once at process initialization and is immutable
// thereafter, following 12-Factor principles: values come from the OS
// environment, optionally seeded from a .env file in local development.
// Any missing required value fails startup immediately.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"qrstudio/internal/types"
)

// Config is the top-level configuration struct. It is populated once during
// startup and never modified. Sub-components receive only the specific
// subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Limits   LimitsConfig
	Webhook  WebhookConfig
}

// ServerConfig holds HTTP server and public URL settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	// Public base URL used to build short links (no trailing slash),
	// e.g. https://qr.st
	ShortLinkBaseURL   string   `envconfig:"SHORT_LINK_BASE_URL" default:"http://localhost:8080"`
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds Postgres connection and pool tuning parameters.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" required:"true"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RedisConfig holds the optional redirect-cache settings. An empty address
// disables caching; the redirect handler degrades to DB lookups.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_SHORTCODE_TTL" default:"5m"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	// JWTSecret signs and verifies HS256 session tokens minted by the
	// web frontend's auth layer.
	JWTSecret  string `envconfig:"JWT_SECRET" required:"true"`
	BcryptCost int    `envconfig:"BCRYPT_COST" default:"10"`
}

// LimitsConfig holds plan-enforcement settings.
type LimitsConfig struct {
	// MissingUserPolicy decides whether a limit check for an unknown user
	// falls back to FREE limits (historical behavior) or errors.
	MissingUserPolicy types.MissingUserPolicy `envconfig:"LIMITS_MISSING_USER_POLICY" default:"fallback_free"`
	ShortCodeLength   int                     `envconfig:"SHORT_CODE_LENGTH" default:"8"`
}

// WebhookConfig holds settings for outbound webhook delivery.
type WebhookConfig struct {
	UserAgent    string        `envconfig:"WEBHOOK_USER_AGENT" default:"QRStudio-Webhook/1.0"`
	Timeout      time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	QueueSize    int           `envconfig:"WEBHOOK_QUEUE_SIZE" default:"256"`
	Workers      int           `envconfig:"WEBHOOK_WORKERS" default:"4"`
	MaxRetries   int           `envconfig:"WEBHOOK_MAX_RETRIES" default:"3"`
	RetryMinWait time.Duration `envconfig:"WEBHOOK_RETRY_MIN_WAIT" default:"500ms"`
	RetryMaxWait time.Duration `envconfig:"WEBHOOK_RETRY_MAX_WAIT" default:"10s"`
}

// Load reads configuration from the environment. In local development a
// .env file is merged in first (missing file is not an error).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate applies the fail-fast checks that envconfig tags cannot express.
func (c *Config) validate() error {
	switch c.Limits.MissingUserPolicy {
	case types.MissingUserFallbackFree, types.MissingUserError:
	default:
		return fmt.Errorf("invalid LIMITS_MISSING_USER_POLICY %q", c.Limits.MissingUserPolicy)
	}

	if c.Limits.ShortCodeLength < 4 || c.Limits.ShortCodeLength > 32 {
		return fmt.Errorf("SHORT_CODE_LENGTH must be between 4 and 32, got %d", c.Limits.ShortCodeLength)
	}

	if c.Webhook.Workers < 1 {
		return fmt.Errorf("WEBHOOK_WORKERS must be at least 1, got %d", c.Webhook.Workers)
	}

	return nil
}
