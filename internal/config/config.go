// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Host   string `env:"HOST" envDefault:"0.0.0.0"`
	Port   int    `env:"PORT" envDefault:"8080"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	// Provider credentials. An Anthropic key beginning with sk-ant-oat is an
	// OAuth access token and switches the client to the OAuth code path.
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-20250514"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIModel     string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	// Generic OpenAI-compatible provider, e.g. a local inference server.
	OpenCodeAPIKey  string `env:"OPENCODE_API_KEY"`
	OpenCodeBaseURL string `env:"OPENCODE_BASE_URL"`
	OpenCodeModel   string `env:"OPENCODE_MODEL" envDefault:"default"`

	LLMTimeoutSecs int `env:"LLM_TIMEOUT_SECS" envDefault:"120"`

	// Job lifecycle.
	GradeTTLSecs        int   `env:"GRADE_TTL_SECS" envDefault:"3600"`
	ReviewTTLSecs       int   `env:"REVIEW_TTL_SECS" envDefault:"3600"`
	MaxConcurrentChecks int   `env:"MAX_CONCURRENT_CHECKS" envDefault:"4"`
	MaxRepoSizeMB       int64 `env:"MAX_REPO_SIZE_MB" envDefault:"100"`

	// Optional external stores; an empty value disables the adapter.
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	KafkaBrokers    []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic      string        `env:"KAFKA_TOPIC" envDefault:"grade-reports"`
	RetentionDays   int           `env:"RETENTION_DAYS" envDefault:"90"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`

	OTLPEndpoint    string `env:"OTLP_ENDPOINT"`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"ai-code-grader"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`

	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// Addr returns the host:port the HTTP server binds to.
func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// AnthropicOAuth reports whether the Anthropic credential is an OAuth token.
func (c Config) AnthropicOAuth() bool {
	return strings.HasPrefix(c.AnthropicAPIKey, "sk-ant-oat")
}

// LLMTimeout returns the per-request provider timeout.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSecs) * time.Second
}

// GradeTTL returns how long finished grade jobs stay queryable.
func (c Config) GradeTTL() time.Duration {
	return time.Duration(c.GradeTTLSecs) * time.Second
}

// ReviewTTL returns the cache lifetime of review results.
func (c Config) ReviewTTL() time.Duration {
	return time.Duration(c.ReviewTTLSecs) * time.Second
}

// PersistenceEnabled reports whether the document store adapter is configured.
func (c Config) PersistenceEnabled() bool { return c.DatabaseURL != "" }

// CacheEnabled reports whether the review cache adapter is configured.
func (c Config) CacheEnabled() bool { return c.RedisAddr != "" }

// PublishEnabled reports whether the report publisher is configured.
func (c Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }
