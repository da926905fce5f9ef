package configuration

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds the settings for the assistant: remote providers, fallback
// order, resilience parameters, cache sizing and the process surfaces.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	// HTTP client configuration
	HTTPTimeout time.Duration `json:"http_timeout" mapstructure:"http_timeout" validate:"gt=0"`
	HTTPClient  *http.Client  `json:"-" mapstructure:"-" validate:"-"`

	// Primary names the provider every agent call tries first.
	Primary string `json:"primary" mapstructure:"primary" validate:"required"`

	// Provider configurations keyed by provider name
	Providers map[string]ProviderConfig `json:"providers" mapstructure:"providers" validate:"required,dive"`

	Fallback       FallbackConfig       `json:"fallback" mapstructure:"fallback"`
	Retry          RetryConfig          `json:"retry" mapstructure:"retry"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" mapstructure:"circuit_breaker"`
	Cache          CacheConfig          `json:"cache" mapstructure:"cache"`
	RateLimit      RateLimitConfig      `json:"rate_limit" mapstructure:"rate_limit"`
	Question       QuestionConfig       `json:"question" mapstructure:"question"`
	Observability  ObservabilityConfig  `json:"observability" mapstructure:"observability"`
	Server         ServerConfig         `json:"server" mapstructure:"server"`
	Temporal       TemporalConfig       `json:"temporal" mapstructure:"temporal"`
}

// ProviderConfig holds provider-specific endpoints, credentials and models.
// SecondaryAPIKey is only honored by the Google client, which switches to it
// once the primary key's quota is exhausted.
type ProviderConfig struct {
	Endpoint        string            `json:"endpoint" mapstructure:"endpoint"`
	APIKey          string            `json:"-" mapstructure:"api_key"`           // Sensitive, not serialized
	SecondaryAPIKey string            `json:"-" mapstructure:"secondary_api_key"` // Sensitive, not serialized
	Model           string            `json:"model" mapstructure:"model"`
	Models          []string          `json:"models" mapstructure:"models"`
	Timeout         time.Duration     `json:"timeout" mapstructure:"timeout" validate:"gte=0"`
	MaxTokens       int               `json:"max_tokens" mapstructure:"max_tokens" validate:"gte=0"`
	Temperature     float64           `json:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
	Headers         map[string]string `json:"headers" mapstructure:"headers"`
}

// Configured reports whether the provider has credentials.
func (p ProviderConfig) Configured() bool {
	return p.APIKey != ""
}

// FallbackConfig orders the secondary providers consulted when the primary
// fails with a fallback-eligible error.
type FallbackConfig struct {
	Enabled   bool     `json:"enabled" mapstructure:"enabled"`
	Providers []string `json:"providers" mapstructure:"providers"`
}

// RetryConfig controls same-provider retries of transient transport failures.
type RetryConfig struct {
	// Attempts including the first
	MaxAttempts     int           `json:"max_attempts" mapstructure:"max_attempts" validate:"gt=0"`
	// Total time budget for all attempts
	MaxElapsedTime  time.Duration `json:"max_elapsed_time" mapstructure:"max_elapsed_time" validate:"gte=0"`
	// Starting backoff duration
	InitialInterval time.Duration `json:"initial_interval" mapstructure:"initial_interval" validate:"gt=0"`
	MaxInterval     time.Duration `json:"max_interval" mapstructure:"max_interval" validate:"gtefield=InitialInterval"`
	// Exponential backoff multiplier
	Multiplier      float64       `json:"multiplier" mapstructure:"multiplier" validate:"gte=1"`
	// Enable full jitter randomization
	UseJitter       bool          `json:"use_jitter" mapstructure:"use_jitter"`
}

// CircuitBreakerConfig controls the per provider:model breaker that fails
// fast while a model keeps erroring, so fallback moves on without waiting.
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled" mapstructure:"enabled"`
	FailureThreshold int           `json:"failure_threshold" mapstructure:"failure_threshold" validate:"gte=0"` // Consecutive failures that open the circuit
	SuccessThreshold int           `json:"success_threshold" mapstructure:"success_threshold" validate:"gte=0"` // Probe successes that close it again
	OpenTimeout      time.Duration `json:"open_timeout" mapstructure:"open_timeout" validate:"gte=0"`
	HalfOpenProbes   int           `json:"half_open_probes" mapstructure:"half_open_probes" validate:"gte=0"`
}

// CacheConfig controls the in-process response cache.
type CacheConfig struct {
	Enabled             bool          `json:"enabled" mapstructure:"enabled"`
	TTL                 time.Duration `json:"ttl" mapstructure:"ttl" validate:"gte=0"`
	MaxSize             int           `json:"max_size" mapstructure:"max_size" validate:"gte=0"`
	SimilarityThreshold float64       `json:"similarity_threshold" mapstructure:"similarity_threshold" validate:"gte=0,lte=1"` // 0 disables near-duplicate lookups
}

// RateLimitConfig controls per-client request limiting on the HTTP surface.
type RateLimitConfig struct {
	Enabled           bool          `json:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int           `json:"requests_per_minute" mapstructure:"requests_per_minute" validate:"gte=0"`
	Burst             int           `json:"burst" mapstructure:"burst" validate:"gte=0"`
	IdleTTL           time.Duration `json:"idle_ttl" mapstructure:"idle_ttl" validate:"gte=0"`
}

// QuestionConfig bounds accepted question length in characters.
type QuestionConfig struct {
	MinLength int `json:"min_length" mapstructure:"min_length" validate:"gt=0"`
	MaxLength int `json:"max_length" mapstructure:"max_length" validate:"gtfield=MinLength"`
}

// ObservabilityConfig controls structured logging.
type ObservabilityConfig struct {
	LogLevel      string `json:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat     string `json:"log_format" mapstructure:"log_format" validate:"oneof=json text"`
	RedactPrompts bool   `json:"redact_prompts" mapstructure:"redact_prompts"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Addr         string        `json:"addr" mapstructure:"addr" validate:"required"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`
}

// TemporalConfig locates the Temporal frontend used by the worker.
type TemporalConfig struct {
	HostPort  string `json:"host_port" mapstructure:"host_port" validate:"required"`
	Namespace string `json:"namespace" mapstructure:"namespace" validate:"required"`
	TaskQueue string `json:"task_queue" mapstructure:"task_queue" validate:"required"`
}

// Validate checks struct constraints and cross-field references between the
// primary, fallback list and provider table.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, ok := c.Providers[c.Primary]; !ok {
		return fmt.Errorf("%w: primary provider %q has no configuration", ErrInvalidConfig, c.Primary)
	}
	for _, name := range c.Fallback.Providers {
		if _, ok := c.Providers[name]; !ok {
			return fmt.Errorf("%w: fallback provider %q has no configuration", ErrInvalidConfig, name)
		}
		if name == c.Primary {
			return fmt.Errorf("%w: provider %q is both primary and fallback", ErrInvalidConfig, name)
		}
	}
	return nil
}
