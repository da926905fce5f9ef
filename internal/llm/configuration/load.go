package configuration

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix scopes environment overrides, e.g. ADA_CACHE_TTL=30m.
const EnvPrefix = "ADA"

// ErrInvalidConfig indicates cross-field configuration problems.
var ErrInvalidConfig = errors.New("invalid configuration")

// legacyEnv maps provider credentials to the variable names used by
// existing deployments' .env files.
var legacyEnv = map[string][]string{
	"providers.google.api_key":           {"GOOGLE_API_KEY"},
	"providers.google.secondary_api_key": {"GOOGLE_API_KEY_SECOND"},
	"providers.fireworks.api_key":        {"FIREWORKS_API_KEY"},
	"providers.openai.api_key":           {"OPENAI_API_KEY"},
	"providers.anthropic.api_key":        {"ANTHROPIC_API_KEY"},
	"observability.log_level":            {"LOG_LEVEL"},
	"rate_limit.requests_per_minute":     {"RATE_LIMIT_PER_MINUTE"},
	"fallback.enabled":                   {"FALLBACK_ENABLED"},
}

// Load reads configuration from an optional YAML file, a .env file in the
// working directory and the environment, in increasing precedence, on top
// of DefaultConfig. The result is validated before it is returned.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Settings returns the effective settings as a nested map with credentials
// redacted, for display by the CLI.
func Settings(path string) (map[string]any, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	settings := v.AllSettings()
	redact(settings)
	return settings, nil
}

func newViper(path string) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("http_timeout", cfg.HTTPTimeout)
	v.SetDefault("primary", cfg.Primary)

	for name, p := range cfg.Providers {
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"endpoint", p.Endpoint)
		v.SetDefault(prefix+"api_key", p.APIKey)
		v.SetDefault(prefix+"secondary_api_key", p.SecondaryAPIKey)
		v.SetDefault(prefix+"model", p.Model)
		v.SetDefault(prefix+"models", p.Models)
		v.SetDefault(prefix+"timeout", p.Timeout)
		v.SetDefault(prefix+"max_tokens", p.MaxTokens)
		v.SetDefault(prefix+"temperature", p.Temperature)
	}

	v.SetDefault("fallback.enabled", cfg.Fallback.Enabled)
	v.SetDefault("fallback.providers", cfg.Fallback.Providers)

	v.SetDefault("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.SetDefault("retry.max_elapsed_time", cfg.Retry.MaxElapsedTime)
	v.SetDefault("retry.initial_interval", cfg.Retry.InitialInterval)
	v.SetDefault("retry.max_interval", cfg.Retry.MaxInterval)
	v.SetDefault("retry.multiplier", cfg.Retry.Multiplier)
	v.SetDefault("retry.use_jitter", cfg.Retry.UseJitter)

	v.SetDefault("circuit_breaker.enabled", cfg.CircuitBreaker.Enabled)
	v.SetDefault("circuit_breaker.failure_threshold", cfg.CircuitBreaker.FailureThreshold)
	v.SetDefault("circuit_breaker.success_threshold", cfg.CircuitBreaker.SuccessThreshold)
	v.SetDefault("circuit_breaker.open_timeout", cfg.CircuitBreaker.OpenTimeout)
	v.SetDefault("circuit_breaker.half_open_probes", cfg.CircuitBreaker.HalfOpenProbes)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.max_size", cfg.Cache.MaxSize)
	v.SetDefault("cache.similarity_threshold", cfg.Cache.SimilarityThreshold)

	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests_per_minute", cfg.RateLimit.RequestsPerMinute)
	v.SetDefault("rate_limit.burst", cfg.RateLimit.Burst)
	v.SetDefault("rate_limit.idle_ttl", cfg.RateLimit.IdleTTL)

	v.SetDefault("question.min_length", cfg.Question.MinLength)
	v.SetDefault("question.max_length", cfg.Question.MaxLength)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.redact_prompts", cfg.Observability.RedactPrompts)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)

	v.SetDefault("temporal.host_port", cfg.Temporal.HostPort)
	v.SetDefault("temporal.namespace", cfg.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", cfg.Temporal.TaskQueue)
}

func redact(settings map[string]any) {
	for key, value := range settings {
		switch typed := value.(type) {
		case map[string]any:
			redact(typed)
		case string:
			if strings.HasSuffix(key, "api_key") && typed != "" {
				settings[key] = "********"
			}
		}
	}
}
