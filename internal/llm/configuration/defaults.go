package configuration

import (
	"time"
)

// Provider names recognized in configuration.
const (
	ProviderGoogle    = "google"
	ProviderFireworks = "fireworks"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// HTTP and timeout constants.
const (
	DefaultHTTPTimeout     = 60 * time.Second
	DefaultMaxTokens       = 2000
	DefaultTemperature     = 0.7
	DefaultServerAddr      = ":8000"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 180 * time.Second
	DefaultTemporalAddr    = "localhost:7233"
	DefaultTemporalNS      = "default"
	DefaultTemporalQueue   = "ada-answers"
	DefaultGeminiModel     = "gemini-2.0-flash"
	DefaultAnthropicModel  = "claude-3-5-haiku-latest"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultFireworksModel1 = "accounts/fireworks/models/llama-v3p1-70b-instruct"
	DefaultFireworksModel2 = "accounts/fireworks/models/mixtral-8x22b-instruct"
)

// Retry constants.
const (
	DefaultMaxAttempts       = 2
	DefaultMaxElapsedTime    = 90 * time.Second
	DefaultInitialInterval   = 500 * time.Millisecond
	DefaultMaxInterval       = 5 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Circuit breaker constants.
const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 2
	DefaultOpenTimeout      = 30 * time.Second
	DefaultHalfOpenProbes   = 1
)

// Cache, rate limit and input constants.
const (
	DefaultCacheTTL          = time.Hour
	DefaultCacheMaxSize      = 100
	DefaultRequestsPerMinute = 10
	DefaultRateLimitIdleTTL  = 10 * time.Minute
	DefaultMinQuestionLength = 3
	DefaultMaxQuestionLength = 2000
)

// DefaultConfig returns the settings used when nothing is configured.
// Provider credentials are empty; providers without an API key are skipped
// when the client stack is assembled.
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout: DefaultHTTPTimeout,
		Primary:     ProviderGoogle,
		Providers: map[string]ProviderConfig{
			ProviderGoogle: {
				Endpoint:    "https://generativelanguage.googleapis.com/v1beta",
				Model:       DefaultGeminiModel,
				MaxTokens:   DefaultMaxTokens,
				Temperature: DefaultTemperature,
			},
			ProviderFireworks: {
				Endpoint:    "https://api.fireworks.ai/inference/v1",
				Models:      []string{DefaultFireworksModel1, DefaultFireworksModel2},
				MaxTokens:   DefaultMaxTokens,
				Temperature: DefaultTemperature,
			},
			ProviderOpenAI: {
				Endpoint:    "https://api.openai.com/v1",
				Model:       DefaultOpenAIModel,
				MaxTokens:   DefaultMaxTokens,
				Temperature: DefaultTemperature,
			},
			ProviderAnthropic: {
				Endpoint:    "https://api.anthropic.com/v1",
				Model:       DefaultAnthropicModel,
				MaxTokens:   DefaultMaxTokens,
				Temperature: DefaultTemperature,
			},
		},
		Fallback: FallbackConfig{
			Enabled:   true,
			Providers: []string{ProviderFireworks, ProviderAnthropic},
		},
		Retry: RetryConfig{
			MaxAttempts:     DefaultMaxAttempts,
			MaxElapsedTime:  DefaultMaxElapsedTime,
			InitialInterval: DefaultInitialInterval,
			MaxInterval:     DefaultMaxInterval,
			Multiplier:      DefaultBackoffMultiplier,
			UseJitter:       true,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: DefaultFailureThreshold,
			SuccessThreshold: DefaultSuccessThreshold,
			OpenTimeout:      DefaultOpenTimeout,
			HalfOpenProbes:   DefaultHalfOpenProbes,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     DefaultCacheTTL,
			MaxSize: DefaultCacheMaxSize,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: DefaultRequestsPerMinute,
			Burst:             DefaultRequestsPerMinute,
			IdleTTL:           DefaultRateLimitIdleTTL,
		},
		Question: QuestionConfig{
			MinLength: DefaultMinQuestionLength,
			MaxLength: DefaultMaxQuestionLength,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			LogFormat:     "json",
			RedactPrompts: true,
		},
		Server: ServerConfig{
			Addr:         DefaultServerAddr,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
		},
		Temporal: TemporalConfig{
			HostPort:  DefaultTemporalAddr,
			Namespace: DefaultTemporalNS,
			TaskQueue: DefaultTemporalQueue,
		},
	}
}
