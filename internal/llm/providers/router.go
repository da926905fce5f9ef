// Package providers implements the HTTP adapters for each remote model
// service and the router that selects between them.
package providers

import (
	"fmt"

	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/transport"
)

// Supported provider identifiers. These match configuration keys.
const (
	ProviderGoogle    = configuration.ProviderGoogle    // Google Gemini models
	ProviderFireworks = configuration.ProviderFireworks // Fireworks, OpenAI-compatible
	ProviderOpenAI    = configuration.ProviderOpenAI    // OpenAI GPT models
	ProviderAnthropic = configuration.ProviderAnthropic // Anthropic Claude models
)

// NewRouter creates a router with configured provider adapters.
func NewRouter(configs map[string]configuration.ProviderConfig) (transport.Router, error) {
	adapters := make(map[string]transport.ProviderAdapter, len(configs))

	for name, cfg := range configs {
		var adapter transport.ProviderAdapter
		switch name {
		case ProviderGoogle:
			adapter = NewGoogleAdapter(cfg)
		case ProviderFireworks, ProviderOpenAI:
			adapter = NewOpenAIAdapter(name, cfg)
		case ProviderAnthropic:
			adapter = NewAnthropicAdapter(cfg)
		default:
			return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, name)
		}
		adapters[name] = adapter
	}

	return &router{adapters: adapters}, nil
}

// router implements transport.Router with a provider adapter registry.
type router struct {
	adapters map[string]transport.ProviderAdapter
}

// Pick selects the adapter for the given provider name.
func (r *router) Pick(provider string) (transport.ProviderAdapter, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, provider)
	}
	return adapter, nil
}
