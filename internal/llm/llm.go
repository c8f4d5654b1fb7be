// Package llm talks to the text-generation services that write the clinical
// narrative. Callers only see the Provider interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDisabled is returned by the provider used when generation is switched off.
var ErrDisabled = errors.New("llm: narrative generation is disabled")

// Provider is the interface for generation backends.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	// JSONMode asks backends that support it for a JSON-only response.
	JSONMode bool
}

var defaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-20250514",
	"openai":    "gpt-4o",
	"google":    "gemini-1.5-pro",
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	return defaultModels[strings.ToLower(provider)]
}

// Providers lists the accepted provider names.
func Providers() []string {
	return []string{"anthropic", "openai", "google", "none"}
}

// NewProvider builds the configured provider. It is a variable so tests can
// swap in a fake; restore it with t.Cleanup.
var NewProvider func(cfg Config) (Provider, error) = defaultNewProvider

func defaultNewProvider(cfg Config) (Provider, error) {
	name := strings.ToLower(cfg.Provider)
	if name == "none" || name == "" {
		return disabledProvider{}, nil
	}

	if _, ok := defaultModels[name]; !ok {
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key for provider %q is not set", name)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(name)
	}

	switch name {
	case "anthropic":
		return newAnthropicProvider(cfg), nil
	case "openai":
		return newOpenAIProvider(cfg), nil
	default:
		return newGoogleProvider(cfg), nil
	}
}

type disabledProvider struct{}

func (disabledProvider) Complete(context.Context, string, string, int, float64) (string, error) {
	return "", ErrDisabled
}
