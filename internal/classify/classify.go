// Package classify maps student feedback text to one of the EduMood emotions
// by calling an external LLM.
package classify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/edumood/internal/feedback"
	"github.com/kalambet/edumood/internal/ollama"
	"github.com/kalambet/edumood/internal/openrouter"
)

const (
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
)

// Providers lists the supported provider names.
func Providers() []string {
	return []string{ProviderGemini, ProviderOllama, ProviderOpenRouter}
}

// Config selects and configures a provider.
type Config struct {
	Provider string

	GeminiAPIKey string
	GeminiModel  string

	OllamaBaseURL string
	OllamaModel   string

	OpenRouterAPIKey string
	OpenRouterModel  string

	// DisableBreaker returns the bare provider without a circuit breaker.
	DisableBreaker bool
}

// Named is implemented by every provider.
type Named interface {
	feedback.Classifier
	Name() string
}

// New builds the classifier for cfg.Provider. A provider that needs an API
// key fails here when the key is empty.
func New(cfg Config) (feedback.Classifier, error) {
	var c Named
	switch cfg.Provider {
	case ProviderGemini, "":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key (set GEMINI_API_KEY)")
		}
		c = NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
	case ProviderOllama:
		c = NewOllama(ollama.New(cfg.OllamaBaseURL), cfg.OllamaModel)
	case ProviderOpenRouter:
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("openrouter provider requires an API key (set OPENROUTER_API_KEY)")
		}
		c = NewOpenRouter(openrouter.NewClient(cfg.OpenRouterAPIKey), cfg.OpenRouterModel)
	default:
		return nil, fmt.Errorf("unknown classifier provider %q (valid: %s)", cfg.Provider, strings.Join(Providers(), ", "))
	}

	slog.Info("classifier configured", "provider", c.Name())
	if cfg.DisableBreaker {
		return c, nil
	}
	return NewBreaker(c, DefaultBreakerConfig(c.Name())), nil
}
