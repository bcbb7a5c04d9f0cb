package engine

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Providers accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config selects and configures an Engine.
type Config struct {
	Provider      string
	BaseURL       string
	APIKey        string
	OllamaBaseURL string
}

// New returns the engine named by cfg.Provider. The hosted provider requires
// an API key; Ollama runs locally without one.
func New(cfg Config) (Engine, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI, "groq":
		if cfg.APIKey == "" {
			return nil, errors.WithHint(ErrMissingAPIKey,
				"set GROQ_API_KEY (or DOCROUTE_LLM_API_KEY), or use llm.provider=ollama")
		}
		return NewOpenAIEngine(cfg.APIKey, cfg.BaseURL), nil
	case ProviderOllama:
		return NewOllamaEngine(cfg.OllamaBaseURL), nil
	default:
		return nil, errors.Newf("unknown llm provider %q (want %s or %s)", cfg.Provider, ProviderOpenAI, ProviderOllama)
	}
}
