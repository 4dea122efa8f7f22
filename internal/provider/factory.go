package provider

import (
	"fmt"

	"github.com/kalambet/lingo/internal/config"
	"github.com/kalambet/lingo/internal/ollama"
)

// New creates the Provider selected by the configuration.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGroq:
		return NewGroq(cfg.LLM.GroqAPIKey, cfg.LLM.GroqBaseURL, cfg.LLM.GroqModel, cfg.LLM.MaxRetries), nil
	case config.ProviderLocal:
		client := ollama.New(cfg.Ollama.BaseURL)
		return NewLocal(client, cfg.Ollama.ChatModel, cfg.LLM.ContextLength, cfg.LLM.LocalMaxConcurrent), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.LLM.Provider)
	}
}
