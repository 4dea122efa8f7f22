package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Provider names accepted in LLMConfig.Provider.
const (
	ProviderGroq  = "groq"
	ProviderLocal = "local"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Ollama    OllamaConfig
	Retrieval RetrievalConfig
	Storage   StorageConfig
	Training  TrainingConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type LLMConfig struct {
	Provider           string // "groq" or "local"
	GroqAPIKey         string
	GroqModel          string
	GroqBaseURL        string
	ContextLength      int
	MaxRetries         int
	LocalMaxConcurrent int
}

type OllamaConfig struct {
	BaseURL   string
	ChatModel string
}

type RetrievalConfig struct {
	TopK int
	// EmbedModel is the embedding model name. For the local provider this is
	// an Ollama model; for hosted embeddings it is passed to the OpenAI-style
	// embeddings endpoint.
	EmbedModel string
	// EmbedBaseURL and EmbedAPIKey select a hosted OpenAI-compatible
	// embeddings endpoint. When empty, embeddings go through Ollama.
	EmbedBaseURL string
	EmbedAPIKey  string
}

type StorageConfig struct {
	DataDir string
}

type TrainingConfig struct {
	APIToken       string
	TrainerCommand string
	OutputDir      string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		LLM: LLMConfig{
			Provider:           ProviderLocal,
			GroqModel:          "llama-3.3-70b-versatile",
			GroqBaseURL:        "https://api.groq.com/openai/v1",
			ContextLength:      4096,
			MaxRetries:         3,
			LocalMaxConcurrent: 1,
		},
		Ollama: OllamaConfig{
			BaseURL:   "http://localhost:11434",
			ChatModel: "qwen2.5:7b-instruct",
		},
		Retrieval: RetrievalConfig{
			TopK:       3,
			EmbedModel: "nomic-embed-text",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Training: TrainingConfig{
			TrainerCommand: "lingo-trainer",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".lingo")
}

// Load builds the configuration from defaults and environment variables.
// Environment variables always win. The result is validated; configuration
// is read once at startup and never re-read.
func Load() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.LLM.Provider {
	case ProviderGroq:
		if cfg.LLM.GroqAPIKey == "" {
			return fmt.Errorf("missing required config: GROQ_API_KEY must be set when LLM_PROVIDER=groq")
		}
	case ProviderLocal:
	default:
		return fmt.Errorf("invalid LLM_PROVIDER %q: must be %q or %q", cfg.LLM.Provider, ProviderGroq, ProviderLocal)
	}
	if cfg.LLM.ContextLength <= 0 {
		return fmt.Errorf("invalid CONTEXT_LENGTH %d: must be positive", cfg.LLM.ContextLength)
	}
	if cfg.LLM.LocalMaxConcurrent <= 0 {
		return fmt.Errorf("invalid LOCAL_MAX_CONCURRENT %d: must be positive", cfg.LLM.LocalMaxConcurrent)
	}
	return nil
}
