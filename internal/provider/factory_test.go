package provider

import (
	"testing"

	"github.com/kalambet/lingo/internal/config"
)

func TestNewSelectsBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.Provider = config.ProviderLocal
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.ChatModel = "qwen2.5:7b-instruct"
	cfg.LLM.ContextLength = 4096
	cfg.LLM.LocalMaxConcurrent = 1

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New(local): %v", err)
	}
	if p.Name() != "local" {
		t.Errorf("Name() = %q, want local", p.Name())
	}

	cfg.LLM.Provider = config.ProviderGroq
	cfg.LLM.GroqAPIKey = "k"
	cfg.LLM.GroqModel = "llama-3.3-70b-versatile"
	p, err = New(cfg)
	if err != nil {
		t.Fatalf("New(groq): %v", err)
	}
	if p.Name() != "groq" {
		t.Errorf("Name() = %q, want groq", p.Name())
	}

	cfg.LLM.Provider = "mystery"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}
