package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "llm.provider", typ: kString, env: "LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.groq_api_key", typ: kString, env: "GROQ_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.GroqAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.GroqAPIKey },
	},
	{
		key: "llm.groq_model", typ: kString, env: "GROQ_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.GroqModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.GroqModel },
	},
	{
		key: "llm.groq_base_url", typ: kString, env: "GROQ_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.GroqBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.GroqBaseURL },
	},
	{
		key: "llm.context_length", typ: kInt, env: "CONTEXT_LENGTH",
		apply:   func(cfg *Config, v any) { cfg.LLM.ContextLength = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.ContextLength },
	},
	{
		key: "llm.max_retries", typ: kInt, env: "LLM_MAX_RETRIES",
		apply:   func(cfg *Config, v any) { cfg.LLM.MaxRetries = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.MaxRetries },
	},
	{
		key: "llm.local_max_concurrent", typ: kInt, env: "LOCAL_MAX_CONCURRENT",
		apply:   func(cfg *Config, v any) { cfg.LLM.LocalMaxConcurrent = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.LocalMaxConcurrent },
	},
	{
		key: "ollama.base_url", typ: kString, env: "OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "LOCAL_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "retrieval.embed_model", typ: kString, env: "EMBEDDING_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Retrieval.EmbedModel },
	},
	{
		key: "retrieval.embed_base_url", typ: kString, env: "EMBEDDING_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.EmbedBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Retrieval.EmbedBaseURL },
	},
	{
		key: "retrieval.embed_api_key", typ: kString, env: "EMBEDDING_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Retrieval.EmbedAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Retrieval.EmbedAPIKey },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "training.api_token", typ: kString, env: "TRAINING_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Training.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Training.APIToken },
	},
	{
		key: "training.trainer_command", typ: kString, env: "TRAINER_COMMAND",
		apply:   func(cfg *Config, v any) { cfg.Training.TrainerCommand = v.(string) },
		extract: func(cfg Config) any { return cfg.Training.TrainerCommand },
	},
	{
		key: "training.output_dir", typ: kString, env: "TRAINING_OUTPUT_DIR",
		apply:   func(cfg *Config, v any) { cfg.Training.OutputDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Training.OutputDir },
	},
	{
		key: "log.level", typ: kString, env: "LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// KeyValue is a config key with its display value, used by `lingo config show`.
type KeyValue struct {
	Key   string
	Value string
}

// ShowAll returns all config keys and their values, sorted by key.
// Secret values are redacted.
func ShowAll(cfg Config) []KeyValue {
	out := make([]KeyValue, 0, len(specs))
	for _, s := range specs {
		v := s.extract(cfg)
		display := fmt.Sprintf("%v", v)
		if s.secret && display != "" {
			display = "••••••••"
		}
		out = append(out, KeyValue{Key: s.key, Value: display})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
