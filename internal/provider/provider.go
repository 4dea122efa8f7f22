// Package provider abstracts the LLM backends the tutor can run against:
// a hosted OpenAI-compatible API (Groq) or a local Ollama instance.
package provider

import "context"

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options controls a single generation request.
type Options struct {
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

// DefaultOptions matches the sampling defaults used across the tutor.
func DefaultOptions() Options {
	return Options{Temperature: 0.7, MaxTokens: 2048}
}

// Stream yields generated text incrementally. Recv returns io.EOF when the
// model has finished. Close must be called to release the underlying
// connection and any admission slot held by the stream.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Provider is a chat completion backend.
type Provider interface {
	// Generate returns the full completion for the given messages.
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)

	// GenerateStream returns a Stream of completion chunks.
	GenerateStream(ctx context.Context, messages []Message, opts Options) (Stream, error)

	// Name identifies the backend ("groq" or "local").
	Name() string

	// Healthy reports whether the backend can currently serve requests.
	Healthy(ctx context.Context) bool
}
