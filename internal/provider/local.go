package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/kalambet/lingo/internal/ollama"
)

// Local serves completions from a local Ollama instance. A weighted semaphore
// caps concurrent inference: when every slot is taken, requests are rejected
// immediately with ErrResourceBusy rather than queued, so the HTTP layer can
// tell the client to retry.
type Local struct {
	client    *ollama.Client
	model     string
	ctxLength int
	slots     *semaphore.Weighted
	logger    *slog.Logger
}

// NewLocal creates a Local provider for the given Ollama client and model.
// maxConcurrent <= 0 falls back to a single inference slot.
func NewLocal(client *ollama.Client, model string, ctxLength, maxConcurrent int) *Local {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Local{
		client:    client,
		model:     model,
		ctxLength: ctxLength,
		slots:     semaphore.NewWeighted(int64(maxConcurrent)),
		logger:    slog.Default(),
	}
}

func (l *Local) Name() string { return "local" }

// estimateTokens approximates the token count of a text as len/4 rounded up.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// checkFit rejects requests whose prompt plus reply budget cannot fit the
// model's context window.
func (l *Local) checkFit(messages []Message, opts Options) error {
	total := opts.MaxTokens
	for _, m := range messages {
		total += estimateTokens(m.Content)
	}
	if l.ctxLength > 0 && total > l.ctxLength {
		return fmt.Errorf("%w: estimated %d tokens against a window of %d", ErrContextOverflow, total, l.ctxLength)
	}
	return nil
}

func toOllamaMessages(messages []Message) []ollama.Message {
	out := make([]ollama.Message, len(messages))
	for i, m := range messages {
		out[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// Generate runs a completion, holding an inference slot for its duration.
func (l *Local) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	if err := l.checkFit(messages, opts); err != nil {
		return "", err
	}
	if !l.slots.TryAcquire(1) {
		return "", ErrResourceBusy
	}
	defer l.slots.Release(1)

	result, err := l.client.Chat(ctx, l.model, toOllamaMessages(messages), opts.JSONMode)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return result, nil
}

// GenerateStream opens a streaming completion. The inference slot is held
// until the returned stream is closed.
func (l *Local) GenerateStream(ctx context.Context, messages []Message, opts Options) (Stream, error) {
	if err := l.checkFit(messages, opts); err != nil {
		return nil, err
	}
	if !l.slots.TryAcquire(1) {
		return nil, ErrResourceBusy
	}

	inner, err := l.client.ChatStream(ctx, l.model, toOllamaMessages(messages))
	if err != nil {
		l.slots.Release(1)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return &localStream{inner: inner, release: func() { l.slots.Release(1) }}, nil
}

// Healthy reports whether Ollama is reachable and the chat model is present.
func (l *Local) Healthy(ctx context.Context) bool {
	if !l.client.IsRunning(ctx) {
		return false
	}
	if !l.client.HasModel(ctx, l.model) {
		l.logger.Warn("chat model not available locally", "model", l.model)
		return false
	}
	return true
}

// localStream releases its inference slot exactly once on Close.
type localStream struct {
	inner   *ollama.Stream
	release func()
	once    sync.Once
}

func (s *localStream) Recv() (string, error) {
	return s.inner.Recv()
}

func (s *localStream) Close() error {
	err := s.inner.Close()
	s.once.Do(s.release)
	return err
}
