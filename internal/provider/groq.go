package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	groqMaxRetries     = 3
	groqInitialBackoff = 500 * time.Millisecond
)

// Groq serves completions from the Groq hosted API, which speaks the OpenAI
// chat completion protocol. Transient upstream failures are retried with
// exponential backoff before surfacing ErrProviderUnavailable.
type Groq struct {
	client     *openai.Client
	model      string
	maxRetries int
	logger     *slog.Logger
}

// NewGroq creates a Groq provider for the given API key, base URL and model.
// maxRetries <= 0 falls back to the default of 3 attempts.
func NewGroq(apiKey, baseURL, model string, maxRetries int) *Groq {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if maxRetries <= 0 {
		maxRetries = groqMaxRetries
	}
	return &Groq{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		maxRetries: maxRetries,
		logger:     slog.Default(),
	}
}

func (g *Groq) Name() string { return "groq" }

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func (g *Groq) buildRequest(messages []Message, opts Options) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

// Generate runs a completion, retrying rate limits and transient upstream
// errors with exponential backoff.
func (g *Groq) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	req := g.buildRequest(messages, opts)

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(groqInitialBackoff) * math.Pow(2, float64(attempt-1)))
			g.logger.Warn("retrying groq request", "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("%w: empty choices", ErrProviderUnavailable)
			}
			return resp.Choices[0].Message.Content, nil
		}

		classified := classifyGroqError(err)
		if !isRetryable(classified) {
			return "", classified
		}
		lastErr = classified
	}

	return "", fmt.Errorf("%w: %d attempts failed: %v", ErrProviderUnavailable, g.maxRetries, lastErr)
}

// GenerateStream opens a streaming completion. Retries apply only to opening
// the stream; once chunks are flowing, a failure ends the stream.
func (g *Groq) GenerateStream(ctx context.Context, messages []Message, opts Options) (Stream, error) {
	req := g.buildRequest(messages, opts)
	req.Stream = true

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(groqInitialBackoff) * math.Pow(2, float64(attempt-1)))
			g.logger.Warn("retrying groq stream", "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		stream, err := g.client.CreateChatCompletionStream(ctx, req)
		if err == nil {
			return &groqStream{inner: stream}, nil
		}

		classified := classifyGroqError(err)
		if !isRetryable(classified) {
			return nil, classified
		}
		lastErr = classified
	}

	return nil, fmt.Errorf("%w: %d attempts failed: %v", ErrProviderUnavailable, g.maxRetries, lastErr)
}

// Healthy sends a minimal completion to verify credentials and reachability.
func (g *Groq) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.model,
		Messages:  []openai.ChatCompletionMessage{{Role: RoleUser, Content: "Hi"}},
		MaxTokens: 5,
	})
	if err != nil {
		g.logger.Warn("groq health check failed", "error", err)
		return false
	}
	return len(resp.Choices) > 0
}

// groqStream adapts the SDK's stream to the Stream interface.
type groqStream struct {
	inner *openai.ChatCompletionStream
}

func (s *groqStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", classifyGroqError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *groqStream) Close() error {
	return s.inner.Close()
}

// retryableError marks an upstream failure worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// classifyGroqError maps SDK errors onto the provider sentinels. Rate limits
// and server errors are retryable; auth failures and context overflows are not.
func classifyGroqError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if isContextOverflow(apiErr) {
			return fmt.Errorf("%w: %s", ErrContextOverflow, apiErr.Message)
		}
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return fmt.Errorf("%w: %s", ErrProviderUnavailable, apiErr.Message)
		case 429:
			return &retryableError{err: fmt.Errorf("rate limited: %s", apiErr.Message)}
		}
		if apiErr.HTTPStatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("upstream %d: %s", apiErr.HTTPStatusCode, apiErr.Message)}
		}
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		// Connection-level failures are worth a retry.
		return &retryableError{err: err}
	}

	return &retryableError{err: err}
}

func isContextOverflow(apiErr *openai.APIError) bool {
	if code, ok := apiErr.Code.(string); ok && code == "context_length_exceeded" {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "context length")
}
