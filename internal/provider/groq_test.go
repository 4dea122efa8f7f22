package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func completionJSON(content string) string {
	resp := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "llama-3.3-70b-versatile",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func apiErrorJSON(message, code string) string {
	resp := map[string]any{
		"error": map[string]any{"message": message, "type": "invalid_request_error", "code": code},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func newGroqAgainst(srv *httptest.Server) *Groq {
	return NewGroq("test-key", srv.URL+"/v1", "llama-3.3-70b-versatile", 3)
}

func TestGroqGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionJSON("Hello learner"))
	}))
	defer srv.Close()

	g := newGroqAgainst(srv)
	out, err := g.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Hello learner" {
		t.Errorf("out = %q", out)
	}
}

func TestGroqRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, apiErrorJSON("rate limit reached", "rate_limit_exceeded"))
			return
		}
		io.WriteString(w, completionJSON("third time lucky"))
	}))
	defer srv.Close()

	g := newGroqAgainst(srv)
	out, err := g.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "third time lucky" {
		t.Errorf("out = %q", out)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestGroqExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, apiErrorJSON("over capacity", ""))
	}))
	defer srv.Close()

	g := newGroqAgainst(srv)
	_, err := g.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultOptions())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestGroqAuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, apiErrorJSON("invalid api key", "invalid_api_key"))
	}))
	defer srv.Close()

	g := newGroqAgainst(srv)
	_, err := g.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultOptions())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry on auth failure)", calls.Load())
	}
}

func TestGroqContextOverflow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, apiErrorJSON("this model's maximum context length is 8192 tokens", "context_length_exceeded"))
	}))
	defer srv.Close()

	g := newGroqAgainst(srv)
	_, err := g.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultOptions())
	if !errors.Is(err, ErrContextOverflow) {
		t.Fatalf("err = %v, want ErrContextOverflow", err)
	}
}

func TestGroqJSONModeRequested(t *testing.T) {
	var format string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ResponseFormat *struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.ResponseFormat != nil {
			format = body.ResponseFormat.Type
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionJSON(`{"ok":true}`))
	}))
	defer srv.Close()

	g := newGroqAgainst(srv)
	opts := DefaultOptions()
	opts.JSONMode = true
	if _, err := g.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, opts); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if format != "json_object" {
		t.Errorf("response_format.type = %q, want json_object", format)
	}
}

func streamChunkJSON(delta string) string {
	resp := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"model":   "llama-3.3-70b-versatile",
		"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": delta}}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestGroqStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Bon", "jour"} {
			fmt.Fprintf(w, "data: %s\n\n", streamChunkJSON(delta))
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	g := newGroqAgainst(srv)
	stream, err := g.GenerateStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultOptions())
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	defer stream.Close()

	var parts []string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		parts = append(parts, chunk)
	}
	if got := strings.Join(parts, ""); got != "Bonjour" {
		t.Errorf("streamed = %q, want Bonjour", got)
	}
}
