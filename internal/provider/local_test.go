package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/lingo/internal/ollama"
)

func ollamaChatHandler(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": content},
			"done":    true,
		})
	}
}

func TestLocalGenerate(t *testing.T) {
	srv := httptest.NewServer(ollamaChatHandler("Hallo!"))
	defer srv.Close()

	l := NewLocal(ollama.New(srv.URL), "qwen2.5:7b-instruct", 4096, 1)
	out, err := l.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Hallo!" {
		t.Errorf("out = %q", out)
	}
}

func TestLocalContextOverflowPrecheck(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	l := NewLocal(ollama.New(srv.URL), "m", 100, 1)
	opts := Options{Temperature: 0.7, MaxTokens: 50}
	// 400 chars estimate to ~100 tokens; with the 50-token reply budget the
	// request cannot fit a 100-token window.
	long := strings.Repeat("word ", 80)
	_, err := l.Generate(context.Background(), []Message{{Role: RoleUser, Content: long}}, opts)
	if !errors.Is(err, ErrContextOverflow) {
		t.Fatalf("err = %v, want ErrContextOverflow", err)
	}
	if called {
		t.Error("overflow must be rejected before reaching the backend")
	}
}

func TestLocalBusyRejectsImmediately(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Streamed response held open until the test releases it.
		flusher := w.(http.Flusher)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "thinking"},
			"done":    false,
		})
		flusher.Flush()
		<-release
		json.NewEncoder(w).Encode(map[string]any{"done": true})
	}))
	defer srv.Close()
	defer close(release)

	l := NewLocal(ollama.New(srv.URL), "m", 4096, 1)

	stream, err := l.GenerateStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultOptions())
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	// Slot is held by the open stream.
	_, err = l.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultOptions())
	if !errors.Is(err, ErrResourceBusy) {
		t.Fatalf("err = %v, want ErrResourceBusy", err)
	}

	// Closing the stream frees the slot even mid-response.
	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !l.slots.TryAcquire(1) {
		t.Fatal("slot not released after Close")
	}
	l.slots.Release(1)
}

func TestLocalStreamDoubleCloseReleasesOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(map[string]any{"message": map[string]string{"role": "assistant", "content": "hey"}, "done": false})
		enc.Encode(map[string]any{"done": true})
	}))
	defer srv.Close()

	l := NewLocal(ollama.New(srv.URL), "m", 4096, 1)
	stream, err := l.GenerateStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultOptions())
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	stream.Close()
	stream.Close()

	// A double Close must not over-release the single slot.
	if !l.slots.TryAcquire(1) {
		t.Fatal("slot not available after close")
	}
	if l.slots.TryAcquire(1) {
		t.Fatal("semaphore over-released by double Close")
	}
	l.slots.Release(1)
}

func TestLocalStreamContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(map[string]any{"message": map[string]string{"role": "assistant", "content": "Ni"}, "done": false})
		enc.Encode(map[string]any{"message": map[string]string{"role": "assistant", "content": " hao"}, "done": false})
		enc.Encode(map[string]any{"done": true})
	}))
	defer srv.Close()

	l := NewLocal(ollama.New(srv.URL), "m", 4096, 1)
	stream, err := l.GenerateStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultOptions())
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
	if got := strings.Join(parts, ""); got != "Ni hao" {
		t.Errorf("streamed = %q, want %q", got, "Ni hao")
	}
}

func TestLocalUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	l := NewLocal(ollama.New(srv.URL), "m", 4096, 1)
	_, err := l.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, DefaultOptions())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}

	// A failed request must not leak its inference slot.
	if !l.slots.TryAcquire(1) {
		t.Fatal("slot leaked after failed request")
	}
	l.slots.Release(1)
}
