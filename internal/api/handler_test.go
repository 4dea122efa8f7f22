package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/lingo/internal/provider"
	"github.com/kalambet/lingo/internal/tutor"
)

// fakeTutor is a canned TutorService for handler tests.
type fakeTutor struct {
	chatResult    tutor.ChatResult
	chatErr       error
	streamChunks  []string
	streamErr     error
	streamFailAt  int
	streamFailErr error
	stream        *fakeStream
	correction    tutor.Correction
	correctErr    error
	exercises     []tutor.Exercise
	exercisesErr  error
	check         tutor.CheckResult
	explanation   string
	explainErr    error

	lastMessage  string
	lastLanguage string
	lastLevel    string
	lastUseRAG   bool
}

func (f *fakeTutor) Chat(ctx context.Context, message string, history []provider.Message, language, level string, useRAG bool) (tutor.ChatResult, error) {
	f.lastMessage, f.lastLanguage, f.lastLevel, f.lastUseRAG = message, language, level, useRAG
	return f.chatResult, f.chatErr
}

func (f *fakeTutor) ChatStream(ctx context.Context, message string, history []provider.Message, language, level string, useRAG bool) (provider.Stream, []string, error) {
	f.lastMessage, f.lastLanguage, f.lastLevel, f.lastUseRAG = message, language, level, useRAG
	if f.streamErr != nil {
		return nil, nil, f.streamErr
	}
	f.stream = &fakeStream{chunks: f.streamChunks, failAt: f.streamFailAt, err: f.streamFailErr}
	return f.stream, nil, nil
}

func (f *fakeTutor) Correct(ctx context.Context, text, language string) (tutor.Correction, error) {
	f.lastLanguage = language
	return f.correction, f.correctErr
}

func (f *fakeTutor) GenerateExercises(ctx context.Context, topic, language, exerciseType, level string, count int) ([]tutor.Exercise, error) {
	f.lastLanguage, f.lastLevel = language, level
	return f.exercises, f.exercisesErr
}

func (f *fakeTutor) CheckAnswer(ctx context.Context, userAnswer, correctAnswer, language string) tutor.CheckResult {
	f.lastLanguage = language
	return f.check
}

func (f *fakeTutor) ExplainGrammar(ctx context.Context, topic, language, level string) (string, error) {
	f.lastLanguage, f.lastLevel = language, level
	return f.explanation, f.explainErr
}

// fakeStream yields canned chunks, optionally failing mid-stream.
type fakeStream struct {
	chunks []string
	failAt int
	err    error
	i      int
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if s.err != nil && s.i == s.failAt {
		return "", s.err
	}
	if s.i >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.i]
	s.i++
	return chunk, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

// fakeLLM satisfies provider.Provider for health checks.
type fakeLLM struct {
	name    string
	healthy bool
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []provider.Message, opts provider.Options) (string, error) {
	return "", nil
}

func (f *fakeLLM) GenerateStream(ctx context.Context, msgs []provider.Message, opts provider.Options) (provider.Stream, error) {
	return &fakeStream{}, nil
}

func (f *fakeLLM) Name() string { return f.name }

func (f *fakeLLM) Healthy(ctx context.Context) bool { return f.healthy }

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	h := NewHandler(Deps{Tutor: &fakeTutor{}, Provider: &fakeLLM{name: "groq", healthy: true}})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp healthResponse
	decodeBody(t, w, &resp)
	if resp.Status != "ok" || resp.LLMProvider != "groq" || resp.LLMStatus != "ok" {
		t.Errorf("health = %+v", resp)
	}
	// No vector store wired in this test.
	if resp.RAGStatus != "unavailable" {
		t.Errorf("rag_status = %q", resp.RAGStatus)
	}
}

func TestHealthDegradedWhenProviderDown(t *testing.T) {
	h := NewHandler(Deps{Tutor: &fakeTutor{}, Provider: &fakeLLM{name: "local", healthy: false}})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp healthResponse
	decodeBody(t, w, &resp)
	if resp.Status != "degraded" || resp.LLMStatus != "unavailable" {
		t.Errorf("health = %+v", resp)
	}
}

func TestTrainingRequiresBearerToken(t *testing.T) {
	h := NewHandler(Deps{Tutor: &fakeTutor{}, TrainingToken: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/training/base-models", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("without token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/training/base-models", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("with token: status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unsloth/Llama-3.2-1B-Instruct") {
		t.Errorf("base models missing default: %s", w.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"busy", provider.ErrResourceBusy, http.StatusTooManyRequests},
		{"overflow", provider.ErrContextOverflow, http.StatusRequestEntityTooLarge},
		{"unavailable", provider.ErrProviderUnavailable, http.StatusBadGateway},
		{"malformed", provider.ErrMalformedOutput, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(Deps{Tutor: &fakeTutor{chatErr: tc.err}})
			w := postJSON(t, h, "/api/chat", map[string]string{"message": "hi"})
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
			var resp struct {
				Error struct {
					Message string `json:"message"`
					Type    string `json:"type"`
				} `json:"error"`
			}
			decodeBody(t, w, &resp)
			if resp.Error.Type == "" {
				t.Error("error envelope missing type")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewHandler(Deps{Tutor: &fakeTutor{}})

	// Generate one request so the counters have something to report.
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "lingo_http_requests_total") {
		t.Error("metrics output missing request counter")
	}
}
