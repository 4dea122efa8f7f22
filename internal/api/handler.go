// Package api exposes the tutoring, training and reference services over
// HTTP (chi router, JSON bodies, SSE for streaming chat) and over MCP stdio.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/lingo/internal/provider"
	"github.com/kalambet/lingo/internal/retrieval"
	"github.com/kalambet/lingo/internal/storage"
	"github.com/kalambet/lingo/internal/training"
	"github.com/kalambet/lingo/internal/tutor"
)

const maxRequestBodySize = 1 << 20 // 1MB

// TutorService is the tutoring surface the HTTP handlers call.
type TutorService interface {
	Chat(ctx context.Context, message string, history []provider.Message, language, level string, useRAG bool) (tutor.ChatResult, error)
	ChatStream(ctx context.Context, message string, history []provider.Message, language, level string, useRAG bool) (provider.Stream, []string, error)
	Correct(ctx context.Context, text, language string) (tutor.Correction, error)
	GenerateExercises(ctx context.Context, topic, language, exerciseType, level string, count int) ([]tutor.Exercise, error)
	CheckAnswer(ctx context.Context, userAnswer, correctAnswer, language string) tutor.CheckResult
	ExplainGrammar(ctx context.Context, topic, language, level string) (string, error)
}

// Deps holds everything the HTTP API serves.
type Deps struct {
	Tutor    TutorService
	Provider provider.Provider

	Data *training.Data
	Jobs *training.Jobs

	Embedder *retrieval.Embedder
	Vectors  retrieval.VectorStore

	TrainingToken string // bearer token guarding /api/training
	ModelsDir     string // trained-model artifacts
	ExportDir     string // dataset export files

	HTTPClient *http.Client // used to fetch url reference documents
}

// NewHandler assembles the full /api router.
func NewHandler(deps Deps) http.Handler {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(metricsMiddleware())

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handleHealth(deps))

		r.Post("/chat", handleChat(deps))
		r.Post("/chat/stream", handleChatStream(deps))
		r.Post("/chat/explain", handleExplain(deps))

		r.Post("/correct", handleCorrect(deps))

		r.Route("/exercises", func(r chi.Router) {
			r.Post("/generate", handleGenerateExercises(deps))
			r.Post("/check", handleCheckAnswer(deps))
			r.Get("/topics", handleTopics)
			r.Get("/types", handleExerciseTypes)
			r.Get("/levels", handleLevels)
		})

		r.Route("/reference", func(r chi.Router) {
			r.Post("/documents", handleAddReferenceDocument(deps))
			r.Get("/search", handleSearchReference(deps))
		})

		r.Route("/training", func(r chi.Router) {
			r.Use(BearerAuth(deps.TrainingToken))
			mountTraining(r, deps)
		})
	})

	return r
}

// requestLogger logs each request with method, path, and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// tutorError maps service failures onto HTTP statuses.
func tutorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, provider.ErrResourceBusy):
		httpError(w, http.StatusTooManyRequests, "rate_limit_error", "model is busy, retry shortly")
	case errors.Is(err, provider.ErrContextOverflow):
		httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "conversation is too long for the model context window")
	case errors.Is(err, provider.ErrMalformedOutput):
		httpError(w, http.StatusBadGateway, "api_error", "model returned unusable output")
	case errors.Is(err, provider.ErrProviderUnavailable):
		httpError(w, http.StatusBadGateway, "api_error", "language model unavailable: %v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

// trainingError maps storage and job lifecycle failures onto HTTP statuses.
func trainingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, storage.ErrInvalidTransition):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, training.ErrJobAlreadyRunning),
		errors.Is(err, training.ErrNoApprovedExamples),
		errors.Is(err, training.ErrNoExamples):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}
