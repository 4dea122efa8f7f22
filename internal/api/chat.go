package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kalambet/lingo/internal/provider"
)

const (
	defaultLanguage = "English"
	defaultLevel    = "beginner"
)

type chatRequest struct {
	Message        string             `json:"message"`
	History        []provider.Message `json:"history"`
	TargetLanguage string             `json:"target_language"`
	LearnerLevel   string             `json:"learner_level"`
	UseRAG         *bool              `json:"use_rag"`
}

type chatResponse struct {
	Response    string   `json:"response"`
	ContextUsed []string `json:"context_used"`
}

func (req *chatRequest) normalize() {
	if req.TargetLanguage == "" {
		req.TargetLanguage = defaultLanguage
	}
	if req.LearnerLevel == "" {
		req.LearnerLevel = defaultLevel
	}
	req.LearnerLevel = strings.ToLower(req.LearnerLevel)
}

func (req *chatRequest) useRAG() bool {
	return req.UseRAG == nil || *req.UseRAG
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}
		req.normalize()

		result, err := deps.Tutor.Chat(r.Context(), req.Message, req.History, req.TargetLanguage, req.LearnerLevel, req.useRAG())
		observeGeneration("chat", err)
		if err != nil {
			tutorError(w, err)
			return
		}

		if deps.Data != nil {
			deps.Data.CollectChatTurn("", req.Message, result.Response)
		}

		if result.ContextUsed == nil {
			result.ContextUsed = []string{}
		}
		writeJSON(w, chatResponse{Response: result.Response, ContextUsed: result.ContextUsed})
	}
}

// handleChatStream replies over SSE. Each model chunk is sent as
// `data: {"content": ...}` and the stream ends with `data: [DONE]`. A client
// disconnect cancels the request context, which aborts the generation and
// releases the provider.
func handleChatStream(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}
		req.normalize()

		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		stream, _, err := deps.Tutor.ChatStream(r.Context(), req.Message, req.History, req.TargetLanguage, req.LearnerLevel, req.useRAG())
		observeGeneration("chat_stream", err)
		if err != nil {
			tutorError(w, err)
			return
		}
		defer stream.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		var full strings.Builder
		for {
			chunk, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				slog.Warn("chat stream interrupted", "error", err)
				writeSSE(w, flusher, map[string]string{"error": "generation interrupted"})
				return
			}
			full.WriteString(chunk)
			writeSSE(w, flusher, map[string]string{"content": chunk})
		}

		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()

		if deps.Data != nil && full.Len() > 0 {
			deps.Data.CollectChatTurn("", req.Message, full.String())
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal SSE payload", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
	flusher.Flush()
}

type explainRequest struct {
	Topic          string `json:"topic"`
	TargetLanguage string `json:"target_language"`
	LearnerLevel   string `json:"learner_level"`
}

func handleExplain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req explainRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Topic) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "topic is required")
			return
		}
		if req.TargetLanguage == "" {
			req.TargetLanguage = defaultLanguage
		}
		if req.LearnerLevel == "" {
			req.LearnerLevel = defaultLevel
		}

		explanation, err := deps.Tutor.ExplainGrammar(r.Context(), req.Topic, req.TargetLanguage, strings.ToLower(req.LearnerLevel))
		observeGeneration("explain", err)
		if err != nil {
			tutorError(w, err)
			return
		}

		writeJSON(w, map[string]string{
			"topic":       req.Topic,
			"explanation": explanation,
		})
	}
}
