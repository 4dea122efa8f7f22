package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/kalambet/lingo/internal/retrieval"
)

const maxReferenceBodySize = 10 << 20 // 10MB, base64 PDFs included
const maxURLFetchSize = 5 << 20       // 5MB

// Chunk size bounds for splitting extracted text before embedding.
const (
	chunkTarget = 1000
	chunkMin    = 200
)

type referenceDocRequest struct {
	Type     string `json:"type"` // text, pdf, url
	Content  string `json:"content"`
	URL      string `json:"url"`
	Language string `json:"language"`
	Category string `json:"category"`
}

// handleAddReferenceDocument ingests reference material into the vector
// store: plain text, a base64 PDF, or a URL whose HTML is stripped to text.
// The text is chunked, embedded and inserted.
func handleAddReferenceDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxReferenceBodySize)
		defer r.Body.Close()

		var req referenceDocRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if req.Type == "" {
			req.Type = "text"
		}
		if req.Language == "" {
			req.Language = defaultLanguage
		}
		if req.Category == "" {
			req.Category = retrieval.CategoryGrammar
		}
		if req.Category != retrieval.CategoryGrammar && req.Category != retrieval.CategoryExample {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "category must be %q or %q", retrieval.CategoryGrammar, retrieval.CategoryExample)
			return
		}

		var text string
		switch req.Type {
		case "text":
			text = req.Content

		case "pdf":
			decoded, err := base64.StdEncoding.DecodeString(req.Content)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
				return
			}
			text, err = extractPDFText(decoded)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "could not read PDF: %v", err)
				return
			}

		case "url":
			if req.URL == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required for type url")
				return
			}
			body, err := fetchURL(r.Context(), deps.HTTPClient, req.URL)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "failed to fetch url: %v", err)
				return
			}
			text = extractHTMLText(body)

		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown document type %q", req.Type)
			return
		}

		chunks := splitChunks(text)
		if len(chunks) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "document contains no text")
			return
		}

		vectors, err := deps.Embedder.EmbedBatch(r.Context(), chunks)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "embedding document: %v", err)
			return
		}

		now := time.Now().UTC()
		records := make([]retrieval.Record, len(chunks))
		ids := make([]string, len(chunks))
		for i, chunk := range chunks {
			ids[i] = uuid.NewString()
			records[i] = retrieval.Record{
				ID:        ids[i],
				Text:      chunk,
				Language:  req.Language,
				Category:  req.Category,
				Embedding: vectors[i],
				CreatedAt: now,
			}
		}
		if err := deps.Vectors.Insert(records); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "storing document: %v", err)
			return
		}

		writeJSON(w, map[string]any{
			"ids":    ids,
			"chunks": len(chunks),
			"status": "stored",
		})
	}
}

type referenceSearchResult struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Category string  `json:"category"`
	Score    float32 `json:"score"`
}

func handleSearchReference(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if strings.TrimSpace(query) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}

		topK := 5
		if s := r.URL.Query().Get("top_k"); s != "" {
			if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 50 {
				topK = v
			}
		}

		vec, err := deps.Embedder.Embed(r.Context(), query)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "embedding query: %v", err)
			return
		}

		scored, err := deps.Vectors.Search(vec, topK, retrieval.Filter{
			Language:       r.URL.Query().Get("target_language"),
			Category:       r.URL.Query().Get("category"),
			IncludeGeneral: true,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "searching reference store: %v", err)
			return
		}

		results := make([]referenceSearchResult, len(scored))
		for i, s := range scored {
			results[i] = referenceSearchResult{
				ID:       s.ID,
				Text:     s.Text,
				Language: s.Language,
				Category: s.Category,
				Score:    s.Score,
			}
		}
		writeJSON(w, map[string]any{"results": results})
	}
}

func fetchURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("url returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxURLFetchSize))
}

// extractPDFText pulls the plain text out of a PDF document.
func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	buf, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	text, err := io.ReadAll(buf)
	if err != nil {
		return "", err
	}
	return string(text), nil
}

// extractHTMLText strips tags from an HTML page, keeping the text content.
// Script and style bodies are skipped.
func extractHTMLText(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var b strings.Builder
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text != "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(text)
			}
		}
	}
}

// splitChunks breaks text into paragraph-aligned chunks of roughly
// chunkTarget characters for embedding. Short trailing fragments are merged
// into the previous chunk.
func splitChunks(text string) []string {
	paragraphs := strings.Split(text, "\n")
	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		current.Reset()
		if chunk == "" {
			return
		}
		if len(chunk) < chunkMin && len(chunks) > 0 {
			chunks[len(chunks)-1] += "\n" + chunk
			return
		}
		chunks = append(chunks, chunk)
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p) > chunkTarget {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(p)
	}
	flush()

	return chunks
}
