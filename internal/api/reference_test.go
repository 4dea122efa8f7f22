package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/lingo/internal/retrieval"
	"github.com/kalambet/lingo/internal/storage"
)

// fakeEmbeddingClient maps text length onto a deterministic vector so
// searches rank identical text highest.
type fakeEmbeddingClient struct {
	calls int
}

func (f *fakeEmbeddingClient) Embed(ctx context.Context, model, text string) ([]float32, error) {
	f.calls++
	vec := make([]float32, 4)
	for i, r := range text {
		vec[i%4] += float32(r)
	}
	return vec, nil
}

func newReferenceHandler(t *testing.T) (http.Handler, *fakeEmbeddingClient, retrieval.VectorStore) {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	client := &fakeEmbeddingClient{}
	vectors := retrieval.NewSQLiteStore(s.DB())
	h := NewHandler(Deps{
		Tutor:    &fakeTutor{},
		Embedder: retrieval.NewEmbedder(client, "test-embed"),
		Vectors:  vectors,
	})
	return h, client, vectors
}

func TestAddReferenceText(t *testing.T) {
	h, client, vectors := newReferenceHandler(t)

	w := postJSON(t, h, "/api/reference/documents", map[string]string{
		"type":     "text",
		"content":  "The genitive case expresses possession.",
		"language": "Russian",
		"category": "grammar",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		IDs    []string `json:"ids"`
		Chunks int      `json:"chunks"`
		Status string   `json:"status"`
	}
	decodeBody(t, w, &resp)
	if resp.Chunks != 1 || len(resp.IDs) != 1 || resp.Status != "stored" {
		t.Errorf("response = %+v", resp)
	}
	if client.calls != 1 {
		t.Errorf("embedding calls = %d, want 1", client.calls)
	}

	count, err := vectors.Count()
	if err != nil || count != 1 {
		t.Errorf("stored count = %d, err = %v", count, err)
	}
}

func TestAddReferenceRejectsEmptyAndBadCategory(t *testing.T) {
	h, _, _ := newReferenceHandler(t)

	w := postJSON(t, h, "/api/reference/documents", map[string]string{"type": "text", "content": "   "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty content: status = %d, want 400", w.Code)
	}

	w = postJSON(t, h, "/api/reference/documents", map[string]string{
		"type": "text", "content": "hello", "category": "vocabulary",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad category: status = %d, want 400", w.Code)
	}

	w = postJSON(t, h, "/api/reference/documents", map[string]string{"type": "scroll", "content": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown type: status = %d, want 400", w.Code)
	}
}

func TestAddReferenceFromURL(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><style>body{}</style><script>var x;</script></head>`+
			`<body><h1>Particles</h1><p>The particle wa marks the topic.</p></body></html>`)
	}))
	defer page.Close()

	h, _, vectors := newReferenceHandler(t)

	w := postJSON(t, h, "/api/reference/documents", map[string]string{
		"type":     "url",
		"url":      page.URL,
		"language": "Japanese",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	records, err := vectors.ExportAll()
	if err != nil || len(records) == 0 {
		t.Fatalf("records = %d, err = %v", len(records), err)
	}
	text := records[0].Text
	if !strings.Contains(text, "particle wa marks the topic") {
		t.Errorf("text = %q", text)
	}
	if strings.Contains(text, "var x") || strings.Contains(text, "body{}") {
		t.Errorf("script/style leaked into text: %q", text)
	}
}

func TestAddReferenceURLFetchFailure(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	h, _, _ := newReferenceHandler(t)
	w := postJSON(t, h, "/api/reference/documents", map[string]string{"type": "url", "url": broken.URL})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestSearchReference(t *testing.T) {
	h, _, _ := newReferenceHandler(t)

	for _, doc := range []string{
		"Particles mark grammatical roles in Japanese.",
		"Cases inflect Russian nouns.",
	} {
		w := postJSON(t, h, "/api/reference/documents", map[string]string{"type": "text", "content": doc})
		if w.Code != http.StatusOK {
			t.Fatalf("seeding doc: status = %d", w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/reference/search?q=Particles+mark+grammatical+roles+in+Japanese.&top_k=2", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Results []referenceSearchResult `json:"results"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if !strings.Contains(resp.Results[0].Text, "Particles") {
		t.Errorf("best match = %q", resp.Results[0].Text)
	}
}

func TestSearchReferenceRequiresQuery(t *testing.T) {
	h, _, _ := newReferenceHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/reference/search", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSplitChunks(t *testing.T) {
	long := strings.Repeat("This sentence fills the chunk with text. ", 30) // ~1200 chars

	chunks := splitChunks(long + "\n\n" + long)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}

	// Short fragments merge into the previous chunk instead of standing alone.
	chunks = splitChunks("A full paragraph that easily clears the minimum chunk size requirement for standalone storage, repeated to be safe. " +
		strings.Repeat("More text to pad this paragraph out. ", 10) + "\ntiny")
	for _, c := range chunks {
		if c == "tiny" {
			t.Error("short fragment was not merged")
		}
	}

	if got := splitChunks("   \n  \n"); got != nil {
		t.Errorf("whitespace input produced chunks: %v", got)
	}
}
