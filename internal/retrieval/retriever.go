package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ContextChunk is a retrieved reference fragment with its similarity score.
type ContextChunk struct {
	ID        string
	Text      string
	Language  string
	Category  string
	Score     float32
	CreatedAt time.Time
}

// Retriever combines embedding and vector search to find relevant reference
// material for a learner's query.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
	logger   *slog.Logger
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store, logger: slog.Default()}
}

// SearchGrammar returns the top-K grammar documents for a query. When language
// is non-empty, results are restricted to that language plus general documents.
func (r *Retriever) SearchGrammar(ctx context.Context, query, language string, topK int) ([]ContextChunk, error) {
	return r.search(ctx, query, Filter{
		Language:       language,
		Category:       CategoryGrammar,
		IncludeGeneral: true,
	}, topK)
}

// SearchExamples returns the top-K example sentences for a query, restricted
// to the given language when non-empty.
func (r *Retriever) SearchExamples(ctx context.Context, query, language string, topK int) ([]ContextChunk, error) {
	return r.search(ctx, query, Filter{
		Language: language,
		Category: CategoryExample,
	}, topK)
}

func (r *Retriever) search(ctx context.Context, query string, f Filter, topK int) ([]ContextChunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := r.store.Search(vec, topK, f)
	if err != nil {
		return nil, err
	}

	return scoredToChunks(scored), nil
}

// ContextFor gathers grammar and example snippets relevant to a query, labeled
// for prompt injection. Retrieval is an enhancement: on any failure the error
// is logged and an empty slice is returned so the caller can proceed without
// reference context.
func (r *Retriever) ContextFor(ctx context.Context, query, language string, topK int) []string {
	if topK <= 0 {
		return nil
	}

	grammar, err := r.SearchGrammar(ctx, query, language, topK)
	if err != nil {
		r.logger.Warn("grammar retrieval failed, continuing without context", "error", err)
		return nil
	}

	exampleK := topK / 2
	if exampleK == 0 {
		exampleK = 1
	}
	examples, err := r.SearchExamples(ctx, query, language, exampleK)
	if err != nil {
		r.logger.Warn("example retrieval failed, continuing without examples", "error", err)
		examples = nil
	}

	var out []string
	for _, g := range grammar {
		out = append(out, fmt.Sprintf("Grammar: %s", g.Text))
	}
	for _, e := range examples {
		out = append(out, fmt.Sprintf("Example: %s", e.Text))
	}
	return out
}

func scoredToChunks(scored []ScoredRecord) []ContextChunk {
	chunks := make([]ContextChunk, len(scored))
	for i, s := range scored {
		chunks[i] = ContextChunk{
			ID:        s.ID,
			Text:      s.Text,
			Language:  s.Language,
			Category:  s.Category,
			Score:     s.Score,
			CreatedAt: s.CreatedAt,
		}
	}
	return chunks
}
