package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeEmbeddingClient returns a fixed vector per text, or an error.
type fakeEmbeddingClient struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbeddingClient) Embed(ctx context.Context, model, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

type fakeVectorStore struct {
	results map[string][]ScoredRecord // keyed by category
	err     error
	inserts []Record
	count   int
}

func (f *fakeVectorStore) Insert(records []Record) error {
	f.inserts = append(f.inserts, records...)
	return nil
}

func (f *fakeVectorStore) Search(vector []float32, topK int, filter Filter) ([]ScoredRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := f.results[filter.Category]
	if len(res) > topK {
		res = res[:topK]
	}
	return res, nil
}

func (f *fakeVectorStore) Delete(id string) error       { return nil }
func (f *fakeVectorStore) ExportAll() ([]Record, error) { return nil, nil }
func (f *fakeVectorStore) Count() (int, error)          { return f.count, nil }

func TestContextForLabelsResults(t *testing.T) {
	store := &fakeVectorStore{results: map[string][]ScoredRecord{
		CategoryGrammar: {
			{Record: Record{ID: "g1", Text: "rule one"}, Score: 0.9},
			{Record: Record{ID: "g2", Text: "rule two"}, Score: 0.8},
		},
		CategoryExample: {
			{Record: Record{ID: "e1", Text: "sentence one"}, Score: 0.7},
		},
	}}
	r := NewRetriever(NewEmbedder(&fakeEmbeddingClient{}, "m"), store)

	chunks := r.ContextFor(context.Background(), "how do articles work", "English", 3)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if !strings.HasPrefix(chunks[0], "Grammar: ") {
		t.Errorf("grammar chunk not labeled: %q", chunks[0])
	}
	if !strings.HasPrefix(chunks[2], "Example: ") {
		t.Errorf("example chunk not labeled: %q", chunks[2])
	}
}

func TestContextForDegradesOnEmbedFailure(t *testing.T) {
	client := &fakeEmbeddingClient{err: errors.New("engine down")}
	store := &fakeVectorStore{}
	r := NewRetriever(NewEmbedder(client, "m"), store)

	chunks := r.ContextFor(context.Background(), "query", "English", 3)
	if chunks != nil {
		t.Errorf("expected nil chunks on embed failure, got %v", chunks)
	}
}

func TestContextForDegradesOnSearchFailure(t *testing.T) {
	store := &fakeVectorStore{err: errors.New("db locked")}
	r := NewRetriever(NewEmbedder(&fakeEmbeddingClient{}, "m"), store)

	chunks := r.ContextFor(context.Background(), "query", "English", 3)
	if chunks != nil {
		t.Errorf("expected nil chunks on search failure, got %v", chunks)
	}
}

func TestContextForZeroTopK(t *testing.T) {
	store := &fakeVectorStore{}
	client := &fakeEmbeddingClient{}
	r := NewRetriever(NewEmbedder(client, "m"), store)

	if chunks := r.ContextFor(context.Background(), "query", "English", 0); chunks != nil {
		t.Errorf("expected nil for topK=0, got %v", chunks)
	}
	if client.calls != 0 {
		t.Errorf("embedder called %d times for topK=0, want 0", client.calls)
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	client := &fakeEmbeddingClient{vectors: map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
		"c": {0, 0, 1},
	}}
	e := NewEmbedder(client, "m")

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	want := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for i := range want {
		for j := range want[i] {
			if vecs[i][j] != want[i][j] {
				t.Fatalf("vector %d mismatch: %v", i, vecs[i])
			}
		}
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	e := NewEmbedder(&fakeEmbeddingClient{}, "m")
	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch(nil): %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil for empty input, got %v", vecs)
	}
}

func TestSeedIdempotent(t *testing.T) {
	store := &fakeVectorStore{}
	client := &fakeEmbeddingClient{}
	e := NewEmbedder(client, "m")

	if err := Seed(context.Background(), e, store); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(store.inserts) != len(seedCorpus) {
		t.Fatalf("seeded %d records, want %d", len(store.inserts), len(seedCorpus))
	}

	// Second run against a populated store must not insert again.
	store.count = len(store.inserts)
	before := len(store.inserts)
	if err := Seed(context.Background(), e, store); err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if len(store.inserts) != before {
		t.Error("Seed inserted into a non-empty store")
	}
}

func TestSeedCorpusCoversLanguages(t *testing.T) {
	langs := map[string]int{}
	for _, d := range seedCorpus {
		langs[d.language]++
	}
	for _, want := range []string{"English", "Chinese", "Russian", "Japanese", LanguageGeneral} {
		if langs[want] == 0 {
			t.Errorf("seed corpus has no documents for %s", want)
		}
	}
	for _, d := range seedCorpus {
		if d.category != CategoryGrammar && d.category != CategoryExample {
			t.Errorf("document %s has unknown category %q", d.id, d.category)
		}
	}
}
