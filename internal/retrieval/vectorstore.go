package retrieval

import (
	"time"
)

// Document categories stored in the vector table.
const (
	CategoryGrammar = "grammar"
	CategoryExample = "example"
)

// LanguageGeneral marks documents that apply to every language. Grammar
// searches with a language filter always include these.
const LanguageGeneral = "General"

// VectorStore is the interface for vector storage and similarity search backends.
// The current implementation uses SQLite with brute-force cosine similarity,
// which is adequate for a reference corpus of a few thousand documents.
type VectorStore interface {
	// Insert adds records to the store.
	Insert(records []Record) error

	// Search returns the top-K records most similar to the query vector,
	// restricted by the filter. Results are ordered by score descending;
	// ties keep insertion order.
	Search(vector []float32, topK int, f Filter) ([]ScoredRecord, error)

	// Delete removes a record by ID.
	Delete(id string) error

	// ExportAll returns all records in insertion order.
	ExportAll() ([]Record, error)

	// Count returns the number of stored records.
	Count() (int, error)
}

// Filter restricts a search to a language and/or category.
// An empty field means no restriction. When Language is set and
// IncludeGeneral is true, documents tagged LanguageGeneral also match.
type Filter struct {
	Language       string
	Category       string
	IncludeGeneral bool
}

// Record represents a row in the vector store.
type Record struct {
	ID        string
	Text      string
	Language  string
	Category  string
	Embedding []float32
	CreatedAt time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
