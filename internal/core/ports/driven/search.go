package driven

import "context"

// KeywordIndex provides full-text search over chunk content.
//
// This is an optional service - when nil, keyword retrieval falls back
// to scanning the vector store with word-boundary counting.
type KeywordIndex interface {
	// Index adds or updates a document in the index.
	Index(ctx context.Context, id, content string) error

	// Delete removes a document from the index, ignoring unknown IDs.
	Delete(ctx context.Context, id string) error

	// Search performs a keyword search and returns matching IDs with
	// scores, best first.
	Search(ctx context.Context, query string, limit int) ([]KeywordHit, error)

	// Clear removes every document from the index.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// KeywordHit represents a search result from the index.
type KeywordHit struct {
	// ID is the matched record.
	ID string

	// Score is the engine's relevance score (e.g., BM25).
	Score float64
}
