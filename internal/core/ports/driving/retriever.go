package driving

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// Retriever finds relevant chunks for a query. Each method is one
// retrieval channel; HybridRetrieve fuses the vector and keyword
// channels.
type Retriever interface {
	// Retrieve embeds the query and returns the top results by
	// cosine similarity, filtered by opts.
	Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) ([]domain.SearchResult, error)

	// RetrieveByKeywords scores candidates by query keyword
	// occurrences. A query with no extractable keywords returns an
	// empty result.
	RetrieveByKeywords(ctx context.Context, query string, opts domain.RetrieveOptions) ([]domain.SearchResult, error)

	// RetrieveByMetadata lists records matching the filter without
	// query relevance; every result scores 1.0.
	RetrieveByMetadata(ctx context.Context, filter map[string]any, limit int) ([]domain.SearchResult, error)

	// HybridRetrieve fuses the vector and keyword channels with the
	// given weight multipliers.
	HybridRetrieve(ctx context.Context, query string, opts domain.HybridOptions) ([]domain.SearchResult, error)
}
