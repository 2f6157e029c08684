package driving

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// Reranker reorders retrieval candidates with a cross-encoder.
// Every method scores all candidates in one batch, truncates to k and
// assigns 1-based ranks. An empty candidate list is returned as-is
// without calling the scorer.
type Reranker interface {
	// Rerank orders candidates by raw cross-encoder score.
	Rerank(ctx context.Context, query string, candidates []domain.SearchResult, k int) ([]domain.RerankedResult, error)

	// HybridRerank orders candidates by a weighted blend of min-max
	// normalised vector, keyword and cross-encoder scores.
	HybridRerank(ctx context.Context, query string, candidates []domain.SearchResult, k int, weights domain.RerankWeights) ([]domain.RerankedResult, error)

	// DiversityRerank orders candidates by maximal marginal
	// relevance: lambda trades relevance (1) against diversity (0).
	DiversityRerank(ctx context.Context, query string, candidates []domain.SearchResult, k int, lambda float64) ([]domain.RerankedResult, error)
}
