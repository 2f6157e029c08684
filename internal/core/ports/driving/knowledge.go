package driving

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// KnowledgeManager is the top-level facade over ingestion and search.
// It coordinates sources, the processing pipeline, the vector store
// and the rerankers.
type KnowledgeManager interface {
	// Build ingests one source (opts.SourceID) or every active
	// source. Per-source failures land in the result's error list;
	// the returned error is reserved for invariant-level problems.
	Build(ctx context.Context, opts domain.BuildOptions) (*domain.BuildResult, error)

	// Update rebuilds a source, overwriting existing chunks.
	// Equivalent to Build with UpdateExisting set.
	Update(ctx context.Context, sourceID string) (*domain.BuildResult, error)

	// Search retrieves by vector similarity and optionally reranks
	// with the cross-encoder.
	Search(ctx context.Context, query string, opts domain.KnowledgeSearchOptions) ([]domain.RerankedResult, error)

	// HybridSearch retrieves over the fused vector + keyword channels
	// and optionally reranks.
	HybridSearch(ctx context.Context, query string, opts domain.HybridKnowledgeSearchOptions) ([]domain.RerankedResult, error)

	// DiversitySearch retrieves an over-fetched candidate set and
	// applies MMR reranking.
	DiversitySearch(ctx context.Context, query string, opts domain.DiversitySearchOptions) ([]domain.RerankedResult, error)

	// Clear removes a source's records, or every record when
	// sourceID is empty. Registrations are kept.
	Clear(ctx context.Context, sourceID string) error

	// RemoveSource removes a source's records and its registration.
	RemoveSource(ctx context.Context, sourceID string) error

	// Stats reports the knowledge base state.
	Stats(ctx context.Context) (*domain.KnowledgeStats, error)

	// Watch streams change events for a source's tree so the caller
	// can trigger rebuilds. The caller owns the stop function.
	Watch(ctx context.Context, sourceID string) (<-chan domain.FileChange, func(), error)
}
