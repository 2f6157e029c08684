package domain

// BuildOptions controls a knowledge build run.
type BuildOptions struct {
	// SourceID restricts the build to one source. Empty builds every
	// active source.
	SourceID string

	// Recursive walks source directories recursively.
	Recursive bool

	// UpdateExisting rewrites chunks whose (file_path, chunk_index)
	// already exist. When false, existing chunks are skipped.
	UpdateExisting bool
}

// BuildResult reports a knowledge build run. Per-source failures are
// collected in Errors; the run itself only fails on invariant-level
// problems such as an unreachable store.
type BuildResult struct {
	// ProcessedFiles is the number of files read and normalised.
	ProcessedFiles int

	// ProcessedChunks is the number of chunks produced.
	ProcessedChunks int

	// AddedDocuments is the number of records newly stored.
	AddedDocuments int

	// UpdatedDocuments is the number of records overwritten.
	UpdatedDocuments int

	// Errors lists per-source and per-file failures, in encounter
	// order. A non-empty list does not invalidate the counts above.
	Errors []string
}

// Merge folds another result into this one.
func (r *BuildResult) Merge(other *BuildResult) {
	if other == nil {
		return
	}
	r.ProcessedFiles += other.ProcessedFiles
	r.ProcessedChunks += other.ProcessedChunks
	r.AddedDocuments += other.AddedDocuments
	r.UpdatedDocuments += other.UpdatedDocuments
	r.Errors = append(r.Errors, other.Errors...)
}

// KnowledgeSearchOptions controls a knowledge-level search.
type KnowledgeSearchOptions struct {
	// K is the number of results to return.
	K int

	// Filters restricts candidates by exact metadata match.
	Filters map[string]any

	// MinScore drops results below the similarity threshold.
	MinScore float64

	// Rerank runs the cross-encoder over an over-fetched candidate
	// set before truncating to K.
	Rerank bool
}

// HybridKnowledgeSearchOptions controls a fused-channel search.
type HybridKnowledgeSearchOptions struct {
	K             int
	VectorWeight  float64
	KeywordWeight float64
	Filters       map[string]any
	Rerank        bool
}

// DiversitySearchOptions controls an MMR search.
type DiversitySearchOptions struct {
	// K is the number of results to return.
	K int

	// Lambda balances relevance (1) against diversity (0).
	Lambda float64

	// Filters restricts candidates by exact metadata match.
	Filters map[string]any
}

// KnowledgeStats summarises the knowledge base.
type KnowledgeStats struct {
	// Records is the stored vector record count.
	Records int

	// Collection is the record collection name.
	Collection string

	// StoragePath locates the backing store (file path or DSN host).
	StoragePath string

	// EmbeddingModel is the configured embedding model name.
	EmbeddingModel string

	// EmbeddingDimensions is the fixed vector dimension.
	EmbeddingDimensions int

	// Sources summarises the source registry.
	Sources SourceStats
}
