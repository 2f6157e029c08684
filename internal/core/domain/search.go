package domain

// SearchResult is a single retrieval result before reranking.
type SearchResult struct {
	// ID identifies the underlying vector record.
	ID string

	// Content is the chunk text.
	Content string

	// Metadata is the record's provenance metadata.
	Metadata map[string]any

	// Score is channel-dependent: cosine similarity for vector
	// retrieval, keyword match score for keyword retrieval, the
	// weighted blend for hybrid retrieval, and 1.0 for plain
	// metadata listing.
	Score float64
}

// RerankMethod tags a result set with the reranking strategy that
// produced its ordering.
type RerankMethod string

const (
	// RerankNone means retrieval order was kept.
	RerankNone RerankMethod = "none"

	// RerankCrossEncoder orders by raw cross-encoder scores.
	RerankCrossEncoder RerankMethod = "cross_encoder"

	// RerankHybrid orders by a weighted blend of normalised vector,
	// keyword and cross-encoder scores.
	RerankHybrid RerankMethod = "hybrid"

	// RerankMMR orders by maximal marginal relevance.
	RerankMMR RerankMethod = "mmr"
)

// RerankedResult is a SearchResult with its post-rerank standing.
type RerankedResult struct {
	SearchResult

	// RerankScore is the ordering score for Method. For mmr this is
	// the raw relevance score of the selected candidate, not the
	// marginal score it was selected by.
	RerankScore float64

	// Rank is the 1-based position in the reranked list.
	Rank int

	// Method is the strategy that produced this ordering.
	Method RerankMethod

	// Component scores, set for hybrid reranking only.
	VectorScore       *float64
	KeywordScore      *float64
	CrossEncoderScore *float64
}

// RetrieveOptions controls a single-channel retrieval.
type RetrieveOptions struct {
	// K is the number of results to return.
	K int

	// Filters restricts candidates by exact metadata match.
	Filters map[string]any

	// MinScore drops results scoring below the threshold.
	MinScore float64

	// Rerank requests the retriever's internal relevance blend.
	// Callers that run a dedicated reranker afterwards leave this
	// false and over-fetch instead.
	Rerank bool
}

// HybridOptions controls a fused vector + keyword retrieval.
// Weights are literal multipliers; they are deliberately not
// normalised, so fused scores can exceed 1.
type HybridOptions struct {
	K             int
	Filters       map[string]any
	VectorWeight  float64
	KeywordWeight float64
}

// RerankWeights blends the three score channels in hybrid reranking.
type RerankWeights struct {
	Vector       float64
	Keyword      float64
	CrossEncoder float64
}

// DefaultRerankWeights returns the standard hybrid rerank blend.
func DefaultRerankWeights() RerankWeights {
	return RerankWeights{Vector: 0.4, Keyword: 0.3, CrossEncoder: 0.3}
}
