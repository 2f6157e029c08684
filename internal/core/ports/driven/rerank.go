package driven

import "context"

// RelevanceScorer scores query-passage pairs with a cross-encoder.
// Scores are unbounded; larger means more relevant. Comparisons are
// only meaningful within a single call.
//
// This is an optional service - when nil, reranking is disabled and
// searches return retrieval order.
type RelevanceScorer interface {
	// Score rates every passage against the query in one batch.
	// The result corresponds positionally to the passages.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)

	// ModelName returns the name of the cross-encoder model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
