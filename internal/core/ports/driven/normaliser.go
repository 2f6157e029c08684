package driven

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// Normaliser transforms raw documents into normalised text.
// Each normaliser handles specific file extensions (e.g., ".md", ".py").
type Normaliser interface {
	// SupportedExtensions returns the lowercased extensions this
	// normaliser handles, including the dot.
	SupportedExtensions() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise transforms a raw document into normalised form.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
// Note: Normalisation only produces a Document with Content.
// Chunking is handled by the PostProcessor pipeline.
type NormaliseResult struct {
	// Document is the normalised document with Content field populated.
	Document domain.Document
}
