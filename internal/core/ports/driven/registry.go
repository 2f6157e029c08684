package driven

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// NormaliserRegistry selects the appropriate normaliser for a document.
// It maintains a priority-ordered list of normalisers and dispatches
// on file extension.
type NormaliserRegistry interface {
	// Normalise transforms a raw document using the best matching
	// normaliser. Unsupported extensions are configuration errors.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedExtensions returns all extensions that can be normalised.
	SupportedExtensions() []string
}
