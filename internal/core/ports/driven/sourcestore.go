package driven

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// SourceStore persists knowledge source registrations.
// Name uniqueness is enforced by the source service, not the store.
type SourceStore interface {
	// Save stores or updates a source.
	Save(ctx context.Context, source domain.KnowledgeSource) error

	// Get retrieves a source by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (*domain.KnowledgeSource, error)

	// GetByName retrieves a source by its unique name.
	// Returns ErrNotFound when absent.
	GetByName(ctx context.Context, name string) (*domain.KnowledgeSource, error)

	// Delete removes a source. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id string) error

	// List returns sources newest first. An empty status matches all;
	// a zero limit means no limit.
	List(ctx context.Context, status domain.SourceStatus, limit, offset int) ([]domain.KnowledgeSource, error)

	// Count returns the number of sources with the given status.
	// An empty status counts all.
	Count(ctx context.Context, status domain.SourceStatus) (int, error)

	// Search returns sources whose name or description contains the
	// term, case-insensitively, name-ordered.
	Search(ctx context.Context, term string) ([]domain.KnowledgeSource, error)
}
