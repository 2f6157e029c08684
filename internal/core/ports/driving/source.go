package driving

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// SourceService manages knowledge source registrations.
type SourceService interface {
	// Create registers a new source. The path must be an existing
	// directory and the name must be unique.
	Create(ctx context.Context, name, path, description string) (*domain.KnowledgeSource, error)

	// Get retrieves a source by ID.
	Get(ctx context.Context, id string) (*domain.KnowledgeSource, error)

	// GetByName retrieves a source by its unique name.
	GetByName(ctx context.Context, name string) (*domain.KnowledgeSource, error)

	// Update modifies a source. Nil fields in the update are left
	// unchanged; name and path changes are re-validated.
	Update(ctx context.Context, id string, update domain.SourceUpdate) (*domain.KnowledgeSource, error)

	// UpdateStatus flips a source between active and inactive.
	UpdateStatus(ctx context.Context, id string, status domain.SourceStatus) error

	// Delete removes a source registration. The caller is expected to
	// clear the source's records first (KnowledgeManager.RemoveSource
	// does both).
	Delete(ctx context.Context, id string) error

	// List returns sources newest first. An empty status matches all.
	List(ctx context.Context, status domain.SourceStatus, limit, offset int) ([]domain.KnowledgeSource, error)

	// Count returns the number of sources with the given status.
	Count(ctx context.Context, status domain.SourceStatus) (int, error)

	// GetActive returns active sources ordered by name.
	GetActive(ctx context.Context) ([]domain.KnowledgeSource, error)

	// Search returns sources whose name or description contains the term.
	Search(ctx context.Context, term string) ([]domain.KnowledgeSource, error)

	// ValidatePath checks a source's directory and counts its
	// supported files.
	ValidatePath(ctx context.Context, id string) (*domain.PathValidation, error)

	// Stats summarises the registry.
	Stats(ctx context.Context) (*domain.SourceStats, error)

	// CleanupInvalid deactivates sources whose paths no longer
	// validate and returns how many were deactivated.
	CleanupInvalid(ctx context.Context) (int, error)
}
