package driven

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// VectorStore persists vector records and answers similarity queries.
//
// Metadata filters are exact matches over scalar values. Concurrent
// writers to the same ID follow last-write-wins; there are no
// transactions spanning operations. Readers during a build may observe
// partially built state.
type VectorStore interface {
	// Add stores the given records and returns their IDs in input
	// order. Records without an ID are assigned a generated one.
	Add(ctx context.Context, records []domain.VectorRecord) ([]string, error)

	// Update overwrites fields of an existing record. Empty Content,
	// nil Metadata and nil Embedding leave the stored values
	// untouched. Returns ErrNotFound for unknown IDs.
	Update(ctx context.Context, record domain.VectorRecord) error

	// Delete removes a record. Returns ErrNotFound for unknown IDs.
	Delete(ctx context.Context, id string) error

	// DeleteMany removes the given records, ignoring unknown IDs.
	DeleteMany(ctx context.Context, ids []string) error

	// Search returns the k nearest records to the query embedding
	// under the filter, ordered by ascending cosine distance.
	Search(ctx context.Context, embedding []float32, k int, filter map[string]any) ([]domain.VectorHit, error)

	// Get retrieves a record by ID. Returns ErrNotFound for unknown IDs.
	Get(ctx context.Context, id string) (*domain.VectorRecord, error)

	// List returns records matching the filter in store iteration
	// order, without vector math. A zero limit means no limit.
	List(ctx context.Context, filter map[string]any, limit, offset int) ([]domain.VectorRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Clear removes every record but keeps the collection.
	Clear(ctx context.Context) error

	// Drop removes the collection entirely.
	Drop(ctx context.Context) error

	// Close releases resources.
	Close() error
}
