package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// DocumentService answers questions about ingested and ingestible
// documents. Stored chunks sharing a file_path form one document.
type DocumentService interface {
	// Stats analyses a directory of candidate documents without
	// ingesting it: file counts, sizes, token counts and the chunk
	// count the configured chunker would produce.
	Stats(ctx context.Context, path string, recursive bool) (*domain.DocumentStats, error)

	// ListBySource returns one summary per stored document of a source.
	ListBySource(ctx context.Context, sourceID string) ([]DocumentSummary, error)

	// Get returns the summary for a stored document.
	Get(ctx context.Context, filePath string) (*DocumentSummary, error)

	// GetContent returns the document text reassembled from its
	// chunks in index order.
	GetContent(ctx context.Context, filePath string) (string, error)
}

// DocumentSummary is the stored-document view reassembled from chunk
// metadata.
type DocumentSummary struct {
	// FilePath identifies the document.
	FilePath string

	// FileName is the base name.
	FileName string

	// SourceID links to the owning source.
	SourceID string

	// SourceName is the human-readable source name.
	SourceName string

	// Title is the document title, when a normaliser extracted one.
	Title string

	// ChunkCount is the number of stored chunks.
	ChunkCount int

	// UpdatedAt is the newest chunk write time.
	UpdatedAt time.Time
}
