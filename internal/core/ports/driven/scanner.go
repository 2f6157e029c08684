package driven

import (
	"context"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// DocumentScanner reads raw documents from a source directory.
// Scanners filter by supported extension and ignore rules; documents
// are emitted in filesystem encounter order.
type DocumentScanner interface {
	// Scan walks the source path and returns its supported documents.
	// Non-recursive scans stop at the top level. Unreadable files are
	// I/O errors; an unreadable root aborts the scan.
	Scan(ctx context.Context, source domain.KnowledgeSource, recursive bool) ([]domain.RawDocument, error)

	// Supported reports whether the path's extension is ingestible.
	Supported(path string) bool

	// CountSupported counts the supported files under a root without
	// reading them. Used for path validation and stats.
	CountSupported(root string, recursive bool) (int, error)
}

// SourceWatcher streams filesystem change events for a source tree.
//
// This is an optional service - when nil, the watch operation is
// unavailable.
type SourceWatcher interface {
	// Watch emits change events for supported files under the source
	// path until stop is called or the context is cancelled. The
	// channel is closed on teardown.
	Watch(ctx context.Context, source domain.KnowledgeSource) (events <-chan domain.FileChange, stop func(), err error)
}
