// Package chunker provides a sentence-aware text chunking processor.
package chunker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = 200

// Processor splits document content into bounded chunks, preferring to
// cut at sentence boundaries. It implements the PostProcessor
// interface. Offsets are rune indexes, so multi-byte text chunks the
// same as ASCII.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor. Values are validated by
// New, not by the option itself.
type Option func(*Processor)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a new chunker processor with the given options.
// A non-positive size, a negative overlap or an overlap that is not
// smaller than the size is a configuration error.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfiguration, p.chunkSize)
	}
	if p.overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must be non-negative, got %d", domain.ErrConfiguration, p.overlap)
	}
	if p.overlap >= p.chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", domain.ErrConfiguration, p.overlap, p.chunkSize)
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured chunk size in runes.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the configured overlap in runes.
func (p *Processor) Overlap() int {
	return p.overlap
}

// boundary runes the chunker prefers to cut after.
const sentenceBoundaries = ".!?\n"

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
//
// Content no longer than the chunk size becomes a single chunk. Longer
// content is cut every chunkSize runes, moving each cut back to the
// last sentence boundary in the window when that boundary lies past
// the window's midpoint. Consecutive chunks overlap by the configured
// amount. Whitespace-only windows are skipped without consuming a
// chunk index.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	if strings.TrimSpace(doc.Content) == "" {
		// Empty content produces no chunks
		return nil, nil
	}

	runes := []rune(doc.Content)
	n := len(runes)

	if n <= p.chunkSize {
		return []domain.Chunk{p.newChunk(doc, strings.TrimSpace(doc.Content), 0, 0, n)}, nil
	}

	estimated := n/(p.chunkSize-p.overlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	start := 0
	index := 0

	for start < n {
		end := start + p.chunkSize
		if end > n {
			end = n
		}

		// Not the last chunk: pull the cut back to a sentence
		// boundary when one falls in the second half of the window.
		if end < n {
			if b := lastBoundary(runes, start, end); b > start+p.chunkSize/2 {
				end = b + 1
			}
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, p.newChunk(doc, content, index, start, end))
			index++
		}

		if end < n {
			next := end - p.overlap
			if next <= start {
				// Large overlaps cannot rewind past forward progress
				next = end
			}
			start = next
		} else {
			start = end
		}
	}

	return chunks, nil
}

// newChunk assembles a chunk with its provenance metadata.
func (p *Processor) newChunk(doc *domain.Document, content string, index, start, end int) domain.Chunk {
	fileName := filepath.Base(doc.Path)
	return domain.Chunk{
		Content:  content,
		Index:    index,
		Start:    start,
		End:      end,
		FilePath: doc.Path,
		FileName: fileName,
		Metadata: map[string]any{
			domain.MetaFilePath:   doc.Path,
			domain.MetaFileName:   fileName,
			domain.MetaChunkIndex: index,
		},
	}
}

// lastBoundary returns the index of the last sentence boundary rune in
// [start, end), or -1 when the window has none.
func lastBoundary(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if strings.ContainsRune(sentenceBoundaries, runes[i]) {
			return i
		}
	}
	return -1
}
