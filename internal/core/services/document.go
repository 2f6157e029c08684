package services

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driving"
	"github.com/custodia-labs/knowledge-core/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService answers questions about stored documents and
// directories of candidate documents.
type DocumentService struct {
	store    driven.VectorStore
	scanner  driven.DocumentScanner
	registry driven.NormaliserRegistry
	pipeline driven.PostProcessorPipeline
	tokens   driven.TokenCounter
}

// NewDocumentService creates a new document service.
// The token counter is optional - when nil, stats report zero tokens.
func NewDocumentService(
	store driven.VectorStore,
	scanner driven.DocumentScanner,
	registry driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	tokens driven.TokenCounter,
) *DocumentService {
	return &DocumentService{
		store:    store,
		scanner:  scanner,
		registry: registry,
		pipeline: pipeline,
		tokens:   tokens,
	}
}

// Stats analyses a directory without ingesting it. Supported files
// are the ones a build would read, so ignore rules apply to them but
// not to the total file count.
func (s *DocumentService) Stats(ctx context.Context, path string, recursive bool) (*domain.DocumentStats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("validate path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrPathNotDirectory, path)
	}

	logger.Section("Document Stats")
	stats := &domain.DocumentStats{FilesByExtension: make(map[string]int)}

	// 1. Count every regular file under the path
	err = walkFiles(path, recursive, func(string) { stats.TotalFiles++ })
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}

	// 2. Read the documents a build would ingest
	docs, err := s.scanner.Scan(ctx, domain.KnowledgeSource{Path: path}, recursive)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	stats.SupportedFiles = len(docs)
	stats.UnsupportedFiles = stats.TotalFiles - stats.SupportedFiles

	// 3. Measure normalised content and project chunk counts
	totalChunkRunes := 0
	for i := range docs {
		raw := &docs[i]
		stats.FilesByExtension[raw.Format]++

		result, err := s.registry.Normalise(ctx, raw)
		if err != nil {
			logger.Debug("Skipping %s: %v", raw.Path, err)
			continue
		}

		content := result.Document.Content
		stats.TotalChars += utf8.RuneCountInString(content)
		if s.tokens != nil {
			stats.TotalTokens += s.tokens.CountTokens(content)
		}

		chunks, err := s.pipeline.Process(ctx, &result.Document)
		if err != nil {
			logger.Debug("Skipping %s: %v", raw.Path, err)
			continue
		}
		stats.EstimatedChunks += len(chunks)
		for j := range chunks {
			totalChunkRunes += utf8.RuneCountInString(chunks[j].Content)
		}
	}

	if stats.EstimatedChunks > 0 {
		stats.AvgChunkSize = totalChunkRunes / stats.EstimatedChunks
	}

	logger.Info("Analysed %d files (%d supported, ~%d chunks)",
		stats.TotalFiles, stats.SupportedFiles, stats.EstimatedChunks)
	return stats, nil
}

// ListBySource returns one summary per stored document of a source,
// ordered by file path.
func (s *DocumentService) ListBySource(ctx context.Context, sourceID string) ([]driving.DocumentSummary, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("%w: source id required", domain.ErrInvalidInput)
	}

	records, err := s.store.List(ctx, map[string]any{domain.MetaSourceID: sourceID}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %w", domain.ErrVectorStore, err)
	}

	summaries := summariseRecords(records)
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].FilePath < summaries[j].FilePath
	})
	return summaries, nil
}

// Get returns the summary for one stored document.
func (s *DocumentService) Get(ctx context.Context, filePath string) (*driving.DocumentSummary, error) {
	records, err := s.documentRecords(ctx, filePath)
	if err != nil {
		return nil, err
	}

	summaries := summariseRecords(records)
	return &summaries[0], nil
}

// GetContent returns the document text reassembled from its chunks in
// index order. Overlapping chunk regions appear as stored.
func (s *DocumentService) GetContent(ctx context.Context, filePath string) (string, error) {
	records, err := s.documentRecords(ctx, filePath)
	if err != nil {
		return "", err
	}

	sort.Slice(records, func(i, j int) bool {
		return metadataInt(records[i].Metadata, domain.MetaChunkIndex) <
			metadataInt(records[j].Metadata, domain.MetaChunkIndex)
	})

	var builder strings.Builder
	for i := range records {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(records[i].Content)
	}
	return builder.String(), nil
}

// documentRecords loads the chunk records sharing a file path.
func (s *DocumentService) documentRecords(ctx context.Context, filePath string) ([]domain.VectorRecord, error) {
	if filePath == "" {
		return nil, fmt.Errorf("%w: file path required", domain.ErrInvalidInput)
	}

	records, err := s.store.List(ctx, map[string]any{domain.MetaFilePath: filePath}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %w", domain.ErrVectorStore, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, filePath)
	}
	return records, nil
}

// summariseRecords folds chunk records into per-document summaries,
// preserving first-seen order.
func summariseRecords(records []domain.VectorRecord) []driving.DocumentSummary {
	byPath := make(map[string]*driving.DocumentSummary)
	var order []string

	for i := range records {
		record := &records[i]
		path := metadataString(record.Metadata, domain.MetaFilePath)
		if path == "" {
			continue
		}

		summary, ok := byPath[path]
		if !ok {
			summary = &driving.DocumentSummary{
				FilePath:   path,
				FileName:   metadataString(record.Metadata, domain.MetaFileName),
				SourceID:   metadataString(record.Metadata, domain.MetaSourceID),
				SourceName: metadataString(record.Metadata, domain.MetaSourceName),
			}
			if summary.FileName == "" {
				summary.FileName = filepath.Base(path)
			}
			byPath[path] = summary
			order = append(order, path)
		}

		summary.ChunkCount++
		if record.UpdatedAt.After(summary.UpdatedAt) {
			summary.UpdatedAt = record.UpdatedAt
		}
		if summary.Title == "" {
			summary.Title = metadataString(record.Metadata, domain.MetaTitle)
		}
	}

	summaries := make([]driving.DocumentSummary, 0, len(order))
	for _, path := range order {
		summaries = append(summaries, *byPath[path])
	}
	return summaries
}

// walkFiles calls fn for every regular file under root. Non-recursive
// walks stop at the top level.
func walkFiles(root string, recursive bool, fn func(path string)) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if !recursive && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if entry.Type().IsRegular() {
			fn(path)
		}
		return nil
	})
}

// metadataString returns a string metadata value, or "".
func metadataString(metadata map[string]any, key string) string {
	if value, ok := metadata[key].(string); ok {
		return value
	}
	return ""
}

// metadataInt returns an integer metadata value regardless of the
// numeric type the storage backend round-trips.
func metadataInt(metadata map[string]any, key string) int {
	switch value := metadata[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	default:
		return 0
	}
}
