package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driving"
	"github.com/custodia-labs/knowledge-core/internal/logger"
)

// Ensure KnowledgeService implements the interface.
var _ driving.KnowledgeManager = (*KnowledgeService)(nil)

// defaultKnowledgeK caps search result counts when K is not positive.
const defaultKnowledgeK = 10

// Over-fetch multipliers. Search fetches double before cross-encoder
// reranking; diversity fetches triple so MMR has a pool to spread over.
const (
	searchFetchMultiplier    = 2
	diversityFetchMultiplier = 3
)

// defaultMMRLambda balances relevance and diversity when the caller
// leaves Lambda unset.
const defaultMMRLambda = 0.5

// KnowledgeService coordinates sources, the processing pipeline, the
// vector store and the rerankers.
type KnowledgeService struct {
	sources   driven.SourceStore
	store     driven.VectorStore
	embedder  driven.EmbeddingService
	registry  driven.NormaliserRegistry
	pipeline  driven.PostProcessorPipeline
	scanner   driven.DocumentScanner
	retriever driving.Retriever
	reranker  driving.Reranker

	index   driven.KeywordIndex
	watcher driven.SourceWatcher

	collection  string
	storagePath string
}

// NewKnowledgeService creates a new knowledge service.
// The reranker is optional - if nil, searches return retrieval order
// and diversity search is unavailable.
func NewKnowledgeService(
	sources driven.SourceStore,
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	registry driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	scanner driven.DocumentScanner,
	retriever driving.Retriever,
	reranker driving.Reranker,
) *KnowledgeService {
	return &KnowledgeService{
		sources:   sources,
		store:     store,
		embedder:  embedder,
		registry:  registry,
		pipeline:  pipeline,
		scanner:   scanner,
		retriever: retriever,
		reranker:  reranker,
	}
}

// SetKeywordIndex attaches an optional keyword index. Built chunks are
// indexed into it and cleared from it alongside the store.
func (s *KnowledgeService) SetKeywordIndex(index driven.KeywordIndex) {
	s.index = index
}

// SetWatcher attaches an optional filesystem watcher backing Watch.
func (s *KnowledgeService) SetWatcher(watcher driven.SourceWatcher) {
	s.watcher = watcher
}

// SetCollectionInfo records the store's collection name and location
// for stats reporting.
func (s *KnowledgeService) SetCollectionInfo(collection, storagePath string) {
	s.collection = collection
	s.storagePath = storagePath
}

// Build ingests one source or every active source. Per-source and
// per-file failures are collected in the result; the returned error is
// reserved for invariant-level problems.
func (s *KnowledgeService) Build(ctx context.Context, opts domain.BuildOptions) (*domain.BuildResult, error) {
	logger.Section("Knowledge Build")

	if s.embedder == nil {
		return nil, fmt.Errorf("%w: embedding service unavailable", domain.ErrEmbedding)
	}

	// 1. Resolve the sources to build
	var sources []domain.KnowledgeSource
	if opts.SourceID != "" {
		source, err := s.sources.Get(ctx, opts.SourceID)
		if err != nil {
			return nil, fmt.Errorf("%w: get source: %w", domain.ErrKnowledge, err)
		}
		sources = []domain.KnowledgeSource{*source}
	} else {
		active, err := s.sources.List(ctx, domain.SourceActive, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: list active sources: %w", domain.ErrKnowledge, err)
		}
		sources = active
	}

	result := &domain.BuildResult{}
	if len(sources) == 0 {
		result.Errors = append(result.Errors, "no active knowledge sources found")
		return result, nil
	}

	// 2. Build each source; one bad source never aborts the run
	for i := range sources {
		result.Merge(s.buildSource(ctx, sources[i], opts))
	}

	logger.Info("Build complete: %d files, %d chunks, %d added, %d updated, %d errors",
		result.ProcessedFiles, result.ProcessedChunks,
		result.AddedDocuments, result.UpdatedDocuments, len(result.Errors))
	return result, nil
}

// Update rebuilds a source, overwriting existing chunks.
func (s *KnowledgeService) Update(ctx context.Context, sourceID string) (*domain.BuildResult, error) {
	return s.Build(ctx, domain.BuildOptions{
		SourceID:       sourceID,
		Recursive:      true,
		UpdateExisting: true,
	})
}

// buildSource runs the scan, normalise, chunk, embed and store steps
// for one source, reporting counts and failures in its result.
func (s *KnowledgeService) buildSource(ctx context.Context, source domain.KnowledgeSource, opts domain.BuildOptions) *domain.BuildResult {
	logger.Info("Building source %q (%s)", source.Name, source.Path)
	result := &domain.BuildResult{}

	// 1. VALIDATE PATH
	validation := validateSourcePath(s.scanner, source.Path)
	if !validation.Valid {
		result.Errors = append(result.Errors,
			fmt.Sprintf("source %q path invalid: %s", source.Name, validation.Message))
		return result
	}

	// 2. SCAN
	raws, err := s.scanner.Scan(ctx, source, opts.Recursive)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("source %q: scan: %v", source.Name, err))
		return result
	}

	// 3. NORMALISE + CHUNK (a failing file is skipped, not fatal)
	var chunks []domain.Chunk
	for i := range raws {
		logger.Debug("Processing: %s", raws[i].Path)

		docChunks, err := s.processDocument(ctx, &raws[i])
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("source %q: %s: %v", source.Name, raws[i].Path, err))
			continue
		}
		result.ProcessedFiles++
		chunks = append(chunks, docChunks...)
	}
	result.ProcessedChunks = len(chunks)
	if len(chunks) == 0 {
		return result
	}

	// 4. EMBED (one batch per source)
	embeddings, err := s.embedChunks(ctx, chunks)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("source %q: %v", source.Name, err))
		return result
	}

	// 5. STORE + INDEX
	added, updated, err := s.storeChunks(ctx, source, chunks, embeddings, opts.UpdateExisting)
	result.AddedDocuments = added
	result.UpdatedDocuments = updated
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("source %q: %v", source.Name, err))
	}
	return result
}

// processDocument normalises one raw document and chunks it, carrying
// document-level provenance (title, language) onto every chunk.
func (s *KnowledgeService) processDocument(ctx context.Context, raw *domain.RawDocument) ([]domain.Chunk, error) {
	normalised, err := s.registry.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("normalise: %w", err)
	}

	chunks, err := s.pipeline.Process(ctx, &normalised.Document)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}

	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]any)
		}
		if normalised.Document.Title != "" {
			chunks[i].Metadata[domain.MetaTitle] = normalised.Document.Title
		}
		for key, value := range normalised.Document.Metadata {
			chunks[i].Metadata[key] = value
		}
	}
	return chunks, nil
}

// embedChunks embeds all chunk contents in a single batch.
func (s *KnowledgeService) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d embeddings for %d chunks", len(embeddings), len(chunks))
	}
	return embeddings, nil
}

// storeChunks writes chunks to the vector store, probing each by
// (file_path, chunk_index) so re-ingestion stays idempotent. Counts
// accumulated before a failure are still reported.
func (s *KnowledgeService) storeChunks(ctx context.Context, source domain.KnowledgeSource, chunks []domain.Chunk, embeddings [][]float32, updateExisting bool) (added, updated int, err error) {
	for i, chunk := range chunks {
		metadata := make(map[string]any, len(chunk.Metadata)+2)
		for key, value := range chunk.Metadata {
			metadata[key] = value
		}
		metadata[domain.MetaSourceID] = source.ID
		metadata[domain.MetaSourceName] = source.Name

		probe := map[string]any{
			domain.MetaFilePath:   chunk.FilePath,
			domain.MetaChunkIndex: chunk.Index,
		}
		existing, listErr := s.store.List(ctx, probe, 1, 0)
		if listErr != nil {
			return added, updated, fmt.Errorf("probe chunk: %w", listErr)
		}

		record := domain.VectorRecord{
			Content:   chunk.Content,
			Metadata:  metadata,
			Embedding: embeddings[i],
		}

		switch {
		case len(existing) > 0 && updateExisting:
			record.ID = existing[0].ID
			if updateErr := s.store.Update(ctx, record); updateErr != nil {
				return added, updated, fmt.Errorf("update chunk: %w", updateErr)
			}
			updated++
		case len(existing) == 0:
			ids, addErr := s.store.Add(ctx, []domain.VectorRecord{record})
			if addErr != nil {
				return added, updated, fmt.Errorf("add chunk: %w", addErr)
			}
			record.ID = ids[0]
			added++
		default:
			// Existing chunk, UpdateExisting off: leave it alone.
			continue
		}

		if s.index != nil {
			if indexErr := s.index.Index(ctx, record.ID, record.Content); indexErr != nil {
				return added, updated, fmt.Errorf("index chunk: %w", indexErr)
			}
		}
	}
	return added, updated, nil
}

// Search retrieves by vector similarity and optionally reranks with
// the cross-encoder. Reranking over-fetches double so the encoder has
// candidates to reject.
func (s *KnowledgeService) Search(ctx context.Context, query string, opts domain.KnowledgeSearchOptions) ([]domain.RerankedResult, error) {
	k := opts.K
	if k <= 0 {
		k = defaultKnowledgeK
	}

	rerank := opts.Rerank && s.reranker != nil
	fetch := k
	if rerank {
		fetch = k * searchFetchMultiplier
	}

	results, err := s.retriever.Retrieve(ctx, query, domain.RetrieveOptions{
		K:        fetch,
		Filters:  opts.Filters,
		MinScore: opts.MinScore,
	})
	if err != nil {
		return nil, err
	}

	if rerank && len(results) > 0 {
		return s.reranker.Rerank(ctx, query, results, k)
	}
	return asRetrievalOrder(results, k), nil
}

// HybridSearch retrieves over the fused vector + keyword channels and
// optionally reranks.
func (s *KnowledgeService) HybridSearch(ctx context.Context, query string, opts domain.HybridKnowledgeSearchOptions) ([]domain.RerankedResult, error) {
	k := opts.K
	if k <= 0 {
		k = defaultKnowledgeK
	}

	results, err := s.retriever.HybridRetrieve(ctx, query, domain.HybridOptions{
		K:             k,
		Filters:       opts.Filters,
		VectorWeight:  opts.VectorWeight,
		KeywordWeight: opts.KeywordWeight,
	})
	if err != nil {
		return nil, err
	}

	if opts.Rerank && s.reranker != nil && len(results) > 0 {
		return s.reranker.Rerank(ctx, query, results, k)
	}
	return asRetrievalOrder(results, k), nil
}

// DiversitySearch retrieves an over-fetched candidate set and applies
// MMR reranking.
func (s *KnowledgeService) DiversitySearch(ctx context.Context, query string, opts domain.DiversitySearchOptions) ([]domain.RerankedResult, error) {
	if s.reranker == nil {
		return nil, fmt.Errorf("%w: reranker unavailable", domain.ErrReranking)
	}

	k := opts.K
	if k <= 0 {
		k = defaultKnowledgeK
	}
	lambda := opts.Lambda
	if lambda <= 0 {
		lambda = defaultMMRLambda
	}

	results, err := s.retriever.Retrieve(ctx, query, domain.RetrieveOptions{
		K:       k * diversityFetchMultiplier,
		Filters: opts.Filters,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return []domain.RerankedResult{}, nil
	}

	return s.reranker.DiversityRerank(ctx, query, results, k, lambda)
}

// Clear removes a source's records, or every record when sourceID is
// empty. Source registrations are kept.
func (s *KnowledgeService) Clear(ctx context.Context, sourceID string) error {
	logger.Section("Knowledge Clear")

	if sourceID == "" {
		if err := s.store.Clear(ctx); err != nil {
			return fmt.Errorf("%w: clear: %w", domain.ErrVectorStore, err)
		}
		if s.index != nil {
			if err := s.index.Clear(ctx); err != nil {
				return fmt.Errorf("clear keyword index: %w", err)
			}
		}
		logger.Info("Cleared all knowledge records")
		return nil
	}

	records, err := s.store.List(ctx, map[string]any{domain.MetaSourceID: sourceID}, 0, 0)
	if err != nil {
		return fmt.Errorf("%w: list source records: %w", domain.ErrVectorStore, err)
	}
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}
	if err := s.store.DeleteMany(ctx, ids); err != nil {
		return fmt.Errorf("%w: delete source records: %w", domain.ErrVectorStore, err)
	}

	if s.index != nil {
		for _, id := range ids {
			if err := s.index.Delete(ctx, id); err != nil {
				logger.Debug("Failed to delete index entry %s: %v", id, err)
			}
		}
	}

	logger.Info("Cleared %d records for source %s", len(ids), sourceID)
	return nil
}

// RemoveSource removes a source's records and its registration.
func (s *KnowledgeService) RemoveSource(ctx context.Context, sourceID string) error {
	if sourceID == "" {
		return fmt.Errorf("%w: source id required", domain.ErrInvalidInput)
	}

	if err := s.Clear(ctx, sourceID); err != nil {
		return err
	}
	if err := s.sources.Delete(ctx, sourceID); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return nil
}

// Stats reports the knowledge base state.
func (s *KnowledgeService) Stats(ctx context.Context) (*domain.KnowledgeStats, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count records: %w", domain.ErrVectorStore, err)
	}

	stats := &domain.KnowledgeStats{
		Records:     count,
		Collection:  s.collection,
		StoragePath: s.storagePath,
	}
	if s.embedder != nil {
		stats.EmbeddingModel = s.embedder.ModelName()
		stats.EmbeddingDimensions = s.embedder.Dimensions()
	}

	sourceStats, err := collectSourceStats(ctx, s.sources, s.scanner)
	if err != nil {
		return nil, err
	}
	stats.Sources = sourceStats
	return stats, nil
}

// Watch streams change events for a source's tree. The caller owns the
// stop function and is expected to trigger rebuilds itself.
func (s *KnowledgeService) Watch(ctx context.Context, sourceID string) (<-chan domain.FileChange, func(), error) {
	if s.watcher == nil {
		return nil, nil, errors.New("source watcher not configured")
	}

	source, err := s.sources.Get(ctx, sourceID)
	if err != nil {
		return nil, nil, fmt.Errorf("get source: %w", err)
	}

	return s.watcher.Watch(ctx, *source)
}

// asRetrievalOrder wraps plain retrieval results without reordering.
func asRetrievalOrder(results []domain.SearchResult, k int) []domain.RerankedResult {
	if len(results) > k {
		results = results[:k]
	}
	wrapped := make([]domain.RerankedResult, len(results))
	for i, result := range results {
		wrapped[i] = domain.RerankedResult{
			SearchResult: result,
			RerankScore:  result.Score,
			Rank:         i + 1,
			Method:       domain.RerankNone,
		}
	}
	return wrapped
}
