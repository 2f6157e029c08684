package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driving"
	"github.com/custodia-labs/knowledge-core/internal/logger"
)

// Ensure Retriever implements the interface.
var _ driving.Retriever = (*Retriever)(nil)

// Per-channel result-count defaults, applied when K is not positive.
const (
	defaultVectorK   = 5
	defaultKeywordK  = 10
	defaultMetadataK = 20
	defaultHybridK   = 10
)

// Over-fetch multipliers. Keyword scanning lists more candidates than
// requested because occurrence scoring discards non-matching ones;
// rerank and hybrid fetch double so downstream scoring has slack.
const (
	keywordScanMultiplier = 5
	rerankFetchMultiplier = 2
	hybridFetchMultiplier = 2
)

// Internal relevance blend used when opts.Rerank is set on a plain
// vector retrieval.
const (
	vectorBlendWeight  = 0.7
	keywordBlendWeight = 0.3
)

// Default hybrid channel weights, applied when both are zero.
const (
	defaultVectorWeight  = 0.7
	defaultKeywordWeight = 0.3
)

// Retriever finds relevant chunks through the vector, keyword and
// hybrid channels.
type Retriever struct {
	store        driven.VectorStore
	embedder     driven.EmbeddingService
	keywordIndex driven.KeywordIndex
}

// NewRetriever creates a new retriever over the vector store.
func NewRetriever(store driven.VectorStore, embedder driven.EmbeddingService) *Retriever {
	return &Retriever{
		store:    store,
		embedder: embedder,
	}
}

// SetKeywordIndex installs an optional full-text index. When set, the
// keyword channel queries it instead of scanning the store.
func (r *Retriever) SetKeywordIndex(index driven.KeywordIndex) {
	r.keywordIndex = index
}

// Retrieve embeds the query and returns the top results by cosine
// similarity.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) ([]domain.SearchResult, error) {
	logger.Section("Vector Retrieval")
	logger.Debug("Query: %q", query)

	if r.embedder == nil {
		return nil, fmt.Errorf("%w: embedding service unavailable", domain.ErrEmbedding)
	}

	k := opts.K
	if k <= 0 {
		k = defaultVectorK
	}

	fetch := k
	if opts.Rerank {
		fetch = k * rerankFetchMultiplier
	}
	logger.Debug("K: %d, fetch: %d, min score: %.3f", k, fetch, opts.MinScore)

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrEmbedding, err)
	}

	hits, err := r.store.Search(ctx, embedding, fetch, opts.Filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStore, err)
	}
	logger.Debug("Vector search: %d hits", len(hits))

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		score := 1.0 - hit.Distance
		if score < opts.MinScore {
			continue
		}
		results = append(results, domain.SearchResult{
			ID:       hit.ID,
			Content:  hit.Content,
			Metadata: hit.Metadata,
			Score:    score,
		})
	}
	logger.Debug("After min-score filter: %d results", len(results))

	if opts.Rerank && len(results) > 0 {
		results = r.blendKeywordRelevance(query, results)
	}

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// RetrieveByKeywords scores candidates by query keyword occurrences.
func (r *Retriever) RetrieveByKeywords(ctx context.Context, query string, opts domain.RetrieveOptions) ([]domain.SearchResult, error) {
	logger.Section("Keyword Retrieval")
	logger.Debug("Query: %q", query)

	k := opts.K
	if k <= 0 {
		k = defaultKeywordK
	}

	keywords := extractKeywords(query)
	if len(keywords) == 0 {
		logger.Debug("No extractable keywords, returning no results")
		return []domain.SearchResult{}, nil
	}
	logger.Debug("Keywords: %v", keywords)

	if r.keywordIndex != nil {
		return r.indexedKeywordRetrieve(ctx, query, k, opts.Filters)
	}
	return r.scanKeywordRetrieve(ctx, keywords, k, opts.Filters)
}

// indexedKeywordRetrieve queries the full-text index and hydrates hits
// from the store. Filters apply after hydration because the index only
// knows content.
func (r *Retriever) indexedKeywordRetrieve(ctx context.Context, query string, k int, filters map[string]any) ([]domain.SearchResult, error) {
	logger.Debug("Using keyword index")

	hits, err := r.keywordIndex.Search(ctx, query, k*keywordScanMultiplier)
	if err != nil {
		return nil, fmt.Errorf("keyword index search: %w", err)
	}
	logger.Debug("Index hits: %d", len(hits))

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		record, err := r.store.Get(ctx, hit.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Index entry outlived its record; skip it.
				continue
			}
			return nil, fmt.Errorf("%w: hydrate keyword hit: %w", domain.ErrVectorStore, err)
		}
		if !metadataMatches(record.Metadata, filters) {
			continue
		}
		results = append(results, domain.SearchResult{
			ID:       record.ID,
			Content:  record.Content,
			Metadata: record.Metadata,
			Score:    hit.Score,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// scanKeywordRetrieve lists store candidates and scores them by exact
// word-boundary occurrence counts.
func (r *Retriever) scanKeywordRetrieve(ctx context.Context, keywords []string, k int, filters map[string]any) ([]domain.SearchResult, error) {
	records, err := r.store.List(ctx, filters, k*keywordScanMultiplier, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: list candidates: %w", domain.ErrVectorStore, err)
	}
	logger.Debug("Scanning %d candidates", len(records))

	patterns := keywordPatterns(keywords)

	results := make([]domain.SearchResult, 0, len(records))
	for _, record := range records {
		score := countMatches(strings.ToLower(record.Content), patterns)
		if score <= 0 {
			continue
		}
		results = append(results, domain.SearchResult{
			ID:       record.ID,
			Content:  record.Content,
			Metadata: record.Metadata,
			Score:    score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	logger.Debug("Keyword matches: %d", len(results))
	return results, nil
}

// RetrieveByMetadata lists records matching the filter without query
// relevance; every result scores 1.0.
func (r *Retriever) RetrieveByMetadata(ctx context.Context, filter map[string]any, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = defaultMetadataK
	}

	records, err := r.store.List(ctx, filter, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("list by metadata: %w", err)
	}

	results := make([]domain.SearchResult, len(records))
	for i, record := range records {
		results[i] = domain.SearchResult{
			ID:       record.ID,
			Content:  record.Content,
			Metadata: record.Metadata,
			Score:    1.0,
		}
	}
	return results, nil
}

// HybridRetrieve fuses the vector and keyword channels. Both channels
// run in parallel and either failure fails the retrieval.
func (r *Retriever) HybridRetrieve(ctx context.Context, query string, opts domain.HybridOptions) ([]domain.SearchResult, error) {
	logger.Section("Hybrid Retrieval")

	k := opts.K
	if k <= 0 {
		k = defaultHybridK
	}
	vectorWeight, keywordWeight := opts.VectorWeight, opts.KeywordWeight
	if vectorWeight == 0 && keywordWeight == 0 {
		vectorWeight, keywordWeight = defaultVectorWeight, defaultKeywordWeight
	}
	fetch := k * hybridFetchMultiplier
	logger.Debug("K: %d, fetch per channel: %d, weights: %.2f/%.2f", k, fetch, vectorWeight, keywordWeight)

	var (
		wg             sync.WaitGroup
		vectorResults  []domain.SearchResult
		keywordResults []domain.SearchResult
		vectorErr      error
		keywordErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorResults, vectorErr = r.Retrieve(ctx, query, domain.RetrieveOptions{K: fetch, Filters: opts.Filters})
	}()
	go func() {
		defer wg.Done()
		keywordResults, keywordErr = r.RetrieveByKeywords(ctx, query, domain.RetrieveOptions{K: fetch, Filters: opts.Filters})
	}()
	wg.Wait()

	if vectorErr != nil {
		return nil, fmt.Errorf("hybrid vector channel: %w", vectorErr)
	}
	if keywordErr != nil {
		return nil, fmt.Errorf("hybrid keyword channel: %w", keywordErr)
	}
	logger.Debug("Channel results: vector=%d, keyword=%d", len(vectorResults), len(keywordResults))

	merged := fuseChannels(vectorResults, keywordResults, vectorWeight, keywordWeight)
	if len(merged) > k {
		merged = merged[:k]
	}
	logger.Debug("Fused results: %d", len(merged))
	return merged, nil
}

// channelScores holds one candidate's per-channel scores during fusion.
type channelScores struct {
	result  domain.SearchResult
	vector  float64
	keyword float64
}

// fuseChannels unions the two result lists by ID and combines scores
// with the given weights. A candidate missing from a channel takes 0
// for it. Ties keep first-encounter order: vector results, then
// keyword-only results.
func fuseChannels(vectorResults, keywordResults []domain.SearchResult, vectorWeight, keywordWeight float64) []domain.SearchResult {
	combined := make(map[string]*channelScores, len(vectorResults)+len(keywordResults))
	order := make([]string, 0, len(vectorResults)+len(keywordResults))

	for _, result := range vectorResults {
		if entry, ok := combined[result.ID]; ok {
			entry.vector = result.Score
			continue
		}
		combined[result.ID] = &channelScores{result: result, vector: result.Score}
		order = append(order, result.ID)
	}
	for _, result := range keywordResults {
		if entry, ok := combined[result.ID]; ok {
			entry.keyword = result.Score
			continue
		}
		combined[result.ID] = &channelScores{result: result, keyword: result.Score}
		order = append(order, result.ID)
	}

	fused := make([]domain.SearchResult, 0, len(order))
	for _, id := range order {
		entry := combined[id]
		result := entry.result
		result.Score = entry.vector*vectorWeight + entry.keyword*keywordWeight
		fused = append(fused, result)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}

// blendKeywordRelevance re-scores vector hits with the query's keyword
// overlap and reorders. The keyword share is the occurrence count
// divided by the keyword count, so long queries do not inflate scores.
func (r *Retriever) blendKeywordRelevance(query string, results []domain.SearchResult) []domain.SearchResult {
	keywords := extractKeywords(query)
	patterns := keywordPatterns(keywords)

	blended := make([]domain.SearchResult, len(results))
	for i, result := range results {
		keywordScore := 0.0
		if len(keywords) > 0 {
			keywordScore = countMatches(strings.ToLower(result.Content), patterns) / float64(len(keywords))
		}
		result.Score = vectorBlendWeight*result.Score + keywordBlendWeight*keywordScore
		blended[i] = result
	}

	sort.SliceStable(blended, func(i, j int) bool {
		return blended[i].Score > blended[j].Score
	})
	return blended
}

// metadataMatches applies the store's exact-match filter semantics to
// hydrated metadata. Numbers compare by value, so an int filter
// matches a restored JSON number.
func metadataMatches(metadata, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || !scalarEqual(got, want) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	// Restored metadata can hold non-comparable values ([]any).
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
