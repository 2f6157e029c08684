package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driving"
	"github.com/custodia-labs/knowledge-core/internal/logger"
)

// Ensure Reranker implements the interface.
var _ driving.Reranker = (*Reranker)(nil)

// defaultRerankK caps reranked result counts when k is not positive.
const defaultRerankK = 10

// Reranker reorders retrieval candidates with an external
// cross-encoder. All three strategies score candidates in a single
// batch call, so cost scales with candidate count, not k.
type Reranker struct {
	scorer driven.RelevanceScorer
}

// NewReranker creates a reranker backed by the given scorer.
func NewReranker(scorer driven.RelevanceScorer) *Reranker {
	return &Reranker{scorer: scorer}
}

// Rerank orders candidates by raw cross-encoder score.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.SearchResult, k int) ([]domain.RerankedResult, error) {
	logger.Section("Cross-Encoder Reranking")
	logger.Debug("Reranking %d candidates", len(candidates))

	if len(candidates) == 0 {
		return []domain.RerankedResult{}, nil
	}
	if k <= 0 {
		k = defaultRerankK
	}

	scores, err := r.scoreAll(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RerankedResult, len(candidates))
	for i, candidate := range candidates {
		results[i] = domain.RerankedResult{
			SearchResult: candidate,
			RerankScore:  scores[i],
			Method:       domain.RerankCrossEncoder,
		}
	}
	return sortAndRank(results, k), nil
}

// HybridRerank orders candidates by a weighted blend of min-max
// normalised vector, keyword and cross-encoder scores. The raw
// per-channel scores are attached to each result.
func (r *Reranker) HybridRerank(ctx context.Context, query string, candidates []domain.SearchResult, k int, weights domain.RerankWeights) ([]domain.RerankedResult, error) {
	logger.Section("Hybrid Reranking")
	logger.Debug("Reranking %d candidates (weights %.2f/%.2f/%.2f)",
		len(candidates), weights.Vector, weights.Keyword, weights.CrossEncoder)

	if len(candidates) == 0 {
		return []domain.RerankedResult{}, nil
	}
	if k <= 0 {
		k = defaultRerankK
	}
	if weights == (domain.RerankWeights{}) {
		weights = domain.DefaultRerankWeights()
	}

	crossScores, err := r.scoreAll(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	vectorScores := make([]float64, len(candidates))
	for i, candidate := range candidates {
		vectorScores[i] = candidate.Score
	}
	keywordScores := keywordShareScores(query, candidates)

	normVector := minMaxNormalise(vectorScores)
	normKeyword := minMaxNormalise(keywordScores)
	normCross := minMaxNormalise(crossScores)

	results := make([]domain.RerankedResult, len(candidates))
	for i, candidate := range candidates {
		combined := normVector[i]*weights.Vector +
			normKeyword[i]*weights.Keyword +
			normCross[i]*weights.CrossEncoder

		vector, keyword, cross := vectorScores[i], keywordScores[i], crossScores[i]
		results[i] = domain.RerankedResult{
			SearchResult:      candidate,
			RerankScore:       combined,
			Method:            domain.RerankHybrid,
			VectorScore:       &vector,
			KeywordScore:      &keyword,
			CrossEncoderScore: &cross,
		}
	}
	return sortAndRank(results, k), nil
}

// DiversityRerank selects candidates by maximal marginal relevance.
// The most relevant candidate seeds the selection; each following
// pick maximises lambda*relevance - (1-lambda)*similarity, where
// similarity is the highest keyword-set Jaccard overlap against the
// already selected results. RerankScore carries the raw relevance
// score, not the marginal score.
func (r *Reranker) DiversityRerank(ctx context.Context, query string, candidates []domain.SearchResult, k int, lambda float64) ([]domain.RerankedResult, error) {
	logger.Section("Diversity Reranking")
	logger.Debug("Reranking %d candidates (lambda %.2f)", len(candidates), lambda)

	if len(candidates) == 0 {
		return []domain.RerankedResult{}, nil
	}
	if k <= 0 {
		k = defaultRerankK
	}

	relevance, err := r.scoreAll(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	keywordSets := make([]map[string]bool, len(candidates))
	for i, candidate := range candidates {
		keywordSets[i] = keywordSet(candidate.Content)
	}

	// Seed with the most relevant candidate. Ties keep the first.
	seed := 0
	for i, score := range relevance {
		if score > relevance[seed] {
			seed = i
		}
	}

	selected := []int{seed}
	remaining := make([]int, 0, len(candidates)-1)
	for i := range candidates {
		if i != seed {
			remaining = append(remaining, i)
		}
	}

	limit := k
	if len(candidates) < limit {
		limit = len(candidates)
	}

	for len(selected) < limit && len(remaining) > 0 {
		bestPos := 0
		bestScore := math.Inf(-1)

		for pos, idx := range remaining {
			maxSimilarity := 0.0
			for _, sel := range selected {
				similarity := jaccard(keywordSets[idx], keywordSets[sel])
				if similarity > maxSimilarity {
					maxSimilarity = similarity
				}
			}

			mmr := lambda*relevance[idx] - (1-lambda)*maxSimilarity
			if mmr > bestScore {
				bestScore = mmr
				bestPos = pos
			}
		}

		selected = append(selected, remaining[bestPos])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	results := make([]domain.RerankedResult, len(selected))
	for rank, idx := range selected {
		results[rank] = domain.RerankedResult{
			SearchResult: candidates[idx],
			RerankScore:  relevance[idx],
			Rank:         rank + 1,
			Method:       domain.RerankMMR,
		}
	}

	logger.Debug("Selected %d diverse results", len(results))
	return results, nil
}

// scoreAll runs the cross-encoder over every candidate in one batch.
func (r *Reranker) scoreAll(ctx context.Context, query string, candidates []domain.SearchResult) ([]float64, error) {
	if r.scorer == nil {
		return nil, fmt.Errorf("%w: relevance scorer unavailable", domain.ErrReranking)
	}

	passages := make([]string, len(candidates))
	for i, candidate := range candidates {
		passages[i] = candidate.Content
	}

	scores, err := r.scorer.Score(ctx, query, passages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrReranking, err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("%w: scorer returned %d scores for %d candidates", domain.ErrReranking, len(scores), len(candidates))
	}
	return scores, nil
}

// sortAndRank orders results by rerank score descending, truncates to
// k and assigns 1-based ranks. Ties keep candidate order.
func sortAndRank(results []domain.RerankedResult, k int) []domain.RerankedResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RerankScore > results[j].RerankScore
	})
	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// keywordShareScores rates each candidate by its query keyword
// occurrence count divided by the query keyword count. A query with
// no extractable keywords yields all zeros.
func keywordShareScores(query string, candidates []domain.SearchResult) []float64 {
	scores := make([]float64, len(candidates))
	keywords := extractKeywords(query)
	if len(keywords) == 0 {
		return scores
	}

	patterns := keywordPatterns(keywords)
	for i, candidate := range candidates {
		scores[i] = countMatches(strings.ToLower(candidate.Content), patterns) / float64(len(keywords))
	}
	return scores
}

// minMaxNormalise scales scores into [0,1]. A flat channel maps to
// 0.5 everywhere so it contributes half its weight instead of noise.
func minMaxNormalise(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	minScore, maxScore := scores[0], scores[0]
	for _, score := range scores[1:] {
		if score < minScore {
			minScore = score
		}
		if score > maxScore {
			maxScore = score
		}
	}

	normalised := make([]float64, len(scores))
	if minScore == maxScore {
		for i := range normalised {
			normalised[i] = 0.5
		}
		return normalised
	}
	for i, score := range scores {
		normalised[i] = (score - minScore) / (maxScore - minScore)
	}
	return normalised
}
