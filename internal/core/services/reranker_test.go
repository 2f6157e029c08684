package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// mockScorer implements driven.RelevanceScorer for testing. Scores
// are looked up by passage content so candidate order never matters.
type mockScorer struct {
	scores   map[string]float64
	scoreErr error
	short    bool
	calls    int
}

func (m *mockScorer) Score(_ context.Context, _ string, passages []string) ([]float64, error) {
	m.calls++
	if m.scoreErr != nil {
		return nil, m.scoreErr
	}
	if m.short {
		return []float64{}, nil
	}
	scores := make([]float64, len(passages))
	for i, passage := range passages {
		scores[i] = m.scores[passage]
	}
	return scores, nil
}

func (m *mockScorer) ModelName() string { return "mock-scorer" }

func (m *mockScorer) Ping(_ context.Context) error { return nil }

func (m *mockScorer) Close() error { return nil }

func rerankCandidates() []domain.SearchResult {
	return []domain.SearchResult{
		{ID: "a", Content: "goroutine scheduling in depth", Score: 0.9},
		{ID: "b", Content: "python asyncio explained", Score: 0.6},
		{ID: "c", Content: "channel select patterns", Score: 0.3},
	}
}

func TestReranker_Rerank(t *testing.T) {
	scorer := &mockScorer{scores: map[string]float64{
		"goroutine scheduling in depth": 0.2,
		"python asyncio explained":      0.9,
		"channel select patterns":       0.5,
	}}
	reranker := NewReranker(scorer)

	t.Run("orders by cross-encoder score", func(t *testing.T) {
		results, err := reranker.Rerank(context.Background(), "async io", rerankCandidates(), 10)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, "b", results[0].ID)
		assert.Equal(t, "c", results[1].ID)
		assert.Equal(t, "a", results[2].ID)

		assert.Equal(t, 0.9, results[0].RerankScore)
		assert.Equal(t, 1, results[0].Rank)
		assert.Equal(t, 3, results[2].Rank)
		for _, result := range results {
			assert.Equal(t, domain.RerankCrossEncoder, result.Method)
			assert.Nil(t, result.VectorScore)
		}
	})

	t.Run("truncates to k", func(t *testing.T) {
		results, err := reranker.Rerank(context.Background(), "async io", rerankCandidates(), 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "b", results[0].ID)
		assert.Equal(t, "c", results[1].ID)
		assert.Equal(t, 2, results[1].Rank)
	})

	t.Run("ties keep candidate order", func(t *testing.T) {
		tied := &mockScorer{scores: map[string]float64{
			"goroutine scheduling in depth": 0.5,
			"python asyncio explained":      0.5,
			"channel select patterns":       0.5,
		}}
		results, err := NewReranker(tied).Rerank(context.Background(), "q", rerankCandidates(), 10)
		require.NoError(t, err)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "b", results[1].ID)
		assert.Equal(t, "c", results[2].ID)
	})

	t.Run("empty candidates skip the scorer", func(t *testing.T) {
		counting := &mockScorer{}
		results, err := NewReranker(counting).Rerank(context.Background(), "q", nil, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Zero(t, counting.calls)
	})

	t.Run("scorer error wraps ErrReranking", func(t *testing.T) {
		failing := &mockScorer{scoreErr: errors.New("model offline")}
		_, err := NewReranker(failing).Rerank(context.Background(), "q", rerankCandidates(), 10)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrReranking)
		assert.Contains(t, err.Error(), "model offline")
	})

	t.Run("score count mismatch fails", func(t *testing.T) {
		truncating := &mockScorer{short: true}
		_, err := NewReranker(truncating).Rerank(context.Background(), "q", rerankCandidates(), 10)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrReranking)
	})

	t.Run("nil scorer fails", func(t *testing.T) {
		_, err := NewReranker(nil).Rerank(context.Background(), "q", rerankCandidates(), 10)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrReranking)
	})
}

func TestReranker_HybridRerank(t *testing.T) {
	// Vector scores span 1.0/0.5/0.0, keyword occurrences of "cat"
	// span 2/1/0 and cross-encoder scores span 0/5/10, so each
	// channel normalises to a clean 0/0.5/1 spread.
	candidates := []domain.SearchResult{
		{ID: "a", Content: "cat cat", Score: 1.0},
		{ID: "b", Content: "cat nap", Score: 0.5},
		{ID: "c", Content: "dog walk", Score: 0.0},
	}
	scorer := &mockScorer{scores: map[string]float64{
		"cat cat": 0,
		"cat nap": 5,
		"dog walk": 10,
	}}
	reranker := NewReranker(scorer)

	t.Run("blends normalised channels with default weights", func(t *testing.T) {
		results, err := reranker.HybridRerank(context.Background(), "cat", candidates, 10, domain.RerankWeights{})
		require.NoError(t, err)
		require.Len(t, results, 3)

		// a: 0.4*1 + 0.3*1 + 0.3*0, b: all channels 0.5, c: 0.3*1.
		assert.Equal(t, "a", results[0].ID)
		assert.InDelta(t, 0.7, results[0].RerankScore, 1e-9)
		assert.Equal(t, "b", results[1].ID)
		assert.InDelta(t, 0.5, results[1].RerankScore, 1e-9)
		assert.Equal(t, "c", results[2].ID)
		assert.InDelta(t, 0.3, results[2].RerankScore, 1e-9)

		for i, result := range results {
			assert.Equal(t, domain.RerankHybrid, result.Method)
			assert.Equal(t, i+1, result.Rank)
		}
	})

	t.Run("attaches raw component scores", func(t *testing.T) {
		results, err := reranker.HybridRerank(context.Background(), "cat", candidates, 10, domain.RerankWeights{})
		require.NoError(t, err)

		top := results[0]
		require.NotNil(t, top.VectorScore)
		require.NotNil(t, top.KeywordScore)
		require.NotNil(t, top.CrossEncoderScore)
		assert.Equal(t, 1.0, *top.VectorScore)
		assert.Equal(t, 2.0, *top.KeywordScore)
		assert.Equal(t, 0.0, *top.CrossEncoderScore)
	})

	t.Run("custom weights shift the order", func(t *testing.T) {
		weights := domain.RerankWeights{Vector: 0, Keyword: 0, CrossEncoder: 1}
		results, err := reranker.HybridRerank(context.Background(), "cat", candidates, 10, weights)
		require.NoError(t, err)
		assert.Equal(t, "c", results[0].ID)
		assert.Equal(t, "a", results[2].ID)
	})

	t.Run("flat channel contributes half weight", func(t *testing.T) {
		flat := []domain.SearchResult{
			{ID: "a", Content: "dog walk", Score: 0.8},
			{ID: "b", Content: "dog walk", Score: 0.8},
		}
		even := &mockScorer{scores: map[string]float64{"dog walk": 1}}
		results, err := NewReranker(even).HybridRerank(context.Background(), "cat", flat, 10, domain.RerankWeights{})
		require.NoError(t, err)

		// Every channel is flat, so both blend to half the total
		// weight and candidate order decides.
		assert.InDelta(t, 0.5, results[0].RerankScore, 1e-9)
		assert.InDelta(t, 0.5, results[1].RerankScore, 1e-9)
		assert.Equal(t, "a", results[0].ID)
	})

	t.Run("empty candidates skip the scorer", func(t *testing.T) {
		counting := &mockScorer{}
		results, err := NewReranker(counting).HybridRerank(context.Background(), "cat", nil, 10, domain.RerankWeights{})
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Zero(t, counting.calls)
	})
}

func TestReranker_DiversityRerank(t *testing.T) {
	// b duplicates a, so at balanced lambda the reranker should skip
	// it in favour of less relevant but distinct candidates.
	candidates := []domain.SearchResult{
		{ID: "a", Content: "furry cat naps"},
		{ID: "b", Content: "furry cat naps"},
		{ID: "c", Content: "dog walks park"},
		{ID: "d", Content: "fish swim deep"},
		{ID: "e", Content: "bird sings loud"},
	}
	scorer := func() *mockScorer {
		return &mockScorer{scores: map[string]float64{
			"furry cat naps":  1.0,
			"dog walks park":  0.9,
			"fish swim deep":  0.5,
			"bird sings loud": 0.1,
		}}
	}

	t.Run("skips near-duplicates at balanced lambda", func(t *testing.T) {
		results, err := NewReranker(scorer()).DiversityRerank(context.Background(), "cat", candidates, 3, 0.5)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "c", results[1].ID)
		assert.Equal(t, "d", results[2].ID)

		// Scores carry raw relevance, ranks the selection order.
		assert.Equal(t, 1.0, results[0].RerankScore)
		assert.Equal(t, 0.9, results[1].RerankScore)
		assert.Equal(t, 0.5, results[2].RerankScore)
		for i, result := range results {
			assert.Equal(t, i+1, result.Rank)
			assert.Equal(t, domain.RerankMMR, result.Method)
		}
	})

	t.Run("lambda one degenerates to relevance order", func(t *testing.T) {
		results, err := NewReranker(scorer()).DiversityRerank(context.Background(), "cat", candidates, 3, 1.0)
		require.NoError(t, err)
		require.Len(t, results, 3)

		// Pure relevance keeps the duplicate. Ties on the duplicate
		// pair resolve to the earlier candidate.
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "b", results[1].ID)
		assert.Equal(t, "c", results[2].ID)
	})

	t.Run("lambda zero maximises spread", func(t *testing.T) {
		results, err := NewReranker(scorer()).DiversityRerank(context.Background(), "cat", candidates, 3, 0.0)
		require.NoError(t, err)
		require.Len(t, results, 3)

		// Relevance is ignored beyond the seed; the duplicate ranks
		// last among the zero-similarity remainder.
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "c", results[1].ID)
		assert.Equal(t, "d", results[2].ID)
	})

	t.Run("k above candidate count returns all", func(t *testing.T) {
		results, err := NewReranker(scorer()).DiversityRerank(context.Background(), "cat", candidates, 50, 0.5)
		require.NoError(t, err)
		assert.Len(t, results, 5)
		assert.Equal(t, 5, results[4].Rank)
	})

	t.Run("empty candidates skip the scorer", func(t *testing.T) {
		counting := &mockScorer{}
		results, err := NewReranker(counting).DiversityRerank(context.Background(), "cat", nil, 3, 0.5)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Zero(t, counting.calls)
	})

	t.Run("scorer error wraps ErrReranking", func(t *testing.T) {
		failing := &mockScorer{scoreErr: errors.New("model offline")}
		_, err := NewReranker(failing).DiversityRerank(context.Background(), "cat", candidates, 3, 0.5)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrReranking)
	})
}
