package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/knowledge-core/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingService for testing.
type mockEmbedder struct {
	embedding []float32
	embedErr  error
	dims      int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.embedding, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.embedding
	}
	return result, nil
}

func (m *mockEmbedder) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return len(m.embedding)
}

func (m *mockEmbedder) ModelName() string { return "mock-embedder" }

func (m *mockEmbedder) Ping(_ context.Context) error { return nil }

func (m *mockEmbedder) Close() error { return nil }

// mockKeywordIndex implements driven.KeywordIndex for testing.
type mockKeywordIndex struct {
	hits      []driven.KeywordHit
	searchErr error
	indexed   map[string]string
	deleted   []string
	cleared   bool
}

func (m *mockKeywordIndex) Index(_ context.Context, id, content string) error {
	if m.indexed == nil {
		m.indexed = make(map[string]string)
	}
	m.indexed[id] = content
	return nil
}

func (m *mockKeywordIndex) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockKeywordIndex) Search(_ context.Context, _ string, limit int) ([]driven.KeywordHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:limit], nil
}

func (m *mockKeywordIndex) Clear(_ context.Context) error {
	m.cleared = true
	return nil
}

func (m *mockKeywordIndex) Close() error { return nil }

// --- Fixtures ---

// seedRetrievalRecords stores three embedded chunks and one without an
// embedding. Similarity against query vector [1,0]: alpha 1.0,
// gamma ~0.99, beta 0.
func seedRetrievalRecords(t *testing.T, store driven.VectorStore) {
	t.Helper()

	records := []domain.VectorRecord{
		{
			ID:        "alpha",
			Content:   "goroutine scheduling in depth",
			Embedding: []float32{1, 0},
			Metadata:  map[string]any{"source_id": "src-1", "chunk_index": 0},
		},
		{
			ID:        "beta",
			Content:   "python asyncio explained",
			Embedding: []float32{0, 1},
			Metadata:  map[string]any{"source_id": "src-1", "chunk_index": 1},
		},
		{
			ID:        "gamma",
			Content:   "channels and goroutines working together",
			Embedding: []float32{0.9, 0.1},
			Metadata:  map[string]any{"source_id": "src-2", "chunk_index": 0},
		},
		{
			ID:       "delta",
			Content:  "cat cat cat cat",
			Metadata: map[string]any{"source_id": "src-2", "chunk_index": 1},
		},
	}

	_, err := store.Add(context.Background(), records)
	require.NoError(t, err)
}

func TestRetriever_Retrieve(t *testing.T) {
	store := memory.NewVectorStore()
	seedRetrievalRecords(t, store)
	embedder := &mockEmbedder{embedding: []float32{1, 0}}
	retriever := NewRetriever(store, embedder)

	t.Run("orders by similarity", func(t *testing.T) {
		results, err := retriever.Retrieve(context.Background(), "goroutines", domain.RetrieveOptions{K: 2})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "alpha", results[0].ID)
		assert.Equal(t, "gamma", results[1].ID)
		assert.InDelta(t, 1.0, results[0].Score, 0.0001)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("default K", func(t *testing.T) {
		results, err := retriever.Retrieve(context.Background(), "goroutines", domain.RetrieveOptions{})
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("min score drops distant results", func(t *testing.T) {
		results, err := retriever.Retrieve(context.Background(), "goroutines", domain.RetrieveOptions{K: 10, MinScore: 0.5})
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, result := range results {
			assert.GreaterOrEqual(t, result.Score, 0.5)
		}
	})

	t.Run("metadata filter", func(t *testing.T) {
		results, err := retriever.Retrieve(context.Background(), "goroutines", domain.RetrieveOptions{
			K:       10,
			Filters: map[string]any{"source_id": "src-2"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "gamma", results[0].ID)
	})

	t.Run("embedding failure propagates", func(t *testing.T) {
		failing := NewRetriever(store, &mockEmbedder{embedErr: errors.New("model offline")})
		_, err := failing.Retrieve(context.Background(), "goroutines", domain.RetrieveOptions{K: 2})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbedding)
		assert.Contains(t, err.Error(), "embed query")
	})

	t.Run("nil embedder", func(t *testing.T) {
		bare := NewRetriever(store, nil)
		_, err := bare.Retrieve(context.Background(), "goroutines", domain.RetrieveOptions{K: 2})
		assert.ErrorIs(t, err, domain.ErrEmbedding)
	})
}

func TestRetriever_Retrieve_InternalBlend(t *testing.T) {
	store := memory.NewVectorStore()
	_, err := store.Add(context.Background(), []domain.VectorRecord{
		{ID: "vector-favourite", Content: "feline behaviour study", Embedding: []float32{1, 0}},
		{ID: "keyword-favourite", Content: "cat cat cat", Embedding: []float32{0.9, 0.1}},
	})
	require.NoError(t, err)

	retriever := NewRetriever(store, &mockEmbedder{embedding: []float32{1, 0}})

	// Without the blend the pure vector order wins.
	plain, err := retriever.Retrieve(context.Background(), "cat", domain.RetrieveOptions{K: 2})
	require.NoError(t, err)
	assert.Equal(t, "vector-favourite", plain[0].ID)

	// With the blend three exact keyword hits outweigh the small
	// similarity edge: 0.7*0.99 + 0.3*3 > 0.7*1.0.
	blended, err := retriever.Retrieve(context.Background(), "cat", domain.RetrieveOptions{K: 2, Rerank: true})
	require.NoError(t, err)
	require.Len(t, blended, 2)
	assert.Equal(t, "keyword-favourite", blended[0].ID)
	assert.Greater(t, blended[0].Score, blended[1].Score)
}

func TestRetriever_RetrieveByKeywords(t *testing.T) {
	store := memory.NewVectorStore()
	seedRetrievalRecords(t, store)
	retriever := NewRetriever(store, &mockEmbedder{embedding: []float32{1, 0}})

	t.Run("counts occurrences", func(t *testing.T) {
		results, err := retriever.RetrieveByKeywords(context.Background(), "cat goroutine", domain.RetrieveOptions{K: 10})
		require.NoError(t, err)
		require.Len(t, results, 2)
		// delta has four exact "cat" hits, alpha one "goroutine" hit.
		assert.Equal(t, "delta", results[0].ID)
		assert.InDelta(t, 4.0, results[0].Score, 0.0001)
		assert.Equal(t, "alpha", results[1].ID)
		assert.InDelta(t, 1.0, results[1].Score, 0.0001)
	})

	t.Run("word boundaries are exact", func(t *testing.T) {
		// "goroutines" (plural) must not count for keyword "goroutine".
		results, err := retriever.RetrieveByKeywords(context.Background(), "goroutines", domain.RetrieveOptions{K: 10})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "gamma", results[0].ID)
	})

	t.Run("no extractable keywords", func(t *testing.T) {
		results, err := retriever.RetrieveByKeywords(context.Background(), "the of a", domain.RetrieveOptions{K: 10})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("filter restricts candidates", func(t *testing.T) {
		results, err := retriever.RetrieveByKeywords(context.Background(), "goroutine cat", domain.RetrieveOptions{
			K:       10,
			Filters: map[string]any{"source_id": "src-1"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "alpha", results[0].ID)
	})

	t.Run("truncates to K", func(t *testing.T) {
		results, err := retriever.RetrieveByKeywords(context.Background(), "cat goroutine", domain.RetrieveOptions{K: 1})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "delta", results[0].ID)
	})
}

func TestRetriever_RetrieveByKeywords_Index(t *testing.T) {
	store := memory.NewVectorStore()
	seedRetrievalRecords(t, store)
	retriever := NewRetriever(store, &mockEmbedder{embedding: []float32{1, 0}})

	index := &mockKeywordIndex{hits: []driven.KeywordHit{
		{ID: "ghost", Score: 9.0},
		{ID: "gamma", Score: 7.5},
		{ID: "alpha", Score: 2.0},
	}}
	retriever.SetKeywordIndex(index)

	t.Run("engine scores and order", func(t *testing.T) {
		results, err := retriever.RetrieveByKeywords(context.Background(), "goroutine channels", domain.RetrieveOptions{K: 10})
		require.NoError(t, err)
		// The ghost hit has no backing record and is dropped.
		require.Len(t, results, 2)
		assert.Equal(t, "gamma", results[0].ID)
		assert.InDelta(t, 7.5, results[0].Score, 0.0001)
		assert.Equal(t, "alpha", results[1].ID)
	})

	t.Run("filters apply after hydration", func(t *testing.T) {
		results, err := retriever.RetrieveByKeywords(context.Background(), "goroutine channels", domain.RetrieveOptions{
			K:       10,
			Filters: map[string]any{"source_id": "src-1"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "alpha", results[0].ID)
	})

	t.Run("index failure propagates", func(t *testing.T) {
		broken := NewRetriever(store, &mockEmbedder{embedding: []float32{1, 0}})
		broken.SetKeywordIndex(&mockKeywordIndex{searchErr: errors.New("index corrupt")})
		_, err := broken.RetrieveByKeywords(context.Background(), "goroutine", domain.RetrieveOptions{K: 10})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "keyword index search")
	})
}

func TestRetriever_RetrieveByMetadata(t *testing.T) {
	store := memory.NewVectorStore()
	seedRetrievalRecords(t, store)
	retriever := NewRetriever(store, &mockEmbedder{embedding: []float32{1, 0}})

	results, err := retriever.RetrieveByMetadata(context.Background(), map[string]any{"source_id": "src-2"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.Equal(t, 1.0, result.Score)
		assert.Equal(t, "src-2", result.Metadata["source_id"])
	}
}

func TestRetriever_HybridRetrieve(t *testing.T) {
	store := memory.NewVectorStore()
	seedRetrievalRecords(t, store)
	embedder := &mockEmbedder{embedding: []float32{1, 0}}
	retriever := NewRetriever(store, embedder)

	t.Run("fuses channels with default weights", func(t *testing.T) {
		results, err := retriever.HybridRetrieve(context.Background(), "cat", domain.HybridOptions{K: 3})
		require.NoError(t, err)
		require.NotEmpty(t, results)

		// delta never has an embedding: its score is pure keyword,
		// 0.3*4 = 1.2, beating alpha's pure vector 0.7*1.0.
		assert.Equal(t, "delta", results[0].ID)
		assert.InDelta(t, 1.2, results[0].Score, 0.0001)
		assert.Equal(t, "alpha", results[1].ID)
		assert.InDelta(t, 0.7, results[1].Score, 0.0001)
	})

	t.Run("explicit weights", func(t *testing.T) {
		results, err := retriever.HybridRetrieve(context.Background(), "cat", domain.HybridOptions{
			K:             3,
			VectorWeight:  1.0,
			KeywordWeight: 0.1,
		})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "alpha", results[0].ID)
		assert.InDelta(t, 1.0, results[0].Score, 0.0001)
	})

	t.Run("zero keyword weight reduces to vector retrieval", func(t *testing.T) {
		hybrid, err := retriever.HybridRetrieve(context.Background(), "cat", domain.HybridOptions{
			K:            2,
			VectorWeight: 1.0,
		})
		require.NoError(t, err)

		plain, err := retriever.Retrieve(context.Background(), "cat", domain.RetrieveOptions{K: 2})
		require.NoError(t, err)

		require.Len(t, hybrid, len(plain))
		for i := range plain {
			assert.Equal(t, plain[i].ID, hybrid[i].ID)
			assert.InDelta(t, plain[i].Score, hybrid[i].Score, 0.0001)
		}
	})

	t.Run("truncates to K", func(t *testing.T) {
		results, err := retriever.HybridRetrieve(context.Background(), "cat", domain.HybridOptions{K: 1})
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("vector channel failure fails the retrieval", func(t *testing.T) {
		failing := NewRetriever(store, &mockEmbedder{embedErr: errors.New("model offline")})
		_, err := failing.HybridRetrieve(context.Background(), "cat", domain.HybridOptions{K: 3})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hybrid vector channel")
	})
}

func TestFuseChannels_TieOrder(t *testing.T) {
	vector := []domain.SearchResult{
		{ID: "first", Score: 0.5},
		{ID: "second", Score: 0.5},
	}
	keyword := []domain.SearchResult{
		{ID: "second", Score: 1.0},
		{ID: "third", Score: 0.5},
	}

	fused := fuseChannels(vector, keyword, 0.7, 0.3)
	require.Len(t, fused, 3)
	// second gains a keyword contribution; first and third follow in
	// first-encounter order.
	assert.Equal(t, "second", fused[0].ID)
	assert.InDelta(t, 0.65, fused[0].Score, 0.0001)
	assert.Equal(t, "first", fused[1].ID)
	assert.InDelta(t, 0.35, fused[1].Score, 0.0001)
	assert.Equal(t, "third", fused[2].ID)
	assert.InDelta(t, 0.15, fused[2].Score, 0.0001)
}

func TestMetadataMatches(t *testing.T) {
	metadata := map[string]any{"source_id": "src-1", "chunk_index": float64(3)}

	assert.True(t, metadataMatches(metadata, nil))
	assert.True(t, metadataMatches(metadata, map[string]any{"source_id": "src-1"}))
	// Numeric filters match restored JSON numbers by value.
	assert.True(t, metadataMatches(metadata, map[string]any{"chunk_index": 3}))
	assert.False(t, metadataMatches(metadata, map[string]any{"source_id": "src-2"}))
	assert.False(t, metadataMatches(metadata, map[string]any{"missing": true}))
}
