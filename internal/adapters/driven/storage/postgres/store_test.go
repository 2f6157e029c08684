package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// setupTestStore connects to the database named by
// KNOWLEDGE_POSTGRES_DSN and empties it after the test. Tests are
// skipped when the variable is unset.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("KNOWLEDGE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KNOWLEDGE_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.pool.Exec(ctx, "DELETE FROM records") //nolint:errcheck
		store.pool.Exec(ctx, "DELETE FROM sources") //nolint:errcheck
		store.Close()
	})
	return store
}

func TestRecordStore_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	records := store.RecordStore()
	ctx := context.Background()

	ids, err := records.Add(ctx, []domain.VectorRecord{{
		Content:   "hello",
		Embedding: []float32{1, 0, 0},
		Metadata: map[string]any{
			"source_id":   "src-1",
			"chunk_index": 0,
			"tags":        []any{"x", "y"},
		},
	}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	got, err := records.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, []float32{1, 0, 0}, got.Embedding)
	assert.Equal(t, "src-1", got.Metadata["source_id"])
	assert.Equal(t, []any{"x", "y"}, got.Metadata["tags"])
	assert.WithinDuration(t, time.Now(), got.CreatedAt, 5*time.Second)

	_, err = records.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStore_Upsert(t *testing.T) {
	store := setupTestStore(t)
	records := store.RecordStore()
	ctx := context.Background()

	_, err := records.Add(ctx, []domain.VectorRecord{{ID: "fixed", Content: "v1"}})
	require.NoError(t, err)
	_, err = records.Add(ctx, []domain.VectorRecord{{ID: "fixed", Content: "v2"}})
	require.NoError(t, err)

	count, err := records.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := records.Get(ctx, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
}

func TestRecordStore_SearchAndFilter(t *testing.T) {
	store := setupTestStore(t)
	records := store.RecordStore()
	ctx := context.Background()

	_, err := records.Add(ctx, []domain.VectorRecord{
		{Content: "alpha", Embedding: []float32{1, 0}, Metadata: map[string]any{"source_id": "src-1", "chunk_index": 0}},
		{Content: "beta", Embedding: []float32{0, 1}, Metadata: map[string]any{"source_id": "src-1", "chunk_index": 1}},
		{Content: "gamma", Embedding: []float32{1, 1}, Metadata: map[string]any{"source_id": "src-2", "chunk_index": 0}},
		{Content: "no vector", Metadata: map[string]any{"source_id": "src-2"}},
	})
	require.NoError(t, err)

	t.Run("orders by ascending distance", func(t *testing.T) {
		hits, err := records.Search(ctx, []float32{1, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, "alpha", hits[0].Content)
		assert.Equal(t, "gamma", hits[1].Content)
		assert.Equal(t, "beta", hits[2].Content)
		assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	})

	t.Run("jsonb filter", func(t *testing.T) {
		hits, err := records.Search(ctx, []float32{1, 0}, 10, map[string]any{"source_id": "src-1"})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "alpha", hits[0].Content)
	})

	t.Run("integer filter matches stored number", func(t *testing.T) {
		hits, err := records.Search(ctx, []float32{1, 0}, 10, map[string]any{"chunk_index": 1})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "beta", hits[0].Content)
	})

	t.Run("truncates to k", func(t *testing.T) {
		hits, err := records.Search(ctx, []float32{1, 0}, 2, nil)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})
}

func TestRecordStore_UpdateFields(t *testing.T) {
	store := setupTestStore(t)
	records := store.RecordStore()
	ctx := context.Background()

	ids, err := records.Add(ctx, []domain.VectorRecord{{
		Content:   "original",
		Embedding: []float32{1, 0},
		Metadata:  map[string]any{"k": "v"},
	}})
	require.NoError(t, err)

	err = records.Update(ctx, domain.VectorRecord{ID: "missing", Content: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Empty fields preserve stored values.
	require.NoError(t, records.Update(ctx, domain.VectorRecord{ID: ids[0]}))
	got, err := records.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "original", got.Content)
	assert.Equal(t, []float32{1, 0}, got.Embedding)

	require.NoError(t, records.Update(ctx, domain.VectorRecord{
		ID:        ids[0],
		Content:   "updated",
		Embedding: []float32{0, 1},
		Metadata:  map[string]any{"k": "v2"},
	}))
	got, err = records.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Content)
	assert.Equal(t, []float32{0, 1}, got.Embedding)
	assert.Equal(t, "v2", got.Metadata["k"])
}

func TestRecordStore_DeleteAndList(t *testing.T) {
	store := setupTestStore(t)
	records := store.RecordStore()
	ctx := context.Background()

	ids, err := records.Add(ctx, []domain.VectorRecord{
		{Content: "one", Metadata: map[string]any{"source_id": "src-1"}},
		{Content: "two", Metadata: map[string]any{"source_id": "src-1"}},
		{Content: "three", Metadata: map[string]any{"source_id": "src-2"}},
	})
	require.NoError(t, err)

	t.Run("list in insertion order with paging", func(t *testing.T) {
		got, err := records.List(ctx, nil, 1, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "two", got[0].Content)
	})

	t.Run("list with filter", func(t *testing.T) {
		got, err := records.List(ctx, map[string]any{"source_id": "src-1"}, 0, 0)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, records.Delete(ctx, ids[0]))
		assert.ErrorIs(t, records.Delete(ctx, ids[0]), domain.ErrNotFound)
	})

	t.Run("delete many ignores unknown", func(t *testing.T) {
		require.NoError(t, records.DeleteMany(ctx, []string{ids[1], "missing"}))
		count, err := records.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestRecordStore_ClearAndDrop(t *testing.T) {
	store := setupTestStore(t)
	records := store.RecordStore()
	ctx := context.Background()

	_, err := records.Add(ctx, []domain.VectorRecord{{Content: "x"}})
	require.NoError(t, err)
	require.NoError(t, records.Clear(ctx))

	count, err := records.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = records.Add(ctx, []domain.VectorRecord{{Content: "y"}})
	require.NoError(t, err)
	require.NoError(t, records.Drop(ctx))

	// Table is usable again after the drop.
	_, err = records.Add(ctx, []domain.VectorRecord{{Content: "z"}})
	require.NoError(t, err)
	count, err = records.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSourceStore_CRUD(t *testing.T) {
	store := setupTestStore(t)
	sources := store.SourceStore()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	wiki := domain.KnowledgeSource{
		ID: "id-wiki", Name: "Team Wiki", Path: "/data/wiki",
		Description: "internal docs", Status: domain.SourceActive,
		CreatedAt: base,
	}
	api := domain.KnowledgeSource{
		ID: "id-api", Name: "API Reference", Path: "/data/api",
		Description: "endpoint documentation", Status: domain.SourceInactive,
		CreatedAt: base.Add(time.Minute),
	}
	require.NoError(t, sources.Save(ctx, wiki))
	require.NoError(t, sources.Save(ctx, api))

	t.Run("get by ID and name", func(t *testing.T) {
		got, err := sources.Get(ctx, "id-wiki")
		require.NoError(t, err)
		assert.Equal(t, "Team Wiki", got.Name)

		got, err = sources.GetByName(ctx, "API Reference")
		require.NoError(t, err)
		assert.Equal(t, "id-api", got.ID)

		_, err = sources.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list newest first with status filter", func(t *testing.T) {
		got, err := sources.List(ctx, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "API Reference", got[0].Name)

		got, err = sources.List(ctx, domain.SourceActive, 0, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Team Wiki", got[0].Name)
	})

	t.Run("count", func(t *testing.T) {
		count, err := sources.Count(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		count, err = sources.Count(ctx, domain.SourceInactive)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("search is case-insensitive and name-ordered", func(t *testing.T) {
		got, err := sources.Search(ctx, "doc")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "API Reference", got[0].Name)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, sources.Delete(ctx, "id-wiki"))
		assert.ErrorIs(t, sources.Delete(ctx, "id-wiki"), domain.ErrNotFound)
	})
}
