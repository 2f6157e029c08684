package bleve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	index, err := NewMemOnly()
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })
	return index
}

func TestNewMemOnly(t *testing.T) {
	index := setupTestIndex(t)
	assert.Implements(t, (*driven.KeywordIndex)(nil), index)
}

func TestIndex_Search(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Index(ctx, "chunk-1", "goroutines and channels in go"))
	require.NoError(t, index.Index(ctx, "chunk-2", "python asyncio event loops"))
	require.NoError(t, index.Index(ctx, "chunk-3", "channels channels channels"))

	t.Run("finds matching documents best first", func(t *testing.T) {
		hits, err := index.Search(ctx, "channels", 10)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "chunk-3", hits[0].ID)
		assert.Equal(t, "chunk-1", hits[1].ID)
		assert.Greater(t, hits[0].Score, hits[1].Score)
	})

	t.Run("no matches", func(t *testing.T) {
		hits, err := index.Search(ctx, "rust", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("truncates to limit", func(t *testing.T) {
		hits, err := index.Search(ctx, "channels", 1)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("non-positive limit returns nothing", func(t *testing.T) {
		hits, err := index.Search(ctx, "channels", 0)
		require.NoError(t, err)
		assert.Nil(t, hits)
	})
}

func TestIndex_Reindex(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Index(ctx, "chunk-1", "original wording"))
	require.NoError(t, index.Index(ctx, "chunk-1", "replacement wording"))

	hits, err := index.Search(ctx, "original", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = index.Search(ctx, "replacement", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-1", hits[0].ID)
}

func TestIndex_Delete(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Index(ctx, "chunk-1", "ephemeral content"))
	require.NoError(t, index.Delete(ctx, "chunk-1"))

	hits, err := index.Search(ctx, "ephemeral", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Unknown IDs are ignored.
	assert.NoError(t, index.Delete(ctx, "never-indexed"))
}

func TestIndex_Clear(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Index(ctx, "chunk-1", "searchable text"))
	require.NoError(t, index.Clear(ctx))

	hits, err := index.Search(ctx, "searchable", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Index stays usable after a clear.
	require.NoError(t, index.Index(ctx, "chunk-2", "fresh text"))
	hits, err = index.Search(ctx, "fresh", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestNew_PersistsAcrossReopen(t *testing.T) {
	dir, err := os.MkdirTemp("", "knowledge-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "keyword.bleve")
	ctx := context.Background()

	index, err := New(path)
	require.NoError(t, err)
	require.NoError(t, index.Index(ctx, "chunk-1", "durable text"))
	require.NoError(t, index.Close())

	index, err = New(path)
	require.NoError(t, err)
	defer index.Close()

	hits, err := index.Search(ctx, "durable", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-1", hits[0].ID)
}
